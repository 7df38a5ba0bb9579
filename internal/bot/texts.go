package bot

import (
	"fmt"
	"strings"
)

var greetings = map[string]bool{
	"hi": true, "hello": true, "hey": true, "hii": true,
	"heyy": true, "hola": true, "start": true,
}

func isGreeting(text string) bool {
	return greetings[strings.ToLower(strings.TrimSpace(text))]
}

func greetingText(name string) string {
	return fmt.Sprintf("Welcome %s!\n\n"+
		"*Do you need any study material?*\n\n"+
		"Just ask me like this:\n\"Arihant Physics exemplar 11th\"\n\n"+
		"You can also add me to your study group to help students with:\n"+
		"- Quick material searches\n"+
		"- Copyright-free resources\n"+
		"- Instant answers to study queries\n\n"+
		"I'll assist everyone in the group while following all copyright guidelines.", name)
}

func aboutText(bot string) string {
	return fmt.Sprintf("*Study Bot*\n\n"+
		"Send me the name of a book or topic and I will find matching study materials.\n\n"+
		"• In groups, mention me: @%s mtg bio\n"+
		"• /study <query> searches the free catalog\n"+
		"• /cashstudy <query> searches premium materials\n"+
		"• /translate <text> translates text\n"+
		"• /ocr (reply to a photo) extracts text", bot)
}

func welcomeText(name, bot string, self bool) string {
	if self {
		return fmt.Sprintf("*Thanks for adding me!*\n\nType @%s mtg bio to get study material.", bot)
	}
	return fmt.Sprintf("Hi %s! *Welcome!*\n\nType @%s mtg bio to get study material.", name, bot)
}

const (
	msgUnauthorized     = "❌ You are not authorized to use this command."
	msgUsersFailed      = "❌ Unable to fetch user count."
	msgLogsUsage        = "Usage: /logs YYYY-MM-DD"
	msgNoLogs           = "No logs found for this date."
	msgLogsFailed       = "❌ Error fetching logs."
	msgBroadcastUsage   = "⚠️ Please reply to the message (text/media) you want to broadcast using /broadcast."
	msgBroadcastFailed  = "❌ Broadcast failed."
	msgReloadFailed     = "❌ Catalog reload failed."
	msgContactUsage     = "❌ Usage: /setcontact <phone> <email>"
	msgContactInvalid   = "❌ Invalid phone or email format."
	msgContactSaved     = "✅ Contact details saved successfully!"
	msgContactFailed    = "❌ Failed to save contact details."
	msgTranslateFailed  = "Translation failed. Please try again or check language codes."
	msgOCRUsage         = "Please reply to an image with /ocr to extract text."
	msgOCREmpty         = "No text could be extracted from the image."
	msgOCRFailed        = "❌ Failed to process image."
	msgFeatureDisabled  = "❌ This feature is not available right now."
	usersCallbackData   = "refresh_users"
	usersRefreshedLabel = "Refresh"
)
