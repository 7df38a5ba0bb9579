package redis

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// KeyPrefix namespaces every key the bot writes
	KeyPrefix = "studybot:"
	// KeyAllChats is the set of every chat that talked to the bot
	KeyAllChats = KeyPrefix + "chats:all"
	// KeyPrefixChat is the prefix for chat profile hashes
	KeyPrefixChat = KeyPrefix + "chat:"
	// KeyPrefixPaid is the prefix for per-user paid item hashes
	KeyPrefixPaid = KeyPrefix + "paid:"
	// KeyPrefixOrder is the prefix for checkout orders
	KeyPrefixOrder = KeyPrefix + "order:"
	// KeyPrefixLogs is the prefix for daily chat log lists
	KeyPrefixLogs = KeyPrefix + "logs:"
	// KeyPrefixShortLink is the prefix for shortened item links
	KeyPrefixShortLink = KeyPrefix + "shortlink:"

	// LogDateLayout names daily log lists
	LogDateLayout = "2006-01-02"
)

// ChatKey returns the Redis key for a chat profile
func ChatKey(id int64) string {
	return KeyPrefixChat + strconv.FormatInt(id, 10)
}

// PaidKey returns the Redis key holding the paid items of a user
func PaidKey(userID int64) string {
	return KeyPrefixPaid + strconv.FormatInt(userID, 10)
}

// OrderKey returns the Redis key for a checkout order
func OrderKey(orderID string) string {
	return KeyPrefixOrder + orderID
}

// LogsKey returns the Redis key for the chat log of day
func LogsKey(day time.Time) string {
	return KeyPrefixLogs + day.Format(LogDateLayout)
}

// ShortLinkKey returns the Redis key for the shortened link of an item
func ShortLinkKey(itemKey string) string {
	return KeyPrefixShortLink + itemKey
}

// ExtractLogDate parses the day out of a logs key
func ExtractLogDate(key string) (time.Time, error) {
	if !strings.HasPrefix(key, KeyPrefixLogs) {
		return time.Time{}, fmt.Errorf("invalid logs key: %s", key)
	}
	return time.Parse(LogDateLayout, key[len(KeyPrefixLogs):])
}

// ExtractItemKey extracts the catalog key from a short link key
func ExtractItemKey(key string) (string, error) {
	if len(key) <= len(KeyPrefixShortLink) || !strings.HasPrefix(key, KeyPrefixShortLink) {
		return "", fmt.Errorf("invalid short link key: %s", key)
	}
	return key[len(KeyPrefixShortLink):], nil
}
