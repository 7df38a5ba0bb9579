package handlers

import (
	"html/template"
	"net/http"

	"github.com/MrSnakeDoc/studybot/internal/logger"
)

var checkoutPage = template.Must(template.New("checkout").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Unlock {{.Label}}</title>
<script src="https://sdk.cashfree.com/js/v3/cashfree.js"></script>
</head>
<body>
<h2>{{.Label}}</h2>
<p>{{.Category}} · ₹{{.Amount}}</p>
<p>Order <code>{{.OrderID}}</code></p>
<button id="pay">Pay ₹{{.Amount}}</button>
<script>
  const cashfree = Cashfree({ mode: {{.Mode}} });
  function pay() {
    cashfree.checkout({ paymentSessionId: {{.SessionID}}, redirectTarget: "_self" });
  }
  document.getElementById("pay").addEventListener("click", pay);
  pay();
</script>
</body>
</html>
`))

var messagePage = template.Must(template.New("message").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
</head>
<body>
<h2>{{.Title}}</h2>
<p>{{.Body}}</p>
{{if .BotURL}}<p><a href="{{.BotURL}}">Back to the bot</a></p>{{end}}
</body>
</html>
`))

type checkoutView struct {
	Label     string
	Category  string
	Amount    int
	OrderID   string
	SessionID string
	Mode      string
}

type messageView struct {
	Title  string
	Body   string
	BotURL string
}

func render(w http.ResponseWriter, log logger.Logger, status int, tpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := tpl.Execute(w, data); err != nil {
		log.Debug("failed to render page", logger.String("template", tpl.Name()), logger.Error(err))
	}
}
