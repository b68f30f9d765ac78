package mailer

import (
	"bytes"
	"html/template"
)

// OrderConfirmation carries the fields rendered into the confirmation mail.
// Money values are preformatted decimal strings.
type OrderConfirmation struct {
	To          string
	Name        string
	OrderNumber string
	Currency    string
	Subtotal    string
	Discount    string
	Total       string
	Items       []OrderLine
}

type OrderLine struct {
	Name      string
	Quantity  int
	UnitPrice string
	LineTotal string
}

var orderConfirmationTmpl = template.Must(template.New("order").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Georgia, serif; background: #0b0b0b; color: #e8e4dc; max-width: 600px; margin: 0 auto; padding: 24px;">
  <h1 style="letter-spacing: 0.2em; text-transform: uppercase;">Memento Mori</h1>
  <p>{{if .Name}}{{.Name}}, t{{else}}T{{end}}hank you for your order.</p>
  <p>Order number: <strong style="font-family: monospace;">{{.OrderNumber}}</strong></p>
  <table style="width: 100%; border-collapse: collapse;">
    <thead>
      <tr><th align="left">Item</th><th>Qty</th><th align="right">Price</th><th align="right">Total</th></tr>
    </thead>
    <tbody>
    {{- range .Items}}
      <tr><td>{{.Name}}</td><td align="center">{{.Quantity}}</td><td align="right">{{.UnitPrice}}</td><td align="right">{{.LineTotal}}</td></tr>
    {{- end}}
    </tbody>
  </table>
  <p>Subtotal: {{.Subtotal}} {{.Currency}}</p>
  {{- if and .Discount (ne .Discount "0") (ne .Discount "0.00")}}
  <p>Discount: -{{.Discount}} {{.Currency}}</p>
  {{- end}}
  <p><strong>Total: {{.Total}} {{.Currency}}</strong></p>
</body>
</html>`))

var verificationTmpl = template.Must(template.New("verify").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Georgia, serif; background: #0b0b0b; color: #e8e4dc; max-width: 600px; margin: 0 auto; padding: 24px;">
  <h1 style="letter-spacing: 0.2em; text-transform: uppercase;">Memento Mori</h1>
  <p>{{if .Name}}Welcome, {{.Name}}.{{else}}Welcome.{{end}}</p>
  <p>Confirm your email address to finish creating your account:</p>
  <p><a href="{{.Link}}" style="color: #b30000;">Confirm email</a></p>
</body>
</html>`))

func renderOrderConfirmation(msg OrderConfirmation) (string, error) {
	var buf bytes.Buffer
	if err := orderConfirmationTmpl.Execute(&buf, msg); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderVerification(name, link string) (string, error) {
	var buf bytes.Buffer
	err := verificationTmpl.Execute(&buf, struct {
		Name string
		Link string
	}{Name: name, Link: link})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
