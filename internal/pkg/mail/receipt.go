package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

// Receipt is the content of a purchase confirmation mail.
type Receipt struct {
	To          string
	Name        string
	CourseTitle string
	Amount      int64
	Currency    string
	PaymentID   string
	PurchasedAt time.Time
}

var currencySymbols = map[string]string{
	"inr": "₹",
	"usd": "$",
	"eur": "€",
	"gbp": "£",
	"jpy": "¥",
}

// zero decimal currencies are charged in whole units
var zeroDecimal = map[string]bool{
	"jpy": true,
	"krw": true,
	"vnd": true,
}

// FormatAmount renders an amount given in the currency's smallest unit.
func FormatAmount(amount int64, currency string) string {
	cur := strings.ToLower(currency)
	symbol, ok := currencySymbols[cur]
	if !ok {
		symbol = strings.ToUpper(cur) + " "
	}
	if zeroDecimal[cur] {
		return fmt.Sprintf("%s%d", symbol, amount)
	}
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%s%d.%02d", sign, symbol, amount/100, amount%100)
}

var receiptHTML = template.Must(template.New("receipt").Parse(`<!doctype html>
<html><body style="font-family: sans-serif">
<p>Hi {{.Name}},</p>
<p>thanks for your purchase. <strong>{{.CourseTitle}}</strong> is now available in your library.</p>
<table cellpadding="4">
<tr><td>Amount</td><td>{{.Amount}}</td></tr>
<tr><td>Payment</td><td>{{.PaymentID}}</td></tr>
<tr><td>Date</td><td>{{.Date}}</td></tr>
</table>
<p>Happy learning!</p>
</body></html>`))

// RenderReceipt builds subject, HTML and plain text bodies.
func RenderReceipt(r Receipt) (string, []byte, []byte, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		name = "there"
	}
	data := struct {
		Name        string
		CourseTitle string
		Amount      string
		PaymentID   string
		Date        string
	}{
		Name:        name,
		CourseTitle: r.CourseTitle,
		Amount:      FormatAmount(r.Amount, r.Currency),
		PaymentID:   r.PaymentID,
		Date:        r.PurchasedAt.UTC().Format("2006-01-02 15:04 MST"),
	}

	var html bytes.Buffer
	if err := receiptHTML.Execute(&html, data); err != nil {
		return "", nil, nil, err
	}

	text := fmt.Sprintf("Hi %s,\n\nthanks for your purchase. %s is now available in your library.\n\nAmount: %s\nPayment: %s\nDate: %s\n",
		data.Name, data.CourseTitle, data.Amount, data.PaymentID, data.Date)

	subject := fmt.Sprintf("Your receipt for %s", r.CourseTitle)
	return subject, html.Bytes(), []byte(text), nil
}
