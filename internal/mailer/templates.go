package mailer

import (
	"bytes"
	"html/template"

	"marketplace-payments/internal/models"
)

var orderConfirmationTmpl = template.Must(template.New("order_confirmation").
	Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
	Parse(`
<h1>Order Confirmed!</h1>
<p>Thank you for your purchase!</p>
<p><strong>Order ID:</strong> {{.OrderID}}</p>
<p><strong>Product:</strong> {{.ProductName}}</p>
<p><strong>Amount:</strong> ${{.Amount}}</p>
{{if .DownloadLinks}}
<h3>Download Links:</h3>
{{range $i, $link := .DownloadLinks}}
<p><a href="{{$link}}">Download File {{inc $i}}</a></p>
{{end}}
<p>Note: download links expire and have a maximum number of downloads.</p>
{{else}}
<p>Your download links will be available from your order history.</p>
{{end}}
`))

var saleNotificationTmpl = template.Must(template.New("sale_notification").Parse(`
<h1>New Sale!</h1>
<p>Congratulations! You have a new sale:</p>
<p><strong>Product:</strong> {{.ProductName}}</p>
<p><strong>Buyer:</strong> {{.BuyerEmail}}</p>
<p><strong>Amount:</strong> ${{.Amount}}</p>
<p><strong>Your Earnings:</strong> ${{.Earnings}} (after platform fee)</p>
`))

var paymentFailedTmpl = template.Must(template.New("payment_failed").Parse(`
<h1>Payment Failed</h1>
<p>Your payment for <strong>{{.ProductName}}</strong> could not be completed.</p>
<p>No charge was made. You can retry the purchase at any time.</p>
`))

var orderRefundedTmpl = template.Must(template.New("order_refunded").Parse(`
<h1>Refund Processed</h1>
<p>Your order <strong>{{.OrderID}}</strong> has been refunded.</p>
<p><strong>Amount:</strong> ${{.Amount}}</p>
`))

var withdrawalRequestedTmpl = template.Must(template.New("withdrawal_requested").Parse(`
<h1>Withdrawal Request Received</h1>
<p>Your withdrawal request <strong>{{.WithdrawalID}}</strong> for ${{.Amount}} is pending review.</p>
<p>Funds remain in your wallet until the request is approved.</p>
`))

// RenderOrderConfirmation builds the buyer confirmation email body
func RenderOrderConfirmation(event *models.OrderConfirmationEvent) (string, error) {
	return render(orderConfirmationTmpl, event)
}

// RenderSaleNotification builds the seller notification email body
func RenderSaleNotification(event *models.SaleNotificationEvent) (string, error) {
	return render(saleNotificationTmpl, event)
}

// RenderPaymentFailed builds the failed-payment email body
func RenderPaymentFailed(event *models.PaymentFailedEvent) (string, error) {
	return render(paymentFailedTmpl, event)
}

// RenderOrderRefunded builds the refund email body
func RenderOrderRefunded(event *models.OrderRefundedEvent) (string, error) {
	return render(orderRefundedTmpl, event)
}

// RenderWithdrawalRequested builds the withdrawal confirmation body
func RenderWithdrawalRequested(event *models.WithdrawalRequestedEvent) (string, error) {
	return render(withdrawalRequestedTmpl, event)
}

func render(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
