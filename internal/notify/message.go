// Package notify delivers order confirmation emails.
package notify

import (
	"fmt"
	"strings"

	"github.com/go-faster/jx"

	"github.com/IT-Gio/ShopElec/internal/domain/checkout"
)

const confirmationSubject = "Your Order Confirmation"

// Message is an outbound email.
type Message struct {
	OrderID string
	From    string
	To      string
	Subject string
	Body    string
}

// Confirmation renders the confirmation email for a completed order.
func Confirmation(c checkout.Confirmation, from string) Message {
	var b strings.Builder
	b.WriteString("Thank you for your order!\n\n")
	fmt.Fprintf(&b, "Delivery address: %s\n\n", c.Address)
	b.WriteString("Items:\n")
	for _, it := range c.Items {
		fmt.Fprintf(&b, "%dx %s - $%s\n", it.Quantity, it.Name, it.Price.StringFixed(2))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Subtotal: $%s\n", c.Subtotal.StringFixed(2))
	fmt.Fprintf(&b, "Discount: -$%s\n", c.Discount.StringFixed(2))
	fmt.Fprintf(&b, "Shipping: $%s\n", c.ShippingFee.StringFixed(2))
	fmt.Fprintf(&b, "Total Paid: $%s\n\n", c.TotalPaid.StringFixed(2))
	b.WriteString("We appreciate your purchase!")

	return Message{
		OrderID: c.OrderID.String(),
		From:    from,
		To:      c.Email,
		Subject: confirmationSubject,
		Body:    b.String(),
	}
}

// Encode writes m as a JSON object.
func (m Message) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("order_id")
	e.Str(m.OrderID)
	e.FieldStart("from")
	e.Str(m.From)
	e.FieldStart("to")
	e.Str(m.To)
	e.FieldStart("subject")
	e.Str(m.Subject)
	e.FieldStart("body")
	e.Str(m.Body)
	e.ObjEnd()
}
