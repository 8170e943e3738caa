package slotleads

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Offer describes the subscription being sold. It is static configuration.
type Offer struct {
	Plan         string          `json:"plan"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	PaymentLink  string          `json:"payment_link"`
	Instructions string          `json:"instructions"`
}

// Price formats the amount for display, e.g. "299.00 INR".
func (o Offer) Price() string {
	return fmt.Sprintf("%s %s", o.Amount.StringFixed(2), o.Currency)
}
