// Package payment builds UPI payment deep links and validates transaction
// references. The flow is reference-only: the club never talks to a payment
// gateway, the user pays in their UPI app and submits the UTR for manual
// verification by an admin.
package payment

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrBadUTR is returned for a transaction reference that cannot be valid.
var ErrBadUTR = errors.New("invalid utr")

// UPI holds the club's static payee details.
type UPI struct {
	PayeeAddress string // virtual payment address, e.g. club@ybl
	PayeeName    string
}

// Link builds a upi://pay deep link for the given rupee amount and note.
// Any UPI app registered on the device can open it.
func (u UPI) Link(amount int, note string) string {
	q := url.Values{}
	q.Set("pa", u.PayeeAddress)
	q.Set("pn", u.PayeeName)
	q.Set("am", fmt.Sprintf("%d", amount))
	q.Set("cu", "INR")
	if note != "" {
		q.Set("tn", note)
	}
	return "upi://pay?" + q.Encode()
}

// NormalizeUTR trims and uppercases a user-entered transaction reference.
func NormalizeUTR(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidateUTR checks the shape of a UPI transaction reference: 10 to 22
// alphanumeric characters. Banks differ in format, so the check is loose;
// the admin verifies the reference against the account statement anyway.
func ValidateUTR(s string) error {
	s = NormalizeUTR(s)
	if len(s) < 10 || len(s) > 22 {
		return ErrBadUTR
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'A' || r > 'Z') {
			return ErrBadUTR
		}
	}
	return nil
}
