// Package notify composes the payment confirmation sent to a student and
// builds the WhatsApp click-to-chat link that carries it.
package notify

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/warp/fee-ledger/ledger"
	"github.com/warp/fee-ledger/receipt"
)

// WhatsAppBase is the click-to-chat endpoint.
const WhatsAppBase = "https://wa.me/"

// DefaultCountryCode is prefixed to ten-digit local numbers.
const DefaultCountryCode = "91"

// Notifier composes messages and links for one institute.
type Notifier struct {
	Institute   string
	CountryCode string
}

// New creates a notifier.
func New(institute, countryCode string) *Notifier {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	return &Notifier{Institute: institute, CountryCode: countryCode}
}

// ComposeMessage renders the confirmation text for one payment.
func (n *Notifier) ComposeMessage(s ledger.Student, p ledger.Payment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", s.Name)
	fmt.Fprintf(&b, "Receipt No: %s\n", p.ReceiptNo)
	fmt.Fprintf(&b, "Total Fees: %s\n", receipt.FormatRupees(s.TotalFees))
	fmt.Fprintf(&b, "Paid: %s\n", receipt.FormatRupees(p.Amount))
	fmt.Fprintf(&b, "Remaining: %s\n", receipt.FormatRupees(p.RunningRemaining))
	if p.RunningRemaining.IsPositive() {
		fmt.Fprintf(&b, "Next Due Date: %s\n", p.NextDueDate)
	}
	fmt.Fprintf(&b, "\nRegards,\n%s\n", n.Institute)
	return b.String()
}

// Link returns the WhatsApp deep link carrying the message to the student.
func (n *Notifier) Link(s ledger.Student, p ledger.Payment) string {
	return WhatsAppLink(n.CountryCode, s.Phone, n.ComposeMessage(s, p))
}

// WhatsAppLink embeds the recipient and the URL-encoded text into the
// click-to-chat template. Numbers already carrying the country code are
// not prefixed again.
func WhatsAppLink(countryCode, phone, text string) string {
	phone = ledger.NormalizePhone(countryCode, phone)
	if len(phone) <= 10 {
		phone = countryCode + phone
	}
	encoded := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return WhatsAppBase + phone + "?text=" + encoded
}
