package notify_test

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fee-ledger/ledger"
	"github.com/warp/fee-ledger/notify"
)

func sample(remaining string) (ledger.Student, ledger.Payment) {
	s := ledger.Student{ID: "STU-1", Name: "Asha", Phone: "9998887776", TotalFees: decimal.RequireFromString("12000")}
	p := ledger.Payment{
		ReceiptNo:        "MA-2024-0001",
		Amount:           decimal.RequireFromString("4000"),
		RunningRemaining: decimal.RequireFromString(remaining),
		NextDueDate:      ledger.NewDate(2024, time.February, 10),
	}
	return s, p
}

func TestComposeMessage(t *testing.T) {
	n := notify.New("Murlidhar Academy", "")
	s, p := sample("8000")

	msg := n.ComposeMessage(s, p)

	assert.True(t, strings.HasPrefix(msg, "Hello Asha,"))
	assert.Contains(t, msg, "Receipt No: MA-2024-0001")
	assert.Contains(t, msg, "Total Fees: ₹12,000.00")
	assert.Contains(t, msg, "Paid: ₹4,000.00")
	assert.Contains(t, msg, "Remaining: ₹8,000.00")
	assert.Contains(t, msg, "Next Due Date: 10-02-2024")
	assert.True(t, strings.HasSuffix(msg, "Regards,\nMurlidhar Academy\n"))
}

func TestComposeMessage_PaidOffOmitsDueDate(t *testing.T) {
	n := notify.New("Murlidhar Academy", "91")
	s, p := sample("0")

	assert.NotContains(t, n.ComposeMessage(s, p), "Next Due Date")
}

func TestWhatsAppLink(t *testing.T) {
	link := notify.WhatsAppLink("91", "9998887776", "Hello Asha,\nPaid: ₹4,000.00")

	assert.True(t, strings.HasPrefix(link, "https://wa.me/919998887776?text="))
	assert.NotContains(t, link, "+")
	assert.Contains(t, link, "%20")

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "Hello Asha,\nPaid: ₹4,000.00", u.Query().Get("text"))
}

func TestWhatsAppLink_CountryCodeNotDoubled(t *testing.T) {
	assert.True(t, strings.HasPrefix(notify.WhatsAppLink("91", "919998887776", "x"), "https://wa.me/919998887776?"))
	assert.True(t, strings.HasPrefix(notify.WhatsAppLink("91", "+91 99988 87776", "x"), "https://wa.me/919998887776?"))
}

func TestNotifier_Link(t *testing.T) {
	n := notify.New("Murlidhar Academy", "")
	s, p := sample("8000")

	assert.True(t, strings.HasPrefix(n.Link(s, p), "https://wa.me/919998887776?text=Hello%20Asha"))
}
