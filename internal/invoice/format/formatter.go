package format

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var seqPadRe = regexp.MustCompile(`\{SEQ(\d+)\}`)

const DefaultInvoiceNumberTemplate = "INV-{YYYY}{MM}{DD}-{SEQ4}"

// FormatInvoiceNumber expands an invoice number template. Supported tokens are
// {YYYY} {YY} {MM} {DD}, {SEQ} and {SEQn} for a zero padded daily sequence,
// and {ID} for the order id.
func FormatInvoiceNumber(template string, issuedAt time.Time, seq int64, orderID string) (string, error) {
	template = strings.TrimSpace(template)
	if template == "" {
		return "", fmt.Errorf("invoice number template is empty")
	}
	if seq <= 0 {
		return "", fmt.Errorf("invalid invoice sequence: %d", seq)
	}

	issuedAt = issuedAt.UTC()
	out := strings.NewReplacer(
		"{YYYY}", issuedAt.Format("2006"),
		"{YY}", issuedAt.Format("06"),
		"{MM}", issuedAt.Format("01"),
		"{DD}", issuedAt.Format("02"),
		"{SEQ}", strconv.FormatInt(seq, 10),
		"{ID}", orderID,
	).Replace(template)

	out = seqPadRe.ReplaceAllStringFunc(out, func(m string) string {
		width, err := strconv.Atoi(seqPadRe.FindStringSubmatch(m)[1])
		if err != nil || width <= 0 || width > 12 {
			return m
		}
		return fmt.Sprintf("%0*d", width, seq)
	})

	if strings.ContainsAny(out, "{}") {
		return "", fmt.Errorf("unresolved token in invoice format: %s", out)
	}
	return out, nil
}

// FormatMoney renders amount with two decimals and comma grouped thousands,
// prefixed by the currency code.
func FormatMoney(currency string, amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	out := sign + b.String() + "." + frac
	if currency = strings.TrimSpace(currency); currency != "" {
		out = currency + " " + out
	}
	return out
}
