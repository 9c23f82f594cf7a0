// Package dues turns payment provider e-mails into dues payments matched to members.
package dues

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"tomcat/internal/model"
)

// Currency is recorded on every parsed payment.
const Currency = "USD"

var (
	amountRe      = regexp.MustCompile(`\$[0-9][0-9,]*\.[0-9]{2}`)
	centsRe       = regexp.MustCompile(`([0-9]+)(?:\.([0-9]{2}))?`)
	paypalTxnRe   = regexp.MustCompile(`(?i)Transaction ID[: ]+([A-Z0-9]+)`)
	fromRe        = regexp.MustCompile(`(?i)from[: ]+([^\n]+)`)
	emailRe       = regexp.MustCompile(`([A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,})`)
	venmoHandleRe = regexp.MustCompile(`@([A-Za-z0-9._-]+)`)
	venmoPayerRe  = regexp.MustCompile(`(?i)([A-Za-z .'-]+) paid you`)
	noteRe        = regexp.MustCompile(`(?i)note[: ]+([^\n]+)`)
	cashtagRe     = regexp.MustCompile(`\$[A-Za-z][A-Za-z0-9._-]*`)
)

// Parse reads a provider notification. It reports false when the e-mail is not
// from a supported provider. Provider order is PayPal, Venmo, then Cash App.
func Parse(sender, subject, body string, at time.Time) (*model.Payment, bool) {
	from := strings.ToLower(sender)
	subj := strings.ToLower(subject)
	if strings.Contains(body, "<") {
		body = htmlText(body)
	}

	ms := at.UnixMilli()
	p := &model.Payment{
		Currency:    Currency,
		AmountCents: amountCents(amountRe.FindString(body)),
		TSEpoch:     at.Unix(),
		RawSource:   fmt.Sprintf("mail:%d", ms),
	}

	switch {
	case strings.Contains(from, "paypal") || strings.Contains(subj, "paypal"):
		p.Provider = "paypal"
		p.TxnID = fmt.Sprintf("pp-%d", ms)
		if m := paypalTxnRe.FindStringSubmatch(body); m != nil {
			p.TxnID = m[1]
		}
		p.PayerName = submatch(fromRe, body)
		p.PayerEmail = strings.ToLower(submatch(emailRe, body))
	case strings.Contains(from, "venmo") || strings.Contains(subj, "venmo"):
		p.Provider = "venmo"
		p.TxnID = fmt.Sprintf("venmo-%d", ms)
		p.PayerName = submatch(venmoPayerRe, body)
		if h := submatch(venmoHandleRe, body); h != "" {
			p.PayerHandle = "@" + h
		}
		p.Memo = submatch(noteRe, body)
	case strings.Contains(from, "cash.app") || strings.Contains(subj, "cash app"):
		p.Provider = "cashapp"
		p.TxnID = fmt.Sprintf("cash-%d", ms)
		p.PayerName = submatch(fromRe, body)
		p.PayerHandle = cashtagRe.FindString(body)
	default:
		return nil, false
	}
	return p, true
}

func submatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func amountCents(s string) int64 {
	m := centsRe.FindStringSubmatch(strings.ReplaceAll(s, ",", ""))
	if m == nil {
		return 0
	}
	dollars, _ := strconv.ParseInt(m[1], 10, 64)
	cents, _ := strconv.ParseInt(m[2], 10, 64)
	return dollars*100 + cents
}

// htmlText flattens an HTML body to text, one line per block element.
func htmlText(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return body
	}
	doc.Find("script, style").Remove()
	doc.Find("br, p, div, tr, li, h1, h2, h3, h4, table").AfterHtml("\n")

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
