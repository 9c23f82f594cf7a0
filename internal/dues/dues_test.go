package dues

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"tomcat/internal/model"
	"tomcat/internal/storage"
)

var at = time.Date(2026, 10, 14, 18, 0, 0, 0, time.UTC)

func TestParse(t *testing.T) {
	ms := at.UnixMilli()
	tests := []struct {
		name    string
		sender  string
		subject string
		body    string
		want    *model.Payment
	}{
		{
			name:    "paypal plain",
			sender:  "service@paypal.com",
			subject: "You've got money",
			body:    "You received $25.00 USD\nFrom: Jane Doe\nEmail: Jane.Doe@Example.com\nTransaction ID: 7XY12345AB",
			want: &model.Payment{
				Provider: "paypal", TxnID: "7XY12345AB", AmountCents: 2500, PayerName: "Jane Doe",
				PayerEmail: "jane.doe@example.com",
			},
		},
		{
			name:    "paypal html without txn id",
			sender:  "PayPal <service@paypal.com>",
			subject: "Payment received",
			body:    `<html><body><p>You received <b>$1,020.50</b></p><div>From: Sam Lee</div><style>p{}</style></body></html>`,
			want: &model.Payment{
				Provider: "paypal", TxnID: "pp-" + itoa(ms), AmountCents: 102050, PayerName: "Sam Lee",
			},
		},
		{
			name:    "venmo",
			sender:  "venmo@venmo.com",
			subject: "Jane Doe paid you $20.00",
			body:    "Jane Doe paid you $20.00\n@jane-doe\nNote: october dues",
			want: &model.Payment{
				Provider: "venmo", TxnID: "venmo-" + itoa(ms), AmountCents: 2000, PayerName: "Jane Doe",
				PayerHandle: "@jane-doe", Memo: "october dues",
			},
		},
		{
			name:    "cash app",
			sender:  "cash@square.com",
			subject: "Cash App: you received $15.00",
			body:    "You received $15.00\nfrom Pat Kim\n$patkim",
			want: &model.Payment{
				Provider: "cashapp", TxnID: "cash-" + itoa(ms), AmountCents: 1500, PayerName: "Pat Kim",
				PayerHandle: "$patkim",
			},
		},
		{
			name:    "unsupported",
			sender:  "news@shop.example",
			subject: "Sale",
			body:    "50% off",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.sender, tt.subject, tt.body, at)
			if tt.want == nil {
				if ok {
					t.Fatalf("Parse() = %+v, want no payment", got)
				}
				return
			}
			if !ok {
				t.Fatal("Parse() found no payment")
			}
			tt.want.Currency = Currency
			tt.want.TSEpoch = at.Unix()
			tt.want.RawSource = "mail:" + itoa(ms)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

var members = []model.Member{
	{Name: "Jane Doe", Email: "jane.doe@example.com", Handle: "@jane-doe", DiscordID: "111"},
	{Name: "Pat Kim", Handle: "$patkim", DiscordID: "222"},
	{Name: "Sam Lee", DiscordID: "333"},
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name      string
		payment   model.Payment
		wantID    string
		wantScore float64
	}{
		{
			name:      "email and name",
			payment:   model.Payment{PayerName: "Jane Doe", PayerEmail: "JANE.DOE@example.com"},
			wantID:    "111",
			wantScore: 0.8,
		},
		{
			name:      "handle and name",
			payment:   model.Payment{PayerName: "pat kim", PayerHandle: "$PatKim"},
			wantID:    "222",
			wantScore: 0.5,
		},
		{
			name:      "name only",
			payment:   model.Payment{PayerName: "Sam Lee"},
			wantID:    "333",
			wantScore: 0.3,
		},
		{
			name:    "nothing",
			payment: model.Payment{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, score := Match(&tt.payment, members)
			if id != tt.wantID {
				t.Errorf("Match() id = %q, want %q", id, tt.wantID)
			}
			if diff := cmp.Diff(tt.wantScore, score, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
				t.Errorf("Match() score mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

const venmoMail = "From: Venmo <venmo@venmo.com>\r\n" +
	"Subject: Jane Doe paid you $20.00\r\n" +
	"Date: Wed, 14 Oct 2026 13:00:00 -0500\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"Content-Transfer-Encoding: quoted-printable\r\n" +
	"\r\n" +
	"Jane Doe paid you $20.00\r\n" +
	"@jane-doe\r\n" +
	"Note: october =\r\ndues\r\n"

const paypalMail = "From: service@paypal.com\r\n" +
	"Subject: =?UTF-8?Q?You=27ve_got_money?=\r\n" +
	"Date: Wed, 14 Oct 2026 14:00:00 -0500\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=\"b1\"\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>You received $30.00</p><p>From: Someone Else</p><p>Transaction ID: AAA111</p>\r\n" +
	"--b1\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	// You received $30.00\nFrom: Jane Doe\njane.doe@example.com\nTransaction ID: AAA111
	"WW91IHJlY2VpdmVkICQzMC4wMApGcm9tOiBKYW5lIERvZQpqYW5lLmRvZUBleGFtcGxlLmNvbQpU\r\n" +
	"cmFuc2FjdGlvbiBJRDogQUFBMTEx\r\n" +
	"--b1--\r\n"

func TestIngest(t *testing.T) {
	ctx := context.Background()
	db, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	dir := t.TempDir()
	files := map[string]string{
		"1.eml":      venmoMail,
		"2.eml":      paypalMail,
		"3.eml":      "From: shop@example.com\r\nSubject: Sale\r\n\r\n50% off\r\n",
		"readme.txt": "not mail",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	in := NewIngester(db, members, dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	n, err := in.Ingest(ctx)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != 2 {
		t.Errorf("stored = %d, want 2", n)
	}

	got, err := db.ListPayments(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []model.Payment{
		{
			Provider: "paypal", TxnID: "AAA111", AmountCents: 3000, Currency: Currency,
			PayerName: "Jane Doe", PayerEmail: "jane.doe@example.com",
			MatchedUserID: "111", MatchScore: 0.8, Status: model.PaymentMatched,
		},
		{
			Provider: "venmo", TxnID: "venmo-" + itoa(at.UnixMilli()), AmountCents: 2000, Currency: Currency,
			PayerName: "Jane Doe", PayerHandle: "@jane-doe", Memo: "october dues",
			MatchedUserID: "111", MatchScore: 0.5, Status: model.PaymentMatched,
		},
	}
	opts := cmp.Options{
		cmpopts.IgnoreFields(model.Payment{}, "ID", "TSEpoch", "RawSource", "CreatedAt"),
		cmpopts.EquateApprox(0, 1e-9),
	}
	if diff := cmp.Diff(want, got, opts); diff != "" {
		t.Errorf("payments mismatch (-want +got):\n%s", diff)
	}

	left, err := filepath.Glob(filepath.Join(dir, "*.eml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Errorf("unprocessed files = %v", left)
	}
	archived, err := filepath.Glob(filepath.Join(dir, ProcessedDir, "*.eml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(archived) != 3 {
		t.Errorf("archived = %d files, want 3", len(archived))
	}

	n, err = in.Ingest(ctx)
	if err != nil || n != 0 {
		t.Errorf("second Ingest = %d, %v, want 0, nil", n, err)
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
