package dues

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tomcat/internal/metrics"
	"tomcat/internal/model"
)

// ProcessedDir is the subdirectory ingested messages are moved into.
const ProcessedDir = "processed"

const maxMessageSize = 2 * 1024 * 1024

// Store persists payments.
type Store interface {
	InsertPayment(ctx context.Context, p *model.Payment) (bool, error)
}

// Ingester reads provider e-mails dropped as .eml files into a directory.
type Ingester struct {
	store   Store
	members []model.Member
	dir     string
	log     *slog.Logger
}

// NewIngester creates an Ingester over dir.
func NewIngester(store Store, members []model.Member, dir string, log *slog.Logger) *Ingester {
	return &Ingester{store: store, members: members, dir: dir, log: log}
}

// Ingest processes every .eml file in the directory once and returns the number of
// new payments stored. Processed files are moved aside whether or not they held a payment;
// unreadable files are left in place and logged.
func (in *Ingester) Ingest(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return 0, fmt.Errorf("read mail dir: %w", err)
	}

	stored := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return stored, ctx.Err()
		}
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".eml") {
			continue
		}
		path := filepath.Join(in.dir, e.Name())
		ok, err := in.ingestFile(ctx, path)
		if err != nil {
			in.log.Error("ingest mail", "file", e.Name(), "error", err)
			continue
		}
		if ok {
			stored++
		}
		if err := in.archive(path); err != nil {
			in.log.Error("archive mail", "file", e.Name(), "error", err)
		}
	}
	if stored > 0 {
		in.log.Info("dues ingested", "count", stored)
	}
	return stored, nil
}

func (in *Ingester) ingestFile(ctx context.Context, path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	msg, err := mail.ReadMessage(io.LimitReader(f, maxMessageSize))
	if err != nil {
		return false, fmt.Errorf("read message: %w", err)
	}
	at, err := msg.Header.Date()
	if err != nil {
		info, statErr := f.Stat()
		if statErr != nil {
			return false, statErr
		}
		at = info.ModTime()
	}
	subject := decodeHeader(msg.Header.Get("Subject"))
	body, err := textBody(msg.Header, msg.Body)
	if err != nil {
		return false, fmt.Errorf("read body: %w", err)
	}

	p, ok := Parse(msg.Header.Get("From"), subject, body, at)
	if !ok {
		in.log.Debug("mail skipped", "file", filepath.Base(path), "subject", subject)
		return false, nil
	}
	if id, score := Match(p, in.members); score >= MatchThreshold {
		p.MatchedUserID = id
		p.MatchScore = score
		p.Status = model.PaymentMatched
	} else {
		p.MatchScore = score
	}

	inserted, err := in.store.InsertPayment(ctx, p)
	if err != nil {
		return false, err
	}
	if inserted {
		metrics.PaymentsIngested.WithLabelValues(p.Provider).Inc()
		in.log.Info("payment stored", "provider", p.Provider, "txn_id", p.TxnID,
			"amount_cents", p.AmountCents, "matched_user_id", p.MatchedUserID, "score", p.MatchScore)
	}
	return inserted, nil
}

func (in *Ingester) archive(path string) error {
	dst := filepath.Join(in.dir, ProcessedDir)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	return os.Rename(path, filepath.Join(dst, filepath.Base(path)))
}

// textBody returns the first text part of a message, decoded. HTML is kept as is.
func textBody(h mail.Header, r io.Reader) (string, error) {
	return textPart(h.Get("Content-Type"), h.Get("Content-Transfer-Encoding"), r)
}

func textPart(contentType, encoding string, r io.Reader) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(r, params["boundary"])
		var html string
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return html, nil
			}
			if err != nil {
				return "", err
			}
			text, err := textPart(part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"), part)
			if err != nil {
				return "", err
			}
			if text == "" {
				continue
			}
			if !strings.Contains(part.Header.Get("Content-Type"), "html") {
				return text, nil
			}
			if html == "" {
				html = text
			}
		}
	}
	if !strings.HasPrefix(mediaType, "text/") {
		return "", nil
	}

	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, r)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var headerDecoder = new(mime.WordDecoder)

func decodeHeader(s string) string {
	if d, err := headerDecoder.DecodeHeader(s); err == nil {
		return d
	}
	return s
}

// Poll ingests once and logs the outcome. It fits a ticker loop.
func (in *Ingester) Poll(ctx context.Context) {
	start := time.Now()
	n, err := in.Ingest(ctx)
	if err != nil {
		in.log.Error("dues poll", "error", err)
		return
	}
	in.log.Debug("dues poll", "stored", n, "elapsed", time.Since(start))
}
