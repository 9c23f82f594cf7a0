package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"tomcat/internal/model"
	"tomcat/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// currentSubs restricts sub_events to the latest event of every substitution.
const currentSubs = `id IN (SELECT MAX(id) FROM sub_events GROUP BY sub_id)`

const subColumns = `sub_id, station, dates, requester, assignee, status, channel_id, message_id, created_at, updated_at`

const catColumns = `id, name, physical_description, behavior, location, birthday, tnr_status, sex,
	nicknames, last_seen_date, last_seen_time, last_seen_by, comments`

const paymentColumns = `id, provider, txn_id, amount_cents, currency, payer_name, payer_handle, payer_email,
	memo, ts_epoch, raw_source, matched_user_id, match_score, status, created_at`

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if dsn == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// AppendSub appends a substitution event.
func (s *SQLite) AppendSub(ctx context.Context, rec *model.SubRecord) error {
	return appendSub(ctx, s.db, rec)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func appendSub(ctx context.Context, db execer, rec *model.SubRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO sub_events (`+subColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Station, strings.Join(rec.Dates, ","), rec.Requester, rec.Assignee, string(rec.Status),
		rec.ChannelID, rec.MessageID, formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert sub event: %w", err)
	}
	return nil
}

// LatestOpenSub returns the most recent substitution in the channel that is still requested.
func (s *SQLite) LatestOpenSub(ctx context.Context, channelID string) (*model.SubRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subColumns+` FROM sub_events
		 WHERE `+currentSubs+` AND channel_id = ? AND status = ?
		 ORDER BY id DESC LIMIT 1`,
		channelID, string(model.SubRequested),
	)
	return scanSub(row)
}

// AcceptSub assigns a requested substitution to assignee. A request without
// dates takes defaultDates.
func (s *SQLite) AcceptSub(ctx context.Context, id, assignee string, defaultDates []string, at time.Time) (*model.SubRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := scanSub(tx.QueryRowContext(ctx,
		`SELECT `+subColumns+` FROM sub_events WHERE sub_id = ? ORDER BY id DESC LIMIT 1`, id,
	))
	if err != nil {
		return nil, err
	}
	if rec.Status != model.SubRequested {
		return nil, fmt.Errorf("accept %s: %w", id, ErrNotOpen)
	}

	rec.Status = model.SubAccepted
	rec.Assignee = assignee
	if len(rec.Dates) == 0 {
		rec.Dates = append([]string(nil), defaultDates...)
	}
	rec.UpdatedAt = at.UTC()
	if err := appendSub(ctx, tx, rec); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// AcceptedSubFor returns the most recently accepted substitution covering station on date.
func (s *SQLite) AcceptedSubFor(ctx context.Context, station, date string) (*model.SubRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subColumns+` FROM sub_events
		 WHERE `+currentSubs+` AND station = ? AND status = ?
		   AND instr(',' || dates || ',', ',' || ? || ',') > 0
		 ORDER BY id DESC LIMIT 1`,
		station, string(model.SubAccepted), date,
	)
	return scanSub(row)
}

// ListSubs returns the current state of the most recent substitutions, newest first.
func (s *SQLite) ListSubs(ctx context.Context, limit int) ([]model.SubRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subColumns+` FROM sub_events WHERE `+currentSubs+` ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query subs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.SubRecord
	for rows.Next() {
		rec, err := scanSub(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// MarkFed records a feeding. It reports false when the station was already marked for the date.
func (s *SQLite) MarkFed(ctx context.Context, f *model.Feeding) (bool, error) {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO feedings (station, date, fed_by, message_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		f.Station, f.Date, f.FedBy, f.MessageID, formatTime(f.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert feeding: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// FedStations returns the stations marked fed on date, sorted by name.
func (s *SQLite) FedStations(ctx context.Context, date string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT station FROM feedings WHERE date = ? ORDER BY station`, date)
	if err != nil {
		return nil, fmt.Errorf("query feedings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var st string
		if err := rows.Scan(&st); err != nil {
			return nil, fmt.Errorf("scan feeding: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// UpsertCat inserts or replaces a cat profile. A profile without an ID is matched by name.
func (s *SQLite) UpsertCat(ctx context.Context, c *model.CatProfile) error {
	if c.ID == 0 {
		existing, err := s.GetCatByName(ctx, c.Name)
		switch {
		case err == nil:
			c.ID = existing.ID
		case !errors.Is(err, ErrNotFound):
			return err
		}
	}

	var id any
	if c.ID != 0 {
		id = c.ID
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO cats (`+catColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   physical_description = excluded.physical_description,
		   behavior = excluded.behavior,
		   location = excluded.location,
		   birthday = excluded.birthday,
		   tnr_status = excluded.tnr_status,
		   sex = excluded.sex,
		   nicknames = excluded.nicknames,
		   last_seen_date = excluded.last_seen_date,
		   last_seen_time = excluded.last_seen_time,
		   last_seen_by = excluded.last_seen_by,
		   comments = excluded.comments`,
		id, c.Name, c.PhysicalDescription, c.Behavior, c.Location, c.Birthday, c.TNRStatus, c.Sex,
		c.Nicknames, c.LastSeenDate, c.LastSeenTime, c.LastSeenBy, c.Comments,
	)
	if err != nil {
		return fmt.Errorf("upsert cat: %w", err)
	}
	if c.ID == 0 {
		if c.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
	}
	return nil
}

// GetCat returns a cat profile by ID.
func (s *SQLite) GetCat(ctx context.Context, id int64) (*model.CatProfile, error) {
	return scanCat(s.db.QueryRowContext(ctx, `SELECT `+catColumns+` FROM cats WHERE id = ?`, id))
}

// GetCatByName returns a cat profile by case-insensitive name.
func (s *SQLite) GetCatByName(ctx context.Context, name string) (*model.CatProfile, error) {
	return scanCat(s.db.QueryRowContext(ctx, `SELECT `+catColumns+` FROM cats WHERE name = ?`, name))
}

// ListCats returns all cat profiles ordered by ID.
func (s *SQLite) ListCats(ctx context.Context) ([]model.CatProfile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+catColumns+` FROM cats ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query cats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.CatProfile
	for rows.Next() {
		c, err := scanCat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// TouchCatSeen updates when and by whom a cat was last reported.
func (s *SQLite) TouchCatSeen(ctx context.Context, catID int64, date, clock, by string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE cats SET last_seen_date = ?, last_seen_time = ?, last_seen_by = ? WHERE id = ?`,
		date, clock, by, catID,
	)
	if err != nil {
		return fmt.Errorf("update cat seen: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("cat %d: %w", catID, ErrNotFound)
	}
	return nil
}

// AddPhoto stores a cat photo and populates its ID.
func (s *SQLite) AddPhoto(ctx context.Context, p *model.CatPhoto) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO cat_photos (cat_id, url, serial, created_at) VALUES (?, ?, ?, ?)`,
		p.CatID, p.URL, p.Serial, formatTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert photo: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	return nil
}

// ListPhotos returns the photos of a cat, oldest first.
func (s *SQLite) ListPhotos(ctx context.Context, catID int64) ([]model.CatPhoto, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, cat_id, url, serial, created_at FROM cat_photos WHERE cat_id = ? ORDER BY id`, catID,
	)
	if err != nil {
		return nil, fmt.Errorf("query photos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.CatPhoto
	for rows.Next() {
		var p model.CatPhoto
		var created string
		if err := rows.Scan(&p.ID, &p.CatID, &p.URL, &p.Serial, &created); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		p.CreatedAt = parseTime(created)
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveProfilePost records the message that displays a cat profile.
func (s *SQLite) SaveProfilePost(ctx context.Context, p *model.ProfilePost) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profile_posts (cat_id, channel_id, message_id, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(cat_id) DO UPDATE SET
		   channel_id = excluded.channel_id,
		   message_id = excluded.message_id,
		   updated_at = excluded.updated_at`,
		p.CatID, p.ChannelID, p.MessageID, formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save profile post: %w", err)
	}
	return nil
}

// GetProfilePost returns the post of a cat profile.
func (s *SQLite) GetProfilePost(ctx context.Context, catID int64) (*model.ProfilePost, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT cat_id, channel_id, message_id, updated_at FROM profile_posts WHERE cat_id = ?`, catID,
	)
	return scanProfilePost(row)
}

// ListProfilePosts returns every profile post ordered by cat ID.
func (s *SQLite) ListProfilePosts(ctx context.Context) ([]model.ProfilePost, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cat_id, channel_id, message_id, updated_at FROM profile_posts ORDER BY cat_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query profile posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.ProfilePost
	for rows.Next() {
		p, err := scanProfilePost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// InsertPayment stores a payment. It reports false when the provider transaction was already stored.
func (s *SQLite) InsertPayment(ctx context.Context, p *model.Payment) (bool, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Status == "" {
		p.Status = model.PaymentUnreviewed
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO payments (provider, txn_id, amount_cents, currency, payer_name, payer_handle, payer_email,
		   memo, ts_epoch, raw_source, matched_user_id, match_score, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(provider, txn_id) DO NOTHING`,
		p.Provider, p.TxnID, p.AmountCents, p.Currency, p.PayerName, p.PayerHandle, p.PayerEmail,
		p.Memo, p.TSEpoch, p.RawSource, p.MatchedUserID, p.MatchScore, string(p.Status), formatTime(p.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return false, fmt.Errorf("last insert id: %w", err)
	}
	return true, nil
}

// ListPayments returns the most recent payments, newest first.
func (s *SQLite) ListPayments(ctx context.Context, limit int) ([]model.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payments ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Payment
	for rows.Next() {
		var p model.Payment
		var status, created string
		err := rows.Scan(&p.ID, &p.Provider, &p.TxnID, &p.AmountCents, &p.Currency, &p.PayerName, &p.PayerHandle,
			&p.PayerEmail, &p.Memo, &p.TSEpoch, &p.RawSource, &p.MatchedUserID, &p.MatchScore, &status, &created)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.Status = model.PaymentStatus(status)
		p.CreatedAt = parseTime(created)
		out = append(out, p)
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSub(row scannable) (*model.SubRecord, error) {
	var rec model.SubRecord
	var dates, status, created, updated string
	err := row.Scan(&rec.ID, &rec.Station, &dates, &rec.Requester, &rec.Assignee, &status,
		&rec.ChannelID, &rec.MessageID, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan sub: %w", err)
	}
	if dates != "" {
		rec.Dates = strings.Split(dates, ",")
	}
	rec.Status = model.SubStatus(status)
	rec.CreatedAt = parseTime(created)
	rec.UpdatedAt = parseTime(updated)
	return &rec, nil
}

func scanCat(row scannable) (*model.CatProfile, error) {
	var c model.CatProfile
	err := row.Scan(&c.ID, &c.Name, &c.PhysicalDescription, &c.Behavior, &c.Location, &c.Birthday, &c.TNRStatus,
		&c.Sex, &c.Nicknames, &c.LastSeenDate, &c.LastSeenTime, &c.LastSeenBy, &c.Comments)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan cat: %w", err)
	}
	return &c, nil
}

func scanProfilePost(row scannable) (*model.ProfilePost, error) {
	var p model.ProfilePost
	var updated string
	err := row.Scan(&p.CatID, &p.ChannelID, &p.MessageID, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile post: %w", err)
	}
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
