// Package catalog serves cat profiles and photos.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"tomcat/internal/dates"
	"tomcat/internal/model"
	"tomcat/internal/storage"
)

var (
	// ErrNotFound is returned when no cat matches a name.
	ErrNotFound = errors.New("cat not found")
	// ErrNoPhotos is returned when a cat has no photos on file.
	ErrNoPhotos = errors.New("no photos")
)

// Store is the persistence the catalog needs.
type Store interface {
	ListCats(ctx context.Context) ([]model.CatProfile, error)
	GetCatByName(ctx context.Context, name string) (*model.CatProfile, error)
	ListPhotos(ctx context.Context, catID int64) ([]model.CatPhoto, error)
	AddPhoto(ctx context.Context, p *model.CatPhoto) error
	TouchCatSeen(ctx context.Context, catID int64, date, clock, by string) error
}

// Profile is a cat profile ready for display.
type Profile struct {
	Cat         model.CatProfile
	AgeEstimate string
	ImageURL    string
}

// Photo is one photo of a cat. Index counts from the newest photo, starting at 1.
type Photo struct {
	CatName string
	URL     string
	Serial  string
	Index   int
	Total   int
}

// Catalog looks cats up by name.
type Catalog struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
	pick  func(n int) int
}

// New creates a Catalog.
func New(store Store, log *slog.Logger) *Catalog {
	return &Catalog{store: store, log: log, now: time.Now, pick: rand.IntN}
}

// LookupProfile returns the profile of the cat best matching name, with its most recent photo.
func (c *Catalog) LookupProfile(ctx context.Context, name string) (*Profile, error) {
	cat, err := c.find(ctx, name)
	if err != nil {
		return nil, err
	}
	p := &Profile{Cat: *cat, AgeEstimate: AgeEstimate(cat.Birthday, c.now())}
	photos, err := c.store.ListPhotos(ctx, cat.ID)
	if err != nil {
		return nil, fmt.Errorf("list photos of %s: %w", cat.Name, err)
	}
	if len(photos) > 0 {
		p.ImageURL = photos[len(photos)-1].URL
	}
	return p, nil
}

// MostRecentPhoto returns the newest photo of the cat best matching name.
func (c *Catalog) MostRecentPhoto(ctx context.Context, name string) (*Photo, error) {
	cat, photos, err := c.photos(ctx, name)
	if err != nil {
		return nil, err
	}
	last := photos[len(photos)-1]
	return &Photo{CatName: cat.Name, URL: last.URL, Serial: last.Serial, Index: 1, Total: len(photos)}, nil
}

// RandomPhoto returns a random photo of the cat best matching name.
func (c *Catalog) RandomPhoto(ctx context.Context, name string) (*Photo, error) {
	cat, photos, err := c.photos(ctx, name)
	if err != nil {
		return nil, err
	}
	i := c.pick(len(photos))
	p := photos[i]
	return &Photo{CatName: cat.Name, URL: p.URL, Serial: p.Serial, Index: len(photos) - i, Total: len(photos)}, nil
}

// RecordPhoto stores a photo of the named cat and marks it as seen by reporter.
func (c *Catalog) RecordPhoto(ctx context.Context, name, url, serial, reporter string, at time.Time, loc *time.Location) error {
	cat, err := c.find(ctx, name)
	if err != nil {
		return err
	}
	if err := c.store.AddPhoto(ctx, &model.CatPhoto{CatID: cat.ID, URL: url, Serial: serial, CreatedAt: at}); err != nil {
		return fmt.Errorf("add photo of %s: %w", cat.Name, err)
	}
	local := at.In(loc)
	if err := c.store.TouchCatSeen(ctx, cat.ID, local.Format(dates.Layout), local.Format("3:04 PM"), reporter); err != nil {
		return fmt.Errorf("update last seen of %s: %w", cat.Name, err)
	}
	c.log.Info("photo recorded", "cat", cat.Name, "serial", serial, "reporter", reporter)
	return nil
}

func (c *Catalog) photos(ctx context.Context, name string) (*model.CatProfile, []model.CatPhoto, error) {
	cat, err := c.find(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	photos, err := c.store.ListPhotos(ctx, cat.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list photos of %s: %w", cat.Name, err)
	}
	if len(photos) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", cat.Name, ErrNoPhotos)
	}
	return cat, photos, nil
}

// find resolves an exact name first, then the best fuzzy match over all names.
func (c *Catalog) find(ctx context.Context, name string) (*model.CatProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNotFound
	}
	cat, err := c.store.GetCatByName(ctx, name)
	if err == nil {
		return cat, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("get cat %q: %w", name, err)
	}

	cats, err := c.store.ListCats(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cats: %w", err)
	}
	names := make([]string, len(cats))
	for i, cat := range cats {
		names[i] = cat.Name
	}
	matches := fuzzy.Find(name, names)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	c.log.Debug("catalog fuzzy match", "query", name, "match", matches[0].Str, "score", matches[0].Score)
	return &cats[matches[0].Index], nil
}

// AgeEstimate renders the age of a cat born on birthday, written as M/D/YYYY or YYYY-MM-DD.
func AgeEstimate(birthday string, today time.Time) string {
	b, ok := parseBirthday(strings.TrimSpace(birthday))
	if !ok {
		return "Unknown"
	}
	years := today.Year() - b.Year()
	if today.Month() < b.Month() || (today.Month() == b.Month() && today.Day() < b.Day()) {
		years--
	}
	if years < 0 {
		return "Unknown"
	}
	return "~" + strconv.Itoa(years) + " years old"
}

func parseBirthday(s string) (time.Time, bool) {
	for _, layout := range []string{"1/2/2006", dates.Layout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
