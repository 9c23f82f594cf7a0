// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"tomcat/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrNotOpen is returned when accepting a substitution that is no longer requested.
var ErrNotOpen = errors.New("substitution is not open")

// Storage is the interface for all persistence operations.
type Storage interface {
	// AppendSub appends a substitution event. The latest event per ID is its current state.
	AppendSub(ctx context.Context, rec *model.SubRecord) error
	LatestOpenSub(ctx context.Context, channelID string) (*model.SubRecord, error)
	AcceptSub(ctx context.Context, id, assignee string, defaultDates []string, at time.Time) (*model.SubRecord, error)
	AcceptedSubFor(ctx context.Context, station, date string) (*model.SubRecord, error)
	ListSubs(ctx context.Context, limit int) ([]model.SubRecord, error)

	MarkFed(ctx context.Context, f *model.Feeding) (bool, error)
	FedStations(ctx context.Context, date string) ([]string, error)

	UpsertCat(ctx context.Context, c *model.CatProfile) error
	GetCat(ctx context.Context, id int64) (*model.CatProfile, error)
	GetCatByName(ctx context.Context, name string) (*model.CatProfile, error)
	ListCats(ctx context.Context) ([]model.CatProfile, error)
	TouchCatSeen(ctx context.Context, catID int64, date, clock, by string) error
	AddPhoto(ctx context.Context, p *model.CatPhoto) error
	ListPhotos(ctx context.Context, catID int64) ([]model.CatPhoto, error)

	SaveProfilePost(ctx context.Context, p *model.ProfilePost) error
	GetProfilePost(ctx context.Context, catID int64) (*model.ProfilePost, error)
	ListProfilePosts(ctx context.Context) ([]model.ProfilePost, error)

	InsertPayment(ctx context.Context, p *model.Payment) (bool, error)
	ListPayments(ctx context.Context, limit int) ([]model.Payment, error)

	Close() error
}
