// Package feeding keeps the daily feeding ledger and the weekly station roster.
package feeding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"tomcat/internal/dates"
	"tomcat/internal/model"
	"tomcat/internal/storage"
)

// Store is the persistence the feeding ledger needs.
type Store interface {
	MarkFed(ctx context.Context, f *model.Feeding) (bool, error)
	FedStations(ctx context.Context, date string) ([]string, error)
	AcceptedSubFor(ctx context.Context, station, date string) (*model.SubRecord, error)
}

// Service answers feeding questions for the configured stations.
type Service struct {
	store    Store
	stations []string
	roster   map[string][]string
	users    map[string]string
	clock    *dates.Extractor
	log      *slog.Logger
}

// New creates a Service. roster maps a station to one name per weekday, Sunday
// first; users maps those names to Discord user IDs.
func New(store Store, stations []string, roster map[string][]string, users map[string]string, clock *dates.Extractor, log *slog.Logger) *Service {
	for st, days := range roster {
		if len(days) != 7 {
			log.Warn("roster length is not 7, cycling", "station", st, "len", len(days))
		}
	}
	return &Service{store: store, stations: stations, roster: roster, users: users, clock: clock, log: log}
}

// MarkStationFed records station as fed on date. It reports false for a station it does not know.
func (s *Service) MarkStationFed(ctx context.Context, station, date string) (bool, error) {
	if !s.known(station) {
		s.log.Warn("mark fed for unknown station", "station", station, "date", date)
		return false, nil
	}
	inserted, err := s.store.MarkFed(ctx, &model.Feeding{Station: station, Date: date})
	if err != nil {
		return false, fmt.Errorf("mark %s fed on %s: %w", station, date, err)
	}
	s.log.Info("station fed", "station", station, "date", date, "new", inserted)
	return true, nil
}

// Universe returns the stations tracked for daily feeding, sorted. Rostered
// stations define it; without a roster every configured station counts.
func (s *Service) Universe() []string {
	var out []string
	if len(s.roster) > 0 {
		for st := range s.roster {
			out = append(out, st)
		}
	} else {
		out = append(out, s.stations...)
	}
	sort.Strings(out)
	return out
}

// ListUnfedStations returns the tracked stations not yet marked fed on date.
func (s *Service) ListUnfedStations(ctx context.Context, date string) ([]string, error) {
	fed, err := s.fedSet(ctx, date)
	if err != nil {
		return nil, err
	}
	var unfed []string
	for _, st := range s.Universe() {
		if !fed[st] {
			unfed = append(unfed, st)
		}
	}
	return unfed, nil
}

// StatusLines renders today's fed and unfed stations.
func (s *Service) StatusLines(ctx context.Context) (string, error) {
	today := s.clock.Today()
	fed, err := s.fedSet(ctx, today)
	if err != nil {
		return "", err
	}
	var fedList, unfedList []string
	for _, st := range s.Universe() {
		if fed[st] {
			fedList = append(fedList, st)
		} else {
			unfedList = append(unfedList, st)
		}
	}
	lines := []string{
		"**Feeding status (today)**",
		"**Fed:** " + joinOrNone(fedList),
		"**Unfed:** " + joinOrNone(unfedList),
	}
	return strings.Join(lines, "\n"), nil
}

// EightPMLines renders the unfed-station reminder for date. format turns a user ID
// into a mention or a display name. It returns an empty string when everything is fed.
func (s *Service) EightPMLines(ctx context.Context, date string, format func(userID string) string) (string, error) {
	unfed, err := s.ListUnfedStations(ctx, date)
	if err != nil {
		return "", err
	}
	if len(unfed) == 0 {
		return "", nil
	}

	sched, err := s.RosterFor(date)
	if err != nil {
		return "", err
	}

	lines := []string{"**Currently unfed stations**"}
	for _, st := range unfed {
		assignees := sched[st]
		sub, err := s.store.AcceptedSubFor(ctx, st, date)
		switch {
		case err == nil && sub.Assignee != "":
			assignees = []string{sub.Assignee}
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			return "", fmt.Errorf("accepted sub for %s: %w", st, err)
		}

		if len(assignees) == 0 {
			lines = append(lines, fmt.Sprintf("• **%s** → Unassigned.", st))
			continue
		}
		names := make([]string, 0, len(assignees))
		for _, id := range assignees {
			names = append(names, format(id))
		}
		lines = append(lines, fmt.Sprintf("• **%s** → %s", st, strings.Join(names, " ")))
	}
	return strings.Join(lines, "\n"), nil
}

// RosterFor returns the user IDs rostered per station on the weekday of date.
func (s *Service) RosterFor(date string) (map[string][]string, error) {
	d, err := time.ParseInLocation(dates.Layout, date, s.clock.Location())
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", date, err)
	}
	idx := int(d.Weekday())

	out := make(map[string][]string, len(s.roster))
	for st, days := range s.roster {
		if len(days) == 0 {
			continue
		}
		name := strings.TrimSpace(days[idx%len(days)])
		if id, ok := s.resolveUser(name); ok {
			out[st] = []string{id}
		} else {
			out[st] = nil
		}
	}
	return out, nil
}

func (s *Service) resolveUser(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	if id, ok := s.users[name]; ok {
		return id, true
	}
	if id, ok := s.users[strings.TrimPrefix(name, "@")]; ok {
		return id, true
	}
	if _, err := strconv.ParseUint(name, 10, 64); err == nil {
		return name, true
	}
	s.log.Debug("roster name has no user id", "name", name)
	return "", false
}

func (s *Service) fedSet(ctx context.Context, date string) (map[string]bool, error) {
	fed, err := s.store.FedStations(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("fed stations on %s: %w", date, err)
	}
	set := make(map[string]bool, len(fed))
	for _, st := range fed {
		set[st] = true
	}
	return set, nil
}

func (s *Service) known(station string) bool {
	for _, st := range s.stations {
		if st == station {
			return true
		}
	}
	return false
}

func joinOrNone(list []string) string {
	if len(list) == 0 {
		return "none"
	}
	return strings.Join(list, ", ")
}
