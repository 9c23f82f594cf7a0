package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"tomcat/internal/model"
)

var ignoreSubTS = cmpopts.IgnoreFields(model.SubRecord{}, "CreatedAt", "UpdatedAt")

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func request(id, channel, station string, dates ...string) *model.SubRecord {
	return &model.SubRecord{
		ID:        id,
		Station:   station,
		Dates:     dates,
		Requester: "req-" + id,
		Status:    model.SubRequested,
		ChannelID: channel,
		MessageID: id,
	}
}

func TestSubLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	for _, rec := range []*model.SubRecord{
		request("sub-1", "c1", "HOP", "2026-10-16"),
		request("sub-2", "c1", "West Hall"),
		request("sub-3", "c2", "Business", "2026-10-17"),
	} {
		if err := s.AppendSub(ctx, rec); err != nil {
			t.Fatalf("append %s: %v", rec.ID, err)
		}
	}

	open, err := s.LatestOpenSub(ctx, "c1")
	if err != nil {
		t.Fatalf("latest open: %v", err)
	}
	if open.ID != "sub-2" {
		t.Fatalf("latest open = %s, want sub-2", open.ID)
	}

	at := time.Date(2026, 10, 14, 20, 0, 0, 0, time.UTC)
	got, err := s.AcceptSub(ctx, open.ID, "u9", []string{"2026-10-14"}, at)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	want := model.SubRecord{
		ID:        "sub-2",
		Station:   "West Hall",
		Dates:     []string{"2026-10-14"},
		Requester: "req-sub-2",
		Assignee:  "u9",
		Status:    model.SubAccepted,
		ChannelID: "c1",
		MessageID: "sub-2",
	}
	if diff := cmp.Diff(want, *got, ignoreSubTS); diff != "" {
		t.Errorf("AcceptSub mismatch (-want +got):\n%s", diff)
	}

	// The accepted request is no longer open; the older one is next.
	open, err = s.LatestOpenSub(ctx, "c1")
	if err != nil {
		t.Fatalf("latest open after accept: %v", err)
	}
	if open.ID != "sub-1" {
		t.Errorf("latest open after accept = %s, want sub-1", open.ID)
	}

	if _, err := s.AcceptSub(ctx, "sub-2", "u8", nil, at); !errors.Is(err, ErrNotOpen) {
		t.Errorf("second accept err = %v, want ErrNotOpen", err)
	}
	if _, err := s.AcceptSub(ctx, "sub-404", "u8", nil, at); !errors.Is(err, ErrNotFound) {
		t.Errorf("accept missing err = %v, want ErrNotFound", err)
	}

	cover, err := s.AcceptedSubFor(ctx, "West Hall", "2026-10-14")
	if err != nil {
		t.Fatalf("accepted for: %v", err)
	}
	if cover.Assignee != "u9" {
		t.Errorf("assignee = %q, want u9", cover.Assignee)
	}
	if _, err := s.AcceptedSubFor(ctx, "HOP", "2026-10-16"); !errors.Is(err, ErrNotFound) {
		t.Errorf("requested sub counted as accepted: %v", err)
	}

	list, err := s.ListSubs(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []string
	for _, r := range list {
		ids = append(ids, r.ID+":"+string(r.Status))
	}
	if diff := cmp.Diff([]string{"sub-2:accepted", "sub-3:requested", "sub-1:requested"}, ids); diff != "" {
		t.Errorf("ListSubs mismatch (-want +got):\n%s", diff)
	}
}

func TestAcceptedSubForMatchesWholeDates(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	if err := s.AppendSub(ctx, request("sub-1", "c1", "HOP", "2026-10-11", "2026-10-12")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AcceptSub(ctx, "sub-1", "u1", nil, time.Now()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		date string
		want bool
	}{
		{"2026-10-11", true},
		{"2026-10-12", true},
		{"2026-10-1", false},
		{"2026-10-13", false},
	}
	for _, tt := range tests {
		_, err := s.AcceptedSubFor(ctx, "HOP", tt.date)
		if got := err == nil; got != tt.want {
			t.Errorf("AcceptedSubFor(%s) found = %v, want %v (err %v)", tt.date, got, tt.want, err)
		}
	}
}

func TestLatestOpenSubEmpty(t *testing.T) {
	s := newTestDB(t)
	if _, err := s.LatestOpenSub(context.Background(), "c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFeedings(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	tests := []struct {
		station string
		date    string
		want    bool
	}{
		{"HOP", "2026-10-14", true},
		{"West Hall", "2026-10-14", true},
		{"HOP", "2026-10-14", false},
		{"HOP", "2026-10-15", true},
	}
	for _, tt := range tests {
		got, err := s.MarkFed(ctx, &model.Feeding{Station: tt.station, Date: tt.date, FedBy: "u1"})
		if err != nil {
			t.Fatalf("mark %s %s: %v", tt.station, tt.date, err)
		}
		if got != tt.want {
			t.Errorf("MarkFed(%s, %s) = %v, want %v", tt.station, tt.date, got, tt.want)
		}
	}

	fed, err := s.FedStations(ctx, "2026-10-14")
	if err != nil {
		t.Fatalf("fed stations: %v", err)
	}
	if diff := cmp.Diff([]string{"HOP", "West Hall"}, fed); diff != "" {
		t.Errorf("FedStations mismatch (-want +got):\n%s", diff)
	}
}

func TestCats(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	cat := model.CatProfile{ID: 7, Name: "Microwave", Location: "Microwave station", Nicknames: "Mike, Buddy"}
	if err := s.UpsertCat(ctx, &cat); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	noID := model.CatProfile{Name: "Eggs", Behavior: "shy"}
	if err := s.UpsertCat(ctx, &noID); err != nil {
		t.Fatalf("upsert without id: %v", err)
	}
	if noID.ID == 0 {
		t.Fatal("expected assigned ID")
	}

	// Re-importing by name updates the existing row.
	again := model.CatProfile{Name: "eggs", Behavior: "friendly"}
	if err := s.UpsertCat(ctx, &again); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if again.ID != noID.ID {
		t.Errorf("re-upsert ID = %d, want %d", again.ID, noID.ID)
	}

	got, err := s.GetCatByName(ctx, "MICROWAVE")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if diff := cmp.Diff(cat, *got); diff != "" {
		t.Errorf("GetCatByName mismatch (-want +got):\n%s", diff)
	}

	if err := s.TouchCatSeen(ctx, 7, "2026-10-14", "18:05", "Ann"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, err = s.GetCat(ctx, 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LastSeenDate != "2026-10-14" || got.LastSeenTime != "18:05" || got.LastSeenBy != "Ann" {
		t.Errorf("last seen = %s %s %s", got.LastSeenDate, got.LastSeenTime, got.LastSeenBy)
	}
	if err := s.TouchCatSeen(ctx, 99, "", "", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("touch missing err = %v, want ErrNotFound", err)
	}

	all, err := s.ListCats(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var names []string
	for _, c := range all {
		names = append(names, c.Name)
	}
	if diff := cmp.Diff([]string{"Microwave", "eggs"}, names); diff != "" {
		t.Errorf("ListCats mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.GetCat(ctx, 404); !errors.Is(err, ErrNotFound) {
		t.Errorf("get missing err = %v, want ErrNotFound", err)
	}
}

func TestPhotosAndPosts(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	cat := model.CatProfile{Name: "Pencil"}
	if err := s.UpsertCat(ctx, &cat); err != nil {
		t.Fatal(err)
	}
	for _, serial := range []string{"IMG_1", "IMG_2"} {
		p := model.CatPhoto{CatID: cat.ID, URL: "https://cdn.example/" + serial, Serial: serial}
		if err := s.AddPhoto(ctx, &p); err != nil {
			t.Fatalf("add photo: %v", err)
		}
	}
	photos, err := s.ListPhotos(ctx, cat.ID)
	if err != nil {
		t.Fatalf("list photos: %v", err)
	}
	if len(photos) != 2 || photos[1].Serial != "IMG_2" {
		t.Errorf("photos = %+v", photos)
	}

	if _, err := s.GetProfilePost(ctx, cat.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing post err = %v, want ErrNotFound", err)
	}
	for _, msg := range []string{"m1", "m2"} {
		if err := s.SaveProfilePost(ctx, &model.ProfilePost{CatID: cat.ID, ChannelID: "c", MessageID: msg}); err != nil {
			t.Fatalf("save post: %v", err)
		}
	}
	post, err := s.GetProfilePost(ctx, cat.ID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if post.MessageID != "m2" {
		t.Errorf("post message = %s, want m2", post.MessageID)
	}
	posts, err := s.ListProfilePosts(ctx)
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(posts) != 1 {
		t.Errorf("posts = %d, want 1", len(posts))
	}
}

func TestPayments(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	tests := []struct {
		name string
		p    model.Payment
		want bool
	}{
		{name: "new", p: model.Payment{Provider: "venmo", TxnID: "1", AmountCents: 2000, Currency: "USD"}, want: true},
		{name: "other provider same id", p: model.Payment{Provider: "paypal", TxnID: "1", AmountCents: 500, Currency: "USD"}, want: true},
		{name: "duplicate", p: model.Payment{Provider: "venmo", TxnID: "1", AmountCents: 2000, Currency: "USD"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.p
			got, err := s.InsertPayment(ctx, &p)
			if err != nil {
				t.Fatalf("insert: %v", err)
			}
			if got != tt.want {
				t.Errorf("InsertPayment() = %v, want %v", got, tt.want)
			}
		})
	}

	list, err := s.ListPayments(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Provider != "paypal" || list[0].Status != model.PaymentUnreviewed {
		t.Errorf("payments = %+v", list)
	}
}
