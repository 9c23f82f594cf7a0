package pending

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"tomcat/internal/model"
)

var now = time.Date(2026, 10, 17, 18, 0, 0, 0, time.UTC)

func TestTake(t *testing.T) {
	key := Key{ChannelID: "c", UserID: "u"}

	tests := []struct {
		name       string
		setup      func(*Tracker)
		at         time.Time
		wantStatus Status
		wantKind   model.IntentKind
	}{
		{
			name:       "missing",
			setup:      func(*Tracker) {},
			at:         now,
			wantStatus: Missing,
		},
		{
			name: "found",
			setup: func(tr *Tracker) {
				tr.SetVision(key, model.IntentCVCrop, "m1", 2*time.Minute, now)
			},
			at:         now.Add(time.Minute),
			wantStatus: Found,
			wantKind:   model.IntentCVCrop,
		},
		{
			name: "found at expiry",
			setup: func(tr *Tracker) {
				tr.SetVision(key, model.IntentCVDetect, "m1", 2*time.Minute, now)
			},
			at:         now.Add(2 * time.Minute),
			wantStatus: Found,
			wantKind:   model.IntentCVDetect,
		},
		{
			name: "expired",
			setup: func(tr *Tracker) {
				tr.SetVision(key, model.IntentCVIdentify, "m1", 2*time.Minute, now)
			},
			at:         now.Add(2*time.Minute + time.Second),
			wantStatus: Expired,
			wantKind:   model.IntentCVIdentify,
		},
		{
			name: "last writer wins",
			setup: func(tr *Tracker) {
				tr.SetVision(key, model.IntentCVIdentify, "m1", 2*time.Minute, now)
				tr.SetVision(key, model.IntentCVCrop, "m2", 2*time.Minute, now)
			},
			at:         now,
			wantStatus: Found,
			wantKind:   model.IntentCVCrop,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New()
			tt.setup(tr)

			rec, status := tr.TakeVision(key, tt.at)
			if status != tt.wantStatus {
				t.Fatalf("status = %v, want %v", status, tt.wantStatus)
			}
			if rec.Kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", rec.Kind, tt.wantKind)
			}

			if _, again := tr.TakeVision(key, tt.at); again != Missing {
				t.Errorf("second take = %v, want missing", again)
			}
		})
	}
}

func TestFeedAndVisionIndependent(t *testing.T) {
	tr := New()
	key := Key{ChannelID: "c", UserID: "u"}
	tr.SetVision(key, model.IntentCVIdentify, "m1", time.Minute, now)
	tr.SetFeed(key, []string{"HOP", "Microwave"}, "m2", time.Minute, now)

	rec, status := tr.TakeFeed(key, now)
	if status != Found {
		t.Fatalf("feed status = %v, want found", status)
	}
	want := Record{
		Key:       key,
		Kind:      model.IntentFeedUpdate,
		Stations:  []string{"HOP", "Microwave"},
		MessageID: "m2",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Minute),
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("feed record mismatch (-want +got):\n%s", diff)
	}

	if _, ok := tr.PeekVision(key); !ok {
		t.Error("vision record was consumed by a feed take")
	}
	if _, ok := tr.PeekFeed(Key{ChannelID: "c", UserID: "other"}); ok {
		t.Error("unexpected record for another user")
	}
}

func TestTakeIsAtomic(t *testing.T) {
	tr := New()
	key := Key{ChannelID: "c", UserID: "u"}
	tr.SetVision(key, model.IntentCVIdentify, "m1", time.Minute, now)

	var found atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, status := tr.TakeVision(key, now); status == Found {
				found.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := found.Load(); got != 1 {
		t.Errorf("record consumed %d times, want 1", got)
	}
}
