package contextbuf

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"tomcat/internal/model"
)

var t0 = time.Date(2026, 10, 17, 18, 0, 0, 0, time.UTC)

func row(ch, user, id string, at time.Duration, image bool, text string) model.MachineRow {
	return model.MachineRow{
		Timestamp: t0.Add(at),
		ChannelID: ch,
		UserID:    user,
		MessageID: id,
		Text:      text,
		TextNorm:  text,
		HasImage:  image,
	}
}

func TestLastImageForUser(t *testing.T) {
	tests := []struct {
		name   string
		rows   []model.MachineRow
		within time.Duration
		now    time.Duration
		wantID string
		wantOK bool
	}{
		{
			name:   "recent image",
			rows:   []model.MachineRow{row("c", "u", "1", 0, true, "")},
			within: 30 * time.Second,
			now:    10 * time.Second,
			wantID: "1",
			wantOK: true,
		},
		{
			name: "newest image wins",
			rows: []model.MachineRow{
				row("c", "u", "1", 0, true, ""),
				row("c", "u", "2", 5*time.Second, true, ""),
				row("c", "u", "3", 6*time.Second, false, "identify"),
			},
			within: 30 * time.Second,
			now:    10 * time.Second,
			wantID: "2",
			wantOK: true,
		},
		{
			name:   "too old",
			rows:   []model.MachineRow{row("c", "u", "1", 0, true, "")},
			within: 30 * time.Second,
			now:    31 * time.Second,
		},
		{
			name:   "other user",
			rows:   []model.MachineRow{row("c", "someone", "1", 0, true, "")},
			within: 30 * time.Second,
			now:    time.Second,
		},
		{
			name:   "other channel",
			rows:   []model.MachineRow{row("elsewhere", "u", "1", 0, true, "")},
			within: 30 * time.Second,
			now:    time.Second,
		},
		{
			name:   "no images",
			rows:   []model.MachineRow{row("c", "u", "1", 0, false, "hi")},
			within: time.Minute,
			now:    time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(0)
			for _, r := range tt.rows {
				b.Push(r)
			}
			got, ok := b.LastImageForUser("c", "u", tt.within, t0.Add(tt.now))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got.MessageID != tt.wantID {
				t.Errorf("MessageID = %q, want %q", got.MessageID, tt.wantID)
			}
		})
	}
}

func TestRecentSubRequestInChannel(t *testing.T) {
	b := New(0)
	b.Push(row("feed", "alice", "1", 0, false, "can someone cover hop friday"))
	b.Push(row("feed", "bob", "2", time.Second, false, "sure"))
	b.Push(row("other", "carol", "3", 0, false, "good morning"))
	b.Push(row("quiet", "dave", "4", 0, false, "i'll cover"))

	tests := []struct {
		channel string
		except  string
		want    bool
	}{
		{channel: "feed", except: "2", want: true},
		{channel: "other", except: "", want: false},
		{channel: "quiet", except: "4", want: false},
		{channel: "quiet", except: "", want: true},
		{channel: "missing", except: "", want: false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.channel, tt.except), func(t *testing.T) {
			if got := b.RecentSubRequestInChannel(tt.channel, tt.except); got != tt.want {
				t.Errorf("RecentSubRequestInChannel(%q) = %v, want %v", tt.channel, got, tt.want)
			}
		})
	}
}

func TestEviction(t *testing.T) {
	b := New(3)
	for i := range 5 {
		b.Push(row("c", "u", fmt.Sprint(i), time.Duration(i)*time.Second, i == 0, ""))
	}

	if got := b.Len("c", "u"); got != 3 {
		t.Fatalf("Len = %d, want 3", got)
	}
	if _, ok := b.LastImageForUser("c", "u", time.Hour, t0.Add(5*time.Second)); ok {
		t.Error("evicted image row is still visible")
	}

	b.Push(row("c", "u", "5", 5*time.Second, true, ""))
	got, ok := b.LastImageForUser("c", "u", time.Hour, t0.Add(5*time.Second))
	if !ok {
		t.Fatal("expected image row")
	}
	if diff := cmp.Diff("5", got.MessageID); diff != "" {
		t.Errorf("MessageID mismatch (-want +got):\n%s", diff)
	}
}

func TestConcurrentPush(t *testing.T) {
	b := New(DefaultCapacity)
	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				b.Push(row("c", fmt.Sprint(w), fmt.Sprint(i), 0, false, "x"))
				b.RecentSubRequestInChannel("c", "")
			}
		}()
	}
	wg.Wait()

	for w := range 8 {
		if got := b.Len("c", fmt.Sprint(w)); got != 50 {
			t.Errorf("Len(user %d) = %d, want 50", w, got)
		}
	}
}
