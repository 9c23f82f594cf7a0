// Package dispatch routes classified intents to their handlers.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tomcat/internal/appstate"
	"tomcat/internal/dates"
	"tomcat/internal/metrics"
	"tomcat/internal/model"
)

// DefaultClarifyTimeout is how long a clarification prompt stays answerable.
const DefaultClarifyTimeout = 120 * time.Second

// Cats serves cat catalog requests.
type Cats interface {
	ShowPhoto(ctx context.Context, in model.Intent) error
	ShowProfile(ctx context.Context, in model.Intent) error
}

// Vision runs image commands.
type Vision interface {
	Run(ctx context.Context, in model.Intent, msg model.Message) error
}

// Feeding is the feeding ledger.
type Feeding interface {
	MarkStationFed(ctx context.Context, station, date string) (bool, error)
	Acknowledge(ctx context.Context, in model.Intent, marked []string) error
	Status(ctx context.Context, in model.Intent) error
	Preview8PM(ctx context.Context, in model.Intent) error
}

// Subs is the substitution ledger.
type Subs interface {
	Request(ctx context.Context, in model.Intent) error
	Accept(ctx context.Context, in model.Intent) error
}

// Profiles manages posted cat profiles.
type Profiles interface {
	Create(ctx context.Context, in model.Intent, from, to int) error
	UpdateOne(ctx context.Context, in model.Intent, id int) error
	UpdateAll(ctx context.Context, in model.Intent) error
}

// Prompter asks the requester a yes/no question.
type Prompter interface {
	Confirm(ctx context.Context, promptID, channelID, userID, question string) error
}

// Handlers groups the external collaborators.
type Handlers struct {
	Cats     Cats
	Vision   Vision
	Feeding  Feeding
	Subs     Subs
	Profiles Profiles
}

// Resolution is the outcome of answering a clarification prompt.
type Resolution int

// Resolution values.
const (
	ResolutionExpired Resolution = iota
	ResolutionNotRequester
	ResolutionConfirmed
	ResolutionDeclined
)

func (r Resolution) String() string {
	switch r {
	case ResolutionNotRequester:
		return "not_requester"
	case ResolutionConfirmed:
		return "confirmed"
	case ResolutionDeclined:
		return "declined"
	default:
		return "expired"
	}
}

type prompt struct {
	intent model.Intent
	msg    model.Message
	timer  *time.Timer
}

// Dispatcher sends intents to handlers, gating low-confidence feed updates
// behind a confirmation from the original requester.
type Dispatcher struct {
	h        Handlers
	state    *appstate.State
	prompter Prompter
	log      *slog.Logger
	mid      float64
	timeout  time.Duration
	today    func() string

	mu      sync.Mutex
	prompts map[string]*prompt
}

// New creates a Dispatcher.
func New(h Handlers, state *appstate.State, prompter Prompter, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		h:        h,
		state:    state,
		prompter: prompter,
		log:      log,
		mid:      0.75,
		timeout:  DefaultClarifyTimeout,
		today:    func() string { return time.Now().Format(dates.Layout) },
		prompts:  make(map[string]*prompt),
	}
}

// SetClarifyTimeout overrides how long prompts stay answerable.
func (d *Dispatcher) SetClarifyTimeout(t time.Duration) {
	d.timeout = t
}

// SetToday overrides how the date of a feed update without dates is chosen.
func (d *Dispatcher) SetToday(today func() string) {
	d.today = today
}

// SetMidConfidence overrides the confidence below which feed updates need confirmation.
func (d *Dispatcher) SetMidConfidence(v float64) {
	d.mid = v
}

// Dispatch acts on one intent. Handler errors are logged here and never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, in model.Intent, msg model.Message) {
	if in.Kind == model.IntentNone {
		return
	}
	if in.Kind.IsAdminOnly() && !msg.IsAdmin {
		d.log.Warn("permission_denied", "intent", in.Kind.String(), "user_id", in.UserID, "channel_id", in.ChannelID)
		return
	}

	if err := d.route(ctx, in, msg); err != nil {
		metrics.DispatchErrors.WithLabelValues(in.Kind.String()).Inc()
		d.log.Error("handler failed",
			"intent", in.Kind.String(),
			"error_tag", errorTag(err),
			"message_id", in.MessageID,
			"error", err,
		)
	}
}

func (d *Dispatcher) route(ctx context.Context, in model.Intent, msg model.Message) error {
	switch in.Kind {
	case model.IntentShowPhoto:
		return d.h.Cats.ShowPhoto(ctx, in)
	case model.IntentWhoIs:
		return d.h.Cats.ShowProfile(ctx, in)
	case model.IntentCVIdentify, model.IntentCVDetect, model.IntentCVCrop:
		return d.h.Vision.Run(ctx, in, msg)
	case model.IntentFeedUpdate:
		return d.feedUpdate(ctx, in, msg)
	case model.IntentSubRequest:
		return d.h.Subs.Request(ctx, in)
	case model.IntentSubAccept:
		return d.h.Subs.Accept(ctx, in)
	case model.IntentFeedingStatus:
		return d.h.Feeding.Status(ctx, in)
	case model.IntentManual8PM:
		return d.h.Feeding.Preview8PM(ctx, in)
	case model.IntentSilentMode:
		return d.state.SetSilentMode(appstate.Actor{ID: msg.UserID, IsAdmin: msg.IsAdmin}, in.Toggle)
	case model.IntentProfilesCreate:
		return d.h.Profiles.Create(ctx, in, in.RangeStart, in.RangeEnd)
	case model.IntentProfileUpdateOne:
		return d.h.Profiles.UpdateOne(ctx, in, in.RangeStart)
	case model.IntentProfilesUpdateAll:
		return d.h.Profiles.UpdateAll(ctx, in)
	case model.IntentNone:
		return nil
	default:
		return fmt.Errorf("unhandled intent %v", in.Kind)
	}
}

func (d *Dispatcher) feedUpdate(ctx context.Context, in model.Intent, msg model.Message) error {
	stations := in.Stations
	if len(stations) == 0 && in.Station != "" {
		stations = []string{in.Station}
	}
	if len(stations) == 0 {
		return nil
	}
	if len(in.Dates) == 0 {
		in.Dates = []string{d.today()}
	}
	if in.Confidence < d.mid {
		return d.clarify(ctx, in, msg, stations[0])
	}

	var marked []string
	var failed int
	for _, station := range stations {
		for _, date := range in.Dates {
			ok, err := d.h.Feeding.MarkStationFed(ctx, station, date)
			if err != nil {
				failed++
				metrics.DispatchErrors.WithLabelValues(in.Kind.String()).Inc()
				d.log.Error("mark station fed", "station", station, "date", date, "error_tag", errorTag(err), "error", err)
				continue
			}
			if ok && (len(marked) == 0 || marked[len(marked)-1] != station) {
				marked = append(marked, station)
			}
		}
	}
	d.log.Info("feed update", "stations", stations, "dates", in.Dates, "marked", marked, "failed", failed)
	if len(marked) == 0 {
		return nil
	}
	return d.h.Feeding.Acknowledge(ctx, in, marked)
}

func (d *Dispatcher) clarify(ctx context.Context, in model.Intent, msg model.Message, station string) error {
	id := uuid.NewString()
	p := &prompt{intent: in, msg: msg}

	d.mu.Lock()
	d.prompts[id] = p
	p.timer = time.AfterFunc(d.timeout, func() { d.expire(id) })
	d.mu.Unlock()

	question := fmt.Sprintf("Mark **%s** as fed %s?", station, dayPhrase(in.Dates))
	if err := d.prompter.Confirm(ctx, id, in.ChannelID, in.UserID, question); err != nil {
		d.drop(id)
		return fmt.Errorf("send clarification: %w", err)
	}
	metrics.ClarifyPrompts.WithLabelValues("sent").Inc()
	d.log.Info("clarify", "prompt_id", id, "station", station, "user_id", in.UserID, "confidence", in.Confidence)
	return nil
}

// Resolve answers a clarification prompt. Only the original requester can answer;
// a yes dispatches the stored intent at full confidence.
func (d *Dispatcher) Resolve(ctx context.Context, promptID, userID string, yes bool) Resolution {
	d.mu.Lock()
	p, ok := d.prompts[promptID]
	if !ok {
		d.mu.Unlock()
		return ResolutionExpired
	}
	if p.intent.UserID != userID {
		d.mu.Unlock()
		d.log.Info("clarify rejected", "prompt_id", promptID, "user_id", userID)
		return ResolutionNotRequester
	}
	delete(d.prompts, promptID)
	p.timer.Stop()
	d.mu.Unlock()

	if !yes {
		metrics.ClarifyPrompts.WithLabelValues("declined").Inc()
		d.log.Info("clarify declined", "prompt_id", promptID)
		return ResolutionDeclined
	}

	metrics.ClarifyPrompts.WithLabelValues("confirmed").Inc()
	strong := p.intent
	strong.Confidence = 1.0
	d.Dispatch(ctx, strong, p.msg)
	return ResolutionConfirmed
}

// Pending returns the number of unanswered prompts.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.prompts)
}

// Close stops all prompt timers.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, p := range d.prompts {
		p.timer.Stop()
		delete(d.prompts, id)
	}
}

func (d *Dispatcher) expire(id string) {
	if d.drop(id) {
		metrics.ClarifyPrompts.WithLabelValues("expired").Inc()
		d.log.Info("clarify expired", "prompt_id", id)
	}
}

func (d *Dispatcher) drop(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.prompts[id]
	if ok {
		p.timer.Stop()
		delete(d.prompts, id)
	}
	return ok
}

func dayPhrase(dates []string) string {
	switch len(dates) {
	case 0:
		return "today"
	case 1:
		return "on " + dates[0]
	default:
		return fmt.Sprintf("on %s to %s", dates[0], dates[len(dates)-1])
	}
}

func errorTag(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, appstate.ErrPermissionDenied):
		return "permission_denied"
	default:
		return "handler_error"
	}
}
