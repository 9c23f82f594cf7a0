// Package intent classifies chat messages into typed actions.
//
// Classification is an ordered cascade of rules. The first rule that claims a
// message decides its intent, so the order of the rule list is the priority.
package intent

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"tomcat/internal/alias"
	"tomcat/internal/contextbuf"
	"tomcat/internal/dates"
	"tomcat/internal/entity"
	"tomcat/internal/model"
	"tomcat/internal/pending"
)

// Fixed confidences per rule branch.
const (
	ConfAdmin        = 0.99
	ConfCommand      = 1.0
	ConfStatus       = 0.95
	ConfImageReply   = 0.9
	ConfImageBuffer  = 0.95
	ConfFeed         = 0.95
	ConfFeedFuzzy    = 0.72
	ConfFeedAttached = 0.9
	ConfFeedBuffered = 0.85
	ConfPendingImage = 0.95
	ConfPendingFeed  = 0.85
	ConfSubStrong    = 0.9
	ConfSubWeak      = 0.75
	ConfAcceptReply  = 0.9
	ConfAcceptRecent = 0.8
	ConfLoose        = 0.75
)

// DefaultMidConfidence is the threshold the semantic model must reach to be trusted.
const DefaultMidConfidence = 0.75

// Model is an optional semantic classifier consulted when no rule matches.
type Model interface {
	PredictIntent(ctx context.Context, text string) (model.IntentKind, float64, error)
}

// Config tunes the classifier.
type Config struct {
	WakeWords         []string
	FeedingChannels   []string
	ImageLookback     time.Duration
	FeedImageLookback time.Duration
	PendingTTL        time.Duration
	MidConfidence     float64
}

// Classifier turns buffered rows into intents. It keeps no state of its own
// beyond what it reads and writes in the context buffer and pending tracker.
type Classifier struct {
	cfg      Config
	wake     *regexp.Regexp
	feeding  map[string]bool
	entities *entity.Extractor
	dates    *dates.Extractor
	buf      *contextbuf.Buffer
	pending  *pending.Tracker
	model    Model
	log      *slog.Logger
	now      func() time.Time
	rules    []rule
}

// New creates a Classifier. m may be nil when no semantic model is configured.
func New(cfg Config, ents *entity.Extractor, dx *dates.Extractor, buf *contextbuf.Buffer, pt *pending.Tracker, m Model, log *slog.Logger) *Classifier {
	if cfg.ImageLookback == 0 {
		cfg.ImageLookback = 30 * time.Second
	}
	if cfg.FeedImageLookback == 0 {
		cfg.FeedImageLookback = 10 * time.Minute
	}
	if cfg.PendingTTL == 0 {
		cfg.PendingTTL = 2 * time.Minute
	}
	if cfg.MidConfidence == 0 {
		cfg.MidConfidence = DefaultMidConfidence
	}

	feeding := make(map[string]bool, len(cfg.FeedingChannels))
	for _, id := range cfg.FeedingChannels {
		if id != "" {
			feeding[id] = true
		}
	}

	c := &Classifier{
		cfg:      cfg,
		wake:     wakePattern(cfg.WakeWords),
		feeding:  feeding,
		entities: ents,
		dates:    dx,
		buf:      buf,
		pending:  pt,
		model:    m,
		log:      log,
		now:      time.Now,
	}
	c.rules = defaultRules()
	return c
}

// SetClock overrides the clock used for lookback windows and pending expiry.
func (c *Classifier) SetClock(now func() time.Time) {
	c.now = now
}

// IsFeedingChannel reports whether channelID is one of the feeding channels.
func (c *Classifier) IsFeedingChannel(channelID string) bool {
	return c.feeding[channelID]
}

// scope is the per-message working set shared by the rules.
type scope struct {
	ctx       context.Context
	row       model.MachineRow
	msg       model.Message
	text      string
	stripped  string
	addressed bool
	feeding   bool
	now       time.Time
	trace     []string
}

func (s *scope) tag(parts ...string) {
	s.trace = append(s.trace, strings.Join(parts, ":"))
}

func (s *scope) key() pending.Key {
	return pending.Key{ChannelID: s.row.ChannelID, UserID: s.row.UserID}
}

// Classify runs the cascade over one message.
func (c *Classifier) Classify(ctx context.Context, row model.MachineRow, msg model.Message) model.Intent {
	s := &scope{
		ctx:     ctx,
		row:     row,
		msg:     msg,
		text:    strings.TrimSpace(mentionRe.ReplaceAllString(row.TextNorm, " ")),
		feeding: c.feeding[row.ChannelID],
		now:     c.now(),
	}
	s.stripped = s.text

	switch {
	case msg.IsDM:
		s.addressed = true
		s.tag("wake", "dm")
	case msg.MentionsBot:
		s.addressed = true
		s.tag("wake", "mention")
	}
	if loc := c.wake.FindStringIndex(s.text); loc != nil {
		s.addressed = true
		s.stripped = strings.TrimSpace(s.text[loc[1]:])
		s.tag("wake", "prefix")
	}
	if s.feeding {
		s.tag("channel", "feeding")
	}

	out := model.NewIntent(model.IntentNone, 0, row)
	for _, r := range c.rules {
		if got, ok := r.apply(c, s); ok {
			s.tag("rule", r.name)
			out = got
			break
		}
	}
	s.tag("intent", out.Kind.String())

	c.log.Info("classified",
		"trace_id", uuid.NewString(),
		"channel_id", row.ChannelID,
		"user_id", row.UserID,
		"message_id", row.MessageID,
		"intent", out.Kind.String(),
		"confidence", out.Confidence,
		"trace", strings.Join(s.trace, " "),
	)
	return out
}

// rule is one step of the cascade. A rule that returns true ends classification,
// including rules that deliberately return a none intent to silence a message.
type rule struct {
	name  string
	apply func(*Classifier, *scope) (model.Intent, bool)
}

func defaultRules() []rule {
	return []rule{
		{"silent_mode", addressedOnly((*Classifier).silentMode)},
		{"who_is_this", addressedOnly((*Classifier).whoIsThis)},
		{"feeding_update", addressedOnly((*Classifier).feedingUpdate)},
		{"manual_8pm", addressedOnly((*Classifier).manual8pm)},
		{"profiles_create", addressedOnly((*Classifier).profilesCreate)},
		{"profile_update_one", addressedOnly((*Classifier).profileUpdateOne)},
		{"profiles_update_all", addressedOnly((*Classifier).profilesUpdateAll)},
		{"feeding_check", addressedOnly((*Classifier).feedingCheck)},
		{"show_me", addressedOnly((*Classifier).showMe)},
		{"who_is", addressedOnly((*Classifier).whoIs)},
		{"vision", addressedOnly((*Classifier).vision)},
		{"pending_follow_up", (*Classifier).pendingFollowUp},
		{"sub_accept", feedingOnly((*Classifier).subAccept)},
		{"sub_request", feedingOnly((*Classifier).subRequest)},
		{"feed_verb", (*Classifier).feedVerb},
		{"station_only", feedingOnly((*Classifier).stationOnly)},
		{"loose_sub", feedingOnly((*Classifier).looseSub)},
		{"loose_accept", feedingOnly((*Classifier).looseAccept)},
		{"model", (*Classifier).semantic},
	}
}

func addressedOnly(fn func(*Classifier, *scope) (model.Intent, bool)) func(*Classifier, *scope) (model.Intent, bool) {
	return func(c *Classifier, s *scope) (model.Intent, bool) {
		if !s.addressed {
			return model.Intent{}, false
		}
		return fn(c, s)
	}
}

func feedingOnly(fn func(*Classifier, *scope) (model.Intent, bool)) func(*Classifier, *scope) (model.Intent, bool) {
	return func(c *Classifier, s *scope) (model.Intent, bool) {
		if !s.feeding {
			return model.Intent{}, false
		}
		return fn(c, s)
	}
}

func (c *Classifier) silentMode(s *scope) (model.Intent, bool) {
	m := silentRe.FindStringSubmatch(s.stripped)
	if m == nil {
		return model.Intent{}, false
	}
	in := model.NewIntent(model.IntentSilentMode, ConfCommand, s.row)
	in.Toggle = strings.EqualFold(m[1], "on")
	s.tag("slot", "toggle="+strings.ToLower(m[1]))
	return in, true
}

func (c *Classifier) whoIsThis(s *scope) (model.Intent, bool) {
	if !whoThisRe.MatchString(s.stripped) {
		return model.Intent{}, false
	}
	return c.withImage(s, model.IntentCVIdentify)
}

func (c *Classifier) feedingUpdate(s *scope) (model.Intent, bool) {
	if !feedingUpdateRe.MatchString(s.stripped) {
		return model.Intent{}, false
	}
	return model.NewIntent(model.IntentFeedingStatus, ConfStatus, s.row), true
}

func (c *Classifier) manual8pm(s *scope) (model.Intent, bool) {
	if !manual8pmRe.MatchString(s.stripped) {
		return model.Intent{}, false
	}
	return model.NewIntent(model.IntentManual8PM, ConfAdmin, s.row), true
}

func (c *Classifier) profilesCreate(s *scope) (model.Intent, bool) {
	m := createProfileRe.FindStringSubmatch(s.stripped)
	if m == nil {
		return model.Intent{}, false
	}
	start, _ := strconv.Atoi(m[1])
	end := start
	if m[2] != "" {
		end, _ = strconv.Atoi(m[2])
	}
	if end < start {
		start, end = end, start
	}
	in := model.NewIntent(model.IntentProfilesCreate, ConfAdmin, s.row)
	in.RangeStart, in.RangeEnd = start, end
	s.tag("slot", "range="+strconv.Itoa(start)+"-"+strconv.Itoa(end))
	return in, true
}

func (c *Classifier) profileUpdateOne(s *scope) (model.Intent, bool) {
	m := updateProfileRe.FindStringSubmatch(s.stripped)
	if m == nil {
		return model.Intent{}, false
	}
	id, _ := strconv.Atoi(m[1])
	in := model.NewIntent(model.IntentProfileUpdateOne, ConfAdmin, s.row)
	in.RangeStart, in.RangeEnd = id, id
	s.tag("slot", "profile="+m[1])
	return in, true
}

func (c *Classifier) profilesUpdateAll(s *scope) (model.Intent, bool) {
	if !updateAllRe.MatchString(s.stripped) {
		return model.Intent{}, false
	}
	return model.NewIntent(model.IntentProfilesUpdateAll, ConfAdmin, s.row), true
}

func (c *Classifier) feedingCheck(s *scope) (model.Intent, bool) {
	if !feedingCheckRe.MatchString(s.stripped) {
		return model.Intent{}, false
	}
	return model.NewIntent(model.IntentFeedingStatus, ConfStatus, s.row), true
}

func (c *Classifier) showMe(s *scope) (model.Intent, bool) {
	return c.catCommand(s, showRe, model.IntentShowPhoto)
}

func (c *Classifier) whoIs(s *scope) (model.Intent, bool) {
	return c.catCommand(s, whoIsRe, model.IntentWhoIs)
}

// catCommand claims the message once the trigger matches, even when no cat resolves.
func (c *Classifier) catCommand(s *scope, trigger *regexp.Regexp, kind model.IntentKind) (model.Intent, bool) {
	if !trigger.MatchString(s.stripped) {
		return model.Intent{}, false
	}
	rest := trigger.ReplaceAllString(s.stripped, " ")
	m, ok := c.entities.Best(s.ctx, rest, alias.Cat, false)
	if !ok {
		s.tag("slot", "cat=none")
		return model.NewIntent(model.IntentNone, 0, s.row), true
	}
	s.tag("slot", "cat="+m.Name, "method="+string(m.Method))
	in := model.NewIntent(kind, ConfCommand, s.row)
	in.CatName = m.Name
	return in, true
}

func (c *Classifier) vision(s *scope) (model.Intent, bool) {
	var kind model.IntentKind
	switch {
	case cropRe.MatchString(s.stripped):
		kind = model.IntentCVCrop
	case detectRe.MatchString(s.stripped):
		kind = model.IntentCVDetect
	case identRe.MatchString(s.stripped):
		kind = model.IntentCVIdentify
	default:
		return model.Intent{}, false
	}
	return c.withImage(s, kind)
}

// withImage locates the image a vision command runs on. Without one, the command
// is parked in the pending tracker and the message is silenced.
func (c *Classifier) withImage(s *scope, kind model.IntentKind) (model.Intent, bool) {
	if s.row.HasImage {
		s.tag("image", "attachment")
		return model.NewIntent(kind, ConfCommand, s.row), true
	}
	if s.row.ReplyToID != "" {
		s.tag("image", "reply")
		return model.NewIntent(kind, ConfImageReply, s.row), true
	}
	if pm, ok := c.buf.LastImageForUser(s.row.ChannelID, s.row.UserID, c.cfg.ImageLookback, s.now); ok {
		s.tag("image", "buffer")
		in := model.NewIntent(kind, ConfImageBuffer, s.row)
		in.HasImage = true
		in.AttachmentIDs = pm.AttachmentIDs
		in.PairedMessageIDs = []string{pm.MessageID}
		return in, true
	}
	c.pending.SetVision(s.key(), kind, s.row.MessageID, c.cfg.PendingTTL, s.now)
	s.tag("pending", "vision", "set")
	return model.NewIntent(model.IntentNone, 0, s.row), true
}

func (c *Classifier) pendingFollowUp(s *scope) (model.Intent, bool) {
	if !s.row.HasImage {
		return model.Intent{}, false
	}

	rec, status := c.pending.TakeVision(s.key(), s.now)
	switch status {
	case pending.Found:
		s.tag("pending", "vision", "taken")
		in := model.NewIntent(rec.Kind, ConfPendingImage, s.row)
		in.PairedMessageIDs = []string{rec.MessageID}
		return in, true
	case pending.Expired:
		s.tag("pending", "vision", "expired")
		c.log.Info("pending expired", "kind", "vision", "channel_id", s.row.ChannelID, "user_id", s.row.UserID, "message_id", rec.MessageID)
	}

	rec, status = c.pending.TakeFeed(s.key(), s.now)
	switch status {
	case pending.Found:
		s.tag("pending", "feed", "taken")
		in := model.NewIntent(model.IntentFeedUpdate, ConfPendingFeed, s.row)
		in.Stations = rec.Stations
		in.Station = first(rec.Stations)
		in.Dates = []string{c.dates.Today()}
		in.PairedMessageIDs = []string{rec.MessageID}
		return in, true
	case pending.Expired:
		s.tag("pending", "feed", "expired")
		c.log.Info("pending expired", "kind", "feed", "channel_id", s.row.ChannelID, "user_id", s.row.UserID, "message_id", rec.MessageID)
	}
	return model.Intent{}, false
}

func (c *Classifier) subAccept(s *scope) (model.Intent, bool) {
	if !acceptRe.MatchString(s.text) {
		return model.Intent{}, false
	}
	return c.accept(s, ConfAcceptReply, ConfAcceptRecent)
}

func (c *Classifier) subRequest(s *scope) (model.Intent, bool) {
	if !subVerbRe.MatchString(s.text) {
		return model.Intent{}, false
	}
	in := c.subIntent(s)
	if in.Station != "" && len(in.Dates) > 0 {
		in.Confidence = ConfSubStrong
	}
	return in, true
}

func (c *Classifier) feedVerb(s *scope) (model.Intent, bool) {
	if !feedVerbRe.MatchString(s.stripped) {
		return model.Intent{}, false
	}
	if stations := c.entities.All(s.stripped, alias.Station); len(stations) > 0 {
		s.tag("slot", "stations="+strings.Join(stations, "|"))
		in := model.NewIntent(model.IntentFeedUpdate, ConfFeed, s.row)
		in.Stations = stations
		in.Station = stations[0]
		in.Dates = c.datesOrToday(s)
		return in, true
	}
	// Alias hits were already covered by All; only a fuzzy station earns the lower confidence.
	if m, ok := c.entities.Best(s.ctx, s.stripped, alias.Station, false); ok && m.Method == entity.MethodFuzzy {
		s.tag("slot", "station="+m.Name, "method="+string(m.Method))
		in := model.NewIntent(model.IntentFeedUpdate, ConfFeedFuzzy, s.row)
		in.Stations = []string{m.Name}
		in.Station = m.Name
		in.Dates = c.datesOrToday(s)
		return in, true
	}
	return model.Intent{}, false
}

func (c *Classifier) stationOnly(s *scope) (model.Intent, bool) {
	stations := c.entities.All(s.stripped, alias.Station)
	if len(stations) == 0 {
		return model.Intent{}, false
	}
	s.tag("slot", "stations="+strings.Join(stations, "|"))

	build := func(conf float64) model.Intent {
		in := model.NewIntent(model.IntentFeedUpdate, conf, s.row)
		in.Stations = stations
		in.Station = stations[0]
		in.Dates = []string{c.dates.Today()}
		return in
	}

	if s.row.HasImage {
		s.tag("image", "attachment")
		return build(ConfFeedAttached), true
	}
	if pm, ok := c.buf.LastImageForUser(s.row.ChannelID, s.row.UserID, c.cfg.FeedImageLookback, s.now); ok {
		s.tag("image", "buffer")
		in := build(ConfFeedBuffered)
		in.HasImage = true
		in.AttachmentIDs = pm.AttachmentIDs
		in.PairedMessageIDs = []string{pm.MessageID}
		return in, true
	}
	c.pending.SetFeed(s.key(), stations, s.row.MessageID, c.cfg.PendingTTL, s.now)
	s.tag("pending", "feed", "set")
	return model.NewIntent(model.IntentNone, 0, s.row), true
}

func (c *Classifier) looseSub(s *scope) (model.Intent, bool) {
	if !looseSubRe.MatchString(s.text) {
		return model.Intent{}, false
	}
	in := c.subIntent(s)
	in.Confidence = ConfLoose
	return in, true
}

func (c *Classifier) looseAccept(s *scope) (model.Intent, bool) {
	if !looseAcceptRe.MatchString(s.text) {
		return model.Intent{}, false
	}
	return c.accept(s, ConfAcceptRecent, ConfLoose)
}

func (c *Classifier) semantic(s *scope) (model.Intent, bool) {
	if c.model == nil || !(s.addressed || s.feeding) || len(s.stripped) < 3 {
		return model.Intent{}, false
	}
	kind, prob, err := c.model.PredictIntent(s.ctx, s.stripped)
	if err != nil {
		s.tag("model", "error")
		c.log.Warn("intent model", "message_id", s.row.MessageID, "error", err)
		return model.Intent{}, false
	}
	if kind == model.IntentNone || prob < c.cfg.MidConfidence {
		s.tag("model", "below")
		return model.Intent{}, false
	}
	s.tag("model", kind.String())

	in := model.NewIntent(kind, prob, s.row)
	switch kind {
	case model.IntentShowPhoto, model.IntentWhoIs:
		m, ok := c.entities.Best(s.ctx, s.stripped, alias.Cat, true)
		if !ok {
			return model.Intent{}, false
		}
		in.CatName = m.Name
	case model.IntentFeedUpdate:
		m, ok := c.entities.Best(s.ctx, s.stripped, alias.Station, true)
		if !ok {
			return model.Intent{}, false
		}
		in.Station = m.Name
		in.Stations = []string{m.Name}
		in.Dates = c.datesOrToday(s)
	case model.IntentSubRequest:
		sub := c.subIntent(s)
		in.Station, in.Stations, in.Dates = sub.Station, sub.Stations, sub.Dates
	case model.IntentCVIdentify, model.IntentCVDetect, model.IntentCVCrop:
		if !s.row.HasImage && s.row.ReplyToID == "" {
			return model.Intent{}, false
		}
	case model.IntentSilentMode, model.IntentProfilesCreate, model.IntentProfileUpdateOne,
		model.IntentProfilesUpdateAll, model.IntentManual8PM:
		// Admin commands need their exact wording.
		return model.Intent{}, false
	case model.IntentSubAccept, model.IntentFeedingStatus, model.IntentNone:
	}
	return in, true
}

func (c *Classifier) subIntent(s *scope) model.Intent {
	in := model.NewIntent(model.IntentSubRequest, ConfSubWeak, s.row)
	in.Stations = c.entities.All(s.stripped, alias.Station)
	in.Station = first(in.Stations)
	in.Dates = c.dates.Extract(s.stripped)
	if len(in.Stations) > 0 {
		s.tag("slot", "stations="+strings.Join(in.Stations, "|"))
	}
	if len(in.Dates) > 0 {
		s.tag("slot", "dates="+strings.Join(in.Dates, "|"))
	}
	return in
}

// accept needs evidence that a request is open: a reply, or a recent request in the channel.
func (c *Classifier) accept(s *scope, replyConf, recentConf float64) (model.Intent, bool) {
	if s.row.ReplyToID != "" {
		s.tag("accept", "reply")
		return model.NewIntent(model.IntentSubAccept, replyConf, s.row), true
	}
	if c.buf.RecentSubRequestInChannel(s.row.ChannelID, s.row.MessageID) {
		s.tag("accept", "recent")
		return model.NewIntent(model.IntentSubAccept, recentConf, s.row), true
	}
	return model.Intent{}, false
}

func (c *Classifier) datesOrToday(s *scope) []string {
	ds := c.dates.Extract(s.stripped)
	if len(ds) == 0 {
		ds = []string{c.dates.Today()}
	}
	s.tag("slot", "dates="+strings.Join(ds, "|"))
	return ds
}

func first(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return list[0]
}
