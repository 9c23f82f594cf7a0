// Package bot connects the intent router to Discord.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"tomcat/internal/alias"
	"tomcat/internal/appstate"
	"tomcat/internal/catalog"
	"tomcat/internal/config"
	"tomcat/internal/dates"
	"tomcat/internal/dispatch"
	"tomcat/internal/feeding"
	"tomcat/internal/fetcher"
	"tomcat/internal/filter"
	"tomcat/internal/model"
	"tomcat/internal/storage"
	"tomcat/internal/vision"
)

type discordAPI interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
}

// MessageHandler routes one inbound message.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg model.Message) model.Intent
}

// Resolver answers clarification prompts.
type Resolver interface {
	Resolve(ctx context.Context, promptID, userID string, yes bool) dispatch.Resolution
}

// Deps are the services the bot's handlers call.
type Deps struct {
	Store   storage.Storage
	State   *appstate.State
	Catalog *catalog.Catalog
	Feeding *feeding.Service
	Vision  *vision.Client
	Fetcher *fetcher.Fetcher
	Clock   *dates.Extractor
	Cats    *alias.Table
}

// Bot is the Discord front end. Gateway events are queued and handled one at a time.
type Bot struct {
	api       discordAPI
	cfg       *config.Config
	deps      Deps
	smallTalk *filter.SmallTalk
	log       *slog.Logger

	router   MessageHandler
	resolver Resolver

	botID  string
	events chan any
	done   chan struct{}
}

// New creates a Bot with the given Discord token.
func New(token string, cfg *config.Config, deps Deps, log *slog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return newBot(session, cfg, deps, log), nil
}

func newBot(api discordAPI, cfg *config.Config, deps Deps, log *slog.Logger) *Bot {
	return &Bot{
		api:       api,
		cfg:       cfg,
		deps:      deps,
		smallTalk: filter.NewSmallTalk(),
		log:       log,
		events:    make(chan any, 100),
		done:      make(chan struct{}),
	}
}

// Bind attaches the router and the prompt resolver. It must be called before Run.
func (b *Bot) Bind(router MessageHandler, resolver Resolver) {
	b.router = router
	b.resolver = resolver
}

// Handlers returns the dispatch handlers backed by this bot.
func (b *Bot) Handlers() dispatch.Handlers {
	return dispatch.Handlers{
		Cats:     catHandler{b},
		Vision:   visionHandler{b},
		Feeding:  feedingHandler{b},
		Subs:     subHandler{b},
		Profiles: profileHandler{b},
	}
}

// Run connects to the gateway and handles events until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	defer close(b.done)

	b.api.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) { b.enqueue(r) })
	b.api.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) { b.enqueue(m) })
	b.api.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) { b.enqueue(i) })

	if err := b.api.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	defer func() { _ = b.api.Close() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-b.events:
			b.handleEvent(ctx, ev)
		}
	}
}

func (b *Bot) enqueue(ev any) {
	select {
	case b.events <- ev:
	case <-b.done:
	}
}

func (b *Bot) handleEvent(ctx context.Context, ev any) {
	switch e := ev.(type) {
	case *discordgo.Ready:
		b.botID = e.User.ID
		b.log.Info("discord connected", "user", e.User.Username, "guilds", len(e.Guilds))
	case *discordgo.MessageCreate:
		b.handleMessage(ctx, e.Message)
	case *discordgo.InteractionCreate:
		b.handleInteraction(ctx, e)
	}
}

// SendMessage posts text to a channel unless silent mode is on.
func (b *Bot) SendMessage(channelID, text string) {
	if _, err := b.send(channelID, &discordgo.MessageSend{Content: text}); err != nil {
		b.log.Error("send message", "channel_id", channelID, "error", err)
	}
}

// send posts a message. It returns nil without error while silent mode is on.
func (b *Bot) send(channelID string, data *discordgo.MessageSend) (*discordgo.Message, error) {
	if b.muted(channelID, data.Content) {
		return nil, nil
	}
	return b.api.ChannelMessageSendComplex(channelID, data)
}

func (b *Bot) edit(e *discordgo.MessageEdit) error {
	if b.muted(e.Channel, "(edit)") {
		return nil
	}
	_, err := b.api.ChannelMessageEditComplex(e)
	return err
}

func (b *Bot) react(channelID, messageID, emoji string) {
	if b.muted(channelID, emoji) {
		return
	}
	if err := b.api.MessageReactionAdd(channelID, messageID, emoji); err != nil {
		b.log.Warn("add reaction", "channel_id", channelID, "message_id", messageID, "error", err)
	}
}

func (b *Bot) muted(channelID, preview string) bool {
	if !b.deps.State.SilentMode() {
		return false
	}
	if len(preview) > 120 {
		preview = preview[:120]
	}
	b.log.Info("muted send", "channel_id", channelID, "preview", preview)
	return true
}

// Confirm asks userID a yes/no question with buttons that resolve promptID.
func (b *Bot) Confirm(_ context.Context, promptID, channelID, userID, question string) error {
	_, err := b.send(channelID, &discordgo.MessageSend{
		Content:    fmt.Sprintf("<@%s> %s", userID, question),
		Components: confirmButtons(promptID),
	})
	return err
}

// PingUnfed posts the unfed stations of today to the feeding team channel,
// mentioning whoever is assigned to each.
func (b *Bot) PingUnfed(ctx context.Context) error {
	channelID := b.cfg.FeedingTeamChannel
	if channelID == "" {
		b.log.Info("unfed ping skipped", "reason", "no feeding team channel")
		return nil
	}
	text, err := b.deps.Feeding.EightPMLines(ctx, b.deps.Clock.Today(), mention)
	if err != nil {
		return fmt.Errorf("build unfed lines: %w", err)
	}
	if text == "" {
		b.log.Info("unfed ping skipped", "reason", "all fed")
		return nil
	}
	if _, err := b.send(channelID, &discordgo.MessageSend{Content: text}); err != nil {
		return fmt.Errorf("send unfed ping: %w", err)
	}
	b.log.Info("unfed ping sent", "channel_id", channelID)
	return nil
}

func mention(userID string) string {
	return "<@" + userID + ">"
}
