package bot

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"tomcat/internal/catalog"
	"tomcat/internal/fetcher"
	"tomcat/internal/filter"
	"tomcat/internal/metrics"
	"tomcat/internal/model"
	"tomcat/internal/storage"
	"tomcat/internal/vision"
)

// maxProfileRange caps how many profiles one command may post.
const maxProfileRange = 100

func (b *Bot) handleMessage(ctx context.Context, m *discordgo.Message) {
	if m == nil || m.Author == nil || m.Author.Bot {
		return
	}
	if b.router == nil {
		b.log.Error("message dropped", "reason", "router not bound", "message_id", m.ID)
		return
	}
	if filter.IsSpam(m.Content) {
		metrics.MessagesHandled.WithLabelValues("spam").Inc()
		b.log.Info("spam dropped", "channel_id", m.ChannelID, "user_id", m.Author.ID, "message_id", m.ID)
		return
	}

	msg := b.toMessage(m)
	if contains(b.cfg.PhotoChannels, msg.ChannelID) && len(msg.ImageAttachments()) > 0 {
		b.intakePhotos(ctx, msg)
	}
	if reply, ok := b.smallTalk.Reply(msg.UserID, msg.Content); ok {
		metrics.MessagesHandled.WithLabelValues("small_talk").Inc()
		b.SendMessage(msg.ChannelID, reply)
		return
	}
	b.router.HandleMessage(ctx, msg)
}

// intakePhotos files images posted in a photo channel under the cat named in the caption.
func (b *Bot) intakePhotos(ctx context.Context, msg model.Message) {
	name, ok := b.deps.Cats.Resolve(msg.Content)
	if !ok {
		b.log.Debug("photo intake skipped", "reason", "no cat named", "message_id", msg.ID)
		return
	}
	for _, a := range msg.ImageAttachments() {
		err := b.deps.Catalog.RecordPhoto(ctx, name, a.URL, a.ID, msg.UserName, msg.CreatedAt, b.deps.Clock.Location())
		if err != nil {
			b.log.Error("photo intake", "cat", name, "attachment_id", a.ID, "error", err)
		}
	}
}

type catHandler struct{ b *Bot }

func (h catHandler) ShowProfile(ctx context.Context, in model.Intent) error {
	if strings.TrimSpace(in.CatName) == "" {
		h.b.SendMessage(in.ChannelID, "Which cat would you like to see?")
		return nil
	}
	p, err := h.b.deps.Catalog.LookupProfile(ctx, in.CatName)
	if errors.Is(err, catalog.ErrNotFound) {
		h.b.SendMessage(in.ChannelID, fmt.Sprintf("I couldn't find any information about a %q.", in.CatName))
		return nil
	}
	if err != nil {
		return err
	}
	_, err = h.b.send(in.ChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{FormatProfile(p)},
		Components: anotherButton(p.Cat.Name),
	})
	return err
}

// ShowPhoto posts the newest photo of a cat, falling back to its profile when none is on file.
func (h catHandler) ShowPhoto(ctx context.Context, in model.Intent) error {
	if strings.TrimSpace(in.CatName) == "" {
		h.b.SendMessage(in.ChannelID, "Which cat would you like to see?")
		return nil
	}
	p, err := h.b.deps.Catalog.MostRecentPhoto(ctx, in.CatName)
	switch {
	case errors.Is(err, catalog.ErrNoPhotos):
		return h.ShowProfile(ctx, in)
	case errors.Is(err, catalog.ErrNotFound):
		h.b.SendMessage(in.ChannelID, fmt.Sprintf("I couldn't find a cat named %q.", in.CatName))
		return nil
	case err != nil:
		return err
	}
	_, err = h.b.send(in.ChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{FormatPhoto(p, false)},
		Components: anotherButton(p.CatName),
	})
	return err
}

type visionHandler struct{ b *Bot }

func (h visionHandler) Run(ctx context.Context, in model.Intent, msg model.Message) error {
	op := visionOp(in.Kind)
	att, ok := h.b.findImage(ctx, in, msg)
	if !ok {
		h.b.SendMessage(in.ChannelID, fmt.Sprintf("Attach an image or reply to an image, then say `TomCat, %s`.", op))
		return nil
	}

	var status *discordgo.Message
	if in.Kind == model.IntentCVIdentify {
		var err error
		if status, err = h.b.send(in.ChannelID, &discordgo.MessageSend{Content: "Processing image…"}); err != nil {
			return fmt.Errorf("send placeholder: %w", err)
		}
	}
	fail := func(text string) {
		if status != nil {
			if err := h.b.edit(discordgo.NewMessageEdit(status.ChannelID, status.ID).SetContent(text)); err != nil {
				h.b.log.Warn("edit placeholder", "error", err)
			}
			return
		}
		h.b.SendMessage(in.ChannelID, text)
	}

	img, err := h.b.deps.Fetcher.Fetch(ctx, att.URL, int64(att.Size))
	if errors.Is(err, fetcher.ErrTooLarge) {
		fail(fmt.Sprintf("Attachment too large (%d bytes). Max %d MB.", att.Size, h.b.cfg.CVMaxDownloadMB))
		return nil
	}
	if err != nil {
		fail(fmt.Sprintf("Sorry, %s failed.", failureNoun(op)))
		return fmt.Errorf("download attachment %s: %w", att.ID, err)
	}

	switch in.Kind {
	case model.IntentCVDetect:
		err = h.detect(ctx, in, img)
	case model.IntentCVCrop:
		err = h.crop(ctx, in, img)
	default:
		err = h.identify(ctx, status, in, img)
	}
	if errors.Is(err, vision.ErrImageTooLarge) {
		fail("That image is too large to process (4K or more).")
		return nil
	}
	if err != nil {
		fail(fmt.Sprintf("Sorry, %s failed.", failureNoun(op)))
		return err
	}
	return nil
}

func (h visionHandler) detect(ctx context.Context, in model.Intent, img []byte) error {
	boxed, err := h.b.deps.Vision.Detect(ctx, img)
	if err != nil {
		return err
	}
	_, err = h.b.send(in.ChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{imageEmbed("", "detected.jpg", "")},
		Files:  []*discordgo.File{jpegFile("detected.jpg", boxed)},
	})
	return err
}

func (h visionHandler) crop(ctx context.Context, in model.Intent, img []byte) error {
	crops, err := h.b.deps.Vision.Crop(ctx, img)
	if err != nil {
		return err
	}
	switch len(crops) {
	case 0:
		h.b.SendMessage(in.ChannelID, "No cats detected.")
		return nil
	case 1:
		_, err = h.b.send(in.ChannelID, &discordgo.MessageSend{
			Embeds: []*discordgo.MessageEmbed{imageEmbed("Cropped photo", "crop.jpg", "")},
			Files:  []*discordgo.File{jpegFile("crop.jpg", crops[0])},
		})
		return err
	}

	archive, err := zipCrops(crops)
	if err != nil {
		return err
	}
	_, err = h.b.send(in.ChannelID, &discordgo.MessageSend{
		Content: "Multiple cats detected. Here are the crops:",
		Files:   []*discordgo.File{{Name: "crops.zip", ContentType: "application/zip", Reader: bytes.NewReader(archive)}},
	})
	return err
}

func (h visionHandler) identify(ctx context.Context, status *discordgo.Message, in model.Intent, img []byte) error {
	id, err := h.b.deps.Vision.Identify(ctx, img)
	if err != nil {
		return err
	}
	embed := imageEmbed("", "identified.jpg", FormatIdentify(id.Results))
	file := jpegFile("identified.jpg", id.Image)

	if status == nil {
		_, err = h.b.send(in.ChannelID, &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}, Files: []*discordgo.File{file}})
		return err
	}
	e := discordgo.NewMessageEdit(status.ChannelID, status.ID).SetContent("").SetEmbeds([]*discordgo.MessageEmbed{embed})
	e.Files = []*discordgo.File{file}
	if err := h.b.edit(e); err != nil {
		return err
	}
	h.b.react(status.ChannelID, status.ID, "✅")
	h.b.react(status.ChannelID, status.ID, "❌")
	return nil
}

// findImage picks the image a vision command runs on: the message's own attachment first,
// then the paired message, then the replied-to message.
func (b *Bot) findImage(ctx context.Context, in model.Intent, msg model.Message) (model.Attachment, bool) {
	if imgs := msg.ImageAttachments(); len(imgs) > 0 {
		return imgs[0], true
	}
	candidates := append([]string(nil), in.PairedMessageIDs...)
	if in.ReplyToID != "" {
		candidates = append(candidates, in.ReplyToID)
	}
	for _, id := range candidates {
		if ctx.Err() != nil {
			return model.Attachment{}, false
		}
		m, err := b.api.ChannelMessage(in.ChannelID, id)
		if err != nil {
			b.log.Warn("fetch message for image", "channel_id", in.ChannelID, "message_id", id, "error", err)
			continue
		}
		for _, a := range attachments(m) {
			if a.IsImage() {
				return a, true
			}
		}
	}
	return model.Attachment{}, false
}

func visionOp(k model.IntentKind) string {
	switch k {
	case model.IntentCVDetect:
		return "detect"
	case model.IntentCVCrop:
		return "crop"
	default:
		return "identify"
	}
}

func failureNoun(op string) string {
	if op == "detect" {
		return "detection"
	}
	return op
}

func jpegFile(name string, data []byte) *discordgo.File {
	return &discordgo.File{Name: name, ContentType: "image/jpeg", Reader: bytes.NewReader(data)}
}

func zipCrops(crops [][]byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, c := range crops {
		w, err := zw.Create(fmt.Sprintf("crop_%d.jpg", i+1))
		if err != nil {
			return nil, fmt.Errorf("zip crop %d: %w", i+1, err)
		}
		if _, err := w.Write(c); err != nil {
			return nil, fmt.Errorf("zip crop %d: %w", i+1, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

type feedingHandler struct{ b *Bot }

func (h feedingHandler) MarkStationFed(ctx context.Context, station, date string) (bool, error) {
	return h.b.deps.Feeding.MarkStationFed(ctx, station, date)
}

// Acknowledge reacts to the reporting message.
func (h feedingHandler) Acknowledge(_ context.Context, in model.Intent, marked []string) error {
	h.b.log.Info("stations marked fed", "stations", marked, "dates", in.Dates, "user_id", in.UserID)
	h.b.react(in.ChannelID, in.MessageID, "✅")
	return nil
}

func (h feedingHandler) Status(ctx context.Context, in model.Intent) error {
	text, err := h.b.deps.Feeding.StatusLines(ctx)
	if err != nil {
		return err
	}
	h.b.SendMessage(in.ChannelID, text)
	return nil
}

// Preview8PM posts tonight's reminder to the requesting channel without mentions.
func (h feedingHandler) Preview8PM(ctx context.Context, in model.Intent) error {
	text, err := h.b.deps.Feeding.EightPMLines(ctx, h.b.deps.Clock.Today(), h.b.displayName)
	if err != nil {
		return err
	}
	if text == "" {
		text = "All stations are fed."
	}
	h.b.SendMessage(in.ChannelID, text)
	return nil
}

func (b *Bot) displayName(userID string) string {
	u, err := b.api.User(userID)
	if err != nil || u == nil {
		return "@" + userID
	}
	return "@" + u.Username
}

type subHandler struct{ b *Bot }

// Request records a substitution request. Requests are logged silently.
func (h subHandler) Request(ctx context.Context, in model.Intent) error {
	rec := &model.SubRecord{
		ID:        "sub-" + in.MessageID,
		Station:   in.Station,
		Dates:     in.Dates,
		Requester: in.UserID,
		Status:    model.SubRequested,
		ChannelID: in.ChannelID,
		MessageID: in.MessageID,
	}
	if err := h.b.deps.Store.AppendSub(ctx, rec); err != nil {
		return err
	}
	h.b.log.Info("sub requested", "sub_id", rec.ID, "station", rec.Station, "dates", rec.Dates, "user_id", in.UserID)
	return nil
}

// Accept assigns the newest open request in the channel to the accepting user.
func (h subHandler) Accept(ctx context.Context, in model.Intent) error {
	open, err := h.b.deps.Store.LatestOpenSub(ctx, in.ChannelID)
	if errors.Is(err, storage.ErrNotFound) {
		h.b.log.Info("sub accept", "user_id", in.UserID, "result", "no_open_request")
		return nil
	}
	if err != nil {
		return err
	}
	rec, err := h.b.deps.Store.AcceptSub(ctx, open.ID, in.UserID, []string{h.b.deps.Clock.Today()}, time.Now())
	if err != nil {
		return err
	}
	h.b.log.Info("sub accepted", "sub_id", rec.ID, "station", rec.Station, "dates", rec.Dates, "assignee", in.UserID)
	return nil
}

type profileHandler struct{ b *Bot }

// Create posts the profiles with ids from..to to the profiles channel and remembers the posts.
func (h profileHandler) Create(ctx context.Context, in model.Intent, from, to int) error {
	if to < from {
		to = from
	}
	if to-from+1 > maxProfileRange {
		h.b.SendMessage(in.ChannelID, fmt.Sprintf("That's too many profiles at once (max %d).", maxProfileRange))
		return nil
	}
	channelID := h.b.cfg.ProfilesChannel
	if channelID == "" {
		channelID = in.ChannelID
	}

	var created int
	var missing []string
	for id := from; id <= to; id++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p, err := h.b.profile(ctx, int64(id))
		if errors.Is(err, storage.ErrNotFound) {
			missing = append(missing, fmt.Sprintf("#%d", id))
			continue
		}
		if err != nil {
			return err
		}
		sent, err := h.b.send(channelID, &discordgo.MessageSend{
			Embeds:     []*discordgo.MessageEmbed{FormatProfile(p)},
			Components: anotherButton(p.Cat.Name),
		})
		if err != nil {
			return fmt.Errorf("post profile %d: %w", id, err)
		}
		if sent == nil {
			continue
		}
		post := &model.ProfilePost{CatID: int64(id), ChannelID: sent.ChannelID, MessageID: sent.ID}
		if err := h.b.deps.Store.SaveProfilePost(ctx, post); err != nil {
			return err
		}
		created++
	}

	text := fmt.Sprintf("Created %d profile(s).", created)
	if len(missing) > 0 {
		text += " Not found: " + strings.Join(missing, ", ")
	}
	h.b.SendMessage(in.ChannelID, text)
	return nil
}

func (h profileHandler) UpdateOne(ctx context.Context, in model.Intent, id int) error {
	post, err := h.b.deps.Store.GetProfilePost(ctx, int64(id))
	if errors.Is(err, storage.ErrNotFound) {
		h.b.SendMessage(in.ChannelID, fmt.Sprintf("Profile #%d has not been posted yet.", id))
		return nil
	}
	if err != nil {
		return err
	}
	if err := h.b.refreshPost(ctx, post); err != nil {
		return err
	}
	h.b.SendMessage(in.ChannelID, fmt.Sprintf("Updated profile #%d.", id))
	return nil
}

func (h profileHandler) UpdateAll(ctx context.Context, in model.Intent) error {
	posts, err := h.b.deps.Store.ListProfilePosts(ctx)
	if err != nil {
		return err
	}
	var updated, failed int
	for i := range posts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := h.b.refreshPost(ctx, &posts[i]); err != nil {
			failed++
			h.b.log.Error("update profile", "cat_id", posts[i].CatID, "error", err)
			continue
		}
		updated++
	}
	text := fmt.Sprintf("Updated %d profile(s).", updated)
	if failed > 0 {
		text += fmt.Sprintf(" %d failed.", failed)
	}
	h.b.SendMessage(in.ChannelID, text)
	return nil
}

func (b *Bot) refreshPost(ctx context.Context, post *model.ProfilePost) error {
	p, err := b.profile(ctx, post.CatID)
	if err != nil {
		return err
	}
	e := discordgo.NewMessageEdit(post.ChannelID, post.MessageID).SetEmbeds([]*discordgo.MessageEmbed{FormatProfile(p)})
	if err := b.edit(e); err != nil {
		return fmt.Errorf("edit profile %d: %w", post.CatID, err)
	}
	post.UpdatedAt = time.Now()
	return b.deps.Store.SaveProfilePost(ctx, post)
}

func (b *Bot) profile(ctx context.Context, id int64) (*catalog.Profile, error) {
	cat, err := b.deps.Store.GetCat(ctx, id)
	if err != nil {
		return nil, err
	}
	return b.deps.Catalog.LookupProfile(ctx, cat.Name)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
