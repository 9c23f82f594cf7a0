package bot

import (
	"strings"

	"github.com/bwmarrin/discordgo"

	"tomcat/internal/model"
)

const (
	actionClarify     = "clarify"
	actionRandomPhoto = "cat_random_more"
)

// toMessage converts a gateway message into the router's message type.
func (b *Bot) toMessage(m *discordgo.Message) model.Message {
	msg := model.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Content:   m.Content,
		IsDM:      m.GuildID == "",
		CreatedAt: m.Timestamp,
	}
	if m.Author != nil {
		msg.UserID = m.Author.ID
		msg.UserName = m.Author.Username
		msg.IsAdmin = b.cfg.IsAdmin(m.Author.ID)
	}
	if m.MessageReference != nil {
		msg.ReplyToID = m.MessageReference.MessageID
	}
	for _, u := range m.Mentions {
		if u != nil && b.botID != "" && u.ID == b.botID {
			msg.MentionsBot = true
		}
	}
	msg.Attachments = attachments(m)
	return msg
}

func attachments(m *discordgo.Message) []model.Attachment {
	out := make([]model.Attachment, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		out = append(out, model.Attachment{
			ID:          a.ID,
			URL:         a.URL,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Size:        a.Size,
		})
	}
	return out
}

// ParseCustomID splits component data of the form "action:arg".
func ParseCustomID(id string) (action, arg string) {
	action, arg, _ = strings.Cut(id, ":")
	return action, arg
}

// ParseClarify splits a clarification argument of the form "yes:<prompt id>".
func ParseClarify(arg string) (promptID string, yes, ok bool) {
	answer, promptID, found := strings.Cut(arg, ":")
	if !found || promptID == "" {
		return "", false, false
	}
	switch answer {
	case "yes":
		return promptID, true, true
	case "no":
		return promptID, false, true
	}
	return "", false, false
}
