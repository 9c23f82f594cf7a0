package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"tomcat/internal/dispatch"
)

func (b *Bot) handleInteraction(ctx context.Context, ic *discordgo.InteractionCreate) {
	if ic == nil || ic.Interaction == nil || ic.Type != discordgo.InteractionMessageComponent {
		return
	}
	userID := interactionUser(ic.Interaction)
	action, arg := ParseCustomID(ic.MessageComponentData().CustomID)

	switch action {
	case actionClarify:
		b.answerClarify(ctx, ic.Interaction, userID, arg)
	case actionRandomPhoto:
		b.showAnother(ctx, ic.Interaction, arg)
	default:
		b.log.Warn("unknown component", "custom_id", ic.MessageComponentData().CustomID, "user_id", userID)
	}
}

func (b *Bot) answerClarify(ctx context.Context, i *discordgo.Interaction, userID, arg string) {
	promptID, yes, ok := ParseClarify(arg)
	if !ok || b.resolver == nil {
		b.respond(i, ephemeral("This question has expired."))
		return
	}

	res := b.resolver.Resolve(ctx, promptID, userID, yes)
	b.log.Info("clarify answered", "prompt_id", promptID, "user_id", userID, "result", res.String())

	switch res {
	case dispatch.ResolutionConfirmed:
		b.respond(i, replaceText("Marked."))
	case dispatch.ResolutionDeclined:
		b.respond(i, replaceText("Okay, not marked."))
	case dispatch.ResolutionNotRequester:
		b.respond(i, ephemeral("Only the person who was asked can answer this."))
	default:
		b.respond(i, replaceText("This question has expired."))
	}
}

func (b *Bot) showAnother(ctx context.Context, i *discordgo.Interaction, catName string) {
	p, err := b.deps.Catalog.RandomPhoto(ctx, catName)
	if err != nil {
		b.log.Warn("random photo", "cat", catName, "error", err)
		b.respond(i, replaceText("No more photos of "+catName+" yet."))
		return
	}
	b.respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{FormatPhoto(p, true)},
			Components: anotherButton(p.CatName),
		},
	})
}

func (b *Bot) respond(i *discordgo.Interaction, resp *discordgo.InteractionResponse) {
	if err := b.api.InteractionRespond(i, resp); err != nil {
		b.log.Error("interaction respond", "interaction_id", i.ID, "error", err)
	}
}

// replaceText swaps the clicked message for plain text and drops its buttons.
func replaceText(text string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    text,
			Embeds:     []*discordgo.MessageEmbed{},
			Components: []discordgo.MessageComponent{},
		},
	}
}

func ephemeral(text string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: text,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}
}

func interactionUser(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
