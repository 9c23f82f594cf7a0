package bot

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"tomcat/internal/catalog"
	"tomcat/internal/vision"
)

const embedColor = 0x2F3136

// FormatProfile renders a cat profile as an embed.
func FormatProfile(p *catalog.Profile) *discordgo.MessageEmbed {
	c := p.Cat
	lines := []string{
		"**Description:** " + orUnknown(c.PhysicalDescription),
		"**Behavior:** " + orUnknown(c.Behavior),
		"**Location:** " + orUnknown(c.Location),
		"**Age Estimate:** " + orUnknown(p.AgeEstimate),
		"**TNR Status:** " + orUnknown(c.TNRStatus),
	}
	if c.Nicknames != "" {
		lines = append(lines, "**Common Nicknames:** "+c.Nicknames)
	}
	lines = append(lines, fmt.Sprintf("**Last Reported:** %s at %s by %s",
		orUnknown(c.LastSeenDate), orUnknown(c.LastSeenTime), orUnknown(c.LastSeenBy)))

	e := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("__**%s**__", c.Name),
		Description: strings.Join(lines, "\n"),
		Color:       embedColor,
	}
	if p.ImageURL != "" {
		e.Image = &discordgo.MessageEmbedImage{URL: p.ImageURL}
	}
	return e
}

// FormatPhoto renders one catalog photo. random selects the "random photo" wording.
func FormatPhoto(p *catalog.Photo, random bool) *discordgo.MessageEmbed {
	title := fmt.Sprintf("__**%s**__", p.CatName)
	lead := fmt.Sprintf("**Most recent photo of %s**", p.CatName)
	if random {
		title = fmt.Sprintf("__**Random Photo of %s**__", p.CatName)
		lead = fmt.Sprintf("**Here's a random photo of %s**", p.CatName)
	}
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: fmt.Sprintf("%s\n(Photo %d out of %d)\nImage: %s", lead, p.Index, p.Total, orUnknown(p.Serial)),
		Color:       embedColor,
		Image:       &discordgo.MessageEmbedImage{URL: p.URL},
	}
}

// FormatIdentify lists one line per identified cat.
func FormatIdentify(results []vision.Guess) string {
	if len(results) == 0 {
		return "_no classifier configured_"
	}
	lines := make([]string, len(results))
	for i, r := range results {
		lines[i] = fmt.Sprintf("%d. **%s** (%.1f%%)", r.Index, r.Name, r.Confidence*100)
	}
	return strings.Join(lines, "\n")
}

func imageEmbed(title, filename, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       embedColor,
		Image:       &discordgo.MessageEmbedImage{URL: "attachment://" + filename},
	}
}

func anotherButton(catName string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Show me another",
					Style:    discordgo.PrimaryButton,
					CustomID: actionRandomPhoto + ":" + catName,
				},
			},
		},
	}
}

func confirmButtons(promptID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Yes", Style: discordgo.SuccessButton, CustomID: actionClarify + ":yes:" + promptID},
				discordgo.Button{Label: "No", Style: discordgo.DangerButton, CustomID: actionClarify + ":no:" + promptID},
			},
		},
	}
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}
