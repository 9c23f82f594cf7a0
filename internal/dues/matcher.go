package dues

import (
	"strings"

	"tomcat/internal/entity"
	"tomcat/internal/model"
)

// MatchThreshold is the lowest score at which a payment is marked matched.
const MatchThreshold = 0.5

const (
	nameWeight   = 0.3
	emailWeight  = 0.5
	handleWeight = 0.2
)

// Score rates how likely it is that m made payment p, between 0 and 1.
func Score(p *model.Payment, m model.Member) float64 {
	var s float64
	if p.PayerName != "" && m.Name != "" {
		s += nameWeight * entity.TokenSetRatio(p.PayerName, m.Name)
	}
	if equalFold(p.PayerEmail, m.Email) {
		s += emailWeight
	}
	if equalFold(p.PayerHandle, m.Handle) {
		s += handleWeight
	}
	return s
}

// Match returns the Discord id of the best scoring member and its score.
// Ties keep the earlier member.
func Match(p *model.Payment, members []model.Member) (string, float64) {
	var id string
	var best float64
	for _, m := range members {
		if s := Score(p, m); s > best {
			id, best = m.DiscordID, s
		}
	}
	return id, best
}

func equalFold(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && b != "" && strings.EqualFold(a, b)
}
