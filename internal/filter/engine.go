// Package filter screens inbound messages before they reach the router:
// spam is dropped and a few small-talk phrases get a canned reply.
package filter

import (
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
	"time"
)

var spamPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)free\s+.*macbook`),
	regexp.MustCompile(`(?i)tickets?.*\bto\b.*(concert|tour|event)`),
	regexp.MustCompile(`(?i)(?:^|\s)(?:dm|pm)\s+me\s+.*\binterested\b`),
	regexp.MustCompile(`(?i)first\s*come\s*first\s*serve`),
}

// IsSpam reports whether text matches a known spam pattern.
func IsSpam(text string) bool {
	for _, re := range spamPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

var meows = []string{
	"meow!", "MEOW!", "meeeoowww", "meow meow", "mrow!", "mrrp?",
	"meow? :3", "MEOW MEOW!", "*stretches*",
}

type trigger struct {
	re    *regexp.Regexp
	reply func(pick func(int) int) string
}

var triggers = []trigger{
	{re: regexp.MustCompile(`(?i)\bmeow\b`), reply: func(pick func(int) int) string { return meows[pick(len(meows))] }},
	{re: regexp.MustCompile(`(?i)\bthanks\s+tomcat\b`), reply: func(func(int) int) string { return "You're welcome" }},
	{re: regexp.MustCompile(`(?i)\bthank\s+you\s+tomcat\b`), reply: func(func(int) int) string { return "You're welcome" }},
}

// DefaultCooldown is the minimum gap between two replies to the same user.
const DefaultCooldown = time.Second

// SmallTalk answers small-talk triggers with a per-user cooldown.
type SmallTalk struct {
	cooldown time.Duration
	now      func() time.Time
	pick     func(n int) int

	mu   sync.Mutex
	last map[string]time.Time
}

// NewSmallTalk creates a SmallTalk with the default cooldown.
func NewSmallTalk() *SmallTalk {
	return &SmallTalk{
		cooldown: DefaultCooldown,
		now:      time.Now,
		pick:     rand.IntN,
		last:     make(map[string]time.Time),
	}
}

// Reply returns the canned response to content, if any. Messages containing
// inline code or code blocks never trigger. Only the first matching trigger counts,
// and a user inside their cooldown gets nothing.
func (s *SmallTalk) Reply(userID, content string) (string, bool) {
	if strings.Contains(content, "`") {
		return "", false
	}
	for _, t := range triggers {
		if !t.re.MatchString(content) {
			continue
		}
		if !s.cool(userID) {
			return "", false
		}
		return t.reply(s.pick), true
	}
	return "", false
}

func (s *SmallTalk) cool(userID string) bool {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.last[userID]; ok && now.Sub(last) < s.cooldown {
		return false
	}
	s.last[userID] = now
	return true
}
