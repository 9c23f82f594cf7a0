package intent

import (
	"regexp"
	"strings"

	"tomcat/internal/contextbuf"
)

var (
	mentionRe = regexp.MustCompile(`<@!?\d+>`)

	silentRe        = regexp.MustCompile(`(?i)\bsilent\s*mode\s+(on|off)\b`)
	whoThisRe       = regexp.MustCompile(`(?i)^(?:who|what)(?:'s|’s|\s+is)\s+this\s*[?.!]*$`)
	feedingUpdateRe = regexp.MustCompile(`(?i)^feeding\s+update\s*[?.!]*$`)
	manual8pmRe     = regexp.MustCompile(`(?i)^(?:manual\s+8\s*pm|8\s*pm\s+preview|preview\s+(?:the\s+)?8\s*pm)\b`)
	createProfileRe = regexp.MustCompile(`(?i)^create\s+profiles?\s+(\d+)(?:\s+(?:through|to|-)\s+(\d+))?\s*$`)
	updateProfileRe = regexp.MustCompile(`(?i)^update\s+profile\s+(\d+)\s*$`)
	updateAllRe     = regexp.MustCompile(`(?i)^update\s+all\s+profiles\s*[.!]*$`)
	feedingCheckRe  = regexp.MustCompile(`(?i)^(?:(?:who(?:'s|\s+is)\s+(?:been\s+)?fed(?:\s+today)?)|(?:which\s+stations?\s+(?:have|has|haven'?t|hasn'?t)\s*(?:been\s+)?fed(?:\s+today)?))\s*[?.!]*$`)

	showRe   = regexp.MustCompile(`(?i)\b(show\s*me|show)\b`)
	whoIsRe  = regexp.MustCompile(`(?i)\b(who\s+is|who\s*['’]s|who\s*s|whois)\b`)
	identRe  = regexp.MustCompile(`(?i)\b(identify|id)\b`)
	detectRe = regexp.MustCompile(`(?i)\b(detect|find\s+(?:the\s+)?cats?)\b`)
	cropRe   = regexp.MustCompile(`(?i)\bcrop\b`)

	feedVerbRe = regexp.MustCompile(`(?i)\b(fed|feed(?:ed)?|filled|topped(?:\s*off)?)\b`)
	subVerbRe  = contextbuf.SubRequestRe
	acceptRe   = regexp.MustCompile(`(?i)\b(sure|i(?:’|')?ll\s+cover|i\s+can\s+cover|i\s+got\s+it)\b`)

	looseSubRe    = regexp.MustCompile(`(?i)\b(need\s+(?:a\s+)?(?:sub|someone|coverage|help)|swap|trade\s+(?:days?|shifts?)|can'?t\s+make\s+it|cannot\s+make\s+it|out\s+of\s+town)\b`)
	looseAcceptRe = regexp.MustCompile(`(?i)\b(i\s+can(?:\s+do\s+it)?|i(?:’|')?ll\s+(?:do|take)\s+it|on\s+it|count\s+me\s+in|i(?:’|')?m\s+in|yes\s+i\s+can)\b`)
)

// wakePattern builds the wake prefix matcher from the built-in spellings and extra words.
func wakePattern(extra []string) *regexp.Regexp {
	alts := []string{`tom\s*cat`, `tomcat`, `tom-kat`, `tom\s*kat`}
	for _, w := range extra {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		alts = append(alts, regexp.QuoteMeta(strings.ToLower(w)))
	}
	return regexp.MustCompile(`(?i)^\s*(?:` + strings.Join(alts, "|") + `)\b[\s,:;!.-]*`)
}
