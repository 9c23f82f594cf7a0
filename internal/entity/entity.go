// Package entity extracts cat and station names from free text.
package entity

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"tomcat/internal/alias"
)

// Default acceptance thresholds for fuzzy matches.
const (
	DefaultAccept   = 0.88
	DefaultLenBias  = 0.82
	DefaultLenDelta = 3
)

// Method records how an entity was found.
type Method string

// Supported match methods.
const (
	MethodAlias Method = "alias"
	MethodFuzzy Method = "fuzzy"
	MethodModel Method = "model"
)

// Match is a resolved entity.
type Match struct {
	Name   string
	Score  float64
	Method Method
}

// Scorer is an optional semantic model that scores text against a vocabulary.
type Scorer interface {
	ScoreEntity(ctx context.Context, text string, vocab []string) (string, float64, error)
}

// Thresholds tune fuzzy acceptance.
type Thresholds struct {
	Accept   float64
	LenBias  float64
	LenDelta int
}

// Extractor wraps the alias vocabulary with fuzzy and model fallbacks.
type Extractor struct {
	vocab  *alias.Vocabulary
	scorer Scorer
	th     Thresholds
	log    *slog.Logger
}

// New creates an Extractor. scorer may be nil.
func New(vocab *alias.Vocabulary, scorer Scorer, th Thresholds, log *slog.Logger) *Extractor {
	if th.Accept == 0 {
		th.Accept = DefaultAccept
	}
	if th.LenBias == 0 {
		th.LenBias = DefaultLenBias
	}
	if th.LenDelta == 0 {
		th.LenDelta = DefaultLenDelta
	}
	return &Extractor{vocab: vocab, scorer: scorer, th: th, log: log}
}

// Best returns the single best entity of kind in text.
func (x *Extractor) Best(ctx context.Context, text string, kind alias.Kind, allowModel bool) (Match, bool) {
	if name, ok := x.vocab.Resolve(text, kind); ok {
		return Match{Name: name, Score: 1, Method: MethodAlias}, true
	}

	names := x.vocab.Table(kind).Names()
	if tok := longestToken(text); tok != "" {
		name, score := bestFuzzy(tok, names)
		if score >= x.th.Accept {
			return Match{Name: name, Score: score, Method: MethodFuzzy}, true
		}
		if score >= x.th.LenBias && abs(len([]rune(tok))-len([]rune(name))) <= x.th.LenDelta {
			return Match{Name: name, Score: score, Method: MethodFuzzy}, true
		}
	}

	if allowModel && x.scorer != nil {
		name, prob, err := x.scorer.ScoreEntity(ctx, text, names)
		if err != nil {
			x.log.Warn("entity model", "kind", kind, "error", err)
			return Match{}, false
		}
		if prob >= x.th.Accept && contains(names, name) {
			return Match{Name: name, Score: prob, Method: MethodModel}, true
		}
	}

	return Match{}, false
}

// All returns every distinct entity of kind mentioned in text.
func (x *Extractor) All(text string, kind alias.Kind) []string {
	return x.vocab.Table(kind).ResolveAll(text)
}

// TokenSetRatio scores two strings on a 0..1 scale, ignoring word order and duplicates.
// The shared words are compared against each side's full word set, so a query that
// is a subset of a longer name still scores high.
func TokenSetRatio(a, b string) float64 {
	ta := wordSet(a)
	tb := wordSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var inter, onlyA, onlyB []string
	for w := range ta {
		if tb[w] {
			inter = append(inter, w)
		} else {
			onlyA = append(onlyA, w)
		}
	}
	for w := range tb {
		if !ta[w] {
			onlyB = append(onlyB, w)
		}
	}
	sort.Strings(inter)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	sect := strings.Join(inter, " ")
	combA := strings.TrimSpace(sect + " " + strings.Join(onlyA, " "))
	combB := strings.TrimSpace(sect + " " + strings.Join(onlyB, " "))

	if sect != "" && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 1
	}

	best := ratio(combA, combB)
	if sect != "" {
		best = max(best, ratio(sect, combA), ratio(sect, combB))
	}
	return best
}

func ratio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 && lb == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(max(la, lb))
}

func bestFuzzy(query string, names []string) (string, float64) {
	var best string
	var bestScore float64
	for _, n := range names {
		s := TokenSetRatio(query, n)
		if s > bestScore {
			best, bestScore = n, s
		}
	}
	return best, bestScore
}

func longestToken(text string) string {
	var best string
	for _, w := range alias.Words(text) {
		if len(w) > len(best) {
			best = w
		}
	}
	return best
}

func wordSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range alias.Words(s) {
		out[w] = true
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
