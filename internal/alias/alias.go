// Package alias resolves free text to canonical cat and station names.
//
// Resolution is deliberately conservative: a whole-word alias hit wins, then a
// prefix of an alias word is accepted only when it points at exactly one entry.
// Anything ambiguous resolves to nothing.
package alias

import (
	"regexp"
	"strings"
)

// Kind selects which vocabulary a lookup runs against.
type Kind string

// Supported vocabularies.
const (
	Cat     Kind = "cat"
	Station Kind = "station"
)

// minPrefixLen is the shortest token considered for prefix matching.
const minPrefixLen = 3

var (
	wsRe      = regexp.MustCompile(`\s+`)
	nonAlnum  = regexp.MustCompile(`[^a-z0-9]+`)
	stopwords = map[string]bool{"the": true, "a": true, "an": true, "and": true, "station": true, "lot": true, "hall": true}
)

// Entry is one canonical name and its aliases.
type Entry struct {
	Canonical string
	Aliases   []string
	words     []string
}

// Table is an ordered, immutable alias table.
// Entries are scanned in insertion order, so the first entry wins a whole-word tie.
type Table struct {
	entries []Entry
}

// NewTable builds a table from entries in the given order. The canonical name of
// every entry is always added as one of its own aliases.
func NewTable(entries []Entry) *Table {
	t := &Table{entries: make([]Entry, 0, len(entries))}
	for _, e := range entries {
		var vals []string
		vals = append(vals, Variants(e.Canonical)...)
		for _, a := range e.Aliases {
			vals = append(vals, Variants(a)...)
		}
		aliases := dedupe(vals)

		var words []string
		for _, a := range aliases {
			words = append(words, Words(a)...)
		}
		t.entries = append(t.entries, Entry{
			Canonical: e.Canonical,
			Aliases:   aliases,
			words:     dedupe(words),
		})
	}
	return t
}

// Names returns the canonical names in table order.
func (t *Table) Names() []string {
	out := make([]string, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Canonical
	}
	return out
}

// Aliases returns the normalized aliases of a canonical name.
func (t *Table) Aliases(canonical string) []string {
	for _, e := range t.entries {
		if e.Canonical == canonical {
			return append([]string(nil), e.Aliases...)
		}
	}
	return nil
}

// Resolve returns the canonical name mentioned in text, if exactly one can be determined.
func (t *Table) Resolve(text string) (string, bool) {
	norm := Normalize(text)
	if norm == "" {
		return "", false
	}

	for _, e := range t.entries {
		for _, a := range e.Aliases {
			if ContainsWord(norm, a) {
				return e.Canonical, true
			}
		}
	}

	hits := make(map[int]int)
	for _, tok := range uniqueWords(norm) {
		if len(tok) < minPrefixLen || stopwords[tok] {
			continue
		}
		matched := t.prefixOwners(tok)
		if len(matched) == 1 {
			hits[matched[0]]++
		}
	}
	if len(hits) != 1 {
		return "", false
	}
	for idx := range hits {
		return t.entries[idx].Canonical, true
	}
	return "", false
}

// ResolveAll returns every distinct canonical name mentioned in text, in table order.
// Prefix hits that also prefix another entry's alias words are dropped as ambiguous.
func (t *Table) ResolveAll(text string) []string {
	norm := Normalize(text)
	if norm == "" {
		return nil
	}

	found := make([]bool, len(t.entries))
	for i, e := range t.entries {
		for _, a := range e.Aliases {
			if ContainsWord(norm, a) {
				found[i] = true
				break
			}
		}
	}

	var tokens []string
	for _, tok := range uniqueWords(norm) {
		if len(tok) >= minPrefixLen && !stopwords[tok] {
			tokens = append(tokens, tok)
		}
	}
	for _, tok := range tokens {
		owners := t.prefixOwners(tok)
		if len(owners) == 1 {
			found[owners[0]] = true
		}
	}

	var out []string
	for i, ok := range found {
		if ok {
			out = append(out, t.entries[i].Canonical)
		}
	}
	return out
}

// prefixOwners returns the indexes of entries owning an alias word that starts with tok.
// Several matching words inside one entry count once.
func (t *Table) prefixOwners(tok string) []int {
	var owners []int
	for i, e := range t.entries {
		for _, w := range e.words {
			if strings.HasPrefix(w, tok) {
				owners = append(owners, i)
				break
			}
		}
	}
	return owners
}

// Normalize lowercases text and collapses whitespace.
func Normalize(s string) string {
	return wsRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// Words splits s into lowercase alphanumeric words.
func Words(s string) []string {
	var out []string
	for _, w := range nonAlnum.Split(strings.ToLower(s), -1) {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// Variants returns the normalized spellings an alias is matched under:
// the lowercased form, whitespace-collapsed, hyphens as spaces, and punctuation-stripped.
func Variants(name string) []string {
	base := strings.ToLower(strings.TrimSpace(name))
	simple := wsRe.ReplaceAllString(base, " ")
	hyphens := wsRe.ReplaceAllString(strings.ReplaceAll(simple, "-", " "), " ")
	tight := nonAlnum.ReplaceAllString(base, "")
	var out []string
	for _, v := range []string{simple, hyphens, tight} {
		if v != "" {
			out = append(out, v)
		}
	}
	return dedupe(out)
}

// ContainsWord reports whether needle occurs in haystack bounded by
// non-alphanumeric characters or the string edges.
func ContainsWord(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	from := 0
	for {
		idx := strings.Index(haystack[from:], needle)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(needle)
		if (start == 0 || !isAlnum(haystack[start-1])) && (end == len(haystack) || !isAlnum(haystack[end])) {
			return true
		}
		from = start + 1
	}
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z')
}

func uniqueWords(s string) []string {
	return dedupe(Words(s))
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
