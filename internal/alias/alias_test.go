package alias

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var testCats = []Entry{
	CatEntry("Pencil 2", nil),
	CatEntry("Pencil", nil),
	CatEntry("Microwave", []string{"Mike", "Michael", "Micro", "Buddy", "Apollo"}),
	CatEntry("Eraser", nil),
	CatEntry("Eggs", nil),
	CatEntry("Tito", []string{"Tito FluffyButt"}),
	CatEntry("Nefarious", []string{"Double Cheeseburger"}),
	CatEntry("Ford F-150", nil),
	CatEntry("Mr Sir", nil),
	CatEntry("Unnamed Noir Child", nil),
	CatEntry("Noir", nil),
	CatEntry("Pumpkin", nil),
	CatEntry("Pumpernickel", nil),
}

var testStations = []Entry{
	{Canonical: "West Hall", Aliases: []string{"west"}},
	{Canonical: "Maintenance", Aliases: []string{"maint"}},
	{Canonical: "Business", Aliases: []string{"biz"}},
	{Canonical: "The Greens", Aliases: []string{"greens"}},
	{Canonical: "HOP", Aliases: []string{"hop"}},
	{Canonical: "Lot 50", Aliases: []string{"lot50", "50"}},
	{Canonical: "Mary Kay and Zen", Aliases: []string{"mary kay", "zen"}},
	{Canonical: "Microwave", Aliases: []string{"mike", "mikey", "micro", "wave"}},
	{Canonical: "Mailroom"},
}

func TestResolveCanonicalNames(t *testing.T) {
	tbl := NewTable(testCats)
	for _, name := range tbl.Names() {
		t.Run(name, func(t *testing.T) {
			got, ok := tbl.Resolve("show me " + strings.ToLower(name))
			if !ok {
				t.Fatalf("Resolve(show me %s) found nothing", name)
			}
			if got != name {
				t.Errorf("Resolve(show me %s) = %q, want %q", name, got, name)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	tbl := NewTable(testCats)

	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{name: "nickname", text: "has anyone seen mike today", want: "Microwave", wantOK: true},
		{name: "nickname mixed case", text: "BUDDY is by the door", want: "Microwave", wantOK: true},
		{name: "nickname word", text: "fluffybutt was out", want: "Tito", wantOK: true},
		{name: "multi word nickname", text: "show me double cheeseburger", want: "Nefarious", wantOK: true},
		{name: "nickname token", text: "cheeseburger!", want: "Nefarious", wantOK: true},
		{name: "hyphen variant", text: "show me ford f 150", want: "Ford F-150", wantOK: true},
		{name: "tight variant", text: "where is mrsir", want: "Mr Sir", wantOK: true},
		{name: "collapsed whitespace", text: "  show   me    pencil   2 ", want: "Pencil 2", wantOK: true},
		{name: "unique prefix", text: "show me micr", want: "Microwave", wantOK: true},
		{name: "unique prefix of long name", text: "nefar", want: "Nefarious", wantOK: true},
		{name: "ambiguous prefix", text: "show me pump", wantOK: false},
		{name: "short token ignored", text: "e", wantOK: false},
		{name: "two char token ignored", text: "eg", wantOK: false},
		{name: "two prefixes two cats", text: "nefar and eras", wantOK: false},
		{name: "empty", text: "", wantOK: false},
		{name: "whitespace only", text: "   ", wantOK: false},
		{name: "not a word boundary", text: "microwaves", wantOK: false},
		{name: "unknown", text: "show me garfield", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tbl.Resolve(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("Resolve(%q) ok = %v, want %v (got %q)", tt.text, ok, tt.wantOK, got)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestResolveNicknamesWholeWord(t *testing.T) {
	tbl := NewTable(testCats)
	nicks := map[string]string{
		"Mike":                "Microwave",
		"Michael":             "Microwave",
		"Apollo":              "Microwave",
		"Tito FluffyButt":     "Tito",
		"Double Cheeseburger": "Nefarious",
	}
	for nick, want := range nicks {
		t.Run(nick, func(t *testing.T) {
			got, ok := tbl.Resolve("i think " + nick + " is hungry")
			if !ok || got != want {
				t.Errorf("Resolve(%q) = %q, %v; want %q", nick, got, ok, want)
			}
		})
	}
}

func TestResolveAll(t *testing.T) {
	tbl := NewTable(testStations)

	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "two stations", text: "fed hop and west", want: []string{"West Hall", "HOP"}},
		{name: "alias and canonical", text: "mike and the greens done", want: []string{"The Greens", "Microwave"}},
		{name: "prefix", text: "maint fed", want: []string{"Maintenance"}},
		{name: "unique prefix token", text: "topped off busin", want: []string{"Business"}},
		{name: "stopwords skipped", text: "the station lot", want: nil},
		{name: "ambiguous prefix dropped", text: "fed mai", want: nil},
		{name: "prefix within one entry", text: "fed mik", want: []string{"Microwave"}},
		{name: "short token", text: "fed mi", want: nil},
		{name: "prefix of multi word alias", text: "fed mar", want: []string{"Mary Kay and Zen"}},
		{name: "numeric alias", text: "lot 50 done", want: []string{"Lot 50"}},
		{name: "table order", text: "zen, hop, west", want: []string{"West Hall", "HOP", "Mary Kay and Zen"}},
		{name: "nothing", text: "good morning", want: nil},
		{name: "empty", text: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tbl.ResolveAll(tt.text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ResolveAll(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestResolveStationStopwords(t *testing.T) {
	tbl := NewTable(testStations)

	tests := []struct {
		text   string
		want   string
		wantOK bool
	}{
		{text: "I fed the cats", wantOK: false},
		{text: "fed the kitties this morning", wantOK: false},
		{text: "an hour ago at the lot", wantOK: false},
		{text: "the greens are done", want: "The Greens", wantOK: true},
		{text: "gree", want: "The Greens", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := tbl.Resolve(tt.text)
			if diff := cmp.Diff([]any{tt.want, tt.wantOK}, []any{got, ok}); diff != "" {
				t.Errorf("Resolve(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestNewTableAliases(t *testing.T) {
	tbl := NewTable([]Entry{CatEntry("Ford F-150", []string{"Big Truck"})})

	want := []string{"ford f-150", "ford f 150", "fordf150", "big truck", "bigtruck", "big", "truck"}
	if diff := cmp.Diff(want, tbl.Aliases("Ford F-150")); diff != "" {
		t.Errorf("Aliases mismatch (-want +got):\n%s", diff)
	}
	if got := tbl.Aliases("Nobody"); got != nil {
		t.Errorf("Aliases(Nobody) = %v, want nil", got)
	}
}

func TestContainsWord(t *testing.T) {
	tests := []struct {
		haystack string
		needle   string
		want     bool
	}{
		{"show me mike", "mike", true},
		{"mikey", "mike", false},
		{"mike, mikey", "mikey", true},
		{"(mike)", "mike", true},
		{"smike mike", "mike", true},
		{"abc", "", false},
	}
	for _, tt := range tests {
		if got := ContainsWord(tt.haystack, tt.needle); got != tt.want {
			t.Errorf("ContainsWord(%q, %q) = %v, want %v", tt.haystack, tt.needle, got, tt.want)
		}
	}
}

func TestVocabulary(t *testing.T) {
	v := &Vocabulary{Cats: NewTable(testCats), Stations: NewTable(testStations)}

	if got, ok := v.Resolve("mike fed", Station); !ok || got != "Microwave" {
		t.Errorf("station Resolve = %q, %v", got, ok)
	}
	if got, ok := v.Resolve("show me eggs", Cat); !ok || got != "Eggs" {
		t.Errorf("cat Resolve = %q, %v", got, ok)
	}
	if v.Table(Station) != v.Stations || v.Table(Cat) != v.Cats {
		t.Error("Table returned the wrong table")
	}
}
