package alias

// Vocabulary holds one alias table per kind.
type Vocabulary struct {
	Cats     *Table
	Stations *Table
}

// Table returns the table for kind.
func (v *Vocabulary) Table(kind Kind) *Table {
	if kind == Cat {
		return v.Cats
	}
	return v.Stations
}

// Resolve resolves text against the table for kind.
func (v *Vocabulary) Resolve(text string, kind Kind) (string, bool) {
	return v.Table(kind).Resolve(text)
}

// CatEntry builds an entry for a cat whose nicknames are matched whole
// as well as word by word ("tito" from "Tito FluffyButt").
func CatEntry(name string, nicknames []string) Entry {
	e := Entry{Canonical: name}
	for _, nick := range nicknames {
		e.Aliases = append(e.Aliases, nick)
		e.Aliases = append(e.Aliases, Words(nick)...)
	}
	return e
}
