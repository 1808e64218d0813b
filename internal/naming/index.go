package naming

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Group is the set of entities that resolve to one display name.
type Group struct {
	Name    string
	Members []string
	// Custom is true when at least one member carries a mapping entry.
	Custom bool
}

// IsGroup reports whether more than one entity shares the name.
func (g Group) IsGroup() bool { return len(g.Members) > 1 }

// Index is the GroupIndex: displayName -> members in catalogue discovery
// order. It is rebuilt wholesale; a single rename can move entities between
// arbitrary groups.
type Index struct {
	order   []string
	members map[string][]string
	groupOf map[string]string
	custom  map[string]bool
	version uint64
}

// Rebuild recomputes the index from the catalogue and the store.
func Rebuild(catalogue Catalogue, store *Store) *Index {
	ids := catalogue.Addressable()
	ix := &Index{
		members: make(map[string][]string),
		groupOf: make(map[string]string, len(ids)),
		custom:  make(map[string]bool),
		version: store.Version(),
	}
	for _, id := range ids {
		name := store.Get(id)
		if _, seen := ix.members[name]; !seen {
			ix.order = append(ix.order, name)
		}
		ix.members[name] = append(ix.members[name], id)
		ix.groupOf[id] = name
		if _, ok := store.Custom(id); ok {
			ix.custom[name] = true
		}
	}
	return ix
}

// Stale reports whether the store mutated since this index was built.
func (ix *Index) Stale(store *Store) bool { return ix.version != store.Version() }

// Len returns the number of groups.
func (ix *Index) Len() int { return len(ix.order) }

// Members returns the member ids of the named group, or nil.
func (ix *Index) Members(name string) []string {
	return append([]string(nil), ix.members[name]...)
}

// Has reports whether any entity resolves to name.
func (ix *Index) Has(name string) bool {
	_, ok := ix.members[name]
	return ok
}

// GroupOf returns the display name id resolves to.
func (ix *Index) GroupOf(id string) (string, bool) {
	name, ok := ix.groupOf[id]
	return name, ok
}

// Group returns the named group.
func (ix *Index) Group(name string) (Group, bool) {
	members, ok := ix.members[name]
	if !ok {
		return Group{}, false
	}
	return Group{Name: name, Members: append([]string(nil), members...), Custom: ix.custom[name]}, true
}

// Groups returns every group in order of first appearance.
func (ix *Index) Groups() []Group {
	out := make([]Group, 0, len(ix.order))
	for _, name := range ix.order {
		g, _ := ix.Group(name)
		out = append(out, g)
	}
	return out
}

// Sorted returns every group ordered for display by a locale-aware compare
// of the display name. A nil collator uses the root locale.
func (ix *Index) Sorted(col *collate.Collator) []Group {
	if col == nil {
		col = collate.New(language.Und)
	}
	out := ix.Groups()
	sort.SliceStable(out, func(i, j int) bool {
		return col.CompareString(out[i].Name, out[j].Name) < 0
	})
	return out
}
