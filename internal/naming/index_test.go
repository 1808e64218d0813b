package naming

import (
	"context"
	"testing"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"myoview/internal/identity"
)

func assertPartition(t *testing.T, c *identity.Catalogue, ix *Index) {
	t.Helper()
	seen := make(map[string]string)
	for _, g := range ix.Groups() {
		if len(g.Members) == 0 {
			t.Fatalf("empty group %q left in index", g.Name)
		}
		for _, id := range g.Members {
			if prev, dup := seen[id]; dup {
				t.Fatalf("%s in both %q and %q", id, prev, g.Name)
			}
			seen[id] = g.Name
		}
	}
	for _, id := range c.Addressable() {
		if _, ok := seen[id]; !ok {
			t.Fatalf("%s missing from every group", id)
		}
	}
	if len(seen) != len(c.Addressable()) {
		t.Fatalf("index covers %d ids, catalogue has %d", len(seen), len(c.Addressable()))
	}
}

func TestIndexSharedNameFormsOneGroup(t *testing.T) {
	ctx := context.Background()
	c := identity.MustNew(
		identity.Entity{ID: "m_bicep_l", Kind: identity.KindMuscle},
		identity.Entity{ID: "m_bicep_r", Kind: identity.KindMuscle},
	)
	s := NewStore(c)
	if err := s.SetMany(ctx, []string{"m_bicep_l", "m_bicep_r"}, "Biceps"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	ix := Rebuild(c, s)
	if ix.Len() != 1 {
		t.Fatalf("expected one group, got %d", ix.Len())
	}
	g, ok := ix.Group("Biceps")
	if !ok || !g.IsGroup() || !g.Custom {
		t.Fatalf("unexpected group %+v", g)
	}
	if g.Members[0] != "m_bicep_l" || g.Members[1] != "m_bicep_r" {
		t.Fatalf("members must follow discovery order: %v", g.Members)
	}
	assertPartition(t, c, ix)
}

func TestIndexRebuildIdempotent(t *testing.T) {
	ctx := context.Background()
	c := bicepsCatalogue(t)
	s := NewStore(c)
	_ = s.Set(ctx, "m_tricep_l", "Arm")
	_ = s.Set(ctx, "m_bicep_r", "Arm")
	a := Rebuild(c, s).Groups()
	b := Rebuild(c, s).Groups()
	if len(a) != len(b) {
		t.Fatalf("group count differs")
	}
	for i := range a {
		if a[i].Name != b[i].Name || len(a[i].Members) != len(b[i].Members) {
			t.Fatalf("group %d differs", i)
		}
		for j := range a[i].Members {
			if a[i].Members[j] != b[i].Members[j] {
				t.Fatalf("member order differs in %q", a[i].Name)
			}
		}
	}
}

func TestIndexRenameThenRenameLeavesNoOrphan(t *testing.T) {
	ctx := context.Background()
	c := bicepsCatalogue(t)
	s := NewStore(c)
	ids := []string{"m_bicep_l", "m_bicep_r"}
	_ = s.SetMany(ctx, ids, "Biceps")
	ix := Rebuild(c, s)
	if !ix.Has("Biceps") {
		t.Fatalf("expected Biceps group")
	}
	_ = s.SetMany(ctx, ix.Members("Biceps"), "Biceps brachii")
	if !ix.Stale(s) {
		t.Fatalf("index should be stale after mutation")
	}
	ix = Rebuild(c, s)
	if ix.Has("Biceps") {
		t.Fatalf("old display name must disappear")
	}
	if got := ix.Members("Biceps brachii"); len(got) != 2 {
		t.Fatalf("renamed group members: %v", got)
	}
	assertPartition(t, c, ix)
}

func TestIndexUngroupedMemberBecomesSingleton(t *testing.T) {
	ctx := context.Background()
	c := bicepsCatalogue(t)
	s := NewStore(c)
	_ = s.SetMany(ctx, []string{"m_bicep_l", "m_bicep_r", "m_tricep_l"}, "Upper arm")
	_ = s.Delete(ctx, "m_tricep_l")
	ix := Rebuild(c, s)
	if got := ix.Members("Upper arm"); len(got) != 2 {
		t.Fatalf("expected 2 remaining members, got %v", got)
	}
	g, ok := ix.Group("m_tricep_l")
	if !ok || g.IsGroup() || g.Custom {
		t.Fatalf("ungrouped member should be its own default singleton: %+v", g)
	}
	if name, _ := ix.GroupOf("m_tricep_l"); name != "m_tricep_l" {
		t.Fatalf("GroupOf = %q", name)
	}
	assertPartition(t, c, ix)
}

func TestIndexSingleRenameIsCustomSingleton(t *testing.T) {
	ctx := context.Background()
	c := bicepsCatalogue(t)
	s := NewStore(c)
	_ = s.Set(ctx, "m_tricep_l", "Triceps")
	ix := Rebuild(c, s)
	renamed, _ := ix.Group("Triceps")
	plain, _ := ix.Group("m_bicep_l")
	if len(renamed.Members) != len(plain.Members) {
		t.Fatalf("singletons share size")
	}
	if !renamed.Custom || plain.Custom {
		t.Fatalf("custom flag must distinguish renamed singletons")
	}
}

func TestIndexSortedLocaleAware(t *testing.T) {
	ctx := context.Background()
	c := identity.MustNew(
		identity.Entity{ID: "a1", Kind: identity.KindMuscle},
		identity.Entity{ID: "a2", Kind: identity.KindMuscle},
		identity.Entity{ID: "a3", Kind: identity.KindMuscle},
	)
	s := NewStore(c)
	_ = s.Set(ctx, "a1", "zygomaticus")
	_ = s.Set(ctx, "a2", "Biceps")
	_ = s.Set(ctx, "a3", "ápex")
	sorted := Rebuild(c, s).Sorted(collate.New(language.English))
	want := []string{"ápex", "Biceps", "zygomaticus"}
	for i, g := range sorted {
		if g.Name != want[i] {
			t.Fatalf("sorted[%d] = %q, want %q (all: %+v)", i, g.Name, want[i], sorted)
		}
	}
	if def := Rebuild(c, s).Sorted(nil); len(def) != 3 {
		t.Fatalf("nil collator should still sort")
	}
}
