package viewer

import (
	"fmt"
	"strings"
)

// Row is one sidebar entry.
type Row struct {
	Name    string
	Label   string
	Members []string
	Group   bool
	Custom  bool
	Visible bool
	Active  bool
	// Marked is true when every member is in the multi-selection.
	Marked bool
}

// Rows lists every group ordered by the configured locale.
func (s *Service) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows("")
}

// Filter lists rows whose display name or any member's original id contains
// query, ignoring case. An empty query lists everything.
func (s *Service) Filter(query string) []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows(strings.ToLower(strings.TrimSpace(query)))
}

func (s *Service) rows(query string) []Row {
	s.dir()
	active, _ := s.machine.Active()
	groups := s.index.Sorted(s.collator)
	out := make([]Row, 0, len(groups))
	for _, g := range groups {
		if query != "" && !matches(g.Name, g.Members, query) {
			continue
		}
		r := Row{
			Name:    g.Name,
			Members: g.Members,
			Group:   g.IsGroup(),
			Custom:  g.Custom,
			Visible: s.allVisible(g.Members),
			Active:  g.Name == active,
			Marked:  true,
		}
		for _, id := range g.Members {
			if !s.machine.IsMultiSelected(id) {
				r.Marked = false
				break
			}
		}
		switch {
		case r.Group:
			r.Label = fmt.Sprintf("[G] %s (%d meshes)", g.Name, len(g.Members))
		case g.Custom:
			r.Label = fmt.Sprintf("%s (%s)", g.Name, g.Members[0])
		default:
			r.Label = g.Name
		}
		out = append(out, r)
	}
	return out
}

func matches(name string, members []string, query string) bool {
	if strings.Contains(strings.ToLower(name), query) {
		return true
	}
	for _, id := range members {
		if strings.Contains(strings.ToLower(id), query) {
			return true
		}
	}
	return false
}
