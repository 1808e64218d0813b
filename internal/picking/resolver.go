// Package picking turns renderer hit candidates into at most one addressable
// entity.
package picking

import "myoview/internal/identity"

// Point is a pointer position in viewport pixels.
type Point struct {
	X, Y float64
}

// Candidate is one ray intersection reported by the renderer. Node is the
// scene node that was hit; it may be an entity id or a registered alias.
type Candidate struct {
	Node     string
	Distance float64
}

// Query carries everything the renderer knows about a pointer event.
// Candidates are ordered nearest first.
type Query struct {
	Pointer       Point
	Candidates    []Candidate
	OverlayActive bool
}

// Catalogue is the identity lookup used for capability tags.
type Catalogue interface {
	OwnerOf(node string) (string, bool)
	KindOf(id string) identity.Kind
}

// Visibility reports the renderer's current visibility of an entity.
type Visibility interface {
	Visible(id string) bool
}

// Hit is a resolved pick.
type Hit struct {
	ID       string
	Kind     identity.Kind
	Distance float64
}

// Resolver applies the pick priority policy.
type Resolver struct {
	catalogue Catalogue
	vis       Visibility
}

// NewResolver constructs a resolver.
func NewResolver(c Catalogue, vis Visibility) *Resolver {
	return &Resolver{catalogue: c, vis: vis}
}

// Resolve returns the winning entity. With the skeletal overlay active any
// visible joint wins regardless of distance, because joint markers are drawn
// on top of muscle surfaces.
func (r *Resolver) Resolve(q Query) (Hit, bool) {
	if q.OverlayActive {
		if hit, ok := r.first(q.Candidates, identity.KindJoint); ok {
			return hit, true
		}
	}
	return r.first(q.Candidates, identity.KindMuscle)
}

func (r *Resolver) first(candidates []Candidate, kind identity.Kind) (Hit, bool) {
	for _, c := range candidates {
		id, ok := r.catalogue.OwnerOf(c.Node)
		if !ok || r.catalogue.KindOf(id) != kind {
			continue
		}
		if r.vis != nil && !r.vis.Visible(id) {
			continue
		}
		return Hit{ID: id, Kind: kind, Distance: c.Distance}, true
	}
	return Hit{}, false
}
