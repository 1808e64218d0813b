// Package identity holds the immutable catalogue of model entities keyed by
// the original identifier assigned when the model was loaded.
package identity

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an entity and determines whether it can be picked, named
// and grouped.
type Kind int

const (
	KindMuscle Kind = iota // addressable mesh
	KindJoint              // addressable skeletal joint marker
	KindOther              // context mesh (skin); never addressable
)

func (k Kind) String() string {
	switch k {
	case KindMuscle:
		return "muscle"
	case KindJoint:
		return "joint"
	case KindOther:
		return "other"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Addressable reports whether entities of this kind participate in naming,
// grouping and selection.
func (k Kind) Addressable() bool { return k == KindMuscle || k == KindJoint }

// Entity is a catalogue record. Nodes lists scene node identifiers owned by
// the entity (sub-meshes, primitives); the entity ID itself is always an
// implicit alias.
type Entity struct {
	ID    string
	Kind  Kind
	Nodes []string
}

// ErrDuplicateID is returned when two entities share an original identifier.
var ErrDuplicateID = errors.New("identity: duplicate original id")

// Catalogue is the IdentityStore. It is immutable after construction, so
// references to it stay valid across asynchronous boundaries.
type Catalogue struct {
	entities []Entity
	index    map[string]int
	owners   map[string]string
	nameable []string
}

// New builds a catalogue preserving the discovery order of entities.
func New(entities ...Entity) (*Catalogue, error) {
	c := &Catalogue{
		entities: make([]Entity, 0, len(entities)),
		index:    make(map[string]int, len(entities)),
		owners:   make(map[string]string, len(entities)),
	}
	for _, e := range entities {
		if strings.TrimSpace(e.ID) == "" {
			return nil, errors.New("identity: entity id required")
		}
		if _, exists := c.index[e.ID]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateID, e.ID)
		}
		cp := e
		cp.Nodes = append([]string(nil), e.Nodes...)
		c.index[e.ID] = len(c.entities)
		c.entities = append(c.entities, cp)
		c.owners[e.ID] = e.ID
		if e.Kind.Addressable() {
			c.nameable = append(c.nameable, e.ID)
		}
	}
	for _, e := range c.entities {
		for _, node := range e.Nodes {
			if node == "" || node == e.ID {
				continue
			}
			if owner, taken := c.owners[node]; taken && owner != e.ID {
				return nil, fmt.Errorf("identity: node %q claimed by %q and %q", node, owner, e.ID)
			}
			c.owners[node] = e.ID
		}
	}
	return c, nil
}

// MustNew is New for fixtures; it panics on error.
func MustNew(entities ...Entity) *Catalogue {
	c, err := New(entities...)
	if err != nil {
		panic(err)
	}
	return c
}

// Len returns the number of entities of every kind.
func (c *Catalogue) Len() int { return len(c.entities) }

// Lookup returns the entity registered under id.
func (c *Catalogue) Lookup(id string) (Entity, bool) {
	i, ok := c.index[id]
	if !ok {
		return Entity{}, false
	}
	e := c.entities[i]
	e.Nodes = append([]string(nil), e.Nodes...)
	return e, true
}

// Known reports whether id names an addressable entity. Only known ids may
// carry a display name.
func (c *Catalogue) Known(id string) bool {
	i, ok := c.index[id]
	return ok && c.entities[i].Kind.Addressable()
}

// KindOf returns the kind of id, or KindOther for unknown ids.
func (c *Catalogue) KindOf(id string) Kind {
	if i, ok := c.index[id]; ok {
		return c.entities[i].Kind
	}
	return KindOther
}

// OwnerOf maps a scene node identifier to the entity that registered it.
func (c *Catalogue) OwnerOf(node string) (string, bool) {
	id, ok := c.owners[node]
	return id, ok
}

// Addressable returns the ids of muscles and joints in discovery order.
func (c *Catalogue) Addressable() []string {
	return append([]string(nil), c.nameable...)
}

// IDs returns the ids of the given kind in discovery order.
func (c *Catalogue) IDs(kind Kind) []string {
	var out []string
	for _, e := range c.entities {
		if e.Kind == kind {
			out = append(out, e.ID)
		}
	}
	return out
}

// Entities returns a copy of every entity in discovery order.
func (c *Catalogue) Entities() []Entity {
	out := make([]Entity, len(c.entities))
	for i, e := range c.entities {
		e.Nodes = append([]string(nil), e.Nodes...)
		out[i] = e
	}
	return out
}
