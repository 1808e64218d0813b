// Package model discovers the entity catalogue of a glTF/GLB anatomy model:
// muscle and context meshes with their world bounds, and skeleton joints.
package model

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"

	"myoview/internal/identity"
)

// DefaultSkinKeyword marks context (skin) meshes by name.
const DefaultSkinKeyword = "integumentary_system"

// Options controls classification.
type Options struct {
	// SkinKeyword is matched case-insensitively against mesh node names.
	SkinKeyword string
	// Joints includes skin joints as addressable entities.
	Joints bool
}

// Part is one pickable primitive of an entity.
type Part struct {
	Node   string
	Owner  string
	Bounds Box
}

// Joint is a skeleton joint marker.
type Joint struct {
	ID       string
	Position mgl64.Vec3
}

// Model is the discovered content of a document.
type Model struct {
	Catalogue *identity.Catalogue
	Parts     []Part
	Joints    []Joint
}

// Bounds returns the union of every part's bounds.
func (m *Model) Bounds() Box {
	b := EmptyBox()
	for _, p := range m.Parts {
		b = b.Union(p.Bounds)
	}
	for _, j := range m.Joints {
		b = b.Extend(j.Position)
	}
	return b
}

// Load opens a .gltf or .glb file and discovers its entities.
func Load(path string, opts Options) (*Model, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", path, err)
	}
	return FromDocument(doc, opts)
}

type walker struct {
	doc      *gltf.Document
	opts     Options
	keyword  string
	names    map[string]int
	joints   map[uint32]bool
	entities []identity.Entity
	parts    []Part
	markers  []Joint
}

// FromDocument walks the default scene depth-first, in the order a scene
// graph traversal would visit nodes, and classifies what it finds.
func FromDocument(doc *gltf.Document, opts Options) (*Model, error) {
	keyword := opts.SkinKeyword
	if keyword == "" {
		keyword = DefaultSkinKeyword
	}
	w := &walker{
		doc:     doc,
		opts:    opts,
		keyword: strings.ToLower(keyword),
		names:   make(map[string]int),
		joints:  make(map[uint32]bool),
	}
	if opts.Joints {
		for _, skin := range doc.Skins {
			for _, j := range skin.Joints {
				w.joints[j] = true
			}
		}
	}
	for _, root := range rootNodes(doc) {
		if err := w.visit(root, mgl64.Ident4(), 0); err != nil {
			return nil, err
		}
	}
	cat, err := identity.New(w.entities...)
	if err != nil {
		return nil, err
	}
	return &Model{Catalogue: cat, Parts: w.parts, Joints: w.markers}, nil
}

func rootNodes(doc *gltf.Document) []uint32 {
	if len(doc.Scenes) > 0 {
		idx := uint32(0)
		if doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes) {
			idx = *doc.Scene
		}
		return doc.Scenes[idx].Nodes
	}
	child := make(map[uint32]bool)
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			child[c] = true
		}
	}
	var roots []uint32
	for i := range doc.Nodes {
		if !child[uint32(i)] {
			roots = append(roots, uint32(i))
		}
	}
	return roots
}

const maxDepth = 256

func (w *walker) visit(idx uint32, parent mgl64.Mat4, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("node hierarchy deeper than %d", maxDepth)
	}
	if int(idx) >= len(w.doc.Nodes) {
		return fmt.Errorf("node index %d out of range", idx)
	}
	n := w.doc.Nodes[idx]
	world := parent.Mul4(localMatrix(n))
	switch {
	case n.Mesh != nil:
		if err := w.addMesh(idx, n, world); err != nil {
			return err
		}
	case w.joints[idx]:
		id := w.unique(n.Name, "joint", idx)
		w.entities = append(w.entities, identity.Entity{ID: id, Kind: identity.KindJoint})
		w.markers = append(w.markers, Joint{ID: id, Position: mgl64.TransformCoordinate(mgl64.Vec3{}, world)})
	}
	for _, c := range n.Children {
		if err := w.visit(c, world, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) addMesh(idx uint32, n *gltf.Node, world mgl64.Mat4) error {
	if int(*n.Mesh) >= len(w.doc.Meshes) {
		return fmt.Errorf("node %d references missing mesh %d", idx, *n.Mesh)
	}
	mesh := w.doc.Meshes[*n.Mesh]
	name := n.Name
	if name == "" {
		name = mesh.Name
	}
	id := w.unique(name, "mesh", idx)
	kind := identity.KindMuscle
	if strings.Contains(strings.ToLower(id), w.keyword) {
		kind = identity.KindOther
	}
	ent := identity.Entity{ID: id, Kind: kind}
	for i, prim := range mesh.Primitives {
		node := id
		if len(mesh.Primitives) > 1 {
			node = fmt.Sprintf("%s/primitive_%d", id, i)
			ent.Nodes = append(ent.Nodes, node)
		}
		w.parts = append(w.parts, Part{Node: node, Owner: id, Bounds: w.primitiveBounds(prim).Transform(world)})
	}
	w.entities = append(w.entities, ent)
	return nil
}

func (w *walker) primitiveBounds(p *gltf.Primitive) Box {
	acc, ok := p.Attributes[gltf.POSITION]
	if !ok || int(acc) >= len(w.doc.Accessors) {
		return EmptyBox()
	}
	a := w.doc.Accessors[acc]
	if len(a.Min) < 3 || len(a.Max) < 3 {
		return EmptyBox()
	}
	return Box{
		Min: mgl64.Vec3{float64(a.Min[0]), float64(a.Min[1]), float64(a.Min[2])},
		Max: mgl64.Vec3{float64(a.Max[0]), float64(a.Max[1]), float64(a.Max[2])},
	}
}

// unique returns name, or a fallback, suffixed so every id is distinct. Every
// returned id is reserved, so a later literal "x_1" cannot collide with a
// generated one.
func (w *walker) unique(name, fallback string, idx uint32) string {
	if name == "" {
		name = fmt.Sprintf("%s_%d", fallback, idx)
	}
	if _, taken := w.names[name]; !taken {
		w.names[name] = 1
		return name
	}
	for n := w.names[name]; ; n++ {
		cand := fmt.Sprintf("%s_%d", name, n)
		if _, taken := w.names[cand]; !taken {
			w.names[name] = n + 1
			w.names[cand] = 1
			return cand
		}
	}
}

func localMatrix(n *gltf.Node) mgl64.Mat4 {
	if n.Matrix != gltf.DefaultMatrix && n.Matrix != [16]float32{} {
		var m mgl64.Mat4
		for i, v := range n.Matrix {
			m[i] = float64(v)
		}
		return m
	}
	t := n.TranslationOrDefault()
	r := n.RotationOrDefault()
	s := n.ScaleOrDefault()
	q := mgl64.Quat{W: float64(r[3]), V: mgl64.Vec3{float64(r[0]), float64(r[1]), float64(r[2])}}
	return mgl64.Translate3D(float64(t[0]), float64(t[1]), float64(t[2])).
		Mul4(q.Mat4()).
		Mul4(mgl64.Scale3D(float64(s[0]), float64(s[1]), float64(s[2])))
}
