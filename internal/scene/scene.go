// Package scene is a headless renderer: it keeps per-entity material and
// visibility state, answers bounding volume queries and casts pick rays
// against world bounds. Terminal and CLI front-ends drive it in place of a
// GPU renderer.
package scene

import (
	"errors"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"myoview/internal/identity"
	"myoview/internal/model"
	"myoview/internal/picking"
	"myoview/internal/selection"
)

// ErrNothingToFit is returned by FitView when no bounds are known for the ids.
var ErrNothingToFit = errors.New("no geometry to fit")

const (
	defaultFOV        = 45.0
	fitDistanceFactor = 2.5
)

// Material is the visual state of one entity.
type Material struct {
	Color       selection.Color
	Opacity     float64
	Emissive    float64
	RenderOrder int
	DepthWrite  bool
	Visible     bool
}

// Camera is a perspective camera looking at Target.
type Camera struct {
	Position mgl64.Vec3
	Target   mgl64.Vec3
	FOV      float64
}

// Viewport is the pixel size pointer coordinates refer to.
type Viewport struct {
	Width, Height int
}

// Options configures a Scene.
type Options struct {
	Palette      selection.Palette
	MarkerRadius float64
	Viewport     Viewport
}

// Scene is the headless renderer.
type Scene struct {
	catalogue *identity.Catalogue
	parts     []model.Part
	joints    []model.Joint
	bounds    map[string]model.Box
	materials map[string]*Material
	overlay   bool
	radius    float64
	camera    Camera
	viewport  Viewport
	applied   int
}

// New builds a scene for m with every entity in its initial look.
func New(m *model.Model, opts Options) *Scene {
	if opts.MarkerRadius <= 0 {
		opts.MarkerRadius = 0.02
	}
	if opts.Viewport.Width <= 0 || opts.Viewport.Height <= 0 {
		opts.Viewport = Viewport{Width: 1280, Height: 720}
	}
	s := &Scene{
		catalogue: m.Catalogue,
		parts:     m.Parts,
		joints:    m.Joints,
		bounds:    make(map[string]model.Box),
		materials: make(map[string]*Material),
		radius:    opts.MarkerRadius,
		viewport:  opts.Viewport,
		camera:    Camera{Position: mgl64.Vec3{0, 1.5, 3}, FOV: defaultFOV},
	}
	for _, p := range m.Parts {
		b, ok := s.bounds[p.Owner]
		if !ok {
			b = model.EmptyBox()
		}
		s.bounds[p.Owner] = b.Union(p.Bounds)
	}
	r := mgl64.Vec3{s.radius, s.radius, s.radius}
	for _, j := range m.Joints {
		s.bounds[j.ID] = model.Box{Min: j.Position.Sub(r), Max: j.Position.Add(r)}
	}
	p := opts.Palette
	for _, e := range m.Catalogue.Entities() {
		mat := &Material{Color: p.DefaultColor, Opacity: p.Opacity, DepthWrite: true, Visible: true}
		if e.Kind == identity.KindOther {
			mat = &Material{Color: p.OtherColor, Opacity: p.OtherOpacity, Visible: true}
		}
		s.materials[e.ID] = mat
	}
	if all := m.Bounds(); !all.Empty() {
		s.frame(all)
	}
	return s
}

// Apply executes visual commands. Unknown targets are ignored.
func (s *Scene) Apply(cmds []selection.Command) {
	for _, c := range cmds {
		mat, ok := s.materials[c.Target]
		if !ok {
			continue
		}
		switch c.Op {
		case selection.OpColor:
			mat.Color = c.Color
		case selection.OpOpacity:
			mat.Opacity = c.Value
		case selection.OpEmissiveIntensity:
			mat.Emissive = c.Value
		case selection.OpRenderOrder:
			mat.RenderOrder = c.Order
		case selection.OpVisible:
			mat.Visible = c.Flag
		case selection.OpDepthWrite:
			mat.DepthWrite = c.Flag
		}
		s.applied++
	}
}

// Applied counts commands executed so far.
func (s *Scene) Applied() int { return s.applied }

// Visible reports the visibility flag of id. Unknown ids are invisible.
func (s *Scene) Visible(id string) bool {
	mat, ok := s.materials[id]
	return ok && mat.Visible
}

// Material returns a copy of the material state of id.
func (s *Scene) Material(id string) (Material, bool) {
	mat, ok := s.materials[id]
	if !ok {
		return Material{}, false
	}
	return *mat, true
}

// SetOverlay toggles the skeletal overlay.
func (s *Scene) SetOverlay(on bool) { s.overlay = on }

// Overlay reports whether joint markers are drawn.
func (s *Scene) Overlay() bool { return s.overlay }

// Bounds returns the union of the world bounds of ids.
func (s *Scene) Bounds(ids []string) (model.Box, bool) {
	out := model.EmptyBox()
	for _, id := range ids {
		if b, ok := s.bounds[id]; ok {
			out = out.Union(b)
		}
	}
	return out, !out.Empty()
}

// FitView points the camera at the bounds of ids from a distance of 2.5
// times their largest extent.
func (s *Scene) FitView(ids []string) error {
	b, ok := s.Bounds(ids)
	if !ok {
		return ErrNothingToFit
	}
	s.frame(b)
	return nil
}

func (s *Scene) frame(b model.Box) {
	center := b.Center()
	dist := b.MaxDim() * fitDistanceFactor
	if dist <= 0 {
		dist = s.radius * 10
	}
	s.camera.Target = center
	s.camera.Position = center.Add(mgl64.Vec3{0, 0, dist})
}

// Camera returns the current camera.
func (s *Scene) Camera() Camera { return s.camera }

// SetViewport changes the pixel size used to unproject pointers.
func (s *Scene) SetViewport(v Viewport) {
	if v.Width > 0 && v.Height > 0 {
		s.viewport = v
	}
}

// Ray returns the world ray under a pointer given in pixels from the top
// left corner of the viewport.
func (s *Scene) Ray(p picking.Point) (origin, dir mgl64.Vec3, err error) {
	w, h := s.viewport.Width, s.viewport.Height
	view := mgl64.LookAtV(s.camera.Position, s.camera.Target, mgl64.Vec3{0, 1, 0})
	proj := mgl64.Perspective(mgl64.DegToRad(s.camera.FOV), float64(w)/float64(h), 0.01, 1000)
	winY := float64(h) - p.Y
	near, err := mgl64.UnProject(mgl64.Vec3{p.X, winY, 0}, view, proj, 0, 0, w, h)
	if err != nil {
		return origin, dir, err
	}
	far, err := mgl64.UnProject(mgl64.Vec3{p.X, winY, 1}, view, proj, 0, 0, w, h)
	if err != nil {
		return origin, dir, err
	}
	return near, far.Sub(near).Normalize(), nil
}

// Cast intersects a ray with every part and, when the overlay is on, every
// joint marker. Candidates are sorted nearest first.
func (s *Scene) Cast(origin, dir mgl64.Vec3) []picking.Candidate {
	var out []picking.Candidate
	for _, p := range s.parts {
		if p.Bounds.Empty() {
			continue
		}
		if d, ok := p.Bounds.Intersect(origin, dir); ok {
			out = append(out, picking.Candidate{Node: p.Node, Distance: d})
		}
	}
	if s.overlay {
		for _, j := range s.joints {
			if d, ok := sphereHit(origin, dir, j.Position, s.radius); ok {
				out = append(out, picking.Candidate{Node: j.ID, Distance: d})
			}
		}
	}
	sort.SliceStable(out, func(i, k int) bool { return out[i].Distance < out[k].Distance })
	return out
}

// Query builds a picking query for a pointer position.
func (s *Scene) Query(p picking.Point) (picking.Query, error) {
	origin, dir, err := s.Ray(p)
	if err != nil {
		return picking.Query{}, err
	}
	return picking.Query{Pointer: p, Candidates: s.Cast(origin, dir), OverlayActive: s.overlay}, nil
}

func sphereHit(origin, dir, center mgl64.Vec3, r float64) (float64, bool) {
	oc := origin.Sub(center)
	b := oc.Dot(dir)
	c := oc.Dot(oc) - r*r
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t := -b - sq
	if t < 0 {
		t = -b + sq
	}
	if t < 0 {
		return 0, false
	}
	return t, true
}
