// Package manifest loads anatomical models from JSON sidecar files:
// per-asset bounding box and sub-part color metadata exported alongside
// the glb meshes. The server only needs transforms and colors; the mesh
// itself streams to the browser untouched.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ayursetu/setu/internal/core/domain"
	"github.com/ayursetu/setu/internal/core/port"
)

type Loader struct {
	dir string
}

func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

type manifestFile struct {
	BoundingBox domain.Box3 `json:"boundingBox"`
	Parts       []struct {
		Name  string `json:"name"`
		Color *uint32 `json:"color"` // nil for parts without a color attribute
	} `json:"parts"`
}

func (l *Loader) Load(ctx context.Context, ref string) (port.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(filepath.Join(l.dir, ref+".json"))
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", ref, err)
	}
	var mf manifestFile
	if err := json.Unmarshal(raw, &mf); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", ref, err)
	}

	m := &Model{ref: ref, box: mf.BoundingBox, scale: 1}
	for _, p := range mf.Parts {
		part := &Part{name: p.Name}
		if p.Color != nil {
			part.hasColor = true
			part.color = domain.Color(*p.Color)
		}
		m.parts = append(m.parts, part)
	}
	return m, nil
}

// Model is a loaded asset handle with a mutable transform.
type Model struct {
	ref   string
	box   domain.Box3
	parts []*Part

	mu    sync.Mutex
	scale float64
	pos   domain.Vec3
}

func (m *Model) Ref() string { return m.ref }

func (m *Model) BoundingBox() domain.Box3 { return m.box }

func (m *Model) SetScale(f float64) {
	m.mu.Lock()
	m.scale = f
	m.mu.Unlock()
}

func (m *Model) SetPosition(p domain.Vec3) {
	m.mu.Lock()
	m.pos = p
	m.mu.Unlock()
}

func (m *Model) Scale() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scale
}

func (m *Model) Position() domain.Vec3 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

func (m *Model) Traverse(fn func(part port.ModelPart)) {
	for _, p := range m.parts {
		fn(p)
	}
}

type Part struct {
	name     string
	hasColor bool

	mu    sync.Mutex
	color domain.Color
}

func (p *Part) Name() string { return p.name }

func (p *Part) HasColor() bool { return p.hasColor }

func (p *Part) Color() domain.Color {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.color
}

func (p *Part) SetColor(c domain.Color) {
	if !p.hasColor {
		return
	}
	p.mu.Lock()
	p.color = c
	p.mu.Unlock()
}
