package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayursetu/setu/internal/core/domain"
	"github.com/ayursetu/setu/internal/core/port"
)

// Placement fixes where one asset belongs in the anatomical layout and
// how much of the normalized unit size it gets.
type Placement struct {
	Ref      string      `json:"ref"`
	Target   domain.Vec3 `json:"target"`
	ScaleMul float64     `json:"scaleMultiplier"`
}

// AnatomyLayout is the default arrangement: brain above throat above
// chest above abdomen, kidneys flanking.
var AnatomyLayout = []Placement{
	{Ref: "brain", Target: domain.Vec3{X: 0, Y: 5.0, Z: 0}, ScaleMul: 1.2},
	{Ref: "larynx", Target: domain.Vec3{X: 0, Y: 3.0, Z: 0}, ScaleMul: 0.8},
	{Ref: "heart", Target: domain.Vec3{X: 0, Y: 1.0, Z: 0}, ScaleMul: 1.0},
	{Ref: "pancreas", Target: domain.Vec3{X: 0, Y: -0.5, Z: 0}, ScaleMul: 0.9},
	{Ref: "kidney-left", Target: domain.Vec3{X: -1.5, Y: -1.5, Z: 0}, ScaleMul: 0.8},
	{Ref: "kidney-right", Target: domain.Vec3{X: 1.5, Y: -1.5, Z: 0}, ScaleMul: 0.8},
	{Ref: "ureter-right", Target: domain.Vec3{X: 1.5, Y: -3.0, Z: 0}, ScaleMul: 0.6},
	{Ref: "intestine-large", Target: domain.Vec3{X: 0, Y: -3.5, Z: 0}, ScaleMul: 1.3},
	{Ref: "intestine-small", Target: domain.Vec3{X: 0, Y: -3.5, Z: 0}, ScaleMul: 1.1},
}

// TintState selects the physiological visualization applied to loaded
// models.
type TintState string

const (
	TintPitta TintState = "pitta"
	TintReset TintState = "reset"
)

// ViewportOp is a pending camera/viewport change applied by the frame
// loop on the next tick.
type ViewportOp func()

// PlacedModel reports the transform computed for one loaded model.
type PlacedModel struct {
	Ref      string      `json:"ref"`
	Scale    float64     `json:"scale"`
	Position domain.Vec3 `json:"position"`
}

// Composer loads a fixed set of anatomical assets, normalizes each to a
// canonical scale and position from its bounding box, and keeps the
// scene alive through a frame loop until torn down. A failed asset is
// logged and simply absent; other loads are unaffected.
type Composer struct {
	loader    port.AssetLoader
	log       zerolog.Logger
	frameRate time.Duration

	// OnLoadFailure, when set before Compose, is invoked once per asset
	// that fails to load.
	OnLoadFailure func()

	mu        sync.Mutex
	models    []port.Model
	snapshots map[string]map[string]domain.Color // model ref -> part name -> original color
	loading   sync.WaitGroup

	ops  chan ViewportOp
	quit chan struct{}
	once sync.Once
}

func NewComposer(loader port.AssetLoader, log zerolog.Logger) *Composer {
	return &Composer{
		loader:    loader,
		log:       log,
		frameRate: time.Second / 60,
		snapshots: make(map[string]map[string]domain.Color),
		ops:       make(chan ViewportOp, 16),
		quit:      make(chan struct{}),
	}
}

// Compose starts one independent load per placement and returns
// immediately. Each model is normalized and placed as it arrives.
func (c *Composer) Compose(ctx context.Context, placements []Placement) {
	for _, p := range placements {
		c.loading.Add(1)
		go func(p Placement) {
			defer c.loading.Done()
			model, err := c.loader.Load(ctx, p.Ref)
			if err != nil {
				c.log.Error().Err(err).Str("asset", p.Ref).Msg("Asset load failed")
				if c.OnLoadFailure != nil {
					c.OnLoadFailure()
				}
				return
			}
			c.place(model, p)
		}(p)
	}
}

// WaitLoaded blocks until every load started by Compose has finished,
// successfully or not.
func (c *Composer) WaitLoaded() {
	c.loading.Wait()
}

// place normalizes the model so all assets share a comparable visual
// size, then centers its bounding box on the origin and shifts it to
// the layout target.
func (c *Composer) place(model port.Model, p Placement) {
	box := model.BoundingBox()
	center := box.Center()
	maxDim := box.MaxDimension()
	if maxDim <= 0 {
		c.log.Error().Str("asset", p.Ref).Msg("Degenerate bounding box, skipping")
		return
	}

	scale := (2 / maxDim) * p.ScaleMul
	model.SetScale(scale)
	model.SetPosition(center.Scale(-scale).Add(p.Target))

	c.mu.Lock()
	c.models = append(c.models, model)
	c.mu.Unlock()
	c.log.Info().Str("asset", p.Ref).Float64("scale", scale).Msg("Model placed")
}

// Models returns the loaded models in arrival order.
func (c *Composer) Models() []port.Model {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]port.Model, len(c.models))
	copy(out, c.models)
	return out
}

// Layout reports the computed transform of every placed model.
func (c *Composer) Layout() []PlacedModel {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]PlacedModel, 0, len(c.models))
	for _, m := range c.models {
		out = append(out, PlacedModel{Ref: m.Ref(), Scale: m.Scale(), Position: m.Position()})
	}
	return out
}

// ApplyTint visits every colorable sub-part of every loaded model,
// snapshots its original color on first visit, then applies the tint or
// restores the snapshot. Idempotent per state; the snapshot is taken at
// most once per part for the model's lifetime.
func (c *Composer) ApplyTint(state TintState) error {
	switch state {
	case TintPitta, TintReset:
	default:
		return fmt.Errorf("unknown tint state %q", state)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.models {
		snaps := c.snapshots[m.Ref()]
		if snaps == nil {
			snaps = make(map[string]domain.Color)
			c.snapshots[m.Ref()] = snaps
		}
		m.Traverse(func(part port.ModelPart) {
			if !part.HasColor() {
				return
			}
			if _, ok := snaps[part.Name()]; !ok {
				snaps[part.Name()] = part.Color()
			}
			switch state {
			case TintPitta:
				part.SetColor(domain.TintPitta)
			case TintReset:
				part.SetColor(snaps[part.Name()])
			}
		})
	}
	c.log.Info().Str("state", string(state)).Msg("Physiological tint applied")
	return nil
}

// PushViewportOp queues a camera/viewport change for the next frame.
// Drops the op if the viewer is being torn down.
func (c *Composer) PushViewportOp(op ViewportOp) {
	select {
	case c.ops <- op:
	case <-c.quit:
	}
}

// Run drives the frame loop: once per display refresh it applies any
// pending viewport changes, indefinitely until Stop.
func (c *Composer) Run() {
	ticker := time.NewTicker(c.frameRate)
	defer ticker.Stop()
	for {
		select {
		case <-c.quit:
			return
		case <-ticker.C:
			c.drainOps()
		}
	}
}

func (c *Composer) drainOps() {
	for {
		select {
		case op := <-c.ops:
			op()
		default:
			return
		}
	}
}

// Stop tears the viewer down.
func (c *Composer) Stop() {
	c.once.Do(func() { close(c.quit) })
}
