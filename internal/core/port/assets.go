package port

import (
	"context"

	"github.com/ayursetu/setu/internal/core/domain"
)

// ModelPart is one renderable sub-part of a loaded model. Parts without
// a color attribute report HasColor false and ignore SetColor.
type ModelPart interface {
	Name() string
	HasColor() bool
	Color() domain.Color
	SetColor(c domain.Color)
}

// Model is a loaded 3D asset handle: bounding-box query, transform
// mutation, and traversal over sub-parts.
type Model interface {
	Ref() string
	BoundingBox() domain.Box3
	SetScale(f float64)
	SetPosition(p domain.Vec3)
	Scale() float64
	Position() domain.Vec3
	Traverse(fn func(part ModelPart))
}

// AssetLoader is the 3D asset collaborator. Load blocks until the asset
// is available or fails; callers run loads concurrently.
type AssetLoader interface {
	Load(ctx context.Context, ref string) (Model, error)
}
