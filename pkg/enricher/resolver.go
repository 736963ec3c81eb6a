package enricher

import (
	"context"

	"github.com/veridian/vanguard/pkg/types"
)

// EntityResolver fetches directory metadata for an entity. Implementations
// typically front an identity provider, CMDB or HR system; a nil result
// with a nil error means the entity has no metadata (a legitimate answer,
// not a failure).
type EntityResolver interface {
	Resolve(ctx context.Context, entityID string, entityType types.EntityType) (*types.EntityMetadata, error)
}

// StubResolver is the default resolver: every entity resolves to absent.
type StubResolver struct{}

func (StubResolver) Resolve(context.Context, string, types.EntityType) (*types.EntityMetadata, error) {
	return nil, nil
}
