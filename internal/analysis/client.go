package analysis

import (
	"context"
	"errors"
)

// Client abstracts the external multimodal analysis service.
type Client interface {
	Analyze(ctx context.Context, input Input) (Record, error)
}

// ErrNotConfigured is returned by the placeholder client.
var ErrNotConfigured = errors.New("analysis client not configured")

// PlaceholderClient is a stub implementation until provider wiring is added.
type PlaceholderClient struct{}

// Analyze returns ErrNotConfigured.
func (PlaceholderClient) Analyze(ctx context.Context, input Input) (Record, error) {
	_ = ctx
	_ = input
	return Record{}, &Error{Kind: KindUnknown, Err: ErrNotConfigured}
}
