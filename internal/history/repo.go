package history

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("history entry not found")

// Repo stores finished exam runs, newest first.
type Repo interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context) ([]Entry, error)
	Clear(ctx context.Context) error
}
