package providers

import (
	"context"
	"errors"

	"shareofsearch/internal/model"
)

// ErrRateLimited is wrapped by provider errors that signal the caller is
// sending requests too fast.
var ErrRateLimited = errors.New("rate limited")

// Provider is a source of monthly search volume. FetchSearchVolume returns
// one record per keyword and month for a single location; records carry the
// location code but no country name.
type Provider interface {
	Name() string
	ListLocations(ctx context.Context) ([]model.Location, error)
	ListLanguages(ctx context.Context) ([]model.Language, error)
	FetchSearchVolume(ctx context.Context, req model.FetchRequest) ([]model.Record, error)
}
