package flags

import (
	"context"
	"errors"

	"github.com/go-kit/kit/endpoint"
)

// ErrGated is returned by a gated endpoint when its flag is off.
var ErrGated = errors.New("gated: flag is off")

// Gate returns an endpoint middleware that only invokes the next endpoint
// when b reports true. Otherwise the request is dropped and ErrGated is
// returned. Wrap expensive work (report compilation, plotting) with a
// Booler from remote.NewProductionBooler to run it only in production.
func Gate(b Booler) endpoint.Middleware {
	return func(next endpoint.Endpoint) endpoint.Endpoint {
		return func(ctx context.Context, request interface{}) (interface{}, error) {
			if !b.Bool(ctx) {
				return nil, ErrGated
			}
			return next(ctx, request)
		}
	}
}
