package tasks

import (
	"context"
	"errors"

	"github.com/ChinoUkaegbu/exportify/internal/shared"
	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// Fetcher performs one authenticated GET and decodes the JSON response into v.
//
// Implemented by services.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, address, token string, v any) error
}

// FetchOpts bounds the fan-out of a single pipeline pass.
type FetchOpts struct {
	Concurrency int           // Maximum in-flight requests (default: 4)
	Limiter     *rate.Limiter // Shared pacing, nil disables pacing
	Logger      *log.Logger   // Defaults to log.Default()
}

func (o FetchOpts) concurrency() int {
	if o.Concurrency <= 0 {
		return defaultConcurrency
	}
	return o.Concurrency
}

func (o FetchOpts) logger() *log.Logger {
	if o.Logger == nil {
		return log.Default()
	}
	return o.Logger
}

// wait blocks until the limiter admits one more request.
func (o FetchOpts) wait(ctx context.Context) error {
	if o.Limiter == nil {
		return ctx.Err()
	}
	return o.Limiter.Wait(ctx)
}

// authFirst picks the error a failed pass reports. An expired token among errs outranks
// first, the error the group saw first, since it must abort every playlist.
func authFirst(first error, errs []error) error {
	for _, err := range errs {
		if errors.Is(err, shared.ErrTokenExpired) {
			return err
		}
	}
	return first
}
