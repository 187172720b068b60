package flagservice

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Middleware describes a service (as opposed to endpoint) middleware.
type Middleware func(Service) Service

// LoggingMiddleware takes a logger as a dependency and returns a service
// Middleware. Writes are logged at info, reads at debug.
func LoggingMiddleware(logger log.Logger) Middleware {
	return func(next Service) Service {
		return loggingMiddleware{logger, next}
	}
}

type loggingMiddleware struct {
	logger log.Logger
	next   Service
}

func (mw loggingMiddleware) GetAll(ctx context.Context) (fs FlagSet, err error) {
	defer func(begin time.Time) {
		level.Debug(mw.logger).Log("method", "GetAll", "flags", len(fs), "err", err, "took", time.Since(begin))
	}(time.Now())
	return mw.next.GetAll(ctx)
}

func (mw loggingMiddleware) Get(ctx context.Context, name string) (v Value, err error) {
	defer func(begin time.Time) {
		level.Debug(mw.logger).Log("method", "Get", "name", name, "value", v, "err", err, "took", time.Since(begin))
	}(time.Now())
	return mw.next.Get(ctx, name)
}

func (mw loggingMiddleware) Set(ctx context.Context, name string, v Value) (stored Value, err error) {
	defer func(begin time.Time) {
		level.Info(mw.logger).Log("method", "Set", "name", name, "value", v, "stored", stored, "err", err, "took", time.Since(begin))
	}(time.Now())
	return mw.next.Set(ctx, name, v)
}

func (mw loggingMiddleware) GetMode(ctx context.Context) (m Mode, err error) {
	defer func(begin time.Time) {
		level.Debug(mw.logger).Log("method", "GetMode", "mode", m, "err", err, "took", time.Since(begin))
	}(time.Now())
	return mw.next.GetMode(ctx)
}

func (mw loggingMiddleware) SetMode(ctx context.Context, m Mode) (stored Mode, err error) {
	defer func(begin time.Time) {
		level.Info(mw.logger).Log("method", "SetMode", "mode", m, "stored", stored, "err", err, "took", time.Since(begin))
	}(time.Now())
	return mw.next.SetMode(ctx, m)
}

// InstrumentingMiddleware returns a service middleware that counts flag
// writes by flag class (see flagLabel) and outcome, and tracks whether the
// environment mode is production (1) or test (0).
func InstrumentingMiddleware(writes metrics.Counter, production metrics.Gauge) Middleware {
	return func(next Service) Service {
		return instrumentingMiddleware{
			writes:     writes,
			production: production,
			next:       next,
		}
	}
}

type instrumentingMiddleware struct {
	writes     metrics.Counter
	production metrics.Gauge
	next       Service
}

func (mw instrumentingMiddleware) GetAll(ctx context.Context) (FlagSet, error) {
	return mw.next.GetAll(ctx)
}

func (mw instrumentingMiddleware) Get(ctx context.Context, name string) (Value, error) {
	return mw.next.Get(ctx, name)
}

func (mw instrumentingMiddleware) Set(ctx context.Context, name string, v Value) (Value, error) {
	stored, err := mw.next.Set(ctx, name, v)
	mw.writes.With("flag", flagLabel(name), "success", fmt.Sprint(err == nil)).Add(1)
	if err == nil && name == EnvironmentModeFlag {
		str, _ := stored.AsString()
		mw.observeMode(Mode(str))
	}
	return stored, err
}

func (mw instrumentingMiddleware) GetMode(ctx context.Context) (Mode, error) {
	return mw.next.GetMode(ctx)
}

func (mw instrumentingMiddleware) SetMode(ctx context.Context, m Mode) (Mode, error) {
	stored, err := mw.next.SetMode(ctx, m)
	mw.writes.With("flag", EnvironmentModeFlag, "success", fmt.Sprint(err == nil)).Add(1)
	if err == nil {
		mw.observeMode(stored)
	}
	return stored, err
}

// flagLabel keeps the write counter's label set bounded: names are chosen
// by callers, so only environment_mode gets its own series.
func flagLabel(name string) string {
	if name == EnvironmentModeFlag {
		return EnvironmentModeFlag
	}
	return "other"
}

func (mw instrumentingMiddleware) observeMode(m Mode) {
	if m.Production() {
		mw.production.Set(1)
		return
	}
	mw.production.Set(0)
}
