// Package remote provides feature flags backed by a flag service, usually
// one reached over HTTP via flagtransport.NewHTTPClient.
//
// Every flag is read on each call. When the service cannot be reached, or
// holds a value of the wrong kind, the flag falls back to a default and the
// failure is logged.
package remote

import (
	"context"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/featureflag/flagsvc/flags"
	"github.com/featureflag/flagsvc/pkg/flagservice"
)

// FallbackMode is reported when the mode cannot be read. Expensive work is
// skipped while the service is unavailable.
const FallbackMode = flagservice.ModeTest

// ModeGetter is the part of flagservice.Service needed for mode flags.
type ModeGetter interface {
	GetMode(ctx context.Context) (flagservice.Mode, error)
}

// Getter is the part of flagservice.Service needed for named flags.
type Getter interface {
	Get(ctx context.Context, name string) (flagservice.Value, error)
}

// NewModeStringer builds a Stringer that returns the environment mode, or
// FallbackMode if it cannot be read.
func NewModeStringer(s ModeGetter, l log.Logger) flags.Stringer {
	return flags.StringerFunc(func(ctx context.Context) string {
		return string(mode(ctx, s, l))
	})
}

// NewProductionBooler builds a Booler that reports whether the environment
// mode is production. It reports false if the mode cannot be read.
func NewProductionBooler(s ModeGetter, l log.Logger) flags.Booler {
	return flags.BoolerFunc(func(ctx context.Context) bool {
		return mode(ctx, s, l).Production()
	})
}

func mode(ctx context.Context, s ModeGetter, l log.Logger) flagservice.Mode {
	m, err := s.GetMode(ctx)
	if err != nil {
		level.Warn(l).Log("flag", flagservice.EnvironmentModeFlag, "err", err, "fallback", FallbackMode)
		return FallbackMode
	}
	if !m.Valid() {
		level.Warn(l).Log("flag", flagservice.EnvironmentModeFlag, "invalid", m, "fallback", FallbackMode)
		return FallbackMode
	}
	return m
}

// NewBooler builds a Booler that returns the boolean flag name. String
// values "true" and "false" are accepted too; anything else, or a read
// failure, yields defaultVal.
func NewBooler(s Getter, name string, defaultVal bool, l log.Logger) flags.Booler {
	return flags.BoolerFunc(func(ctx context.Context) bool {
		v, err := s.Get(ctx, name)
		if err != nil {
			level.Warn(l).Log("flag", name, "err", err, "fallback", defaultVal)
			return defaultVal
		}
		if b, ok := flagservice.ParseText(v.String()).AsBool(); ok {
			return b
		}
		level.Warn(l).Log("flag", name, "invalid", v, "fallback", defaultVal)
		return defaultVal
	})
}

// NewStringer builds a Stringer that returns the string flag name, or
// defaultVal if it cannot be read or is not a string.
func NewStringer(s Getter, name string, defaultVal string, l log.Logger) flags.Stringer {
	return flags.StringerFunc(func(ctx context.Context) string {
		v, err := s.Get(ctx, name)
		if err != nil {
			level.Warn(l).Log("flag", name, "err", err, "fallback", defaultVal)
			return defaultVal
		}
		str, ok := v.AsString()
		if !ok {
			level.Warn(l).Log("flag", name, "invalid", v, "fallback", defaultVal)
			return defaultVal
		}
		return str
	})
}
