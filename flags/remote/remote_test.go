package remote

import (
	"context"
	"errors"
	"testing"

	"github.com/go-kit/log"

	"github.com/featureflag/flagsvc/pkg/flagservice"
)

type brokenService struct{}

func (brokenService) GetMode(context.Context) (flagservice.Mode, error) {
	return "", errors.New("connection refused")
}

func (brokenService) Get(context.Context, string) (flagservice.Value, error) {
	return flagservice.Value{}, errors.New("connection refused")
}

type fixedMode flagservice.Mode

func (m fixedMode) GetMode(context.Context) (flagservice.Mode, error) {
	return flagservice.Mode(m), nil
}

func TestModeFlags(t *testing.T) {
	var (
		ctx    = context.Background()
		logger = log.NewNopLogger()
		svc    = flagservice.NewInmemService(flagservice.ModeTest)
	)
	if want, have := "test", NewModeStringer(svc, logger).String(ctx); want != have {
		t.Errorf("want %q, have %q", want, have)
	}
	if NewProductionBooler(svc, logger).Bool(ctx) {
		t.Error("want false in test mode")
	}

	svc.SetMode(ctx, flagservice.ModeProduction)
	if want, have := "production", NewModeStringer(svc, logger).String(ctx); want != have {
		t.Errorf("want %q, have %q", want, have)
	}
	if !NewProductionBooler(svc, logger).Bool(ctx) {
		t.Error("want true in production mode")
	}
}

func TestModeFallback(t *testing.T) {
	ctx := context.Background()
	for _, s := range []ModeGetter{brokenService{}, fixedMode("staging")} {
		if want, have := "test", NewModeStringer(s, log.NewNopLogger()).String(ctx); want != have {
			t.Errorf("%T: want %q, have %q", s, want, have)
		}
		if NewProductionBooler(s, log.NewNopLogger()).Bool(ctx) {
			t.Errorf("%T: want false", s)
		}
	}
}

func TestNamedFlags(t *testing.T) {
	var (
		ctx    = context.Background()
		logger = log.NewNopLogger()
		svc    = flagservice.NewInmemService(flagservice.ModeTest)
	)
	svc.Set(ctx, "plots", flagservice.Bool(true))
	svc.Set(ctx, "reports", flagservice.String("false"))
	svc.Set(ctx, "theme", flagservice.String("dark"))

	for name, want := range map[string]bool{
		"plots":   true,
		"reports": false,
		"theme":   true, // not a boolean, default
		"missing": true, // default
	} {
		if have := NewBooler(svc, name, true, logger).Bool(ctx); want != have {
			t.Errorf("%s: want %v, have %v", name, want, have)
		}
	}
	for name, want := range map[string]string{
		"theme":   "dark",
		"plots":   "light",
		"missing": "light",
	} {
		if have := NewStringer(svc, name, "light", logger).String(ctx); want != have {
			t.Errorf("%s: want %q, have %q", name, want, have)
		}
	}
	if have := NewBooler(brokenService{}, "plots", true, logger).Bool(ctx); !have {
		t.Error("want default on failure")
	}
}
