package main

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/go-kit/log"

	"github.com/featureflag/flagsvc/pkg/flagservice"
)

func TestRun(t *testing.T) {
	var (
		ctx = context.Background()
		svc = flagservice.NewInmemService(flagservice.ModeTest)
	)
	for _, tc := range []struct {
		args []string
		want string
	}{
		{[]string{"mode"}, "test\n"},
		{[]string{"set", "plots", "true"}, "plots=true\n"},
		{[]string{"set", "theme", "dark"}, "theme=dark\n"},
		{[]string{"get", "plots"}, "true\n"},
		{[]string{"list"}, "environment_mode  test\nplots             true\ntheme             dark\n"},
		{[]string{"mode", "Production"}, "production\n"},
		{[]string{"mode"}, "production\n"},
	} {
		var buf bytes.Buffer
		if err := run(ctx, svc, log.NewNopLogger(), tc.args, &buf); err != nil {
			t.Fatalf("%v: %v", tc.args, err)
		}
		if want, have := tc.want, buf.String(); want != have {
			t.Errorf("%v: want %q, have %q", tc.args, want, have)
		}
	}
}

func TestRunErrors(t *testing.T) {
	var (
		ctx = context.Background()
		svc = flagservice.NewInmemService(flagservice.ModeTest)
	)
	var buf bytes.Buffer
	if err := run(ctx, svc, log.NewNopLogger(), []string{"get", "missing"}, &buf); !errors.Is(err, flagservice.ErrNotFound) {
		t.Errorf("want %v, have %v", flagservice.ErrNotFound, err)
	}
	if err := run(ctx, svc, log.NewNopLogger(), []string{"mode", "staging"}, &buf); !errors.Is(err, flagservice.ErrInvalidValue) {
		t.Errorf("want %v, have %v", flagservice.ErrInvalidValue, err)
	}
	if err := run(ctx, svc, log.NewNopLogger(), []string{"frobnicate"}, &buf); err == nil {
		t.Error("want error for unknown command, have none")
	}
	if err := run(ctx, svc, log.NewNopLogger(), []string{"health"}, &buf); err == nil {
		t.Error("want error for health against a local service, have none")
	}
}

func TestRunGate(t *testing.T) {
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}
	var (
		ctx = context.Background()
		svc = flagservice.NewInmemService(flagservice.ModeTest)
		buf bytes.Buffer
	)
	if err := run(ctx, svc, log.NewNopLogger(), []string{"gate", "echo", "report"}, &buf); err != nil {
		t.Fatal(err)
	}
	if have := buf.String(); !strings.HasPrefix(have, "skipped") {
		t.Errorf("want skipped, have %q", have)
	}

	buf.Reset()
	svc.SetMode(ctx, flagservice.ModeProduction)
	if err := run(ctx, svc, log.NewNopLogger(), []string{"gate", "echo", "report"}, &buf); err != nil {
		t.Fatal(err)
	}
	if want, have := "report\n", buf.String(); want != have {
		t.Errorf("want %q, have %q", want, have)
	}
}
