package flags_test

import (
	"context"
	"errors"
	"testing"

	"github.com/featureflag/flagsvc/flags"
)

func TestGate(t *testing.T) {
	var calls int
	next := func(ctx context.Context, request interface{}) (interface{}, error) {
		calls++
		return request, nil
	}

	open := flags.Gate(flags.Static(true))(next)
	resp, err := open(context.Background(), "report")
	if err != nil {
		t.Fatal(err)
	}
	if want, have := "report", resp; want != have {
		t.Errorf("want %v, have %v", want, have)
	}

	closed := flags.Gate(flags.Static(false))(next)
	if _, err := closed(context.Background(), "report"); !errors.Is(err, flags.ErrGated) {
		t.Errorf("want %v, have %v", flags.ErrGated, err)
	}
	if want, have := 1, calls; want != have {
		t.Errorf("want %d calls, have %d", want, have)
	}
}

func TestGateConsultsFlagPerRequest(t *testing.T) {
	on := false
	b := flags.BoolerFunc(func(context.Context) bool { return on })
	e := flags.Gate(b)(func(context.Context, interface{}) (interface{}, error) { return "ran", nil })

	if _, err := e(context.Background(), nil); err != flags.ErrGated {
		t.Errorf("want %v, have %v", flags.ErrGated, err)
	}
	on = true
	if _, err := e(context.Background(), nil); err != nil {
		t.Errorf("want no error, have %v", err)
	}
}
