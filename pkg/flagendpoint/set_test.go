package flagendpoint

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/log"
	stdopentracing "github.com/opentracing/opentracing-go"

	"github.com/featureflag/flagsvc/pkg/flagservice"
)

func TestSetAsService(t *testing.T) {
	var (
		ctx = context.Background()
		svc flagservice.Service
	)
	svc = New(flagservice.NewInmemService(flagservice.ModeTest), log.NewNopLogger(), discard.NewHistogram(), stdopentracing.NoopTracer{}, nil)

	if _, err := svc.Set(ctx, "a", flagservice.Bool(true)); err != nil {
		t.Fatal(err)
	}
	v, err := svc.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if want, have := flagservice.Bool(true), v; want != have {
		t.Errorf("want %v, have %v", want, have)
	}

	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, flagservice.ErrNotFound) {
		t.Errorf("want %v, have %v", flagservice.ErrNotFound, err)
	}

	if _, err := svc.SetMode(ctx, "staging"); !errors.Is(err, flagservice.ErrInvalidValue) {
		t.Errorf("want %v, have %v", flagservice.ErrInvalidValue, err)
	}
	m, err := svc.SetMode(ctx, flagservice.ModeProduction)
	if err != nil {
		t.Fatal(err)
	}
	if want, have := flagservice.ModeProduction, m; want != have {
		t.Errorf("want %q, have %q", want, have)
	}

	fs, err := svc.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want, have := 2, len(fs); want != have {
		t.Errorf("want %d flags, have %d", want, have)
	}
}

func TestHealthEndpoint(t *testing.T) {
	e := MakeHealthEndpoint(flagservice.NewInmemService(flagservice.ModeTest))
	resp, err := e(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	want := HealthResponse{Status: "ok", Service: "feature-flag", Mode: flagservice.ModeTest}
	if have := resp.(HealthResponse); want != have {
		t.Errorf("want %+v, have %+v", want, have)
	}
}

// recordingHistogram records the label values of each observation.
type recordingHistogram struct {
	mtx  *sync.Mutex
	seen *[]string
	lvs  []string
}

func (h recordingHistogram) With(labelValues ...string) metrics.Histogram {
	return recordingHistogram{h.mtx, h.seen, append(append([]string{}, h.lvs...), labelValues...)}
}

func (h recordingHistogram) Observe(float64) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	*h.seen = append(*h.seen, strings.Join(h.lvs, ","))
}

func TestInstrumentingMiddleware(t *testing.T) {
	var (
		ctx      = context.Background()
		seen     []string
		duration = recordingHistogram{mtx: &sync.Mutex{}, seen: &seen}
		set      = New(flagservice.NewInmemService(flagservice.ModeTest), log.NewNopLogger(), duration, nil, nil)
	)
	set.Get(ctx, "a")
	set.SetMode(ctx, flagservice.ModeTest)

	want := []string{
		"method,Get,success,false",
		"method,SetMode,success,true",
	}
	if len(want) != len(seen) {
		t.Fatalf("want %v, have %v", want, seen)
	}
	for i := range want {
		if want[i] != seen[i] {
			t.Errorf("%d: want %q, have %q", i, want[i], seen[i])
		}
	}
}
