package flagservice

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/generic"
	"github.com/go-kit/log"
)

// countingCounter records Add calls keyed by their label values.
type countingCounter struct {
	mtx    *sync.Mutex
	counts map[string]float64
	lvs    []string
}

func newCountingCounter() *countingCounter {
	return &countingCounter{mtx: &sync.Mutex{}, counts: map[string]float64{}}
}

func (c *countingCounter) With(labelValues ...string) metrics.Counter {
	return &countingCounter{
		mtx:    c.mtx,
		counts: c.counts,
		lvs:    append(append([]string{}, c.lvs...), labelValues...),
	}
}

func (c *countingCounter) Add(delta float64) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.counts[strings.Join(c.lvs, ",")] += delta
}

func TestInstrumentingMiddleware(t *testing.T) {
	var (
		ctx        = context.Background()
		writes     = newCountingCounter()
		production = generic.NewGauge("production")
		svc        = New(ModeTest, log.NewNopLogger(), writes, production)
	)
	if want, have := 0.0, production.Value(); want != have {
		t.Errorf("initial gauge: want %v, have %v", want, have)
	}

	svc.Set(ctx, "a", Bool(true))
	svc.Set(ctx, "a", Bool(false))
	svc.Set(ctx, "b", String("x"))
	svc.Set(ctx, "c", Value{})
	svc.Set(ctx, EnvironmentModeFlag, String("staging"))
	if want, have := 0.0, production.Value(); want != have {
		t.Errorf("after rejected write: want %v, have %v", want, have)
	}

	svc.SetMode(ctx, ModeProduction)
	if want, have := 1.0, production.Value(); want != have {
		t.Errorf("after SetMode: want %v, have %v", want, have)
	}
	svc.Set(ctx, EnvironmentModeFlag, String("test"))
	if want, have := 0.0, production.Value(); want != have {
		t.Errorf("after Set: want %v, have %v", want, have)
	}

	for key, want := range map[string]float64{
		"flag,other,success,true":             3,
		"flag,other,success,false":            1,
		"flag,environment_mode,success,false": 1,
		"flag,environment_mode,success,true":  2,
	} {
		if have := writes.counts[key]; want != have {
			t.Errorf("%s: want %v, have %v", key, want, have)
		}
	}
	if want, have := 4, len(writes.counts); want != have {
		t.Errorf("want %d series, have %d: %v", want, have, writes.counts)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var (
		buf bytes.Buffer
		ctx = context.Background()
		svc = LoggingMiddleware(log.NewLogfmtLogger(&buf))(NewInmemService(ModeTest))
	)
	svc.Set(ctx, "theme", String("dark"))
	svc.Set(ctx, EnvironmentModeFlag, String(" Production "))
	svc.SetMode(ctx, "staging")

	out := buf.String()
	for _, want := range []string{
		"method=Set name=theme value=dark stored=dark err=null",
		"method=Set name=environment_mode value=\" Production \" stored=production err=null",
		"method=SetMode mode=staging stored= err=\"invalid value\"",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("want %q in log output:\n%s", want, out)
		}
	}
}
