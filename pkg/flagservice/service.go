package flagservice

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/log"
)

// Service is a small CRUD interface over a set of named feature flags. One
// flag, environment_mode, is always present and only accepts a Mode.
type Service interface {
	GetAll(ctx context.Context) (FlagSet, error)
	Get(ctx context.Context, name string) (Value, error)
	Set(ctx context.Context, name string, v Value) (Value, error)
	GetMode(ctx context.Context) (Mode, error)
	SetMode(ctx context.Context, m Mode) (Mode, error)
}

var (
	// ErrNotFound is returned when reading a flag that was never written.
	ErrNotFound = errors.New("not found")

	// ErrInvalidValue is returned for a value the flag cannot hold: anything
	// but a bool or string, or an environment_mode outside the Mode enum.
	ErrInvalidValue = errors.New("invalid value")

	// ErrMalformedRequest is returned when a request body is missing or
	// cannot be parsed.
	ErrMalformedRequest = errors.New("malformed request")
)

// New returns an in-memory Service seeded with mode, wrapped with logging
// and instrumenting middleware.
func New(mode Mode, logger log.Logger, writes metrics.Counter, production metrics.Gauge) Service {
	var svc Service
	{
		svc = NewInmemService(mode)
		svc = LoggingMiddleware(logger)(svc)
		svc = InstrumentingMiddleware(writes, production)(svc)
	}
	if m, _ := svc.GetMode(context.Background()); m.Production() {
		production.Set(1)
	} else {
		production.Set(0)
	}
	return svc
}

type inmemService struct {
	mtx sync.RWMutex
	m   FlagSet
}

// NewInmemService returns a Service holding its flags in memory. The
// environment mode starts as mode, or DefaultMode if mode is not valid.
func NewInmemService(mode Mode) Service {
	if !mode.Valid() {
		mode = DefaultMode
	}
	return &inmemService{
		m: FlagSet{EnvironmentModeFlag: String(string(mode))},
	}
}

func (s *inmemService) GetAll(_ context.Context) (FlagSet, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.m.Copy(), nil
}

func (s *inmemService) Get(_ context.Context, name string) (Value, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	v, ok := s.m[name]
	if !ok {
		return Value{}, ErrNotFound
	}
	return v, nil
}

func (s *inmemService) Set(_ context.Context, name string, v Value) (Value, error) {
	if name == "" || strings.Contains(name, "/") {
		return Value{}, ErrMalformedRequest
	}
	v, err := validate(name, v)
	if err != nil {
		return Value{}, err
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.m[name] = v // upsert
	return v, nil
}

func (s *inmemService) GetMode(_ context.Context) (Mode, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return modeOf(s.m), nil
}

func (s *inmemService) SetMode(ctx context.Context, m Mode) (Mode, error) {
	v, err := s.Set(ctx, EnvironmentModeFlag, String(string(m)))
	if err != nil {
		return "", err
	}
	str, _ := v.AsString()
	return Mode(str), nil
}

// validate checks v may be stored under name and returns the value to
// store.
func validate(name string, v Value) (Value, error) {
	switch v.Kind() {
	case KindBool, KindString:
	default:
		return Value{}, ErrInvalidValue
	}
	if name != EnvironmentModeFlag {
		return v, nil
	}
	str, ok := v.AsString()
	if !ok {
		return Value{}, ErrInvalidValue
	}
	m, err := ParseMode(str)
	if err != nil {
		return Value{}, err
	}
	return String(string(m)), nil
}

func modeOf(fs FlagSet) Mode {
	str, ok := fs[EnvironmentModeFlag].AsString()
	if !ok || !Mode(str).Valid() {
		return DefaultMode
	}
	return Mode(str)
}
