package flagendpoint

import (
	"context"

	stdopentracing "github.com/opentracing/opentracing-go"
	stdzipkin "github.com/openzipkin/zipkin-go"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/tracing/opentracing"
	"github.com/go-kit/kit/tracing/zipkin"
	"github.com/go-kit/log"

	"github.com/featureflag/flagsvc/pkg/flagservice"
)

// Set collects all of the endpoints that compose the flag service. It's
// meant to be used as a helper struct, to collect all of the endpoints into a
// single parameter.
type Set struct {
	GetAllEndpoint  endpoint.Endpoint
	GetEndpoint     endpoint.Endpoint
	SetEndpoint     endpoint.Endpoint
	GetModeEndpoint endpoint.Endpoint
	SetModeEndpoint endpoint.Endpoint
	HealthEndpoint  endpoint.Endpoint
}

// New returns a Set that wraps the provided server, and wires in all of the
// expected endpoint middlewares via the various parameters.
func New(svc flagservice.Service, logger log.Logger, duration metrics.Histogram, otTracer stdopentracing.Tracer, zipkinTracer *stdzipkin.Tracer) Set {
	wrap := func(name string, e endpoint.Endpoint) endpoint.Endpoint {
		if otTracer != nil {
			e = opentracing.TraceServer(otTracer, name)(e)
		}
		if zipkinTracer != nil {
			e = zipkin.TraceEndpoint(zipkinTracer, name)(e)
		}
		e = LoggingMiddleware(log.With(logger, "method", name))(e)
		e = InstrumentingMiddleware(duration.With("method", name))(e)
		return e
	}
	return Set{
		GetAllEndpoint:  wrap("GetAll", MakeGetAllEndpoint(svc)),
		GetEndpoint:     wrap("Get", MakeGetEndpoint(svc)),
		SetEndpoint:     wrap("Set", MakeSetEndpoint(svc)),
		GetModeEndpoint: wrap("GetMode", MakeGetModeEndpoint(svc)),
		SetModeEndpoint: wrap("SetMode", MakeSetModeEndpoint(svc)),
		HealthEndpoint:  wrap("Health", MakeHealthEndpoint(svc)),
	}
}

// GetAll implements the service interface, so Set may be used as a service.
// This is primarily useful in the context of a client library.
func (s Set) GetAll(ctx context.Context) (flagservice.FlagSet, error) {
	resp, err := s.GetAllEndpoint(ctx, GetAllRequest{})
	if err != nil {
		return nil, err
	}
	response := resp.(GetAllResponse)
	return response.Flags, response.Err
}

// Get implements the service interface, so Set may be used as a service.
func (s Set) Get(ctx context.Context, name string) (flagservice.Value, error) {
	resp, err := s.GetEndpoint(ctx, GetRequest{Name: name})
	if err != nil {
		return flagservice.Value{}, err
	}
	response := resp.(FlagResponse)
	return response.Value, response.Err
}

// Set implements the service interface, so Set may be used as a service.
func (s Set) Set(ctx context.Context, name string, v flagservice.Value) (flagservice.Value, error) {
	resp, err := s.SetEndpoint(ctx, SetRequest{Name: name, Value: v})
	if err != nil {
		return flagservice.Value{}, err
	}
	response := resp.(FlagResponse)
	return response.Value, response.Err
}

// GetMode implements the service interface, so Set may be used as a service.
func (s Set) GetMode(ctx context.Context) (flagservice.Mode, error) {
	resp, err := s.GetModeEndpoint(ctx, GetModeRequest{})
	if err != nil {
		return "", err
	}
	response := resp.(ModeResponse)
	return response.Mode, response.Err
}

// SetMode implements the service interface, so Set may be used as a service.
func (s Set) SetMode(ctx context.Context, m flagservice.Mode) (flagservice.Mode, error) {
	resp, err := s.SetModeEndpoint(ctx, SetModeRequest{Mode: m})
	if err != nil {
		return "", err
	}
	response := resp.(ModeResponse)
	return response.Mode, response.Err
}

// MakeGetAllEndpoint constructs a GetAll endpoint wrapping the service.
func MakeGetAllEndpoint(s flagservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		fs, err := s.GetAll(ctx)
		return GetAllResponse{Flags: fs, Err: err}, nil
	}
}

// MakeGetEndpoint constructs a Get endpoint wrapping the service.
func MakeGetEndpoint(s flagservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(GetRequest)
		v, err := s.Get(ctx, req.Name)
		return FlagResponse{Name: req.Name, Value: v, Err: err}, nil
	}
}

// MakeSetEndpoint constructs a Set endpoint wrapping the service.
func MakeSetEndpoint(s flagservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(SetRequest)
		v, err := s.Set(ctx, req.Name, req.Value)
		return FlagResponse{Name: req.Name, Value: v, Err: err}, nil
	}
}

// MakeGetModeEndpoint constructs a GetMode endpoint wrapping the service.
func MakeGetModeEndpoint(s flagservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		m, err := s.GetMode(ctx)
		return ModeResponse{Mode: m, Err: err}, nil
	}
}

// MakeSetModeEndpoint constructs a SetMode endpoint wrapping the service.
func MakeSetModeEndpoint(s flagservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(SetModeRequest)
		m, err := s.SetMode(ctx, req.Mode)
		return ModeResponse{Mode: m, Err: err}, nil
	}
}

// MakeHealthEndpoint constructs a Health endpoint. The service is healthy
// whenever it can report its mode.
func MakeHealthEndpoint(s flagservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		m, err := s.GetMode(ctx)
		return HealthResponse{Status: "ok", Service: ServiceName, Mode: m, Err: err}, nil
	}
}

// ServiceName is reported by the health endpoint.
const ServiceName = "feature-flag"

// compile time assertions for our response types implementing endpoint.Failer.
var (
	_ endpoint.Failer = GetAllResponse{}
	_ endpoint.Failer = FlagResponse{}
	_ endpoint.Failer = ModeResponse{}
	_ endpoint.Failer = HealthResponse{}
)

// GetAllRequest collects the request parameters for the GetAll method.
type GetAllRequest struct{}

// GetAllResponse collects the response values for the GetAll method.
type GetAllResponse struct {
	Flags flagservice.FlagSet
	Err   error
}

// Failed implements endpoint.Failer.
func (r GetAllResponse) Failed() error { return r.Err }

// GetRequest collects the request parameters for the Get method.
type GetRequest struct {
	Name string
}

// SetRequest collects the request parameters for the Set method.
type SetRequest struct {
	Name  string            `json:"name"`
	Value flagservice.Value `json:"value"`
}

// FlagResponse collects the response values for the Get and Set methods.
type FlagResponse struct {
	Name  string            `json:"name"`
	Value flagservice.Value `json:"value"`
	Err   error             `json:"-"` // should be intercepted by Failed/errorEncoder
}

// Failed implements endpoint.Failer.
func (r FlagResponse) Failed() error { return r.Err }

// GetModeRequest collects the request parameters for the GetMode method.
type GetModeRequest struct{}

// SetModeRequest collects the request parameters for the SetMode method.
type SetModeRequest struct {
	Mode flagservice.Mode `json:"mode"`
}

// ModeResponse collects the response values for the GetMode and SetMode
// methods.
type ModeResponse struct {
	Mode flagservice.Mode `json:"mode"`
	Err  error            `json:"-"`
}

// Failed implements endpoint.Failer.
func (r ModeResponse) Failed() error { return r.Err }

// HealthResponse collects the response values for the Health method.
type HealthResponse struct {
	Status  string           `json:"status"`
	Service string           `json:"service"`
	Mode    flagservice.Mode `json:"mode"`
	Err     error            `json:"-"`
}

// Failed implements endpoint.Failer.
func (r HealthResponse) Failed() error { return r.Err }
