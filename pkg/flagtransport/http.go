package flagtransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"
	stdopentracing "github.com/opentracing/opentracing-go"
	stdzipkin "github.com/openzipkin/zipkin-go"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/go-kit/kit/circuitbreaker"
	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/ratelimit"
	"github.com/go-kit/kit/tracing/opentracing"
	"github.com/go-kit/kit/tracing/zipkin"
	"github.com/go-kit/kit/transport"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/go-kit/log"

	"github.com/featureflag/flagsvc/pkg/flagendpoint"
	"github.com/featureflag/flagsvc/pkg/flagservice"
)

var (
	// errBadRouting is returned when a route variable the handler relies on
	// is missing.
	errBadRouting = errors.New("inconsistent mapping between route and handler (programmer error)")

	errEndpointNotFound = errors.New("endpoint not found")
	errMethodNotAllowed = errors.New("method not allowed")
)

// NewHTTPHandler returns an HTTP handler that makes a set of endpoints
// available on predefined paths.
//
//	GET  /health        service status and current mode
//	GET  /flags         all flags
//	POST /flags         create or update the flag named in the body
//	GET  /flags/{name}  a single flag
//	PUT  /flags/{name}  create or update a single flag
//	GET  /mode          the environment mode
//	PUT  /mode          change the environment mode (POST also accepted)
func NewHTTPHandler(endpoints flagendpoint.Set, otTracer stdopentracing.Tracer, zipkinTracer *stdzipkin.Tracer, logger log.Logger) http.Handler {
	options := []httptransport.ServerOption{
		httptransport.ServerErrorEncoder(errorEncoder),
		httptransport.ServerErrorHandler(transport.NewLogErrorHandler(logger)),
	}
	if zipkinTracer != nil {
		options = append(options, zipkin.HTTPServerTrace(zipkinTracer))
	}
	server := func(name string, e endpoint.Endpoint, dec httptransport.DecodeRequestFunc, enc httptransport.EncodeResponseFunc) http.Handler {
		opts := options
		if otTracer != nil {
			opts = append(opts[:len(opts):len(opts)], httptransport.ServerBefore(opentracing.HTTPToContext(otTracer, name, logger)))
		}
		return httptransport.NewServer(e, dec, enc, opts...)
	}

	r := mux.NewRouter()
	r.Methods("GET").Path("/health").Handler(server("Health", endpoints.HealthEndpoint, decodeEmptyRequest(nil), encodeHTTPGenericResponse))
	r.Methods("GET").Path("/flags").Handler(server("GetAll", endpoints.GetAllEndpoint, decodeEmptyRequest(flagendpoint.GetAllRequest{}), encodeHTTPGetAllResponse))
	r.Methods("POST").Path("/flags").Handler(server("Set", endpoints.SetEndpoint, decodeHTTPPostFlagRequest, encodeHTTPGenericResponse))
	r.Methods("GET").Path("/flags/{name}").Handler(server("Get", endpoints.GetEndpoint, decodeHTTPGetRequest, encodeHTTPGenericResponse))
	r.Methods("PUT").Path("/flags/{name}").Handler(server("Set", endpoints.SetEndpoint, decodeHTTPSetRequest, encodeHTTPGenericResponse))
	r.Methods("GET").Path("/mode").Handler(server("GetMode", endpoints.GetModeEndpoint, decodeEmptyRequest(flagendpoint.GetModeRequest{}), encodeHTTPGenericResponse))
	r.Methods("PUT", "POST").Path("/mode").Handler(server("SetMode", endpoints.SetModeEndpoint, decodeHTTPSetModeRequest, encodeHTTPGenericResponse))
	r.NotFoundHandler = errorHandler(errEndpointNotFound)
	r.MethodNotAllowedHandler = errorHandler(errMethodNotAllowed)
	return r
}

// NewHTTPClient returns a Service backed by an HTTP server living at the
// remote instance. We expect instance to come from a service discovery
// system, so likely of the form "host:port". Every endpoint is wrapped with
// a circuit breaker and a rate limiter.
func NewHTTPClient(instance string, timeout time.Duration, otTracer stdopentracing.Tracer, zipkinTracer *stdzipkin.Tracer, logger log.Logger) (flagservice.Service, error) {
	if !strings.HasPrefix(instance, "http") {
		instance = "http://" + instance
	}
	u, err := url.Parse(instance)
	if err != nil {
		return nil, err
	}

	options := []httptransport.ClientOption{
		httptransport.SetClient(&http.Client{Timeout: timeout}),
	}
	if otTracer != nil {
		options = append(options, httptransport.ClientBefore(opentracing.ContextToHTTP(otTracer, logger)))
	}
	if zipkinTracer != nil {
		options = append(options, zipkin.HTTPClientTrace(zipkinTracer))
	}
	client := func(name, method, path string, enc httptransport.EncodeRequestFunc, dec httptransport.DecodeResponseFunc) endpoint.Endpoint {
		var e endpoint.Endpoint
		e = httptransport.NewClient(method, copyURL(u, path), enc, dec, options...).Endpoint()
		if otTracer != nil {
			e = opentracing.TraceClient(otTracer, name)(e)
		}
		e = circuitbreaker.Gobreaker(gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: 30 * time.Second,
		}))(e)
		// 100 qps per endpoint.
		e = ratelimit.NewErroringLimiter(rate.NewLimiter(rate.Every(10*time.Millisecond), 100))(e)
		return e
	}

	return flagendpoint.Set{
		GetAllEndpoint:  client("GetAll", "GET", "/flags", encodeHTTPEmptyRequest, decodeHTTPGetAllResponse),
		GetEndpoint:     client("Get", "GET", "/flags/", encodeHTTPGetRequest, decodeHTTPFlagResponse),
		SetEndpoint:     client("Set", "PUT", "/flags/", encodeHTTPSetRequest, decodeHTTPFlagResponse),
		GetModeEndpoint: client("GetMode", "GET", "/mode", encodeHTTPEmptyRequest, decodeHTTPModeResponse),
		SetModeEndpoint: client("SetMode", "PUT", "/mode", encodeHTTPGenericRequest, decodeHTTPModeResponse),
		HealthEndpoint:  client("Health", "GET", "/health", encodeHTTPEmptyRequest, decodeHTTPHealthResponse),
	}, nil
}

func copyURL(base *url.URL, path string) *url.URL {
	next := *base
	next.Path = strings.TrimSuffix(next.Path, "/") + path
	return &next
}

func errorHandler(err error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errorEncoder(r.Context(), err, w)
	})
}

func errorEncoder(_ context.Context, err error, w http.ResponseWriter) {
	code, msg := err2code(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorWrapper{Error: msg})
}

// err2code maps an error onto a status code and the message shown to the
// caller. Known kinds are reported by their canonical text so wrapped
// details stay in the server log.
func err2code(err error) (int, string) {
	switch {
	case errors.Is(err, flagservice.ErrNotFound):
		return http.StatusNotFound, flagservice.ErrNotFound.Error()
	case errors.Is(err, flagservice.ErrInvalidValue):
		return http.StatusBadRequest, flagservice.ErrInvalidValue.Error()
	case errors.Is(err, flagservice.ErrMalformedRequest):
		return http.StatusBadRequest, flagservice.ErrMalformedRequest.Error()
	case errors.Is(err, errEndpointNotFound):
		return http.StatusNotFound, errEndpointNotFound.Error()
	case errors.Is(err, errMethodNotAllowed):
		return http.StatusMethodNotAllowed, errMethodNotAllowed.Error()
	}
	return http.StatusInternalServerError, err.Error()
}

// errorDecoder turns an error body written by errorEncoder back into the
// matching service error.
func errorDecoder(r *http.Response) error {
	var w errorWrapper
	if err := json.NewDecoder(r.Body).Decode(&w); err != nil || w.Error == "" {
		return errors.New(r.Status)
	}
	for _, known := range []error{
		flagservice.ErrNotFound,
		flagservice.ErrInvalidValue,
		flagservice.ErrMalformedRequest,
	} {
		if w.Error == known.Error() {
			return known
		}
	}
	return errors.New(w.Error)
}

// isServiceError reports whether err is a service error that belongs in the
// response rather than failing the endpoint. Only the latter trips the
// circuit breaker.
func isServiceError(err error) bool {
	switch err {
	case flagservice.ErrNotFound, flagservice.ErrInvalidValue, flagservice.ErrMalformedRequest:
		return true
	}
	return false
}

type errorWrapper struct {
	Error string `json:"error"`
}

func decodeEmptyRequest(request interface{}) httptransport.DecodeRequestFunc {
	return func(context.Context, *http.Request) (interface{}, error) {
		return request, nil
	}
}

// decodeHTTPGetRequest is a transport/http.DecodeRequestFunc that reads the
// flag name from the route. Primarily useful in a server.
func decodeHTTPGetRequest(_ context.Context, r *http.Request) (interface{}, error) {
	name, ok := mux.Vars(r)["name"]
	if !ok {
		return nil, errBadRouting
	}
	return flagendpoint.GetRequest{Name: name}, nil
}

// decodeHTTPSetRequest is a transport/http.DecodeRequestFunc that decodes a
// {"value": ...} body for the flag named in the route.
func decodeHTTPSetRequest(_ context.Context, r *http.Request) (interface{}, error) {
	name, ok := mux.Vars(r)["name"]
	if !ok {
		return nil, errBadRouting
	}
	var body struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", flagservice.ErrMalformedRequest, err)
	}
	v, err := flagservice.ParseValue(body.Value)
	if err != nil {
		return nil, err
	}
	return flagendpoint.SetRequest{Name: name, Value: v}, nil
}

// decodeHTTPPostFlagRequest decodes a {"name": ..., "value": ...} body.
func decodeHTTPPostFlagRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var body struct {
		Name  string          `json:"name"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", flagservice.ErrMalformedRequest, err)
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: flag name must be a non-empty string", flagservice.ErrMalformedRequest)
	}
	if strings.Contains(name, "/") {
		// Such a name could never be addressed as /flags/{name}.
		return nil, fmt.Errorf("%w: flag name must not contain '/'", flagservice.ErrMalformedRequest)
	}
	v, err := flagservice.ParseValue(body.Value)
	if err != nil {
		return nil, err
	}
	return flagendpoint.SetRequest{Name: name, Value: v}, nil
}

// decodeHTTPSetModeRequest decodes a {"mode": ...} body.
func decodeHTTPSetModeRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req flagendpoint.SetModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", flagservice.ErrMalformedRequest, err)
	}
	return req, nil
}

// encodeHTTPGenericResponse is a transport/http.EncodeResponseFunc that
// encodes the response as JSON to the response writer, or hands a failed
// response to the error encoder. Primarily useful in a server.
func encodeHTTPGenericResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	if f, ok := response.(endpoint.Failer); ok && f.Failed() != nil {
		errorEncoder(ctx, f.Failed(), w)
		return nil
	}
	return httptransport.EncodeJSONResponse(ctx, w, response)
}

// encodeHTTPGetAllResponse writes the flag set itself as the body.
func encodeHTTPGetAllResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	resp := response.(flagendpoint.GetAllResponse)
	if resp.Err != nil {
		errorEncoder(ctx, resp.Err, w)
		return nil
	}
	return httptransport.EncodeJSONResponse(ctx, w, resp.Flags)
}

// encodeHTTPGenericRequest is a transport/http.EncodeRequestFunc that
// JSON-encodes any request to the request body. Primarily useful in a client.
func encodeHTTPGenericRequest(_ context.Context, r *http.Request, request interface{}) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(request); err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	r.Body = ioutil.NopCloser(&buf)
	return nil
}

func encodeHTTPEmptyRequest(context.Context, *http.Request, interface{}) error {
	return nil
}

// encodeHTTPGetRequest appends the flag name to the request path.
func encodeHTTPGetRequest(_ context.Context, r *http.Request, request interface{}) error {
	req := request.(flagendpoint.GetRequest)
	r.URL.Path += req.Name
	return nil
}

// encodeHTTPSetRequest appends the flag name to the request path and
// writes {"value": ...} as the body.
func encodeHTTPSetRequest(ctx context.Context, r *http.Request, request interface{}) error {
	req := request.(flagendpoint.SetRequest)
	r.URL.Path += req.Name
	return encodeHTTPGenericRequest(ctx, r, struct {
		Value flagservice.Value `json:"value"`
	}{req.Value})
}

func decodeHTTPGetAllResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if r.StatusCode != http.StatusOK {
		err := errorDecoder(r)
		if !isServiceError(err) {
			return nil, err
		}
		return flagendpoint.GetAllResponse{Err: err}, nil
	}
	var fs flagservice.FlagSet
	err := json.NewDecoder(r.Body).Decode(&fs)
	return flagendpoint.GetAllResponse{Flags: fs}, err
}

// decodeHTTPFlagResponse is a transport/http.DecodeResponseFunc that decodes
// a JSON-encoded flag response from the HTTP response body. Service errors
// are returned inside the response. Primarily useful in a client.
func decodeHTTPFlagResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if r.StatusCode != http.StatusOK {
		err := errorDecoder(r)
		if !isServiceError(err) {
			return nil, err
		}
		return flagendpoint.FlagResponse{Err: err}, nil
	}
	var resp flagendpoint.FlagResponse
	err := json.NewDecoder(r.Body).Decode(&resp)
	return resp, err
}

func decodeHTTPModeResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if r.StatusCode != http.StatusOK {
		err := errorDecoder(r)
		if !isServiceError(err) {
			return nil, err
		}
		return flagendpoint.ModeResponse{Err: err}, nil
	}
	var resp flagendpoint.ModeResponse
	err := json.NewDecoder(r.Body).Decode(&resp)
	return resp, err
}

func decodeHTTPHealthResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if r.StatusCode != http.StatusOK {
		return nil, errorDecoder(r)
	}
	var resp flagendpoint.HealthResponse
	err := json.NewDecoder(r.Body).Decode(&resp)
	return resp, err
}
