package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/oklog/run"
	stdopentracing "github.com/opentracing/opentracing-go"
	stdzipkin "github.com/openzipkin/zipkin-go"
	zipkinhttp "github.com/openzipkin/zipkin-go/reporter/http"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/prometheus"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/featureflag/flagsvc/pkg/flagendpoint"
	"github.com/featureflag/flagsvc/pkg/flagservice"
	"github.com/featureflag/flagsvc/pkg/flagtransport"
)

const (
	defaultPort = "5005"
	defaultMode = "production"
)

func main() {
	fs := flag.NewFlagSet("flagsvc", flag.ExitOnError)
	var (
		httpAddr  = fs.String("http-addr", ":"+envString("FEATURE_FLAG_PORT", defaultPort), "HTTP listen address")
		debugAddr = fs.String("debug-addr", ":8080", "Debug and metrics listen address")
		mode      = fs.String("default-mode", envString("FEATURE_FLAG_DEFAULT_MODE", defaultMode), "Environment mode at startup: test or production")
		seed      = fs.String("seed", envString("FEATURE_FLAG_SEED", ""), "Initial flags as name=value pairs separated by commas")
		zipkinURL = fs.String("zipkin-url", "", "Enable Zipkin tracing via HTTP reporter URL e.g. http://localhost:9411/api/v2/spans")
		logLevel  = fs.String("log-level", "info", "debug, info, warn or error")
	)
	fs.Usage = usageFor(fs, os.Args[0]+" [flags]")
	fs.Parse(os.Args[1:])

	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
		logger = level.NewFilter(logger, levelOption(*logLevel))
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	startMode, err := flagservice.ParseMode(*mode)
	if err != nil {
		level.Warn(logger).Log("default_mode", *mode, "err", err, "using", flagservice.DefaultMode)
		startMode = flagservice.DefaultMode
	}

	var zipkinTracer *stdzipkin.Tracer
	{
		if *zipkinURL != "" {
			var (
				err         error
				hostPort    = "localhost:80"
				serviceName = "flagsvc"
				reporter    = zipkinhttp.NewReporter(*zipkinURL)
			)
			defer reporter.Close()
			zEP, _ := stdzipkin.NewEndpoint(serviceName, hostPort)
			zipkinTracer, err = stdzipkin.NewTracer(reporter, stdzipkin.WithLocalEndpoint(zEP))
			if err != nil {
				level.Error(logger).Log("err", err)
				os.Exit(1)
			}
			level.Info(logger).Log("tracer", "Zipkin", "URL", *zipkinURL)
		}
	}

	// No opentracing backend is configured; the global tracer is a no-op
	// unless something registers one.
	tracer := stdopentracing.GlobalTracer()

	// Our metrics are dependencies, here we create them.
	var writes metrics.Counter
	var production metrics.Gauge
	{
		// Business-level metrics.
		writes = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: "featureflag",
			Subsystem: "flagsvc",
			Name:      "flag_writes_total",
			Help:      "Total count of flag writes, by outcome; flag is environment_mode or other.",
		}, []string{"flag", "success"})
		production = prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: "featureflag",
			Subsystem: "flagsvc",
			Name:      "production_mode",
			Help:      "1 when the environment mode is production, 0 for test.",
		}, []string{})
	}
	var duration metrics.Histogram
	{
		// Endpoint-level metrics.
		duration = prometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
			Namespace: "featureflag",
			Subsystem: "flagsvc",
			Name:      "request_duration_seconds",
			Help:      "Request duration in seconds.",
		}, []string{"method", "success"})
	}
	http.DefaultServeMux.Handle("/metrics", promhttp.Handler())

	var (
		service     = flagservice.New(startMode, log.With(logger, "component", "service"), writes, production)
		endpoints   = flagendpoint.New(service, log.With(logger, "component", "endpoint"), duration, tracer, zipkinTracer)
		httpHandler = flagtransport.NewHTTPHandler(endpoints, tracer, zipkinTracer, log.With(logger, "component", "http"))
	)

	for name, v := range parseSeed(*seed) {
		if _, err := service.Set(context.Background(), name, v); err != nil {
			level.Error(logger).Log("seed", name, "value", v, "err", err)
			os.Exit(1)
		}
	}

	var g run.Group
	{
		// The debug listener mounts the http.DefaultServeMux, and serves up
		// the Prometheus metrics route.
		debugListener, err := net.Listen("tcp", *debugAddr)
		if err != nil {
			level.Error(logger).Log("transport", "debug/HTTP", "during", "Listen", "err", err)
			os.Exit(1)
		}
		g.Add(func() error {
			level.Info(logger).Log("transport", "debug/HTTP", "addr", *debugAddr)
			return http.Serve(debugListener, http.DefaultServeMux)
		}, func(error) {
			debugListener.Close()
		})
	}
	{
		httpListener, err := net.Listen("tcp", *httpAddr)
		if err != nil {
			level.Error(logger).Log("transport", "HTTP", "during", "Listen", "err", err)
			os.Exit(1)
		}
		g.Add(func() error {
			level.Info(logger).Log("transport", "HTTP", "addr", *httpAddr, "mode", startMode)
			return http.Serve(httpListener, httpHandler)
		}, func(error) {
			httpListener.Close()
		})
	}
	{
		// This function just sits and waits for ctrl-C.
		cancelInterrupt := make(chan struct{})
		g.Add(func() error {
			c := make(chan os.Signal, 1)
			signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-c:
				return fmt.Errorf("received signal %s", sig)
			case <-cancelInterrupt:
				return nil
			}
		}, func(error) {
			close(cancelInterrupt)
		})
	}
	level.Info(logger).Log("exit", g.Run())
}

func envString(env, fallback string) string {
	e := os.Getenv(env)
	if e == "" {
		return fallback
	}
	return e
}

func levelOption(s string) level.Option {
	switch strings.ToLower(s) {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	}
	return level.AllowInfo()
}

// parseSeed reads "a=true,theme=dark" into a FlagSet. Pairs without an "="
// are skipped.
func parseSeed(s string) flagservice.FlagSet {
	fs := flagservice.FlagSet{}
	for _, pair := range strings.Split(s, ",") {
		kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			continue
		}
		fs[kv[0]] = flagservice.ParseText(kv[1])
	}
	return fs
}

func usageFor(fs *flag.FlagSet, short string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "USAGE\n")
		fmt.Fprintf(os.Stderr, "  %s\n", short)
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		fs.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(os.Stderr, "  -%-14s %s (default %q)\n", f.Name, f.Usage, f.DefValue)
		})
		fmt.Fprintf(os.Stderr, "\n")
	}
}
