package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/featureflag/flagsvc/flags"
	"github.com/featureflag/flagsvc/flags/remote"
	"github.com/featureflag/flagsvc/pkg/flagendpoint"
	"github.com/featureflag/flagsvc/pkg/flagservice"
	"github.com/featureflag/flagsvc/pkg/flagtransport"
)

const defaultURL = "http://localhost:5005"

func main() {
	fs := flag.NewFlagSet("flagcli", flag.ExitOnError)
	var (
		addr    = fs.String("url", envString("FEATURE_FLAG_URL", defaultURL), "Flag service address")
		timeout = fs.Duration("timeout", time.Second, "Per-request timeout")
		verbose = fs.Bool("v", false, "Log flag lookups and fallbacks")
	)
	fs.Usage = usageFor(fs, os.Args[0]+" [flags] <command> [args...]")
	fs.Parse(os.Args[1:])
	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(os.Stderr)
		if !*verbose {
			logger = level.NewFilter(logger, level.AllowError())
		}
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	svc, err := flagtransport.NewHTTPClient(*addr, *timeout, nil, nil, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := run(context.Background(), svc, logger, fs.Args(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run executes one command against svc.
//
//	health                  service status and mode
//	mode                    current mode (falls back to test if unreachable)
//	mode <test|production>  change the mode
//	list                    all flags
//	get <name>              one flag
//	set <name> <value>      create or update a flag; "true"/"false" are booleans
//	gate <cmd> [args...]    run cmd only when the mode is production
func run(ctx context.Context, svc flagservice.Service, logger log.Logger, args []string, stdout io.Writer) error {
	cmd, args := args[0], args[1:]
	switch {
	case cmd == "health" && len(args) == 0:
		set, ok := svc.(flagendpoint.Set)
		if !ok {
			return errors.New("health needs a remote service")
		}
		resp, err := set.HealthEndpoint(ctx, nil)
		if err != nil {
			return err
		}
		h := resp.(flagendpoint.HealthResponse)
		fmt.Fprintf(stdout, "%s %s mode=%s\n", h.Service, h.Status, h.Mode)

	case cmd == "mode" && len(args) == 0:
		fmt.Fprintln(stdout, remote.NewModeStringer(svc, logger).String(ctx))

	case cmd == "mode" && len(args) == 1:
		m, err := svc.SetMode(ctx, flagservice.Mode(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, m)

	case cmd == "list" && len(args) == 0:
		fs, err := svc.GetAll(ctx)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(fs))
		for name := range fs {
			names = append(names, name)
		}
		sort.Strings(names)
		tw := tabwriter.NewWriter(stdout, 0, 2, 2, ' ', 0)
		for _, name := range names {
			fmt.Fprintf(tw, "%s\t%s\n", name, fs[name])
		}
		return tw.Flush()

	case cmd == "get" && len(args) == 1:
		v, err := svc.Get(ctx, args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		fmt.Fprintln(stdout, v)

	case cmd == "set" && len(args) == 2:
		v, err := svc.Set(ctx, args[0], flagservice.ParseText(args[1]))
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		fmt.Fprintf(stdout, "%s=%s\n", args[0], v)

	case cmd == "gate" && len(args) >= 1:
		gated := flags.Gate(remote.NewProductionBooler(svc, logger))(execEndpoint(stdout))
		_, err := gated(ctx, args)
		if errors.Is(err, flags.ErrGated) {
			fmt.Fprintf(stdout, "skipped %q: environment mode is not production\n", strings.Join(args, " "))
			return nil
		}
		return err

	default:
		return fmt.Errorf("unknown command %q with %d argument(s)", cmd, len(args))
	}
	return nil
}

// execEndpoint runs the request, a command line, as a child process.
func execEndpoint(stdout io.Writer) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		argv := request.([]string)
		c := exec.CommandContext(ctx, argv[0], argv[1:]...)
		c.Stdin = os.Stdin
		c.Stdout = stdout
		c.Stderr = os.Stderr
		return nil, c.Run()
	}
}

func envString(env, fallback string) string {
	e := os.Getenv(env)
	if e == "" {
		return fallback
	}
	return e
}

func usageFor(fs *flag.FlagSet, short string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "USAGE\n")
		fmt.Fprintf(os.Stderr, "  %s\n", short)
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "COMMANDS\n")
		fmt.Fprintf(os.Stderr, "  health | mode [test|production] | list | get <name> | set <name> <value> | gate <cmd> [args...]\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		fs.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(os.Stderr, "  -%-10s %s (default %q)\n", f.Name, f.Usage, f.DefValue)
		})
		fmt.Fprintf(os.Stderr, "\n")
	}
}
