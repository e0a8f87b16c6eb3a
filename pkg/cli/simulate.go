package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/getmockd/chaoskit/pkg/chaos"
	"github.com/getmockd/chaoskit/pkg/cli/internal/output"
	"github.com/getmockd/chaoskit/pkg/datastore"
	"github.com/getmockd/chaoskit/pkg/metrics"
	"github.com/getmockd/chaoskit/pkg/policy"
	"github.com/getmockd/chaoskit/pkg/ratelimit"
	"github.com/getmockd/chaoskit/pkg/tracing"
)

type simulateOptions struct {
	count    int
	workers  int
	ops      []string
	noSleep  bool
	interval time.Duration
	rate     float64
	watch    bool
	metrics  bool
	trace    bool
}

// SimulateResult is the simulate output.
type SimulateResult struct {
	Policy  string      `json:"policy"`
	Elapsed string      `json:"elapsed"`
	Stats   chaos.Stats `json:"stats"`
}

func newSimulateCmd(a *app) *cobra.Command {
	opts := &simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Dispatch operations against a policy and report the outcomes",
		Long: `Simulate sends --count operations through a dispatcher, cycling through
--ops, and prints how many passed, failed with each error label, or were
delayed. Error labels resolve to the datastore error catalog.

Injected delays really block unless --no-sleep is given.`,
		Example: `  chaoskit simulate --count 10000 --no-sleep
  chaoskit simulate -p chaos.yaml --workers 8 --metrics
  chaoskit simulate -p chaos.yaml --watch --rate 50 --count 100000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulate(cmd, a, opts)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.count, "count", "n", 1000, "Number of dispatches")
	f.IntVarP(&opts.workers, "workers", "w", 4, "Concurrent dispatching workers")
	f.StringSliceVar(&opts.ops, "ops", []string{"GET", "PUT", "DELETE"}, "Operation names to cycle through")
	f.BoolVar(&opts.noSleep, "no-sleep", false, "Record injected delays without blocking")
	f.DurationVar(&opts.interval, "interval", 0, "Pause between dispatches on each worker")
	f.Float64Var(&opts.rate, "rate", 0, "Maximum dispatches per second across all workers (0 is unlimited)")
	f.BoolVar(&opts.watch, "watch", false, "Reload the policy file while simulating")
	f.BoolVar(&opts.metrics, "metrics", false, "Print Prometheus metrics after the run")
	f.BoolVar(&opts.trace, "trace", false, "Export a span per dispatch to stderr")
	return cmd
}

func runSimulate(cmd *cobra.Command, a *app, opts *simulateOptions) error {
	if opts.count < 0 {
		return fmt.Errorf("--count must not be negative, got %d", opts.count)
	}
	if opts.workers < 1 {
		return fmt.Errorf("--workers must be at least 1, got %d", opts.workers)
	}
	if len(opts.ops) == 0 {
		return errors.New("--ops must name at least one operation")
	}
	if opts.rate < 0 {
		return fmt.Errorf("--rate must not be negative, got %v", opts.rate)
	}
	if opts.watch && a.cfg.PolicyFile == "" {
		return errors.New("--watch requires a policy file (--policy or CHAOSKIT_POLICY)")
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	if opts.trace {
		shutdown, err := tracing.Init(tracing.Config{
			ServiceName:    "chaoskit",
			ServiceVersion: Version,
			Output:         cmd.ErrOrStderr(),
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				a.logger.Warn("failed to flush traces", "error", err)
			}
		}()
	}

	reg := prometheus.NewRegistry()
	dopts := []chaos.Option{
		chaos.WithSource(a.source()),
		chaos.WithResolver(datastore.DefaultRegistry()),
		chaos.WithLogger(a.logger),
		chaos.WithRecorder(metrics.NewRecorder(reg)),
	}
	if opts.noSleep {
		dopts = append(dopts, chaos.WithSleeper(chaos.NoSleep))
	}
	d := chaos.NewDispatcher(cfg, dopts...)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	watchDone := make(chan error, 1)
	if opts.watch {
		w, err := policy.NewWatcher(a.cfg.PolicyFile, d.SetConfig,
			policy.WithWatchLogger(a.logger),
			policy.WithHydrateOptions(a.hydrateOptions()...),
		)
		if err != nil {
			return err
		}
		go func() { watchDone <- w.Run(ctx) }()
	} else {
		watchDone <- nil
	}

	start := time.Now()
	err = dispatchAll(ctx, d, opts)
	elapsed := time.Since(start)

	cancel()
	if werr := <-watchDone; werr != nil {
		a.logger.Warn("policy watcher stopped", "error", werr)
	}
	if err != nil {
		return err
	}

	result := SimulateResult{
		Policy:  a.policyName(),
		Elapsed: elapsed.Round(time.Millisecond).String(),
		Stats:   d.Stats(),
	}
	w := cmd.OutOrStdout()
	if a.jsonOutput {
		if err := output.JSON(w, result); err != nil {
			return err
		}
	} else {
		printSimulateResult(w, result)
	}

	if opts.metrics {
		fmt.Fprintln(w)
		return metrics.WriteText(w, reg)
	}
	return nil
}

// dispatchAll spreads opts.count dispatches over opts.workers goroutines.
// Injected faults are the point of the exercise and are not errors here; only
// cancellation stops the run early.
func dispatchAll(ctx context.Context, d *chaos.Dispatcher, opts *simulateOptions) error {
	var next atomic.Int64
	total := int64(opts.count)

	var limiter *ratelimit.Bucket
	if opts.rate > 0 {
		b, err := ratelimit.NewBucket(opts.rate, opts.workers)
		if err != nil {
			return err
		}
		limiter = b
	}

	g, gctx := errgroup.WithContext(ctx)
	for range opts.workers {
		g.Go(func() error {
			for {
				i := next.Add(1) - 1
				if i >= total {
					return nil
				}
				if limiter != nil {
					if err := limiter.Wait(gctx); err != nil {
						return err
					}
				}
				op := opts.ops[i%int64(len(opts.ops))]
				if err := d.Dispatch(gctx, op); err != nil && gctx.Err() != nil {
					return gctx.Err()
				}
				if opts.interval > 0 {
					if err := chaos.TimerSleeper.Sleep(gctx, opts.interval); err != nil {
						return err
					}
				}
			}
		})
	}
	return g.Wait()
}

func printSimulateResult(w io.Writer, r SimulateResult) {
	s := r.Stats
	fmt.Fprintf(w, "Simulated %d dispatches against %s in %s\n\n", s.Dispatches, r.Policy, r.Elapsed)

	tw := output.Table(w)
	fmt.Fprintln(tw, "OUTCOME\tCOUNT\tSHARE")
	fmt.Fprintf(tw, "passed\t%d\t%s\n", s.Passed, output.Percent(s.Passed, s.Dispatches))
	fmt.Fprintf(tw, "untracked\t%d\t%s\n", s.Untracked, output.Percent(s.Untracked, s.Dispatches))
	fmt.Fprintf(tw, "errors\t%d\t%s\n", s.ErrorsInjected, output.Percent(s.ErrorsInjected, s.Dispatches))
	for _, label := range slices.Sorted(maps.Keys(s.ErrorsByLabel)) {
		n := s.ErrorsByLabel[label]
		fmt.Fprintf(tw, "  %s\t%d\t%s\n", label, n, output.Percent(n, s.Dispatches))
	}
	fmt.Fprintf(tw, "delays\t%d\t%s\n", s.DelaysInjected, output.Percent(s.DelaysInjected, s.Dispatches))
	_ = tw.Flush()

	if s.DelaysInjected > 0 {
		mean := s.TotalDelay / time.Duration(s.DelaysInjected)
		fmt.Fprintf(w, "\nTotal injected delay %s (mean %s)\n", s.TotalDelay, mean.Round(time.Millisecond))
	}
	if s.Untracked > 0 {
		fmt.Fprintf(w, "\nUntracked operations are passed through; tracked ones are %s\n", strings.Join(opNames(), ", "))
	}
}

func opNames() []string {
	ops := policy.Operations()
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = string(op)
	}
	return out
}
