package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/getmockd/chaoskit/pkg/chaos"
	"github.com/getmockd/chaoskit/pkg/cli/internal/output"
	"github.com/getmockd/chaoskit/pkg/datastore"
	"github.com/getmockd/chaoskit/pkg/hook"
)

// Storage backends for demo.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

type demoOptions struct {
	backend    string
	sqlitePath string
	redisAddr  string
	rounds     int
	noSleep    bool
}

// scenario is one request handler run against the guarded store.
type scenario struct {
	name string
	run  func(ctx context.Context, s datastore.Store) error
}

var scenarios = []scenario{
	{name: "put-get", run: putGet},
	{name: "nested", run: nestedPut},
	{name: "delete", run: putDelete},
	{name: "query", run: queryChildren},
}

// ScenarioResult tallies one scenario across rounds.
type ScenarioResult struct {
	Name     string         `json:"name"`
	Runs     int            `json:"runs"`
	OK       int            `json:"ok"`
	Failed   int            `json:"failed"`
	Failures map[string]int `json:"failures,omitempty"`
}

// DemoResult is the demo output.
type DemoResult struct {
	Backend   string           `json:"backend"`
	Policy    string           `json:"policy"`
	Scenarios []ScenarioResult `json:"scenarios"`
	Stats     chaos.Stats      `json:"stats"`
}

func newDemoCmd(a *app) *cobra.Command {
	opts := &demoOptions{}
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run CRUD scenarios against a chaos-guarded datastore",
		Long: `Demo installs the chaos hook on a datastore, then runs a few request
handlers against it: put then get, a parent/child put, put then delete, and
a kind query. Queries are not a tracked operation and never see chaos.

Each failure is reported under the injected error label.`,
		Example: `  chaoskit demo --rounds 100 --no-sleep
  chaoskit demo --backend sqlite --sqlite-path demo.db
  chaoskit demo --backend redis --redis-addr localhost:6379`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDemo(cmd, a, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.backend, "backend", BackendMemory, "Storage backend: memory, sqlite or redis")
	f.StringVar(&opts.sqlitePath, "sqlite-path", ":memory:", "SQLite database path")
	f.StringVar(&opts.redisAddr, "redis-addr", "localhost:6379", "Redis address")
	f.IntVar(&opts.rounds, "rounds", 10, "Times to run each scenario")
	f.BoolVar(&opts.noSleep, "no-sleep", false, "Record injected delays without blocking")
	return cmd
}

func openBackend(ctx context.Context, opts *demoOptions) (datastore.Store, error) {
	switch opts.backend {
	case BackendMemory:
		return datastore.NewMemoryStore(), nil
	case BackendSQLite:
		return datastore.OpenSQLite(opts.sqlitePath)
	case BackendRedis:
		return datastore.OpenRedis(ctx, opts.redisAddr, datastore.DefaultRedisPrefix+"demo:")
	default:
		return nil, fmt.Errorf("unknown backend %q (want memory, sqlite or redis)", opts.backend)
	}
}

func runDemo(cmd *cobra.Command, a *app, opts *demoOptions) error {
	if opts.rounds < 1 {
		return fmt.Errorf("--rounds must be at least 1, got %d", opts.rounds)
	}
	ctx := cmd.Context()

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	backend, err := openBackend(ctx, opts)
	if err != nil {
		return err
	}
	defer backend.Close()

	dopts := []chaos.Option{
		chaos.WithSource(a.source()),
		chaos.WithResolver(datastore.DefaultRegistry()),
		chaos.WithLogger(a.logger),
	}
	if opts.noSleep {
		dopts = append(dopts, chaos.WithSleeper(chaos.NoSleep))
	}
	d := chaos.NewDispatcher(cfg, dopts...)

	hooks := hook.NewRegistry()
	inst, err := hook.Install(hooks, datastore.Service, d)
	if err != nil {
		return err
	}
	defer inst.Uninstall()
	store := datastore.Guard(backend, hooks)

	results := make([]ScenarioResult, len(scenarios))
	for i, sc := range scenarios {
		results[i] = ScenarioResult{Name: sc.name, Failures: make(map[string]int)}
	}
	for round := range opts.rounds {
		for i, sc := range scenarios {
			err := sc.run(ctx, store)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r := &results[i]
			r.Runs++
			if err == nil {
				r.OK++
				continue
			}
			r.Failed++
			r.Failures[failureLabel(err)]++
			a.logger.Debug("scenario failed", "scenario", sc.name, "round", round, "error", err)
		}
	}

	result := DemoResult{
		Backend:   opts.backend,
		Policy:    a.policyName(),
		Scenarios: results,
		Stats:     d.Stats(),
	}
	w := cmd.OutOrStdout()
	if a.jsonOutput {
		return output.JSON(w, result)
	}
	printDemoResult(w, result)
	return nil
}

// failureLabel names err by the injected label, or "real" for a failure the
// backend produced itself.
func failureLabel(err error) string {
	var fault *chaos.Fault
	if errors.As(err, &fault) {
		if fault.Label == "" {
			return chaos.GenericLabel
		}
		return fault.Label
	}
	return "real"
}

func putGet(ctx context.Context, s datastore.Store) error {
	key, err := s.Put(ctx, &datastore.Entity{
		Kind:       "Model",
		Properties: map[string]string{"a_property": "test value"},
	})
	if err != nil {
		return err
	}
	got, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if got.Key != key {
		return fmt.Errorf("loaded key %q, stored %q", got.Key, key)
	}
	return nil
}

func nestedPut(ctx context.Context, s datastore.Store) error {
	parent := &datastore.Entity{Key: "parent", Kind: "ParentModel", Properties: map[string]string{"a_property": "parent"}}
	if _, err := s.Put(ctx, parent); err != nil {
		return err
	}
	child := &datastore.Entity{Key: "child", Kind: "ChildModel", Parent: parent.Key, Properties: map[string]string{"a_property": "child"}}
	if _, err := s.Put(ctx, child); err != nil {
		return err
	}
	got, err := s.Get(ctx, parent.Key)
	if err != nil {
		return err
	}
	if got.Key != parent.Key {
		return fmt.Errorf("loaded key %q, stored %q", got.Key, parent.Key)
	}
	return nil
}

func putDelete(ctx context.Context, s datastore.Store) error {
	key, err := s.Put(ctx, &datastore.Entity{Kind: "Model"})
	if err != nil {
		return err
	}
	if err := s.Delete(ctx, key); err != nil {
		return err
	}
	if _, err := s.Get(ctx, key); !errors.Is(err, datastore.ErrNoSuchEntity) {
		if err != nil {
			return err
		}
		return fmt.Errorf("entity %q still present after delete", key)
	}
	return nil
}

func queryChildren(ctx context.Context, s datastore.Store) error {
	children, err := s.List(ctx, "ChildModel")
	if err != nil {
		return err
	}
	for _, c := range children {
		if c.Parent == "" {
			return fmt.Errorf("child %q has no parent", c.Key)
		}
	}
	return nil
}

func printDemoResult(w io.Writer, r DemoResult) {
	fmt.Fprintf(w, "Ran %d scenarios on the %s backend with %s\n\n", len(r.Scenarios), r.Backend, r.Policy)

	tw := output.Table(w)
	fmt.Fprintln(tw, "SCENARIO\tRUNS\tOK\tFAILED\tFAILURES")
	for _, sc := range r.Scenarios {
		failures := "-"
		if len(sc.Failures) > 0 {
			failures = ""
			for i, label := range slices.Sorted(maps.Keys(sc.Failures)) {
				if i > 0 {
					failures += " "
				}
				failures += fmt.Sprintf("%s=%d", label, sc.Failures[label])
			}
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", sc.Name, sc.Runs, sc.OK, sc.Failed, failures)
	}
	_ = tw.Flush()

	s := r.Stats
	fmt.Fprintf(w, "\n%d dispatches: %d errors injected, %d delays injected (%s total)\n",
		s.Dispatches, s.ErrorsInjected, s.DelaysInjected, s.TotalDelay)
}
