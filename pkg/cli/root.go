package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/getmockd/chaoskit/internal/cliconfig"
	"github.com/getmockd/chaoskit/pkg/chance"
	"github.com/getmockd/chaoskit/pkg/cli/internal/output"
	"github.com/getmockd/chaoskit/pkg/datastore"
	"github.com/getmockd/chaoskit/pkg/logging"
	"github.com/getmockd/chaoskit/pkg/policy"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// builtinPolicy names the embedded datastore policy in output.
const builtinPolicy = "built-in datastore policy"

// app carries the settings shared by every subcommand.
type app struct {
	cfg        *cliconfig.CLIConfig
	logger     *slog.Logger
	jsonOutput bool

	// raw persistent flag values, merged into cfg by setup
	policyFile string
	logLevel   string
	logFormat  string
	logFile    string
	seed       uint64

	closeLog func() error
}

func newRootCmd() *cobra.Command {
	a := &app{logger: logging.Nop()}

	cmd := &cobra.Command{
		Use:   "chaoskit",
		Short: "chaoskit injects probabilistic faults into storage calls",
		Long: `chaoskit decides, per storage operation, whether to fail it with an error
or slow it down, according to a weighted policy document.

Configuration can be provided via flags, environment variables (CHAOSKIT_*),
.chaoskitrc.yaml in the current directory, or ~/.config/chaoskit/config.yaml.
Without --policy the built-in datastore policy is used.`,
		SilenceUsage:  true,
		SilenceErrors: true, // handled in Execute()
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.closeLog != nil {
				return a.closeLog()
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.policyFile, "policy", "p", "", "Policy document (YAML or JSON)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "Log format: text or json")
	flags.StringVar(&a.logFile, "log-file", "", "Also append JSON logs to this file")
	flags.Uint64Var(&a.seed, "seed", 0, "Random seed (0 picks one at random)")
	flags.BoolVar(&a.jsonOutput, "json", false, "Output command results in JSON format")

	cmd.AddCommand(
		newValidateCmd(a),
		newSimulateCmd(a),
		newDemoCmd(a),
		newVersionCmd(a),
	)
	return cmd
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if code := Run(); code != 0 {
		os.Exit(code)
	}
}

// Run runs the root command against os.Args and returns the exit code.
func Run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// setup layers flags over the loaded config and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := cliconfig.LoadAll()
	if err != nil {
		output.Warn(cmd.ErrOrStderr(), "%v", err)
	}

	flags := cmd.Flags()
	fromFlags := &cliconfig.CLIConfig{}
	if flags.Changed("policy") {
		fromFlags.PolicyFile = a.policyFile
	}
	if flags.Changed("log-level") {
		fromFlags.LogLevel = a.logLevel
	}
	if flags.Changed("log-format") {
		fromFlags.LogFormat = a.logFormat
	}
	if flags.Changed("seed") {
		fromFlags.Seed = a.seed
	}
	cliconfig.MergeConfig(cfg, fromFlags, cliconfig.SourceFlag)

	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	lc := cfg.Logging()
	lc.Output = cmd.ErrOrStderr()
	if a.logFile == "" {
		a.logger = logging.New(lc)
		return nil
	}

	f, err := os.OpenFile(a.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	a.closeLog = f.Close
	a.logger = slog.New(logging.Fanout(
		logging.Handler(lc),
		logging.Handler(logging.Config{Level: lc.Level, Format: logging.FormatJSON, Output: f}),
	))
	return nil
}

// source returns the seeded source when a seed is configured.
func (a *app) source() chance.Source {
	if a.cfg.Seed != 0 {
		return chance.NewSource(a.cfg.Seed)
	}
	return chance.Default()
}

// policyName describes where loadConfig reads from.
func (a *app) policyName() string {
	if a.cfg.PolicyFile == "" {
		return builtinPolicy
	}
	return a.cfg.PolicyFile
}

// hydrateOptions checks labels against the datastore error catalog, which is
// the resolver every command dispatches with.
func (a *app) hydrateOptions() []policy.HydrateOption {
	return []policy.HydrateOption{
		policy.WithLabelCheck(datastore.DefaultRegistry().Check),
		policy.WithLogger(a.logger),
	}
}

// loadConfig hydrates the configured policy file, or the built-in default.
func (a *app) loadConfig() (*policy.ChaosConfig, error) {
	if a.cfg.PolicyFile == "" {
		return datastore.DefaultConfig(policy.WithLogger(a.logger))
	}
	return policy.Load(a.cfg.PolicyFile, a.hydrateOptions()...)
}
