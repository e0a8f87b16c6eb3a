package policy

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/getmockd/chaoskit/pkg/choice"
	"github.com/getmockd/chaoskit/pkg/logging"
)

type hydrateOptions struct {
	labelCheck func(label string) error
	logger     *slog.Logger
}

// HydrateOption configures Hydrate.
type HydrateOption func(*hydrateOptions)

// WithLabelCheck rejects error labels at hydration time. fn returns a non-nil
// error for a label that cannot be turned into an error value.
func WithLabelCheck(fn func(label string) error) HydrateOption {
	return func(o *hydrateOptions) {
		o.labelCheck = fn
	}
}

// WithLogger sets the logger used for deprecation and sanity warnings.
func WithLogger(logger *slog.Logger) HydrateOption {
	return func(o *hydrateOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Hydrate turns a Document into a ChaosConfig. Missing values default
// permissively: a missing enabled flag is false and a missing operation entry
// is inert. Entries for untracked operations are ignored with a warning. Malformed values (rate outside [0, 1], negative weight, invalid
// latency) fail with a *ConfigurationError and no config is returned.
func Hydrate(doc Document, opts ...HydrateOption) (*ChaosConfig, error) {
	o := hydrateOptions{logger: logging.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	for _, d := range doc.Deprecations {
		o.logger.Warn("deprecated policy shape", "detail", d)
	}

	errs, err := hydrateErrors(doc.Errors, &o)
	if err != nil {
		return nil, err
	}
	lats, err := hydrateLatencies(doc.Latencies, &o)
	if err != nil {
		return nil, err
	}

	return &ChaosConfig{
		Enabled:   doc.Enabled,
		Errors:    errs,
		Latencies: lats,
	}, nil
}

// MustHydrate is like Hydrate but panics on error.
func MustHydrate(doc Document, opts ...HydrateOption) *ChaosConfig {
	cfg, err := Hydrate(doc, opts...)
	if err != nil {
		panic(err)
	}
	return cfg
}

func validateRate(path string, rate float64) error {
	if math.IsNaN(rate) || rate < 0.0 || rate > 1.0 {
		return configErr(path, "rate must be between 0.0 and 1.0, got %v", rate)
	}
	return nil
}

// normalizeKeys maps written operation names to kinds in a stable order. Names
// that are not tracked operations are logged and skipped; two spellings of
// the same operation are rejected.
func normalizeKeys[E any](category string, entries map[string]E, logger *slog.Logger) ([]string, map[string]OperationKind, error) {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tracked := keys[:0]
	kinds := make(map[string]OperationKind, len(keys))
	seen := make(map[OperationKind]string, len(keys))
	for _, k := range keys {
		path := joinPath(category, k)
		op, ok := ParseOperation(k)
		if !ok {
			logger.Warn("ignoring policy for untracked operation", "path", path)
			continue
		}
		if prev, dup := seen[op]; dup {
			return nil, nil, configErr(path, "operation %s already configured as %q", op, prev)
		}
		seen[op] = k
		kinds[k] = op
		tracked = append(tracked, k)
	}
	return tracked, kinds, nil
}

func hydrateErrors(g ErrorsDocument, o *hydrateOptions) (*PolicyGroup[string], error) {
	keys, kinds, err := normalizeKeys(string(CategoryErrors), g.Operations, o.logger)
	if err != nil {
		return nil, err
	}

	policies := make(map[OperationKind]*Policy[string], len(keys))
	for _, k := range keys {
		entry := g.Operations[k]
		path := joinPath(string(CategoryErrors), k)

		if err := validateRate(joinPath(path, "rate"), entry.Rate); err != nil {
			return nil, err
		}

		weights := make([]int, 0, len(entry.Errors))
		labels := make([]string, 0, len(entry.Errors))
		for _, wl := range entry.Errors {
			labelPath := joinPath(path, "errors", wl.Label)
			if wl.Label == "" {
				return nil, configErr(joinPath(path, "errors"), "empty error label")
			}
			if o.labelCheck != nil {
				if err := o.labelCheck(wl.Label); err != nil {
					return nil, wrapConfigErr(labelPath, err)
				}
			}
			weights = append(weights, wl.Weight)
			labels = append(labels, wl.Label)
		}

		dist, err := choice.New(weights, labels)
		if err != nil {
			return nil, wrapConfigErr(joinPath(path, "errors"), err)
		}
		if entry.Rate > 0 && !dist.Empty() && dist.Total() == 0 {
			o.logger.Warn("error policy has labels but no positive weight; firing will fail",
				"path", path)
		}

		policies[kinds[k]] = &Policy[string]{Choices: dist, Rate: entry.Rate}
	}

	return NewPolicyGroup(g.Enabled, policies), nil
}

func hydrateLatencies(g LatenciesDocument, o *hydrateOptions) (*PolicyGroup[LatencySpec], error) {
	keys, kinds, err := normalizeKeys(string(CategoryLatencies), g.Operations, o.logger)
	if err != nil {
		return nil, err
	}

	policies := make(map[OperationKind]*Policy[LatencySpec], len(keys))
	for _, k := range keys {
		entry := g.Operations[k]
		path := joinPath(string(CategoryLatencies), k)

		if err := validateRate(joinPath(path, "rate"), entry.Rate); err != nil {
			return nil, err
		}
		if entry.Latency != nil && len(entry.Choices) > 0 {
			return nil, configErr(path, "latency and choices are mutually exclusive")
		}

		var weights []int
		var specs []LatencySpec
		if entry.Latency != nil {
			if err := entry.Latency.Validate(); err != nil {
				return nil, wrapConfigErr(joinPath(path, "latency"), err)
			}
			weights = []int{1}
			specs = []LatencySpec{*entry.Latency}
		}
		for i, wl := range entry.Choices {
			if err := wl.Latency.Validate(); err != nil {
				return nil, wrapConfigErr(fmt.Sprintf("%s[%d]", joinPath(path, "choices"), i), err)
			}
			weights = append(weights, wl.Weight)
			specs = append(specs, wl.Latency)
		}

		dist, err := choice.New(weights, specs)
		if err != nil {
			return nil, wrapConfigErr(joinPath(path, "choices"), err)
		}

		policies[kinds[k]] = &Policy[LatencySpec]{Choices: dist, Rate: entry.Rate}
	}

	return NewPolicyGroup(g.Enabled, policies), nil
}
