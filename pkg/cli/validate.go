package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/getmockd/chaoskit/pkg/cli/internal/output"
	"github.com/getmockd/chaoskit/pkg/policy"
)

// PolicySummary is the validate output.
type PolicySummary struct {
	Source     string            `json:"source"`
	Enabled    bool              `json:"enabled"`
	Categories []CategorySummary `json:"categories"`
	Warnings   []string          `json:"warnings,omitempty"`
}

// CategorySummary describes one effect category.
type CategorySummary struct {
	Name       string             `json:"name"`
	Enabled    bool               `json:"enabled"`
	Operations []OperationSummary `json:"operations"`
}

// OperationSummary describes the policy for one operation.
type OperationSummary struct {
	Operation string          `json:"operation"`
	Rate      float64         `json:"rate"`
	Choices   []ChoiceSummary `json:"choices,omitempty"`
}

// ChoiceSummary is one weighted effect.
type ChoiceSummary struct {
	Effect      string  `json:"effect"`
	Weight      int     `json:"weight"`
	Probability float64 `json:"probability"`
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [policy-file]",
		Short: "Validate a policy document and show what it injects",
		Long: `Validate decodes and hydrates a policy document without dispatching
anything. Error labels are checked against the datastore error catalog.

The file argument overrides --policy. With neither, the built-in datastore
policy is validated.`,
		Example: `  chaoskit validate chaos.yaml
  chaoskit validate --json -p chaos.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				a.cfg.PolicyFile = args[0]
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			summary := summarize(a.policyName(), cfg)
			w := cmd.OutOrStdout()
			if a.jsonOutput {
				return output.JSON(w, summary)
			}
			printSummary(w, summary)
			return nil
		},
	}
}

func summarize(source string, cfg *policy.ChaosConfig) PolicySummary {
	s := PolicySummary{Source: source, Enabled: cfg.Enabled}

	errs, warns := summarizeGroup(policy.CategoryErrors, cfg.Errors, func(label string) string { return label })
	s.Warnings = append(s.Warnings, warns...)
	errs.Enabled = cfg.GroupEnabled(policy.CategoryErrors)
	s.Categories = append(s.Categories, errs)

	lats, warns := summarizeGroup(policy.CategoryLatencies, cfg.Latencies, policy.LatencySpec.String)
	s.Warnings = append(s.Warnings, warns...)
	lats.Enabled = cfg.GroupEnabled(policy.CategoryLatencies)
	s.Categories = append(s.Categories, lats)

	if !cfg.Enabled {
		s.Warnings = append(s.Warnings, "chaos is disabled at the root; nothing will be injected")
	}
	return s
}

func summarizeGroup[T any](cat policy.EffectCategory, g *policy.PolicyGroup[T], name func(T) string) (CategorySummary, []string) {
	cs := CategorySummary{Name: string(cat)}
	var warnings []string
	for _, op := range policy.Operations() {
		p, ok := g.For(op)
		if !ok {
			continue
		}
		entry := OperationSummary{Operation: string(op), Rate: p.Rate}
		weights := p.Choices.Weights()
		for i, opt := range p.Choices.Options() {
			entry.Choices = append(entry.Choices, ChoiceSummary{
				Effect:      name(opt),
				Weight:      weights[i],
				Probability: p.Choices.Probability(i),
			})
		}
		if p.Rate > 0 && !p.Choices.Empty() && p.Choices.Total() == 0 {
			warnings = append(warnings, fmt.Sprintf("%s.%s: all weights are zero; every fire will fail", cat, op))
		}
		cs.Operations = append(cs.Operations, entry)
	}
	return cs, warnings
}

func printSummary(w io.Writer, s PolicySummary) {
	state := "enabled"
	if !s.Enabled {
		state = "disabled"
	}
	fmt.Fprintf(w, "Policy %s is valid (%s)\n\n", s.Source, state)

	tw := output.Table(w)
	fmt.Fprintln(tw, "CATEGORY\tOPERATION\tRATE\tEFFECT\tWEIGHT\tSHARE")
	for _, cat := range s.Categories {
		name := cat.Name
		if !cat.Enabled {
			name += " (off)"
		}
		for _, op := range cat.Operations {
			rate := strconv.FormatFloat(op.Rate, 'f', -1, 64)
			if len(op.Choices) == 0 {
				fmt.Fprintf(tw, "%s\t%s\t%s\t-\t-\t-\n", name, op.Operation, rate)
				continue
			}
			for i, c := range op.Choices {
				if i > 0 {
					fmt.Fprintf(tw, "\t\t\t%s\t%d\t%.1f%%\n", c.Effect, c.Weight, 100*c.Probability)
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%.1f%%\n", name, op.Operation, rate, c.Effect, c.Weight, 100*c.Probability)
			}
		}
	}
	_ = tw.Flush()

	for _, warning := range s.Warnings {
		output.Warn(w, "%s", warning)
	}
}
