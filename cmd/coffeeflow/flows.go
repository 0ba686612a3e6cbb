package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/0xVanfer/tg-flow/config"
	"github.com/0xVanfer/tg-flow/credit"
	"github.com/0xVanfer/tg-flow/flow"
)

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "Validate and list flows",
	Long:  "Builds the credit flow and every flow declared in the configuration, then prints their states. Fails on the first invalid flow.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		flows, err := buildFlows(cfg)
		if err != nil {
			return err
		}
		describeFlows(cmd.OutOrStdout(), flows)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(flowsCmd)
}

// buildFlows compiles the credit flow and the configured flows, sorted by name.
// Configured flows are built without registered handlers, so a flow naming one fails.
func buildFlows(cfg *config.Config) ([]*flow.Flow, error) {
	creditFlow, err := credit.NewService(credit.NewMemoryLedger(), nil, nil).Flow()
	if err != nil {
		return nil, fmt.Errorf("flow %q: %w", credit.FlowName, err)
	}
	flows := []*flow.Flow{creditFlow}

	for name, fc := range cfg.Flows {
		f, err := fc.Build(config.NewHandlerRegistry())
		if err != nil {
			return nil, fmt.Errorf("flow %q: %w", name, err)
		}
		flows = append(flows, f)
	}
	slices.SortFunc(flows, func(a, b *flow.Flow) int { return strings.Compare(a.Name(), b.Name()) })
	return flows, nil
}

func describeFlows(out io.Writer, flows []*flow.Flow) {
	for i, f := range flows {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "%s (%d states)\n", f.Name(), len(f.States()))

		width := 0
		for _, id := range f.States() {
			width = max(width, runewidth.StringWidth(id))
		}
		for _, id := range f.States() {
			d, _ := f.Get(id)
			fmt.Fprintf(out, "  %s  %s\n", runewidth.FillRight(id, width), describeState(d))
		}
	}
}

func describeState(d *flow.Definition) string {
	parts := []string{string(d.Type)}
	if d.Terminal {
		parts = append(parts, "terminal")
	}
	if d.Pagination != nil {
		parts = append(parts, "paginated")
	}
	if len(d.NextStates) > 0 {
		targets := make([]string, 0, len(d.NextStates))
		for _, target := range d.NextStates {
			if !slices.Contains(targets, target) {
				targets = append(targets, target)
			}
		}
		slices.Sort(targets)
		parts = append(parts, "→ "+strings.Join(targets, ", "))
	}
	return strings.Join(parts, "  ")
}
