package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// runOptions are the run parameters that may come from a YAML file.
// Explicit CLI flags win over file values.
type runOptions struct {
	Horizon  float64 `yaml:"horizon"`
	Seed     int64   `yaml:"seed"`
	EventLog string  `yaml:"event_log"`
	KPIs     string  `yaml:"kpis"`
}

func defaultOptions() *runOptions {
	return &runOptions{Horizon: 1000, Seed: -1}
}

func (o *runOptions) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, o); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyFlags overrides file values with flags the user set explicitly.
func (o *runOptions) applyFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("horizon") {
		o.Horizon = horizon
	}
	if cmd.Flags().Changed("seed") {
		o.Seed = seed
	}
	if cmd.Flags().Changed("event-log") {
		o.EventLog = eventLogOut
	}
	if cmd.Flags().Changed("kpis") {
		o.KPIs = kpiOut
	}
}
