package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/sdm4fzi/prodsys/sim"
	"github.com/sdm4fzi/prodsys/sim/kpi"
)

var (
	configPath  string  // Path to the production system configuration (JSON)
	optionsPath string  // Optional run-options file (YAML)
	horizon     float64 // Simulation horizon in time units
	seed        int64   // Seed override; negative keeps the configuration seed
	logLevel    string  // Log verbosity level
	eventLogOut string  // Event log CSV output path
	kpiOut      string  // KPI JSON output path
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "prodsys",
	Short: "Discrete-event simulator for production systems",
}

// runCmd executes a simulation using parameters from CLI flags and the
// optional run-options file.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a production system simulation",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		opts := defaultOptions()
		if optionsPath != "" {
			if err := opts.loadFile(optionsPath); err != nil {
				logrus.Fatalf("Unable to read run options: %v", err)
			}
		}
		opts.applyFlags(cmd)

		cfg, err := sim.LoadConfigFile(configPath)
		if err != nil {
			logrus.Fatalf("Configuration error: %v", err)
		}

		var seedOverride *int64
		if opts.Seed >= 0 {
			seedOverride = &opts.Seed
		}
		runner, err := sim.Initialize(cfg, seedOverride)
		if err != nil {
			logrus.Fatalf("Initialization error: %v", err)
		}
		if opts.EventLog != "" {
			if err := runner.Simulator.Recorder.StreamToFile(opts.EventLog, 0); err != nil {
				logrus.Fatalf("Event log error: %v", err)
			}
		}

		logrus.Infof("Starting run %s: config=%s horizon=%v seed=%d", runner.RunID, cfg.ID, opts.Horizon, int64(runner.Simulator.Streams.Key()))
		startTime := time.Now()
		runner.Run(opts.Horizon)
		logrus.Infof("Run finished in %v wall time, %d events", time.Since(startTime), runner.Simulator.Recorder.Len())

		if err := runner.Simulator.Recorder.Close(); err != nil {
			logrus.Errorf("Flushing event log: %v", err)
		}

		results := runner.Results()
		printResults(results)
		if opts.KPIs != "" {
			f, err := os.Create(opts.KPIs)
			if err != nil {
				logrus.Fatalf("KPI output error: %v", err)
			}
			defer f.Close()
			enc := json.NewEncoder(f)
			enc.SetIndent("", "  ")
			if err := enc.Encode(results); err != nil {
				logrus.Fatalf("KPI output error: %v", err)
			}
		}
	},
}

// validateCmd checks a configuration without running it.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a production system configuration",
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := sim.LoadConfigFile(configPath); err != nil {
			logrus.Fatalf("Configuration error: %v", err)
		}
		logrus.Infof("Configuration %s is valid", configPath)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the production system configuration (JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")

	runCmd.Flags().StringVar(&optionsPath, "options", "", "path to a run-options file (YAML)")
	runCmd.Flags().Float64Var(&horizon, "horizon", 1000, "simulation horizon in time units")
	runCmd.Flags().Int64Var(&seed, "seed", -1, "seed override (negative keeps the configuration seed)")
	runCmd.Flags().StringVar(&eventLogOut, "event-log", "", "event log CSV output path")
	runCmd.Flags().StringVar(&kpiOut, "kpis", "", "KPI JSON output path")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}

// printResults displays the aggregated KPIs at the end of a run.
func printResults(r *kpi.Results) {
	fmt.Println("=== Simulation Results ===")
	fmt.Printf("Horizon              : %.2f\n", r.Horizon)

	types := make([]string, 0, len(r.Throughput))
	for typ := range r.Throughput {
		types = append(types, typ)
	}
	sort.Strings(types)
	for _, typ := range types {
		fmt.Printf("Throughput %-10s: %d (%.4f per time unit)\n", typ, r.Throughput[typ], r.ThroughputRate[typ])
		fmt.Printf("Avg TPT    %-10s: %.3f\n", typ, r.AvgThroughputTime[typ])
		fmt.Printf("Avg WIP    %-10s: %.3f\n", typ, r.AvgWIP[typ])
	}
	fmt.Printf("Avg WIP total        : %.3f\n", r.AvgWIPTotal)

	resources := make([]string, 0, len(r.ResourceStates))
	for res := range r.ResourceStates {
		resources = append(resources, res)
	}
	sort.Strings(resources)
	for _, res := range resources {
		s := r.ResourceStates[res]
		fmt.Printf("%-10s PR %6.2f%%  SB %6.2f%%  ST %6.2f%%  UD %6.2f%%  parts %d\n",
			res, s.PR, s.SB, s.ST, s.UD, r.PartsMade[res])
	}
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
