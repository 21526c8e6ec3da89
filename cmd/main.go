package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/wesleywu/routewatch/internal/config"
	"github.com/wesleywu/routewatch/internal/daemon"
	"github.com/wesleywu/routewatch/internal/logger"
	"github.com/wesleywu/routewatch/internal/network"
	"github.com/wesleywu/routewatch/internal/routing"
	"github.com/wesleywu/routewatch/internal/utils"
)

var (
	cfg         = config.NewConfig()
	verboseMode bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "routewatch [destination]",
		Short: "Inspect and mirror the kernel IPv4 routing table",
		Long: `Query the kernel main routing table over netlink. Without an argument the
whole table is dumped; with an address the kernel's route lookup for it is shown.`,
		Args: cobra.MaximumNArgs(1),
		Run:  runQuery,
	}

	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Mirror the routing table and print it on every change",
		Long:  `Subscribe to route notifications, seed a local mirror with a full dump and reprint the table whenever it changes.`,
		Args:  cobra.NoArgs,
		Run:   runMonitor,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run:   showVersion,
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verboseMode, "verbose", "v", false, "Verbose mode (debug level logging)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flags.IntVar(&cfg.BufferSize, "buffer-size", cfg.BufferSize, "Netlink receive buffer size in bytes")
	flags.DurationVar(&cfg.QueryTimeout, "timeout", cfg.QueryTimeout, "Timeout for a single query")
	flags.IntVar(&cfg.ResolveWorkers, "workers", cfg.ResolveWorkers, "Concurrent interface name lookups")

	monitorCmd.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	monitorCmd.Flags().StringSliceVar(&cfg.Watch, "watch", nil, "Destinations whose selected route is reported on change")

	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() *logger.Logger {
	if verboseMode {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	return logger.New(cfg.LogLevel)
}

func runQuery(cmd *cobra.Command, args []string) {
	log := loadConfig()

	target := ""
	if len(args) == 1 {
		target = args[0]
	}
	target, err := utils.NormalizeDestination(target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid destination: %v\n", err)
		os.Exit(1)
	}

	querier := routing.NewQuerier(cfg, network.NewResolver(log), log, nil)
	routes, err := querier.Query(context.Background(), target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}

	if err := routing.WriteTable(os.Stdout, routes); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write table: %v\n", err)
		os.Exit(1)
	}
}

func runMonitor(cmd *cobra.Command, args []string) {
	log := loadConfig()

	service, err := daemon.NewServiceManager(cfg, log, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create service: %v\n", err)
		os.Exit(1)
	}

	if err := service.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start monitor: %v\n", err)
		os.Exit(1)
	}

	if err := service.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "Monitor stopped: %v\n", err)
		os.Exit(1)
	}
}

func showVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("routewatch v%s\n", daemon.Version)
	fmt.Printf("Runtime: %s\n", runtime.Version())
	fmt.Printf("Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
