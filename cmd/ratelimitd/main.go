package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "ratelimitd",
		Short: "Standalone API rate-limiting daemon",
		Long:  "ratelimitd serves per-endpoint-class rate-limit decisions over HTTP for edge proxies and gateways",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "ratelimitd.yaml", "Config file path")

	rootCmd.AddCommand(serveCmd(&configPath), checkCmd(&configPath), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the decision server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func checkCmd(configPath *string) *cobra.Command {
	var class, key string
	var count int

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate a key against a configured class",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), *configPath, class, key, count)
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "Endpoint class to evaluate against")
	cmd.Flags().StringVar(&key, "key", "", "Caller key, e.g. an IP address")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of evaluations")
	_ = cmd.MarkFlagRequired("class")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func runCheck(ctx context.Context, configPath, class, key string, count int) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	limiters, closeAll, err := buildLimiters(cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	l, ok := limiters[class]
	if !ok {
		return errors.Errorf("unknown class %q", class)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tALLOWED\tREMAINING\tRETRY AFTER")
	for i := 1; i <= count; i++ {
		dec, err := l.Allow(ctx, key)
		if err != nil {
			return err
		}
		retry := "-"
		if !dec.Allowed {
			retry = dec.RetryAfter.Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%d\t%v\t%d\t%s\n", i, dec.Allowed, dec.Remaining, retry)
	}
	return w.Flush()
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ratelimitd %s\n", Version)
		},
	}
}
