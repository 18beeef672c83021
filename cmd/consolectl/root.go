package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/smallbiznis/console/internal/backend"
	"github.com/smallbiznis/console/internal/config"
	"github.com/smallbiznis/console/internal/projection"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	baseURL    string
	token      string
	timeout    time.Duration
	outputJSON bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "consolectl",
	Short: "Inspect the billing console catalog from the terminal",
	Long: `consolectl reads plans, modules, entitlements and invoices from the
billing API and prints them the way the console renders them.

Defaults come from the same environment as the console server
(BACKEND_BASE_URL, BACKEND_TOKEN, BACKEND_TIMEOUT, console.yml).`,
	SilenceUsage: true,
}

func init() {
	cfg := config.Load()
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", cfg.Backend.BaseURL, "billing API base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", cfg.Backend.Token, "bearer token for the billing API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", cfg.Backend.Timeout, "request timeout")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print the view state as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log backend calls")

	rootCmd.AddCommand(plansCmd, modulesCmd, myModulesCmd, invoicesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newClient builds a backend client from the persistent flags.
func newClient() (*backend.Client, *zap.Logger, error) {
	log := zap.NewNop()
	if verbose {
		dev, err := zap.NewDevelopment()
		if err != nil {
			return nil, nil, err
		}
		log = dev
	}
	client, err := backend.New(backend.Config{
		BaseURL: baseURL,
		Token:   token,
		Timeout: timeout,
	}, nil, log, nil)
	if err != nil {
		return nil, nil, err
	}
	return client, log, nil
}

func displayOptions(log *zap.Logger) projection.Options {
	holder, err := config.NewDisplayConfigHolder(config.Load(), log)
	if err != nil {
		return projection.DefaultOptions()
	}
	cfg := holder.Get()
	return projection.Options{
		DefaultCurrency: cfg.DefaultCurrency,
		FeaturedIndex:   cfg.FeaturedPlanIndex,
		WarningPercent:  cfg.UsageWarningPercent,
		CriticalPercent: cfg.UsageCriticalPercent,
	}
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, timeout+5*time.Second)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func badge(b projection.Badge) string {
	return "[" + strings.ToLower(b.Label) + "]"
}
