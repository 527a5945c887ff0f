package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jwaldner/strikemap/internal/config"
	"github.com/jwaldner/strikemap/internal/dto"
	"github.com/jwaldner/strikemap/internal/heatmap"
	"github.com/jwaldner/strikemap/internal/logger"
	"github.com/jwaldner/strikemap/internal/pricing"
)

type options struct {
	pricingURL  string
	timeout     time.Duration
	concurrency int
	warnRatio   float64
	series      string
	logLevel    string
	inputs      pricing.Request
}

func newRootCmd() *cobra.Command {
	_ = config.LoadDotEnv(".env")
	cfg := config.Load()

	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "strikemap",
		Short: "Black-Scholes option prices and heat maps from the terminal",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetOutput(cmd.ErrOrStderr(), opts.logLevel)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.pricingURL, "pricing-url", cfg.Pricing.BaseURL, "base URL of the pricing service")
	flags.DurationVar(&opts.timeout, "timeout", cfg.Pricing.RequestTimeout, "per-request timeout")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (error, warn, info, debug, verbose)")
	flags.Float64Var(&opts.inputs.SpotPrice, "stock-price", 100, "stock price")
	flags.Float64Var(&opts.inputs.StrikePrice, "strike-price", 100, "strike price")
	flags.Float64Var(&opts.inputs.TimeToExpiry, "time-to-expiry", 1, "time to expiry in years")
	flags.Float64Var(&opts.inputs.RiskFreeRate, "risk-free-rate", 0.05, "risk-free rate (decimal)")
	flags.Float64Var(&opts.inputs.Volatility, "volatility", 0.2, "volatility (decimal)")

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Price one call and one put",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuote(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	gridCmd := &cobra.Command{
		Use:   "grid",
		Short: "Build the 8x8 spot/volatility heat map",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGrid(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	gridCmd.Flags().IntVar(&opts.concurrency, "concurrency", cfg.Pricing.MaxConcurrency, "maximum in-flight pricing requests (1 = sequential)")
	gridCmd.Flags().StringVar(&opts.series, "series", "both", "series to print: call, put or both")
	gridCmd.Flags().Float64Var(&opts.warnRatio, "warn-ratio", cfg.HeatMap.FailureWarnRatio, "failed request ratio that triggers a warning")

	rootCmd.AddCommand(quoteCmd, gridCmd)
	return rootCmd
}

func runQuote(ctx context.Context, w io.Writer, opts *options) error {
	if err := opts.inputs.Validate(); err != nil {
		return err
	}

	client := pricing.NewClient(opts.pricingURL, opts.timeout)
	quote, err := pricing.FetchQuote(ctx, client, opts.inputs)
	if err != nil {
		return fmt.Errorf("%s: %w", dto.CalculateErrorMessage, err)
	}

	p := message.NewPrinter(language.English)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Option", "Price"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.Append([]string{"Call", fmt.Sprintf("$%s", p.Sprintf("%.2f", quote.Call))})
	table.Append([]string{"Put", fmt.Sprintf("$%s", p.Sprintf("%.2f", quote.Put))})
	table.Render()

	return nil
}

func runGrid(ctx context.Context, w io.Writer, opts *options) error {
	if err := opts.inputs.Validate(); err != nil {
		return err
	}

	var series []heatmap.Series
	switch opts.series {
	case "both":
		series = []heatmap.Series{heatmap.SeriesCall, heatmap.SeriesPut}
	default:
		s, err := heatmap.ParseSeries(opts.series)
		if err != nil {
			return err
		}
		series = []heatmap.Series{s}
	}

	client := pricing.NewClient(opts.pricingURL, opts.timeout)
	grid := heatmap.NewBuilder(client, opts.concurrency, opts.warnRatio).Build(ctx, opts.inputs)

	for i, s := range series {
		if i > 0 {
			fmt.Fprintln(w)
		}
		heatmap.WriteTable(w, grid, s)
	}
	fmt.Fprintf(w, "\n%d requests, %d failed, %s\n", grid.Requests, grid.Failures, grid.Duration.Round(time.Millisecond))

	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
