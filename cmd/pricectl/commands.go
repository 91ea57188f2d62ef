package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"tokenlens/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const defaultNetwork = domain.DefaultNetwork

// withCore builds the service graph for one command run.
func withCore(run func(cmd *cobra.Command, c *core, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := newCoreFunc(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = c.close() }()
		return run(cmd, c, args)
	}
}

func tokenRefArgs(cmd *cobra.Command, args []string) (domain.TokenRef, error) {
	network, _ := cmd.Flags().GetString("network")
	return domain.NewTokenRef(args[0], network)
}

func newPriceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price <address>",
		Short: "Resolve the current price of a token",
		Args:  cobra.ExactArgs(1),
		RunE: withCore(func(cmd *cobra.Command, c *core, args []string) error {
			ref, err := tokenRefArgs(cmd, args)
			if err != nil {
				return err
			}
			meta, _ := cmd.Flags().GetBool("metadata")

			result, err := c.tokens.ResolvePrice(cmd.Context(), ref, meta)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			w := table(cmd.OutOrStdout())
			fmt.Fprintf(w, "SYMBOL\tPRICE\t24H\tSOURCE\n")
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", result.Symbol, usd(result.CurrentPrice), pct(result.PriceChangePct24h), result.Source)
			if result.Note != "" {
				fmt.Fprintf(w, "note: %s\n", result.Note)
			}
			return w.Flush()
		}),
	}
	cmd.Flags().String("network", defaultNetwork, "chain identifier")
	cmd.Flags().Bool("metadata", false, "fill missing fields from other sources")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <address>",
		Short: "Show a token's price with daily history",
		Args:  cobra.ExactArgs(1),
		RunE: withCore(func(cmd *cobra.Command, c *core, args []string) error {
			ref, err := tokenRefArgs(cmd, args)
			if err != nil {
				return err
			}
			days, _ := cmd.Flags().GetInt("days")
			if days < 1 || days > 365 {
				return fmt.Errorf("days must be between 1 and 365")
			}

			result, err := c.tokens.ResolveWithHistory(cmd.Context(), ref, days)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			w := table(cmd.OutOrStdout())
			fmt.Fprintf(w, "%s\t%s\t%s\n", result.Symbol, usd(result.CurrentPrice), result.Source)
			if result.HistoricalError != "" {
				fmt.Fprintf(w, "history unavailable: %s\n", result.HistoricalError)
				return w.Flush()
			}
			fmt.Fprintf(w, "TIMESTAMP\tOPEN\tHIGH\tLOW\tCLOSE\n")
			for _, candle := range result.HistoricalData {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", candle.Timestamp,
					usd(&candle.Open), usd(&candle.High), usd(&candle.Low), usd(&candle.Close))
			}
			return w.Flush()
		}),
	}
	cmd.Flags().String("network", defaultNetwork, "chain identifier")
	cmd.Flags().Int("days", 30, "days of history (1-365)")
	return cmd
}

func newCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <address>",
		Short: "Query every source for a token and compare their prices",
		Args:  cobra.ExactArgs(1),
		RunE: withCore(func(cmd *cobra.Command, c *core, args []string) error {
			ref, err := tokenRefArgs(cmd, args)
			if err != nil {
				return err
			}

			cmp := c.tokens.CompareSources(cmd.Context(), ref)
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), cmp)
			}
			w := table(cmd.OutOrStdout())
			fmt.Fprintf(w, "SOURCE\tSTATUS\tPRICE\tDETAIL\n")
			for _, name := range sortedKeys(cmp.Sources) {
				out := cmp.Sources[name]
				status, detail := "ok", out.Note
				if !out.Success {
					status, detail = "failed", out.Error
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, status, usd(out.Price), detail)
			}
			if a := cmp.PriceAnalysis; a != nil {
				fmt.Fprintf(w, "average %s, max deviation %.2f%%, consistent=%t\n",
					usd(&a.Average), a.MaxDeviationPercent, a.Consistent)
			}
			return w.Flush()
		}),
	}
	cmd.Flags().String("network", defaultNetwork, "chain identifier")
	return cmd
}

func newPortfolioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Price every token in the configured portfolio",
		Args:  cobra.NoArgs,
		RunE: withCore(func(cmd *cobra.Command, c *core, _ []string) error {
			if full, _ := cmd.Flags().GetBool("summary"); full {
				return writeJSON(cmd.OutOrStdout(), c.portfolio.Summary(cmd.Context()))
			}

			prices := c.portfolio.PricesOnly(cmd.Context())
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), prices)
			}
			w := table(cmd.OutOrStdout())
			fmt.Fprintf(w, "SYMBOL\tPAIR\tPRICE\t24H\tSOURCE\n")
			for _, line := range append([]domain.PriceLine{prices.MainToken}, prices.Pairs...) {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", line.Symbol, dash(line.Pair), usd(line.Price), pct(line.PriceChange24h), dash(string(line.Source)))
			}
			return w.Flush()
		}),
	}
	cmd.Flags().Bool("summary", false, "print the full summary as JSON")
	return cmd
}

func newMarketCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "market [symbol...]",
		Short: "CoinGecko quotes for ticker symbols (default: tracked symbols)",
		RunE: withCore(func(cmd *cobra.Command, c *core, args []string) error {
			symbols := args
			if len(symbols) == 0 {
				symbols = c.market.TrackedSymbols()
			}

			quotes := c.market.GetPrices(cmd.Context(), symbols)
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), quotes)
			}
			w := table(cmd.OutOrStdout())
			fmt.Fprintf(w, "SYMBOL\tPRICE\t24H\n")
			for _, q := range quotes {
				fmt.Fprintf(w, "%s\t%s\t%s\n", q.Symbol, usd(&q.CurrentPrice), pct(q.PriceChangePct24h))
			}
			return w.Flush()
		}),
	}
	return cmd
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe every upstream price source",
		Args:  cobra.NoArgs,
		RunE: withCore(func(cmd *cobra.Command, c *core, _ []string) error {
			report := c.tokens.HealthCheck(cmd.Context())
			if jsonOutput(cmd) {
				if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else {
				w := table(cmd.OutOrStdout())
				for _, name := range sortedKeys(report.Services) {
					svc := report.Services[name]
					fmt.Fprintf(w, "%s\t%s\t%s\n", name, svc.Status, svc.Error)
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}
			if !report.Overall {
				return fmt.Errorf("one or more sources are unhealthy")
			}
			return nil
		}),
	}
}

func jsonOutput(cmd *cobra.Command) bool {
	format, _ := cmd.Flags().GetString("output")
	return strings.EqualFold(format, "json")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func usd(p *float64) string {
	if p == nil {
		return "-"
	}
	d := decimal.NewFromFloat(*p)
	if d.Abs().LessThan(decimal.NewFromInt(1)) {
		return "$" + d.StringFixed(6)
	}
	return "$" + d.StringFixed(2)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func pct(p *float64) string {
	if p == nil {
		return "-"
	}
	return decimal.NewFromFloat(*p).StringFixed(2) + "%"
}
