package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/mohmed402/wasel/internal/cart"
	"github.com/mohmed402/wasel/internal/metrics"
)

var (
	extractJSON    *bool
	extractProfile *string
)

func init() {
	extractJSON = extractCmd.Flags().Bool("json", false, "Print the result as JSON instead of a table.")
	extractProfile = extractCmd.Flags().String("profile", "", "Site profile override file (json5).")
	rootCmd.AddCommand(extractCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract <cart-share-url>",
	Short: "Extracts the items of a shared cart once and prints them.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}

		pipeline, _, err := newPipeline(cfg, log, metrics.New(), *extractProfile)
		if err != nil {
			return err
		}

		result, err := cart.NewService(pipeline, log, nil).Extract(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if *extractJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		if result.Empty() {
			fmt.Fprintf(out, "no cart items found (%d responses captured)\n", result.Diagnostics.CapturedCount)
			for _, u := range result.Diagnostics.CapturedURLs {
				fmt.Fprintf(out, "  %s\n", u)
			}
			return fmt.Errorf("no cart items found")
		}

		renderItems(out, result)
		return nil
	},
}

func renderItems(out io.Writer, result *cart.Result) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	t.SetTitle(fmt.Sprintf("%s via %s (%s)", result.CartURL, result.Tier, result.Source))

	t.AppendHeader(table.Row{"#", "Product", "Name", "Variant", "Price", "Qty"})
	for i, it := range result.Items {
		t.AppendRow(table.Row{
			i + 1,
			orDash(it.ProductID),
			orDash(it.Name),
			orDash(it.Variant),
			formatPrice(it.Price, it.Currency),
			it.Quantity,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Items", len(result.Items)})
	t.Render()
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func formatPrice(p *float64, currency string) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatFloat(*p, 'f', 2, 64) + " " + currency
}
