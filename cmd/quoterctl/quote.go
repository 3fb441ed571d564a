package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Checker-Finance/quoter/internal/api"
	"github.com/Checker-Finance/quoter/internal/httpclient"
)

var (
	quoteSrc    string
	quoteDest   string
	quoteAmount string
	quoteBps    uint32
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Request a swap quote",
	Long: `Request a quote for swapping a fixed deposit amount. Amounts are in the
source asset's smallest unit.

Examples:
  quoterctl quote --src USDC --dest ETH --amount 100000000
  quoterctl quote --src BTC --dest ETH --amount 5000000 --broker-bps 10`,
	RunE: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
	quoteCmd.Flags().StringVar(&quoteSrc, "src", "", "Source asset symbol (required)")
	quoteCmd.Flags().StringVar(&quoteDest, "dest", "", "Destination asset symbol (required)")
	quoteCmd.Flags().StringVar(&quoteAmount, "amount", "", "Deposit amount in smallest units (required)")
	quoteCmd.Flags().Uint32Var(&quoteBps, "broker-bps", 0, "Broker commission in basis points")
	_ = quoteCmd.MarkFlagRequired("src")
	_ = quoteCmd.MarkFlagRequired("dest")
	_ = quoteCmd.MarkFlagRequired("amount")
}

// newExecutor builds the retrying HTTP client every service-facing command
// shares. 4xx bodies carry {"message": ...}; surface that text directly.
func newExecutor() *httpclient.Executor {
	return httpclient.New(zap.NewNop(), http.DefaultClient, 2, "quoter", func(status int, body []byte) error {
		var e struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &e) == nil && e.Message != "" {
			return fmt.Errorf("%s (HTTP %d)", e.Message, status)
		}
		return fmt.Errorf("quoter returned %d", status)
	})
}

func runQuote(cmd *cobra.Command, _ []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	q := url.Values{}
	q.Set("srcAsset", quoteSrc)
	q.Set("destAsset", quoteDest)
	q.Set("amount", quoteAmount)
	if quoteBps > 0 {
		q.Set("brokerCommissionBps", fmt.Sprintf("%d", quoteBps))
	}

	req, err := http.NewRequest(http.MethodGet, serverURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		printError(err)
		return err
	}

	var quote api.QuoteResponse
	if err := newExecutor().DoJSON(cmd.Context(), req, &quote); err != nil {
		printError(err)
		return err
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(quote, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	displayQuote(quote)
	return nil
}

func displayQuote(quote api.QuoteResponse) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                        QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Request ID:    %s\n", color.CyanString(quote.ID))
	fmt.Printf("  Egress:        %s %s\n", color.GreenString(quote.EgressAmount), strings.ToUpper(quoteDest))
	if quote.IntermediateAmount != "" {
		fmt.Printf("  Intermediate:  %s USDC\n", quote.IntermediateAmount)
	}

	if len(quote.IncludedFees) > 0 {
		fmt.Printf("\n  Included fees:\n")
		for _, fee := range quote.IncludedFees {
			fmt.Printf("    %-10s %s %s (%s)\n", fee.Type, fee.Amount, fee.Asset, fee.Chain)
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}
