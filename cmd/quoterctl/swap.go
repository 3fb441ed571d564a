package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Checker-Finance/quoter/internal/api"
)

var (
	swapSrc     string
	swapDest    string
	swapAddress string
	swapBps     uint32
)

var swapCmd = &cobra.Command{
	Use:   "swap",
	Short: "Open a swap deposit channel",
	Long: `Open a deposit channel for a swap. The service returns the address to
deposit into and the channel's expiry.

Examples:
  quoterctl swap --src BTC --dest ETH --address 0x541f563237A309B3A61E33BDf07a8FF9815BAc8F
  quoterctl swap --src USDC --dest BTC --address bc1q... --broker-bps 10`,
	RunE: runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)
	swapCmd.Flags().StringVar(&swapSrc, "src", "", "Source asset symbol (required)")
	swapCmd.Flags().StringVar(&swapDest, "dest", "", "Destination asset symbol (required)")
	swapCmd.Flags().StringVar(&swapAddress, "address", "", "Destination address for the egress asset (required)")
	swapCmd.Flags().Uint32Var(&swapBps, "broker-bps", 0, "Broker commission in basis points")
	_ = swapCmd.MarkFlagRequired("src")
	_ = swapCmd.MarkFlagRequired("dest")
	_ = swapCmd.MarkFlagRequired("address")
}

func runSwap(cmd *cobra.Command, _ []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	body, err := json.Marshal(api.SwapRequest{
		SrcAsset:            swapSrc,
		DestAsset:           swapDest,
		DestinationAddress:  swapAddress,
		BrokerCommissionBps: swapBps,
	})
	if err != nil {
		printError(err)
		return err
	}

	req, err := http.NewRequest(http.MethodPost, serverURL+"/swaps", bytes.NewReader(body))
	if err != nil {
		printError(err)
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	var channel api.SwapResponse
	if err := newExecutor().DoJSON(cmd.Context(), req, &channel); err != nil {
		printError(err)
		return err
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(channel, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                   DEPOSIT CHANNEL OPEN")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\n  Channel:         %s\n", color.CyanString(channel.ID.String()))
	fmt.Printf("  Deposit address: %s\n", color.GreenString(channel.DepositAddress))
	fmt.Printf("  Route:           %s -> %s\n", channel.IngressAsset, channel.EgressAsset)
	fmt.Printf("  Expires:         %s\n", channel.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
	if channel.SourceChainExpiryBlock != "" {
		fmt.Printf("  Expiry block:    %s\n", channel.SourceChainExpiryBlock)
	}
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
	return nil
}
