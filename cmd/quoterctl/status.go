package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Checker-Finance/quoter/pkg/model"
)

var statusCmd = &cobra.Command{
	Use:   "status <channel-id>",
	Short: "Check the status of a deposit channel",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	req, err := http.NewRequest(http.MethodGet, serverURL+"/swaps/"+args[0], nil)
	if err != nil {
		printError(err)
		return err
	}

	var channel model.DepositChannel
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
	color.Green("                     CHANNEL STATUS")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\n  Channel:         %s\n", color.CyanString(channel.ID.String()))
	fmt.Printf("  Status:          %s\n", coloredStatus(channel.Status))
	fmt.Printf("  Route:           %s -> %s\n", channel.IngressAsset, channel.EgressAsset)
	fmt.Printf("  Deposit address: %s\n", channel.DepositAddress)
	fmt.Printf("  Destination:     %s\n", channel.DestinationAddress)
	fmt.Printf("  Expires:         %s\n", channel.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
	return nil
}

func coloredStatus(status model.ChannelStatus) string {
	switch status {
	case model.ChannelOpen:
		return color.YellowString(string(status))
	case model.ChannelDeposited:
		return color.GreenString(string(status))
	case model.ChannelExpired:
		return color.RedString(string(status))
	default:
		return string(status)
	}
}
