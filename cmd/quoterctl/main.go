// quoterctl is the operator CLI for the quoting service: key generation and
// registration for market makers, plus quote and swap calls against a
// running instance.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quoterctl",
	Short: "Operator CLI for the swap quoting service",
	Long: `quoterctl manages market makers and exercises a running quoting service.

Examples:
  quoterctl keygen --id mm-alpha --out mm-alpha.key
  quoterctl register --id mm-alpha --public-key <base64>
  quoterctl makers
  quoterctl quote --src USDC --dest ETH --amount 100000000
  quoterctl swap --src BTC --dest ETH --address 0x541f...
  quoterctl status <channel-id>`,
	Version: "0.1.0",
}

var serverURL string

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Quoting service base URL")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
