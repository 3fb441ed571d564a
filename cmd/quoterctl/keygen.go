package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Checker-Finance/quoter/internal/auth"
)

var keygenOut string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an Ed25519 keypair for a market maker",
	Long: `Generate an Ed25519 keypair. The private key is written as PKCS#8 PEM to
the output file; the public key is printed in the encoding the register
command expects.

Examples:
  quoterctl keygen --out mm-alpha.key`,
	RunE: runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVar(&keygenOut, "out", "mm.key", "File to write the private key PEM to")
}

func runKeygen(cmd *cobra.Command, _ []string) error {
	publicKey, privatePEM, err := auth.GenerateKeyPair()
	if err != nil {
		printError(err)
		return err
	}

	if err := os.WriteFile(keygenOut, privatePEM, 0o600); err != nil {
		printError(fmt.Errorf("write %s: %w", keygenOut, err))
		return err
	}

	printSuccess(fmt.Sprintf("Private key written to %s", color.CyanString(keygenOut)))
	fmt.Printf("Public key (pass to register):\n\n  %s\n\n", color.GreenString(publicKey))
	return nil
}
