package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Checker-Finance/quoter/pkg/utils"
)

var makersCmd = &cobra.Command{
	Use:   "makers",
	Short: "List registered market makers",
	RunE:  runMakers,
}

func init() {
	rootCmd.AddCommand(makersCmd)
}

func runMakers(cmd *cobra.Command, _ []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	st, err := openStore()
	if err != nil {
		printError(err)
		return err
	}
	defer st.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	makers, err := st.ListMarketMakers(ctx)
	if err != nil {
		printError(err)
		return err
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(makers, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(makers) == 0 {
		fmt.Printf("\nNo market makers registered.\n\n")
		return nil
	}

	fmt.Println()
	for _, mm := range makers {
		fmt.Printf("  %s  key=%s  registered=%s\n",
			color.CyanString("%-20s", mm.Name),
			utils.MaskKey(mm.PublicKey),
			mm.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Println()
	return nil
}
