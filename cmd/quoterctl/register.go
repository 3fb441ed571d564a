package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Checker-Finance/quoter/internal/auth"
	"github.com/Checker-Finance/quoter/internal/store"
	"github.com/Checker-Finance/quoter/pkg/config"
	"github.com/Checker-Finance/quoter/pkg/model"
)

var (
	registerID        string
	registerPublicKey string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a market maker's verification key",
	Long: `Register (or replace) a market maker's Ed25519 verification key in the
store the quoting service reads from. Connection settings come from the
same environment variables the service uses (DATABASE_URL, REDIS_ADDR).

Examples:
  quoterctl register --id mm-alpha --public-key <base64>`,
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().StringVar(&registerID, "id", "", "Market maker identifier (required)")
	registerCmd.Flags().StringVar(&registerPublicKey, "public-key", "", "Encoded Ed25519 public key from keygen (required)")
	_ = registerCmd.MarkFlagRequired("id")
	_ = registerCmd.MarkFlagRequired("public-key")
}

func runRegister(cmd *cobra.Command, _ []string) error {
	// Reject garbage before it reaches the store.
	if _, err := auth.ParsePublicKey(registerPublicKey); err != nil {
		printError(fmt.Errorf("public key: %w", err))
		return err
	}

	st, err := openStore()
	if err != nil {
		printError(err)
		return err
	}
	defer st.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	now := time.Now().UTC()
	if err := st.RegisterMarketMaker(ctx, model.MarketMaker{
		Name:      registerID,
		PublicKey: registerPublicKey,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		printError(err)
		return err
	}

	printSuccess(fmt.Sprintf("Registered market maker %s", color.GreenString(registerID)))
	return nil
}

func openStore() (store.Store, error) {
	cfg := config.Load()
	return store.NewHybrid(cfg.RedisAddr, cfg.RedisDB, cfg.RedisPass, cfg.DatabaseURL, store.PGPoolConfig{}, zap.NewNop())
}
