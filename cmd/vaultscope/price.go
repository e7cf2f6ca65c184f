package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultScope/internal/chain"
	"vaultScope/internal/config"
	"vaultScope/internal/model"
	"vaultScope/internal/price"
	"vaultScope/internal/vault"
)

func newPriceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Resolve the live price of an asset from both of its feeds",
		RunE:  runPrice,
	}

	cmd.Flags().StringSlice("rpc", nil, "RPC URLs, first is primary (comma-separated)")
	cmd.Flags().String("asset", "PLS", "asset code")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}

func runPrice(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if len(cfg.RPCURLs) == 0 {
		return fmt.Errorf("rpc url is required")
	}

	registry, err := cfg.Registry()
	if err != nil {
		return err
	}
	code, _ := cmd.Flags().GetString("asset")
	asset, ok := registry.Lookup(code)
	if !ok {
		return fmt.Errorf("unknown asset %q (known: %v)", code, registry.Codes())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	caller, closeChain, err := chain.Dial(ctx, cfg.RPCURLs, logger)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer closeChain()

	reader := vault.NewReader(caller, registry, false, logger)
	quoted := vault.QuoteAsset(ctx, reader, asset, time.Now())

	logger.Debug("asset quoted",
		zap.String("asset", asset.Code),
		zap.String("source", string(quoted.Selection.Source)),
		zap.String("price_fixed", quoted.PriceFixed),
	)

	return printJSON(cmd.OutOrStdout(), quoted)
}

// checkResult is the offline eligibility verdict printed by the check command.
type checkResult struct {
	PriceFixed     string            `json:"price_fixed"`
	ThresholdFixed string            `json:"threshold_fixed"`
	UnlockTime     int64             `json:"unlock_time"`
	Now            int64             `json:"now"`
	Eligibility    model.Eligibility `json:"eligibility"`
	Countdown      string            `json:"countdown"`
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compute goal percentage and unlock eligibility offline",
		RunE:  runCheck,
	}

	cmd.Flags().String("price", "0", "current price in USD (decimal)")
	cmd.Flags().String("threshold", "", "price threshold in USD (decimal)")
	cmd.Flags().String("unlock-time", "", "unlock time (unix seconds or RFC3339)")
	cmd.Flags().String("now", "", "evaluation time (unix seconds or RFC3339), default now")
	cmd.Flags().Bool("withdrawn", false, "vault was already withdrawn")

	return cmd
}

func runCheck(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	priceInput, _ := flags.GetString("price")
	thresholdInput, _ := flags.GetString("threshold")
	unlockInput, _ := flags.GetString("unlock-time")
	nowInput, _ := flags.GetString("now")
	withdrawn, _ := flags.GetBool("withdrawn")

	if thresholdInput == "" {
		return fmt.Errorf("threshold is required")
	}
	if unlockInput == "" {
		return fmt.Errorf("unlock-time is required")
	}

	priceFixed, err := price.FloatToFixed(priceInput)
	if err != nil {
		return fmt.Errorf("parse price: %w", err)
	}
	thresholdFixed, err := price.FloatToFixed(thresholdInput)
	if err != nil {
		return fmt.Errorf("parse threshold: %w", err)
	}
	unlock, err := config.ParseTimestamp(unlockInput)
	if err != nil {
		return fmt.Errorf("parse unlock-time: %w", err)
	}
	now := time.Now().Unix()
	if nowInput != "" {
		if now, err = config.ParseTimestamp(nowInput); err != nil {
			return fmt.Errorf("parse now: %w", err)
		}
	}

	eligibility := price.ComputeGoalAndEligibility(
		price.FixedToFloat(priceFixed),
		price.FixedToFloat(thresholdFixed),
		unlock, now, withdrawn,
	)

	return printJSON(cmd.OutOrStdout(), checkResult{
		PriceFixed:     priceFixed.String(),
		ThresholdFixed: thresholdFixed.String(),
		UnlockTime:     unlock,
		Now:            now,
		Eligibility:    eligibility,
		Countdown:      price.FormatCountdown(price.SecondsUntilUnlock(unlock, now)),
	})
}
