package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"positionRegistry/internal/auth"
	"positionRegistry/internal/chain"
	"positionRegistry/internal/config"
	"positionRegistry/internal/erc20"
	"positionRegistry/internal/model"
	"positionRegistry/internal/scenario"
	"positionRegistry/internal/storage"
	"positionRegistry/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "registry",
		Short:        "Liquidity position registry",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a scenario script",
		RunE:  runScenario,
	}

	runCmd.Flags().String("scenario", "", "scenario JSON path")
	runCmd.Flags().String("journal", "./data/operations.jsonl", "operation journal JSONL path")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN for position snapshots")
	runCmd.Flags().String("rpc", "", "RPC URL for contract-owner permit checks")
	runCmd.Flags().Uint64("chain-id", 1, "chain id bound into permit digests")
	runCmd.Flags().String("wrapped-native", "", "wrapped native token address")
	runCmd.Flags().Bool("clear-operator-on-transfer", true, "clear permit operator on ownership transfer")
	runCmd.Flags().String("state-name", "scenario", "runner state row name")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts for DB writes")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	describeCmd := &cobra.Command{
		Use:   "describe",
		Short: "Render a persisted position's metadata descriptor",
		RunE:  runDescribe,
	}

	describeCmd.Flags().Uint64("token-id", 0, "token id to describe")
	describeCmd.Flags().String("pg-dsn", "", "Postgres DSN the snapshot lives in")
	describeCmd.Flags().String("rpc", "", "RPC URL for token symbol lookup")
	describeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(describeCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScenario(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadRun(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.ScenarioPath == "" {
		return fmt.Errorf("scenario path is required")
	}

	sc, err := scenario.Load(cfg.ScenarioPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		resolver auth.CodeResolver
		verifier auth.ContractVerifier
	)
	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		resolver = chainClient
		verifier = chainClient
	}

	var snapshots scenario.SnapshotStore
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		snapshots = store
	}

	journal := storage.NewJsonlJournal(cfg.Journal)

	runner := scenario.NewRunner(scenario.RunConfig{
		ChainID:                 cfg.ChainID,
		WrappedNative:           cfg.WrappedNative,
		ClearOperatorOnTransfer: cfg.ClearOperatorOnTransfer,
		StateName:               cfg.StateName,
		MaxRetries:              cfg.MaxRetries,
		RetryBackoff:            cfg.RetryBackoff,
	}, journal, snapshots, resolver, verifier, logger)

	logger.Info("scenario start",
		zap.String("scenario", cfg.ScenarioPath),
		zap.Int("batches", len(sc.Batches)),
		zap.String("journal", cfg.Journal),
		zap.Bool("postgres", snapshots != nil),
		zap.Uint64("chain_id", cfg.ChainID),
	)

	return runner.Run(ctx, sc)
}

func runDescribe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDescribe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.TokenID == 0 {
		return fmt.Errorf("token-id is required")
	}
	if cfg.PGDSN == "" {
		return fmt.Errorf("pg-dsn is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	snap, ok, err := store.LoadPosition(ctx, cfg.TokenID)
	if err != nil {
		return fmt.Errorf("load position: %w", err)
	}
	if !ok {
		return fmt.Errorf("token %d: %w", cfg.TokenID, model.ErrNotFound)
	}

	var symbol0, symbol1 string
	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()

		tokens := erc20.NewResolver(chainClient, logger)
		if meta, err := tokens.TokenMeta(ctx, common.HexToAddress(snap.Token0)); err == nil {
			symbol0 = meta.Symbol
		} else {
			logger.Warn("token0 metadata fetch failed", zap.String("token", snap.Token0), zap.Error(err))
		}
		if meta, err := tokens.TokenMeta(ctx, common.HexToAddress(snap.Token1)); err == nil {
			symbol1 = meta.Symbol
		} else {
			logger.Warn("token1 metadata fetch failed", zap.String("token", snap.Token1), zap.Error(err))
		}
	}

	out, err := json.MarshalIndent(model.Describe(snap, symbol0, symbol1), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
