package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"positionRegistry/internal/auth"
	"positionRegistry/internal/batch"
	"positionRegistry/internal/manager"
	"positionRegistry/internal/model"
	"positionRegistry/internal/pool"
	"positionRegistry/internal/registry"
	"positionRegistry/internal/storage"
	"positionRegistry/internal/tokens"
)

// Reserved accounts the runner wires the engine with.
var (
	vaultAccount = common.HexToAddress("0x0000000000000000000000000000000000000ffe")
	selfAccount  = common.HexToAddress("0x0000000000000000000000000000000000000fff")
)

// RunConfig holds runtime settings for the scenario runner.
type RunConfig struct {
	ChainID                 uint64
	WrappedNative           string
	ClearOperatorOnTransfer bool
	StateName               string
	MaxRetries              int
	RetryBackoff            time.Duration
}

// SnapshotStore persists position snapshots and runner progress; the
// postgres store satisfies it.
type SnapshotStore interface {
	UpsertPositions(ctx context.Context, snapshots []model.PositionSnapshot) error
	DeletePositions(ctx context.Context, tokenIDs []uint64) error
	LoadState(ctx context.Context, name string) (uint64, bool, error)
	SaveState(ctx context.Context, name string, batchNo uint64) error
}

// Runner executes a scenario and records the outcome.
type Runner struct {
	cfg      RunConfig
	journal  storage.Journal
	store    SnapshotStore
	resolver auth.CodeResolver
	verifier auth.ContractVerifier
	logger   *zap.Logger
}

// NewRunner builds a Runner. store, resolver, and verifier may be nil; the
// journal is required.
func NewRunner(cfg RunConfig, journal storage.Journal, store SnapshotStore, resolver auth.CodeResolver, verifier auth.ContractVerifier, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, journal: journal, store: store, resolver: resolver, verifier: verifier, logger: logger}
}

// Run executes every batch of the scenario in order. Scenario state is
// rebuilt from genesis on each run; the Postgres state row records progress
// for observability, not for resume, since in-memory state does not survive
// the process.
func (r *Runner) Run(ctx context.Context, sc Scenario) error {
	if r.journal == nil {
		return fmt.Errorf("journal is nil")
	}

	if r.store != nil {
		// progress rows survive the process; surface what an earlier run left
		if last, ok, err := r.store.LoadState(ctx, r.stateName()); err != nil {
			r.logger.Warn("load runner state failed", zap.Error(err))
		} else if ok {
			r.logger.Info("state row exists from an earlier run",
				zap.String("name", r.stateName()), zap.Uint64("last_batch", last))
		}
	}

	ledger := tokens.NewLedger()
	for i, g := range sc.Genesis {
		amount, err := uint256.FromDecimal(g.Amount)
		if err != nil {
			return fmt.Errorf("genesis %d: invalid amount %q: %w", i, g.Amount, err)
		}
		ledger.Mint(common.HexToAddress(g.Token), common.HexToAddress(g.Account), amount)
	}

	factory := pool.NewSimFactory(ledger, vaultAccount)
	permits := auth.NewPermits(r.cfg.ChainID, r.resolver, r.verifier)
	posStore := registry.NewStore()
	owners := registry.NewOwnership()
	mgr := manager.New(manager.Config{
		Vault:                   vaultAccount,
		Self:                    selfAccount,
		WrappedNative:           common.HexToAddress(r.cfg.WrappedNative),
		ClearOperatorOnTransfer: r.cfg.ClearOperatorOnTransfer,
	}, posStore, owners, ledger, factory, permits, r.logger)
	executor := batch.NewExecutor(mgr)

	known := make(map[uint64]struct{})

	for i, b := range sc.Batches {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		caller := common.HexToAddress(b.Caller)
		value := uint256.NewInt(0)
		if b.Value != "" {
			parsed, err := uint256.FromDecimal(b.Value)
			if err != nil {
				return fmt.Errorf("batch %d: invalid value %q: %w", i, b.Value, err)
			}
			value = parsed
		}

		results, err := executor.Execute(caller, value, b.Calls)
		executedAt := time.Now().UTC().Format(time.RFC3339Nano)

		records := make([]model.OperationRecord, 0, len(b.Calls))
		if err != nil {
			var abort *batch.AbortError
			rec := model.OperationRecord{
				Batch:      uint64(i),
				Caller:     b.Caller,
				Error:      err.Error(),
				ExecutedAt: executedAt,
			}
			if errors.As(err, &abort) {
				rec.Index = abort.Index
				rec.Method = abort.Method
			}
			records = append(records, rec)
			r.logger.Warn("batch aborted", zap.Int("batch", i), zap.Error(err))
		} else {
			for j, call := range b.Calls {
				rec := model.OperationRecord{
					Batch:      uint64(i),
					Index:      j,
					Method:     call.Method,
					Caller:     b.Caller,
					ExecutedAt: executedAt,
				}
				var out struct {
					TokenID uint64 `json:"token_id"`
					Amount0 string `json:"amount0"`
					Amount1 string `json:"amount1"`
				}
				if json.Unmarshal(results[j], &out) == nil {
					rec.TokenID = out.TokenID
					rec.Amount0 = out.Amount0
					rec.Amount1 = out.Amount1
				}
				records = append(records, rec)
			}
			r.logger.Info("batch complete", zap.Int("batch", i), zap.Int("calls", len(b.Calls)))
		}

		if err := r.journal.PutOperationBatch(records); err != nil {
			return fmt.Errorf("journal batch %d: %w", i, err)
		}

		if r.store != nil {
			if err := r.persist(ctx, mgr, posStore, known, uint64(i)); err != nil {
				return fmt.Errorf("persist batch %d: %w", i, err)
			}
		}
	}

	return nil
}

// persist upserts every live position and removes burned ones.
func (r *Runner) persist(ctx context.Context, mgr *manager.Manager, posStore *registry.Store, known map[uint64]struct{}, batchNo uint64) error {
	live := posStore.List()
	snapshots := make([]model.PositionSnapshot, 0, len(live))
	liveIDs := make(map[uint64]struct{}, len(live))
	for _, pos := range live {
		owner, err := mgr.OwnerOf(pos.TokenID)
		if err != nil {
			return err
		}
		snapshots = append(snapshots, pos.Snapshot(owner.Hex()))
		liveIDs[pos.TokenID] = struct{}{}
		known[pos.TokenID] = struct{}{}
	}

	var burned []uint64
	for id := range known {
		if _, ok := liveIDs[id]; !ok {
			burned = append(burned, id)
			delete(known, id)
		}
	}

	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		if err := r.store.UpsertPositions(ctx, snapshots); err != nil {
			r.logger.Warn("upsert positions failed", zap.Error(err))
			return err
		}
		if err := r.store.DeletePositions(ctx, burned); err != nil {
			r.logger.Warn("delete positions failed", zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	return withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		return r.store.SaveState(ctx, r.stateName(), batchNo)
	})
}

func (r *Runner) stateName() string {
	if r.cfg.StateName == "" {
		return "scenario"
	}
	return r.cfg.StateName
}
