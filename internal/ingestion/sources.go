package ingestion

import (
	"context"

	"solana-risk-engine/internal/domain"
)

// TransferWindow is the transfer history of a mint over a slot range.
type TransferWindow struct {
	Events  []domain.TransferEvent // may be unordered and contain duplicates
	Partial bool                   // true when the source truncated the window
}

// HolderSet is the largest holders of a mint together with its supply.
type HolderSet struct {
	Holders []domain.HolderBalance
	Supply  float64 // UI units
}

// FactSource provides ledger facts for one evaluation. Every method may fail
// with an error wrapping riskerr.ErrNotFound or riskerr.ErrRPCUnavailable;
// callers treat any failure as data unavailable.
type FactSource interface {
	// GetToken returns the mint account state.
	GetToken(ctx context.Context, mint string, height int64) (*domain.Token, error)

	// GetLiquidityPool returns the AMM pool paired with mint and its LP holders.
	GetLiquidityPool(ctx context.Context, mint string, height int64) (*domain.LiquidityPool, error)

	// GetTransferWindow returns transfers of mint with slot in [from, to].
	GetTransferWindow(ctx context.Context, mint string, from, to int64) (TransferWindow, error)

	// GetWalletInfo returns first activity and funding source of a wallet.
	GetWalletInfo(ctx context.Context, address string, height int64) (*domain.Wallet, error)

	// GetTopHolders returns the largest holders of mint.
	GetTopHolders(ctx context.Context, mint string, height int64) (*HolderSet, error)

	// GetBlockTime returns the block time of height in unix ms.
	GetBlockTime(ctx context.Context, height int64) (int64, error)
}
