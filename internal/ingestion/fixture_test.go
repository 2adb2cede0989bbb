package ingestion_test

import (
	"fmt"

	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/ingestion"
	"solana-risk-engine/internal/ingestion/stub"
)

const (
	testMint   = "So11111111111111111111111111111111111111112"
	testHeight = int64(250_000_000)
	testTimeMs = int64(1_700_000_000_000)
)

// newFixture returns a stub source holding a low-risk token: renounced
// authorities, burned LP, spread holders and a few plain transfers.
func newFixture() *stub.FactSource {
	src := stub.NewFactSource()

	src.Tokens[testMint] = domain.Token{
		Mint:            testMint,
		Decimals:        6,
		Supply:          1_000_000_000_000,
		MintAuthority:   domain.Principal{Resolved: true},
		FreezeAuthority: domain.Principal{Resolved: true},
	}
	src.Pools[testMint] = domain.LiquidityPool{
		PoolID:           "pool-1",
		LPMint:           "lp-mint",
		LPSupply:         1000,
		LPSupplyResolved: true,
		Holders: []domain.LPHolding{
			{TokenAccount: "burn-ata", Owner: domain.BurnSentinel, Amount: 1000, Resolved: true},
		},
	}

	holders := ingestion.HolderSet{Supply: 1_000_000}
	for i := 0; i < 100; i++ {
		holders.Holders = append(holders.Holders, domain.HolderBalance{
			Owner:        fmt.Sprintf("holder-%03d", i),
			TokenAccount: fmt.Sprintf("ata-%03d", i),
			Amount:       10_000,
		})
	}
	src.Holders[testMint] = holders

	// unordered, with a duplicate
	src.Transfers[testMint] = []domain.TransferEvent{
		{ID: "sig-3", Slot: testHeight - 10, Source: "wallet-b", Destination: "wallet-c", Mint: testMint, Amount: 5, TimestampMs: testTimeMs - 4_000},
		{ID: "sig-1", Slot: testHeight - 30, Source: "wallet-a", Destination: "wallet-b", Mint: testMint, Amount: 10, TimestampMs: testTimeMs - 12_000},
		{ID: "sig-1", Slot: testHeight - 30, Source: "wallet-a", Destination: "wallet-b", Mint: testMint, Amount: 10, TimestampMs: testTimeMs - 12_000},
		{ID: "sig-2", Slot: testHeight - 20, Source: "wallet-a", Destination: "wallet-c", Mint: testMint, Amount: 1, TimestampMs: testTimeMs - 8_000},
		{ID: "sig-old", Slot: 1, Source: "wallet-z", Destination: "wallet-a", Mint: testMint, Amount: 1, TimestampMs: 1_000},
	}
	for _, addr := range []string{"wallet-a", "wallet-b", "wallet-c"} {
		src.Wallets[addr] = domain.Wallet{
			Address:       addr,
			FirstSeenSlot: 1,
			FirstSeenMs:   1_000,
		}
	}
	src.BlockTimes[testHeight] = testTimeMs
	return src
}
