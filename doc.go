// Package lockup provides a composable token vesting and staking engine for
// Go applications.
//
// Lockup is designed as a library, not a service. It keeps its own
// accounting in a pluggable store and moves tokens through a token.Ledger
// handle bound to its account. It provides:
//
//   - Multi-beneficiary vesting pools with linear (cliff) or table-driven curves
//   - Tiered staking with simple-interest rewards and early-withdrawal penalties
//   - A cooldown-gated airdrop paid on active staked principal
//   - A tax fee usable as the fee-on-transfer policy of the token ledger
//   - Receipts for every value movement, lifecycle plugins and metrics
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/lockup"
//	    "github.com/xraph/lockup/access"
//	    "github.com/xraph/lockup/store/memory"
//	    tokenmem "github.com/xraph/lockup/token/memory"
//	)
//
//	tokens := tokenmem.New()
//	engine := lockup.New(memory.New(), tokens.Account(engineAddr),
//	    lockup.WithAccessControl(access.NewOwner(admin)),
//	)
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// # Vesting
//
// A pool has a cap, a start, a cliff and a duration shared by all of its
// beneficiaries:
//
//	pool, err := engine.InitPool(ctx, admin, lockup.PoolParams{
//	    Allocation: vesting.AllocationTeam,
//	    Cap:        lockup.Units(1_000_000, 18),
//	    Start:      start,
//	    Cliff:      clock.Months(2),
//	    Duration:   clock.Months(12),
//	    Grants:     []vesting.Grant{{Beneficiary: alice, Amount: lockup.Units(1_000_000, 18)}},
//	})
//	rcpt, err := engine.Release(ctx, pool.ID, alice)
//
// # Staking
//
//	pos, err := engine.Stake(ctx, holder, amount, clock.Days(90))
//	rcpt, err := engine.WithdrawAllStake(ctx, holder, pos.Index)
//
// # Time
//
// Every computation reads a clock.Clock, never the wall clock directly, so
// tests drive time with clock.Manual.
//
// # Concurrency
//
// Mutating operations are serialized by the engine. State is committed
// before tokens move; if the token ledger fails, the commit is reverted
// and the ledger error returned.
//
// # TypeID
//
// All records use TypeID for globally unique, type-safe identifiers:
//
//	pool_01h2xcejqtf2nbrexx3vqjhp41  // Pool ID
//	vsch_01h2xcejqtf2nbrexx3vqjhp41  // Schedule ID
//	stk_01h455vb4pex5vsknk084sn02q   // Stake position ID
//	rcpt_01h455vb4pex5vsknk084sn02q  // Receipt ID
package lockup
