package receipt

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/lockup/id"
	"github.com/xraph/lockup/types"
)

type Kind string

const (
	KindRelease  Kind = "release"
	KindStake    Kind = "stake"
	KindWithdraw Kind = "withdraw"
	KindAirdrop  Kind = "airdrop"
	KindRefund   Kind = "refund"
)

// Receipt records one value movement between the engine and an account.
// Gross is what the engine computed; Net is what the token ledger reported
// after its own transfer fee.
type Receipt struct {
	types.Entity
	ID        id.ReceiptID   `json:"id"`
	Kind      Kind           `json:"kind"`
	Account   common.Address `json:"account"`
	PoolID    id.PoolID      `json:"pool_id,omitempty"`
	Index     uint64         `json:"index"`
	Gross     types.Amount   `json:"gross"`
	Reward    types.Amount   `json:"reward"`
	Penalty   types.Amount   `json:"penalty"`
	Net       types.Amount   `json:"net"`
	Timestamp int64          `json:"timestamp"`
}
