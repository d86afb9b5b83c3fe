package airdrop

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

type Store interface {
	GetAirdropState(ctx context.Context) (*State, error)
	SaveAirdropState(ctx context.Context, s *State) error
	GetAirdropClaim(ctx context.Context, owner common.Address) (*Claim, error)
	SaveAirdropClaim(ctx context.Context, c *Claim) error
}
