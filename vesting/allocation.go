package vesting

import "github.com/xraph/lockup/clock"

// Allocation is the token distribution category a pool funds.
type Allocation string

const (
	AllocationPublicSale       Allocation = "public_sale"
	AllocationPrivateSale      Allocation = "private_sale"
	AllocationSeedSale         Allocation = "seed_sale"
	AllocationStrategicPartner Allocation = "strategic_partner"
	AllocationTeam             Allocation = "team_and_project"
	AllocationMarketing        Allocation = "marketing"
	AllocationStakingReward    Allocation = "staking_reward"
	AllocationLiquidityReserve Allocation = "liquidity_reserve"
	AllocationDAOPool          Allocation = "dao_pool"
	AllocationCustom           Allocation = "custom"
)

// Terms are the default cliff and duration of an allocation, in months.
type Terms struct {
	CliffMonths    int64
	DurationMonths int64
}

// Cliff returns the cliff in seconds.
func (t Terms) Cliff() int64 { return clock.Months(t.CliffMonths) }

// Duration returns the duration in seconds.
func (t Terms) Duration() int64 { return clock.Months(t.DurationMonths) }

var defaultTerms = map[Allocation]Terms{
	AllocationPublicSale:       {0, 4},
	AllocationPrivateSale:      {2, 12},
	AllocationSeedSale:         {4, 14},
	AllocationStrategicPartner: {11, 36},
	AllocationTeam:             {11, 36},
	AllocationMarketing:        {0, 35},
	AllocationStakingReward:    {0, 51},
	AllocationLiquidityReserve: {0, 51},
	AllocationDAOPool:          {0, 51},
}

// DefaultTerms returns the launch terms of a known allocation.
func (a Allocation) DefaultTerms() (Terms, bool) {
	t, ok := defaultTerms[a]
	return t, ok
}

// IsWhitelist reports whether the allocation is sold to a whitelist of
// buyers rather than granted to a fixed recipient.
func (a Allocation) IsWhitelist() bool {
	switch a {
	case AllocationPrivateSale, AllocationSeedSale, AllocationStrategicPartner:
		return true
	}
	return false
}

func (a Allocation) String() string { return string(a) }
