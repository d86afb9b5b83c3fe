package mongo

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/grove"

	"github.com/xraph/lockup/airdrop"
	"github.com/xraph/lockup/curve"
	"github.com/xraph/lockup/fee"
	"github.com/xraph/lockup/id"
	"github.com/xraph/lockup/receipt"
	"github.com/xraph/lockup/staking"
	"github.com/xraph/lockup/types"
	"github.com/xraph/lockup/vesting"
)

const singletonID = "default"

// ==================== Pool models ====================

type poolModel struct {
	grove.BaseModel `grove:"table:lockup_pools"`

	ID          string            `grove:"id,pk"        bson:"_id"`
	Name        string            `grove:"name"         bson:"name"`
	Allocation  string            `grove:"allocation"   bson:"allocation"`
	Whitelist   bool              `grove:"whitelist"    bson:"whitelist"`
	Cap         string            `grove:"cap"          bson:"cap"`
	Allocated   string            `grove:"allocated"    bson:"allocated"`
	Released    string            `grove:"released"     bson:"released"`
	Forfeited   string            `grove:"forfeited"    bson:"forfeited"`
	StartAt     int64             `grove:"start_at"     bson:"start_at"`
	Cliff       int64             `grove:"cliff"        bson:"cliff"`
	Duration    int64             `grove:"duration"     bson:"duration"`
	CurveKind   string            `grove:"curve_kind"   bson:"curve_kind"`
	RateTable   []stepModel       `grove:"rate_table"   bson:"rate_table,omitempty"`
	MonthLength int64             `grove:"month_length" bson:"month_length"`
	DeleteMode  string            `grove:"delete_mode"  bson:"delete_mode"`
	Metadata    map[string]string `grove:"metadata"     bson:"metadata,omitempty"`
	CreatedAt   time.Time         `grove:"created_at"   bson:"created_at"`
	UpdatedAt   time.Time         `grove:"updated_at"   bson:"updated_at"`
}

type stepModel struct {
	Month uint32 `bson:"month"`
	Num   int64  `bson:"num"`
	Den   int64  `bson:"den"`
}

func toPoolModel(p *vesting.Pool) *poolModel {
	var table []stepModel
	for _, st := range p.RateTable {
		table = append(table, stepModel{
			Month: st.Month,
			Num:   int64(st.Fraction.Num),
			Den:   int64(st.Fraction.Den),
		})
	}

	return &poolModel{
		ID:          p.ID.String(),
		Name:        p.Name,
		Allocation:  string(p.Allocation),
		Whitelist:   p.Whitelist,
		Cap:         p.Cap.String(),
		Allocated:   p.Allocated.String(),
		Released:    p.Released.String(),
		Forfeited:   p.Forfeited.String(),
		StartAt:     p.Start,
		Cliff:       p.Cliff,
		Duration:    p.Duration,
		CurveKind:   string(p.CurveKind),
		RateTable:   table,
		MonthLength: p.MonthLength,
		DeleteMode:  string(p.DeleteMode),
		Metadata:    p.Metadata,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromPoolModel(m *poolModel) (*vesting.Pool, error) {
	poolID, err := id.ParsePoolID(m.ID)
	if err != nil {
		return nil, err
	}
	amounts, err := parseAmounts(m.Cap, m.Allocated, m.Released, m.Forfeited)
	if err != nil {
		return nil, err
	}

	var table []curve.Step
	for _, st := range m.RateTable {
		table = append(table, curve.Step{
			Month:    st.Month,
			Fraction: curve.Fraction{Num: uint64(st.Num), Den: uint64(st.Den)},
		})
	}

	return &vesting.Pool{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          poolID,
		Name:        m.Name,
		Allocation:  vesting.Allocation(m.Allocation),
		Whitelist:   m.Whitelist,
		Cap:         amounts[0],
		Allocated:   amounts[1],
		Released:    amounts[2],
		Forfeited:   amounts[3],
		Start:       m.StartAt,
		Cliff:       m.Cliff,
		Duration:    m.Duration,
		CurveKind:   curve.Kind(m.CurveKind),
		RateTable:   table,
		MonthLength: m.MonthLength,
		DeleteMode:  vesting.DeleteMode(m.DeleteMode),
		Metadata:    m.Metadata,
	}, nil
}

// ==================== Schedule models ====================

type scheduleModel struct {
	grove.BaseModel `grove:"table:lockup_schedules"`

	ID            string    `grove:"id,pk"          bson:"_id"`
	PoolID        string    `grove:"pool_id"        bson:"pool_id"`
	Beneficiary   string    `grove:"beneficiary"    bson:"beneficiary"`
	TotalAmount   string    `grove:"total_amount"   bson:"total_amount"`
	InitialUnlock string    `grove:"initial_unlock" bson:"initial_unlock"`
	Released      string    `grove:"released"       bson:"released"`
	Removed       bool      `grove:"removed"        bson:"removed"`
	Forfeited     string    `grove:"forfeited"      bson:"forfeited"`
	CreatedAt     time.Time `grove:"created_at"     bson:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"     bson:"updated_at"`
}

func toScheduleModel(s *vesting.Schedule) *scheduleModel {
	return &scheduleModel{
		ID:            s.ID.String(),
		PoolID:        s.PoolID.String(),
		Beneficiary:   s.Beneficiary.Hex(),
		TotalAmount:   s.TotalAmount.String(),
		InitialUnlock: s.InitialUnlock.String(),
		Released:      s.Released.String(),
		Removed:       s.Removed,
		Forfeited:     s.Forfeited.String(),
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func fromScheduleModel(m *scheduleModel) (*vesting.Schedule, error) {
	schedID, err := id.ParseScheduleID(m.ID)
	if err != nil {
		return nil, err
	}
	poolID, err := id.ParsePoolID(m.PoolID)
	if err != nil {
		return nil, err
	}
	amounts, err := parseAmounts(m.TotalAmount, m.InitialUnlock, m.Released, m.Forfeited)
	if err != nil {
		return nil, err
	}

	return &vesting.Schedule{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            schedID,
		PoolID:        poolID,
		Beneficiary:   common.HexToAddress(m.Beneficiary),
		TotalAmount:   amounts[0],
		InitialUnlock: amounts[1],
		Released:      amounts[2],
		Removed:       m.Removed,
		Forfeited:     amounts[3],
	}, nil
}

// ==================== Position models ====================

type positionModel struct {
	grove.BaseModel `grove:"table:lockup_positions"`

	ID         string    `grove:"id,pk"       bson:"_id"`
	Account    string    `grove:"account"     bson:"account"`
	Owner      string    `grove:"owner"       bson:"owner"`
	Idx        int64     `grove:"idx"         bson:"idx"`
	Principal  string    `grove:"principal"   bson:"principal"`
	Tier       int64     `grove:"tier"        bson:"tier"`
	StartAt    int64     `grove:"start_at"    bson:"start_at"`
	Withdrawn  string    `grove:"withdrawn"   bson:"withdrawn"`
	RewardPaid string    `grove:"reward_paid" bson:"reward_paid"`
	CreatedAt  time.Time `grove:"created_at"  bson:"created_at"`
	UpdatedAt  time.Time `grove:"updated_at"  bson:"updated_at"`
}

func toPositionModel(p *staking.Position) *positionModel {
	return &positionModel{
		ID:         p.ID.String(),
		Account:    p.Account.Hex(),
		Owner:      p.Owner.Hex(),
		Idx:        int64(p.Index),
		Principal:  p.Principal.String(),
		Tier:       p.Tier,
		StartAt:    p.Start,
		Withdrawn:  p.Withdrawn.String(),
		RewardPaid: p.RewardPaid.String(),
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func fromPositionModel(m *positionModel) (*staking.Position, error) {
	posID, err := id.ParsePositionID(m.ID)
	if err != nil {
		return nil, err
	}
	amounts, err := parseAmounts(m.Principal, m.Withdrawn, m.RewardPaid)
	if err != nil {
		return nil, err
	}

	return &staking.Position{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         posID,
		Account:    common.HexToAddress(m.Account),
		Owner:      common.HexToAddress(m.Owner),
		Index:      uint64(m.Idx),
		Principal:  amounts[0],
		Tier:       m.Tier,
		Start:      m.StartAt,
		Withdrawn:  amounts[1],
		RewardPaid: amounts[2],
	}, nil
}

// ==================== Airdrop models ====================

type airdropStateModel struct {
	grove.BaseModel `grove:"table:lockup_airdrop_state"`

	ID        string    `grove:"id,pk"      bson:"_id"`
	Enabled   bool      `grove:"enabled"    bson:"enabled"`
	Rate      int64     `grove:"rate"       bson:"rate"`
	Cooldown  int64     `grove:"cooldown"   bson:"cooldown"`
	StartedAt int64     `grove:"started_at" bson:"started_at"`
	CreatedAt time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time `grove:"updated_at" bson:"updated_at"`
}

func toAirdropStateModel(s *airdrop.State) *airdropStateModel {
	return &airdropStateModel{
		ID:        singletonID,
		Enabled:   s.Enabled,
		Rate:      int64(s.Rate),
		Cooldown:  s.Cooldown,
		StartedAt: s.StartedAt,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func fromAirdropStateModel(m *airdropStateModel) *airdrop.State {
	return &airdrop.State{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Enabled:   m.Enabled,
		Rate:      types.BPS(m.Rate),
		Cooldown:  m.Cooldown,
		StartedAt: m.StartedAt,
	}
}

type airdropClaimModel struct {
	grove.BaseModel `grove:"table:lockup_airdrop_claims"`

	Owner      string    `grove:"owner,pk"    bson:"_id"`
	LastClaim  int64     `grove:"last_claim"  bson:"last_claim"`
	Claimed    string    `grove:"claimed"     bson:"claimed"`
	ClaimCount int64     `grove:"claim_count" bson:"claim_count"`
	CreatedAt  time.Time `grove:"created_at"  bson:"created_at"`
	UpdatedAt  time.Time `grove:"updated_at"  bson:"updated_at"`
}

func toAirdropClaimModel(c *airdrop.Claim) *airdropClaimModel {
	return &airdropClaimModel{
		Owner:      c.Owner.Hex(),
		LastClaim:  c.LastClaim,
		Claimed:    c.Claimed.String(),
		ClaimCount: int64(c.Count),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func fromAirdropClaimModel(m *airdropClaimModel) (*airdrop.Claim, error) {
	claimed, err := types.ParseAmount(m.Claimed)
	if err != nil {
		return nil, err
	}
	return &airdrop.Claim{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Owner:     common.HexToAddress(m.Owner),
		LastClaim: m.LastClaim,
		Claimed:   claimed,
		Count:     uint64(m.ClaimCount),
	}, nil
}

// ==================== Fee models ====================

type feeScheduleModel struct {
	grove.BaseModel `grove:"table:lockup_fee_schedule"`

	ID                string    `grove:"id,pk"               bson:"_id"`
	TaxFee            int64     `grove:"tax_fee"             bson:"tax_fee"`
	PenaltyRate       int64     `grove:"penalty_rate"        bson:"penalty_rate"`
	LastChange        int64     `grove:"last_change"         bson:"last_change"`
	MinChangeInterval int64     `grove:"min_change_interval" bson:"min_change_interval"`
	CreatedAt         time.Time `grove:"created_at"          bson:"created_at"`
	UpdatedAt         time.Time `grove:"updated_at"          bson:"updated_at"`
}

func toFeeScheduleModel(f *fee.Schedule) *feeScheduleModel {
	return &feeScheduleModel{
		ID:                singletonID,
		TaxFee:            int64(f.TaxFee),
		PenaltyRate:       int64(f.PenaltyRate),
		LastChange:        f.LastChange,
		MinChangeInterval: f.MinChangeInterval,
		CreatedAt:         f.CreatedAt,
		UpdatedAt:         f.UpdatedAt,
	}
}

func fromFeeScheduleModel(m *feeScheduleModel) *fee.Schedule {
	return &fee.Schedule{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		TaxFee:            types.BPS(m.TaxFee),
		PenaltyRate:       types.BPS(m.PenaltyRate),
		LastChange:        m.LastChange,
		MinChangeInterval: m.MinChangeInterval,
	}
}

// ==================== Receipt models ====================

type receiptModel struct {
	grove.BaseModel `grove:"table:lockup_receipts"`

	ID        string    `grove:"id,pk"      bson:"_id"`
	Kind      string    `grove:"kind"       bson:"kind"`
	Account   string    `grove:"account"    bson:"account"`
	PoolID    string    `grove:"pool_id"    bson:"pool_id,omitempty"`
	Idx       int64     `grove:"idx"        bson:"idx"`
	Gross     string    `grove:"gross"      bson:"gross"`
	Reward    string    `grove:"reward"     bson:"reward"`
	Penalty   string    `grove:"penalty"    bson:"penalty"`
	Net       string    `grove:"net"        bson:"net"`
	Timestamp int64     `grove:"ts"         bson:"ts"`
	CreatedAt time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time `grove:"updated_at" bson:"updated_at"`
}

func toReceiptModel(r *receipt.Receipt) *receiptModel {
	return &receiptModel{
		ID:        r.ID.String(),
		Kind:      string(r.Kind),
		Account:   r.Account.Hex(),
		PoolID:    r.PoolID.String(),
		Idx:       int64(r.Index),
		Gross:     r.Gross.String(),
		Reward:    r.Reward.String(),
		Penalty:   r.Penalty.String(),
		Net:       r.Net.String(),
		Timestamp: r.Timestamp,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func fromReceiptModel(m *receiptModel) (*receipt.Receipt, error) {
	rcptID, err := id.ParseReceiptID(m.ID)
	if err != nil {
		return nil, err
	}
	var poolID id.PoolID
	if m.PoolID != "" {
		if poolID, err = id.ParsePoolID(m.PoolID); err != nil {
			return nil, err
		}
	}
	amounts, err := parseAmounts(m.Gross, m.Reward, m.Penalty, m.Net)
	if err != nil {
		return nil, err
	}

	return &receipt.Receipt{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:        rcptID,
		Kind:      receipt.Kind(m.Kind),
		Account:   common.HexToAddress(m.Account),
		PoolID:    poolID,
		Index:     uint64(m.Idx),
		Gross:     amounts[0],
		Reward:    amounts[1],
		Penalty:   amounts[2],
		Net:       amounts[3],
		Timestamp: m.Timestamp,
	}, nil
}

func parseAmounts(cols ...string) ([]types.Amount, error) {
	out := make([]types.Amount, len(cols))
	for i, c := range cols {
		if err := out[i].UnmarshalText([]byte(c)); err != nil {
			return nil, err
		}
	}
	return out, nil
}
