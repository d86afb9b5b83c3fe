package audithook_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audithook "github.com/xraph/lockup/audit_hook"
	"github.com/xraph/lockup/fee"
	"github.com/xraph/lockup/id"
	"github.com/xraph/lockup/receipt"
	"github.com/xraph/lockup/staking"
	"github.com/xraph/lockup/types"
)

type sink struct {
	events []*audithook.AuditEvent
	err    error
}

func (s *sink) Record(_ context.Context, evt *audithook.AuditEvent) error {
	s.events = append(s.events, evt)
	return s.err
}

func withdrawal(penalty uint64) (*staking.Position, *receipt.Receipt) {
	pos := &staking.Position{ID: id.NewPositionID(), Account: common.HexToAddress("0xa1"), Index: 2}
	r := &receipt.Receipt{
		ID:      id.NewReceiptID(),
		Kind:    receipt.KindWithdraw,
		Account: pos.Account,
		Gross:   types.NewAmount(1000),
		Reward:  types.NewAmount(10),
		Penalty: types.NewAmount(penalty),
		Net:     types.NewAmount(1010 - penalty),
	}
	return pos, r
}

func TestStakeWithdrawnOutcome(t *testing.T) {
	s := &sink{}
	ext := audithook.New(s)
	ctx := context.Background()

	pos, r := withdrawal(0)
	require.NoError(t, ext.OnStakeWithdrawn(ctx, pos, r))
	pos, r = withdrawal(15)
	require.NoError(t, ext.OnStakeWithdrawn(ctx, pos, r))

	require.Len(t, s.events, 2)
	assert.Equal(t, audithook.ActionStakeWithdrawn, s.events[0].Action)
	assert.Equal(t, audithook.OutcomeSuccess, s.events[0].Outcome)
	assert.Equal(t, audithook.OutcomePartial, s.events[1].Outcome)
	assert.Equal(t, "15", s.events[1].Metadata["penalty"])
	assert.Equal(t, "995", s.events[1].Metadata["net"])
	assert.Equal(t, pos.ID.String(), s.events[1].ResourceID)
}

func TestTransferFailedCarriesReason(t *testing.T) {
	s := &sink{}
	ext := audithook.New(s)

	cause := errors.New("insufficient balance")
	require.NoError(t, ext.OnTransferFailed(context.Background(), common.HexToAddress("0xb0"), types.NewAmount(7), cause))

	require.Len(t, s.events, 1)
	evt := s.events[0]
	assert.Equal(t, audithook.SeverityError, evt.Severity)
	assert.Equal(t, audithook.OutcomeFailure, evt.Outcome)
	assert.Equal(t, "insufficient balance", evt.Reason)
	assert.Equal(t, "7", evt.Metadata["amount"])
}

func TestActionFilters(t *testing.T) {
	ctx := context.Background()

	s := &sink{}
	ext := audithook.New(s, audithook.WithEnabledActions(audithook.ActionAirdropClaimed))
	pos, r := withdrawal(0)
	require.NoError(t, ext.OnStakeWithdrawn(ctx, pos, r))
	require.NoError(t, ext.OnAirdropClaimed(ctx, r))
	require.Len(t, s.events, 1)
	assert.Equal(t, audithook.ActionAirdropClaimed, s.events[0].Action)

	s = &sink{}
	ext = audithook.New(s, audithook.WithDisabledActions(audithook.ActionAirdropClaimed))
	require.NoError(t, ext.OnStakeWithdrawn(ctx, pos, r))
	require.NoError(t, ext.OnAirdropClaimed(ctx, r))
	require.Len(t, s.events, 1)
	assert.Equal(t, audithook.ActionStakeWithdrawn, s.events[0].Action)
}

func TestCategoryFilter(t *testing.T) {
	ctx := context.Background()
	s := &sink{}
	ext := audithook.New(s, audithook.WithCategories(audithook.CategoryGovernance))

	pos, r := withdrawal(0)
	require.NoError(t, ext.OnStakeWithdrawn(ctx, pos, r))
	require.NoError(t, ext.OnFeeChanged(ctx, &fee.Schedule{TaxFee: 100}, &fee.Schedule{TaxFee: 200}))

	require.Len(t, s.events, 1)
	assert.Equal(t, audithook.ActionFeeChanged, s.events[0].Action)
	assert.Equal(t, audithook.CategoryGovernance, s.events[0].Category)
}

func TestRecorderErrorIsSwallowed(t *testing.T) {
	s := &sink{err: errors.New("backend down")}
	ext := audithook.New(s)
	_, r := withdrawal(0)
	assert.NoError(t, ext.OnAirdropClaimed(context.Background(), r))
	assert.Len(t, s.events, 1)
}
