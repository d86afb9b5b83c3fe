package observability_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/lockup/observability"
	"github.com/xraph/lockup/receipt"
	"github.com/xraph/lockup/staking"
	"github.com/xraph/lockup/types"
	"github.com/xraph/lockup/vesting"
)

func TestMetricsExtensionCounts(t *testing.T) {
	factory := observability.NewPrometheusFactory(nil)
	m := observability.NewMetricsExtension(factory)
	ctx := context.Background()

	pool := &vesting.Pool{Name: "team"}
	require.NoError(t, m.OnPoolInitialized(ctx, pool))
	require.NoError(t, m.OnBeneficiariesAdded(ctx, pool, []*vesting.Schedule{{}, {}, {}}))

	pos := &staking.Position{Principal: types.NewAmount(10_000)}
	require.NoError(t, m.OnStaked(ctx, pos, &receipt.Receipt{}))
	require.NoError(t, m.OnStakeWithdrawn(ctx, pos, &receipt.Receipt{Reward: types.NewAmount(41)}))
	require.NoError(t, m.OnStakeWithdrawn(ctx, pos, &receipt.Receipt{Penalty: types.NewAmount(150)}))
	require.NoError(t, m.OnTransferFailed(ctx, common.HexToAddress("0xa1"), types.NewAmount(1), errors.New("boom")))

	assert.InDelta(t, 1, testutil.ToFloat64(m.PoolsInitialized.(prometheus.Counter)), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.BeneficiariesAdded.(prometheus.Counter)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.StakesOpened.(prometheus.Counter)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.StakeWithdrawals.(prometheus.Counter)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.EarlyWithdrawals.(prometheus.Counter)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TransferFailures.(prometheus.Counter)), 0)
}

func TestPrometheusFactorySharesMeters(t *testing.T) {
	factory := observability.NewPrometheusFactory(nil)

	a := factory.Counter("lockup.stake.opened")
	b := factory.Counter("lockup.stake.opened")
	a.Inc()
	b.Add(2)
	assert.InDelta(t, 3, testutil.ToFloat64(a.(prometheus.Counter)), 0)

	factory.Histogram("lockup.stake.reward_amount").Observe(41)

	rec := httptest.NewRecorder()
	factory.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "lockup_stake_opened 3"), body)
	assert.True(t, strings.Contains(body, "lockup_stake_reward_amount_count 1"), body)
}
