package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/lockup"
	"github.com/xraph/lockup/store"
	"github.com/xraph/lockup/store/memory"
	"github.com/xraph/lockup/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return memory.New() })
}

func TestPingAfterClose(t *testing.T) {
	s := memory.New()
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Ping(context.Background()), lockup.ErrStoreClosed)
}
