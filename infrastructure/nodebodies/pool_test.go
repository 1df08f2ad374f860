package nodebodies

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-gavel/internal/domain"
)

func runPool(t *testing.T, strategy PoolStrategy, config PoolConfig, scores []float64) float64 {
	t.Helper()
	body, err := NewPoolBody("pool", strategy, config)
	require.NoError(t, err)

	inputs := map[string]domain.Cell{"scores": domain.NewSeqF64(scores)}
	outputs := make(map[string]domain.Cell)
	require.NoError(t, body.Run(context.Background(), inputs, outputs))

	v, err := outputs["score"].F64()
	require.NoError(t, err)
	return v
}

func TestPoolBodyArithmeticMean(t *testing.T) {
	got := runPool(t, PoolArithmeticMean, DefaultPoolConfig(), []float64{0.2, 0.4, 0.6})
	assert.InDelta(t, 0.4, got, 1e-9)
}

func TestPoolBodyMedianOddAndEven(t *testing.T) {
	assert.Equal(t, 0.4, runPool(t, PoolMedian, DefaultPoolConfig(), []float64{0.6, 0.2, 0.4}))
	assert.InDelta(t, 0.3, runPool(t, PoolMedian, DefaultPoolConfig(), []float64{0.2, 0.4}), 1e-9)
}

func TestPoolBodyMaxFirstTieBreaker(t *testing.T) {
	got := runPool(t, PoolMax, DefaultPoolConfig(), []float64{0.9, 0.9, 0.1})
	assert.Equal(t, 0.9, got)
}

func TestPoolBodyMaxErrorTieBreaker(t *testing.T) {
	body, err := NewPoolBody("pool", PoolMax, PoolConfig{TieBreaker: TieError})
	require.NoError(t, err)

	inputs := map[string]domain.Cell{"scores": domain.NewSeqF64([]float64{0.5, 0.5})}
	err = body.Run(context.Background(), inputs, make(map[string]domain.Cell))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTie)
}

func TestPoolBodyEmptyScores(t *testing.T) {
	body, err := NewPoolBody("pool", PoolArithmeticMean, DefaultPoolConfig())
	require.NoError(t, err)

	inputs := map[string]domain.Cell{"scores": domain.NewSeqF64(nil)}
	err = body.Run(context.Background(), inputs, make(map[string]domain.Cell))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyScores)
}

func TestPoolBodyRequireFloor(t *testing.T) {
	body, err := NewPoolBody("pool", PoolArithmeticMean, PoolConfig{TieBreaker: TieFirst, MinScore: 0.5, RequireFloor: true})
	require.NoError(t, err)

	inputs := map[string]domain.Cell{"scores": domain.NewSeqF64([]float64{0.1, 0.2})}
	err = body.Run(context.Background(), inputs, make(map[string]domain.Cell))
	require.Error(t, err)
}
