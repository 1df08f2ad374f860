package nodebodies

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-gavel/internal/domain"
)

func TestFuzzyMatchBodyRun(t *testing.T) {
	body, err := NewFuzzyMatchBody("fm", DefaultFuzzyMatchConfig())
	require.NoError(t, err)

	inputs := map[string]domain.Cell{
		"candidate": domain.NewText("kitten"),
		"reference": domain.NewText("sitting"),
	}
	outputs := make(map[string]domain.Cell)
	require.NoError(t, body.Run(context.Background(), inputs, outputs))

	score, err := outputs["score"].F64()
	require.NoError(t, err)
	assert.InDelta(t, 1.0-3.0/7.0, score, 1e-9)
}

func TestFuzzyMatchBodyIdenticalStrings(t *testing.T) {
	body, err := NewFuzzyMatchBody("fm", DefaultFuzzyMatchConfig())
	require.NoError(t, err)

	inputs := map[string]domain.Cell{
		"candidate": domain.NewText("same"),
		"reference": domain.NewText("same"),
	}
	outputs := make(map[string]domain.Cell)
	require.NoError(t, body.Run(context.Background(), inputs, outputs))

	score, err := outputs["score"].F64()
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestFuzzyMatchBodyThresholdClampsToZero(t *testing.T) {
	cfg := DefaultFuzzyMatchConfig()
	cfg.Threshold = 0.9
	body, err := NewFuzzyMatchBody("fm", cfg)
	require.NoError(t, err)

	inputs := map[string]domain.Cell{
		"candidate": domain.NewText("kitten"),
		"reference": domain.NewText("sitting"),
	}
	outputs := make(map[string]domain.Cell)
	require.NoError(t, body.Run(context.Background(), inputs, outputs))

	score, err := outputs["score"].F64()
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestFuzzyMatchBodyInvalidAlgorithm(t *testing.T) {
	_, err := NewFuzzyMatchBody("fm", FuzzyMatchConfig{Algorithm: "soundex"})
	require.Error(t, err)
}
