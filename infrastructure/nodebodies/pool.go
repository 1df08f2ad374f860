package nodebodies

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-gavel/internal/domain"
	"github.com/ahrav/go-gavel/internal/ports"
)

// PoolStrategy selects the reduction applied by PoolBody.
type PoolStrategy string

// Supported pooling strategies.
const (
	PoolArithmeticMean PoolStrategy = "arithmetic_mean"
	PoolMax            PoolStrategy = "max_pool"
	PoolMedian         PoolStrategy = "median_pool"
)

// TieBreaker selects how PoolMax resolves a tie for the highest score.
type TieBreaker string

// Supported tie-breaking strategies for PoolMax.
const (
	TieFirst  TieBreaker = "first"
	TieRandom TieBreaker = "random"
	TieError  TieBreaker = "error"
)

// PoolBody reduces a "scores" input Cell — a seq<f64> Mini-Batch item —
// to a single "score" output Cell using the configured strategy.
//
// Grounded on infrastructure/units/{arithmetic_mean,max_pool,median_pool}_unit.go,
// unified into one body parameterized by Strategy rather than three
// near-identical types, since all three differ only in their reduction
// function over the same seq<f64> shape.
type PoolBody struct {
	id       string
	strategy PoolStrategy
	config   PoolConfig
}

// PoolConfig controls tie-breaking (PoolMax only) and an optional
// minimum-score floor shared by all strategies.
type PoolConfig struct {
	TieBreaker   TieBreaker `yaml:"tie_breaker" json:"tie_breaker" validate:"omitempty,oneof=first random error"`
	MinScore     float64    `yaml:"min_score" json:"min_score" validate:"min=0,max=1"`
	RequireFloor bool       `yaml:"require_floor" json:"require_floor"`
}

// DefaultPoolConfig returns first-wins tie-breaking with no score floor.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{TieBreaker: TieFirst, MinScore: 0, RequireFloor: false}
}

// NewPoolBody creates a PoolBody for the given strategy.
func NewPoolBody(id string, strategy PoolStrategy, config PoolConfig) (*PoolBody, error) {
	if id == "" {
		return nil, ErrEmptyBodyID
	}
	if config.TieBreaker == "" {
		config.TieBreaker = TieFirst
	}
	return &PoolBody{id: id, strategy: strategy, config: config}, nil
}

func newPoolFromConfig(strategy PoolStrategy) ports.NodeBodyFactory {
	return func(id string, config map[string]any, _ ports.LLMClient) (ports.NodeBody, error) {
		data, err := yaml.Marshal(config)
		if err != nil {
			return nil, fmt.Errorf("marshal config: %w", err)
		}
		cfg := DefaultPoolConfig()
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		return NewPoolBody(id, strategy, cfg)
	}
}

// NewArithmeticMeanFromConfig, NewMaxPoolFromConfig, and
// NewMedianPoolFromConfig are the ports.NodeBodyFactory boundary
// adapters for each pooling strategy.
var (
	NewArithmeticMeanFromConfig = newPoolFromConfig(PoolArithmeticMean)
	NewMaxPoolFromConfig        = newPoolFromConfig(PoolMax)
	NewMedianPoolFromConfig     = newPoolFromConfig(PoolMedian)
)

// Run implements ports.NodeBody.
func (b *PoolBody) Run(_ context.Context, inputs map[string]domain.Cell, outputs map[string]domain.Cell) error {
	scoresCell, ok := inputs["scores"]
	if !ok {
		return fmt.Errorf("%w: scores", ErrMissingInput)
	}
	scores, err := scoresCell.SeqF64()
	if err != nil {
		return err
	}
	if len(scores) == 0 {
		return ErrEmptyScores
	}

	var result float64
	switch b.strategy {
	case PoolArithmeticMean:
		result = mean(scores)
	case PoolMax:
		result, err = b.max(scores)
		if err != nil {
			return err
		}
	case PoolMedian:
		result = median(scores)
	default:
		return fmt.Errorf("unknown pool strategy: %s", b.strategy)
	}

	if b.config.RequireFloor && result < b.config.MinScore {
		return fmt.Errorf("pooled score %.4f below minimum %.4f", result, b.config.MinScore)
	}

	outputs["score"] = domain.NewF64(result)
	return nil
}

func mean(scores []float64) float64 {
	total := 0.0
	for _, s := range scores {
		total += s
	}
	return total / float64(len(scores))
}

func median(scores []float64) float64 {
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func (b *PoolBody) max(scores []float64) (float64, error) {
	best := math.Inf(-1)
	var tied []int
	for i, s := range scores {
		switch {
		case s > best:
			best = s
			tied = []int{i}
		case s == best:
			tied = append(tied, i)
		}
	}

	if len(tied) <= 1 {
		return best, nil
	}

	switch b.config.TieBreaker {
	case TieError:
		return 0, fmt.Errorf("%w: %d candidates scored %.4f", ErrTie, len(tied), best)
	case TieRandom:
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(tied))))
		if err != nil {
			return 0, fmt.Errorf("tie-break randomization failed: %w", err)
		}
		_ = n // the winning index doesn't change the pooled score, only which candidate it names
		return best, nil
	default: // TieFirst
		return best, nil
	}
}
