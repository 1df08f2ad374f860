package nodebodies

import (
	"context"
	"fmt"

	"github.com/agnivade/levenshtein"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-gavel/internal/domain"
	"github.com/ahrav/go-gavel/internal/ports"
)

var foldCaser = cases.Fold()

// FuzzyMatchBody compares a "candidate" input Cell against a
// "reference" input Cell using normalized Levenshtein distance,
// producing a "score" output Cell in [0, 1]; scores below Threshold
// are clamped to 0.
//
// Grounded on infrastructure/units/fuzzy_match_unit.go, narrowed to the
// single-Cell-per-port port model.
type FuzzyMatchBody struct {
	id     string
	config FuzzyMatchConfig
	tracer trace.Tracer
}

// FuzzyMatchConfig controls the similarity algorithm and pass threshold.
type FuzzyMatchConfig struct {
	Algorithm     string  `yaml:"algorithm" json:"algorithm" validate:"required,oneof=levenshtein"`
	Threshold     float64 `yaml:"threshold" json:"threshold" validate:"min=0.0,max=1.0"`
	CaseSensitive bool    `yaml:"case_sensitive" json:"case_sensitive"`
}

// DefaultFuzzyMatchConfig returns Levenshtein matching with no threshold floor.
func DefaultFuzzyMatchConfig() FuzzyMatchConfig {
	return FuzzyMatchConfig{Algorithm: "levenshtein", Threshold: 0.0, CaseSensitive: false}
}

// NewFuzzyMatchBody creates a FuzzyMatchBody with the given id and config.
func NewFuzzyMatchBody(id string, config FuzzyMatchConfig) (*FuzzyMatchBody, error) {
	if id == "" {
		return nil, ErrEmptyBodyID
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &FuzzyMatchBody{id: id, config: config, tracer: otel.Tracer("fuzzy-match-body")}, nil
}

// NewFuzzyMatchFromConfig is the ports.NodeBodyFactory boundary adapter.
func NewFuzzyMatchFromConfig(id string, config map[string]any, _ ports.LLMClient) (ports.NodeBody, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	cfg := DefaultFuzzyMatchConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return NewFuzzyMatchBody(id, cfg)
}

// Run implements ports.NodeBody.
func (b *FuzzyMatchBody) Run(ctx context.Context, inputs map[string]domain.Cell, outputs map[string]domain.Cell) error {
	_, span := b.tracer.Start(ctx, "FuzzyMatchBody.Run",
		trace.WithAttributes(attribute.String("body.id", b.id), attribute.Float64("config.threshold", b.config.Threshold)),
	)
	defer span.End()

	candidate, ok := inputs["candidate"]
	if !ok {
		return fmt.Errorf("%w: candidate", ErrMissingInput)
	}
	reference, ok := inputs["reference"]
	if !ok {
		return fmt.Errorf("%w: reference", ErrMissingInput)
	}

	candidateText, err := candidate.Text()
	if err != nil {
		return err
	}
	referenceText, err := reference.Text()
	if err != nil {
		return err
	}

	if !b.config.CaseSensitive {
		candidateText = foldCaser.String(candidateText)
		referenceText = foldCaser.String(referenceText)
	}

	score := similarity(candidateText, referenceText)
	if score < b.config.Threshold {
		score = 0.0
	}

	span.SetAttributes(attribute.Float64("eval.score", score))
	outputs["score"] = domain.NewF64(score)
	return nil
}

// similarity returns 1 - normalized Levenshtein edit distance. Two
// empty strings are defined as a perfect match.
func similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	maxLen := len([]rune(a))
	if rl := len([]rune(b)); rl > maxLen {
		maxLen = rl
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}
