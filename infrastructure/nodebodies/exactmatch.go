package nodebodies

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-gavel/internal/domain"
	"github.com/ahrav/go-gavel/internal/ports"
)

// MaxTextLength bounds the candidate/reference Cell text this body will
// compare, preventing a single pathological Cell from consuming
// unbounded CPU during normalization.
const MaxTextLength = 10 * 1024 * 1024 // 10MB

// ExactMatchBody performs deterministic exact string comparison between
// a "candidate" input Cell and a "reference" input Cell, producing a
// binary "score" output Cell: 1.0 for an exact match, 0.0 otherwise.
//
// Grounded on infrastructure/units/exact_match_unit.go, narrowed from a
// []domain.Answer fan-out to a single-Cell-per-port comparison to match
// the engine's per-(node, batch) execution model — callers that need to
// score many candidates against one reference run one (exact_match, batchID)
// task per candidate.
type ExactMatchBody struct {
	id     string
	config ExactMatchConfig
	tracer trace.Tracer
}

// ExactMatchConfig controls string normalization before comparison.
type ExactMatchConfig struct {
	CaseSensitive  bool `yaml:"case_sensitive" json:"case_sensitive"`
	TrimWhitespace bool `yaml:"trim_whitespace" json:"trim_whitespace"`
}

// DefaultExactMatchConfig returns case-insensitive, whitespace-trimmed defaults.
func DefaultExactMatchConfig() ExactMatchConfig {
	return ExactMatchConfig{CaseSensitive: false, TrimWhitespace: true}
}

// NewExactMatchBody creates an ExactMatchBody with the given id and config.
func NewExactMatchBody(id string, config ExactMatchConfig) (*ExactMatchBody, error) {
	if id == "" {
		return nil, ErrEmptyBodyID
	}
	return &ExactMatchBody{id: id, config: config, tracer: otel.Tracer("exact-match-body")}, nil
}

// NewExactMatchFromConfig is the ports.NodeBodyFactory boundary adapter
// for declarative graph construction. llm is ignored: exact match never
// calls an LLM.
func NewExactMatchFromConfig(id string, config map[string]any, _ ports.LLMClient) (ports.NodeBody, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	cfg := DefaultExactMatchConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return NewExactMatchBody(id, cfg)
}

// Run implements ports.NodeBody.
func (b *ExactMatchBody) Run(ctx context.Context, inputs map[string]domain.Cell, outputs map[string]domain.Cell) error {
	_, span := b.tracer.Start(ctx, "ExactMatchBody.Run",
		trace.WithAttributes(
			attribute.String("body.id", b.id),
			attribute.Bool("config.case_sensitive", b.config.CaseSensitive),
		),
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
	if len(candidateText) > MaxTextLength || len(referenceText) > MaxTextLength {
		return fmt.Errorf("input exceeds %d byte limit", MaxTextLength)
	}

	score := 0.0
	if b.prepare(candidateText) == b.prepare(referenceText) {
		score = 1.0
	}

	span.SetAttributes(attribute.Float64("eval.score", score), attribute.Bool("no_llm_cost", true))
	outputs["score"] = domain.NewF64(score)
	return nil
}

func (b *ExactMatchBody) prepare(s string) string {
	if b.config.TrimWhitespace {
		s = strings.TrimSpace(s)
	}
	if !b.config.CaseSensitive {
		s = cases.Fold().String(s)
	}
	return s
}
