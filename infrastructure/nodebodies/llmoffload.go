package nodebodies

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-gavel/internal/domain"
	"github.com/ahrav/go-gavel/internal/ports"
)

// Bounds mirrored from the teacher's score-judge configuration.
const (
	minScoreValue   = -1000.0
	maxScoreValue   = 1000.0
	defaultMaxToken = 256
)

// LLMOffloadBody is the device-placed body that delegates computation a
// CPU body cannot do cheaply — free-form generation or judged scoring —
// to an accelerator reached through ports.LLMClient. It renders Prompt
// as a text/template against the node's input Cells, sends it to the
// client, and writes the raw completion text to the "text" output port
// and the summed token usage to "tokens_used". When ParseScore is set it
// also writes the leading number of the response, unscaled, to the
// "score" output port; a response that does not start with a number in
// [ScoreMin, ScoreMax] makes Run return an error.
//
// Grounded on infrastructure/units/{answerer,score_judge,verification}_unit.go:
// those three teacher units differ only in prompt shape and in whether
// they parse a score out of the response, which this body expresses as
// configuration (Prompt, ParseScore, ScoreScale) instead of three
// separate types — the common offload behavior (template render, call
// CompleteWithUsage, record usage) is identical across all three, and
// scale consolidates it into the node body a device-placed Graph Node
// actually carries (spec.md's Placement=Device).
type LLMOffloadBody struct {
	id     string
	llm    ports.LLMClient
	config LLMOffloadConfig
	tmpl   *template.Template
}

// LLMOffloadConfig controls prompt rendering and response interpretation.
type LLMOffloadConfig struct {
	// Prompt is a Go template rendered against the node's input Cells
	// (as a map[string]string of their text/string representations).
	Prompt string `yaml:"prompt" json:"prompt" validate:"required,min=1"`
	// Temperature and MaxTokens are forwarded to the LLM client as options.
	Temperature float64 `yaml:"temperature" json:"temperature" validate:"min=0.0,max=2.0"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens" validate:"min=1,max=8000"`
	// ParseScore, when true, requires the completion to parse as a
	// number within ScoreMin/ScoreMax and writes it to the "score" port.
	ParseScore bool    `yaml:"parse_score" json:"parse_score"`
	ScoreMin   float64 `yaml:"score_min" json:"score_min"`
	ScoreMax   float64 `yaml:"score_max" json:"score_max"`
}

// DefaultLLMOffloadConfig returns conservative generation defaults with
// score parsing disabled.
func DefaultLLMOffloadConfig() LLMOffloadConfig {
	return LLMOffloadConfig{
		Temperature: 0,
		MaxTokens:   defaultMaxToken,
		ParseScore:  false,
		ScoreMin:    0,
		ScoreMax:    1,
	}
}

// NewLLMOffloadBody compiles Prompt and binds the client the body will
// offload completions to.
func NewLLMOffloadBody(id string, llm ports.LLMClient, config LLMOffloadConfig) (*LLMOffloadBody, error) {
	if id == "" {
		return nil, ErrEmptyBodyID
	}
	if llm == nil {
		return nil, fmt.Errorf("llm offload body %s: LLM client is required", id)
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	tmpl, err := template.New(id).Option("missingkey=error").Parse(config.Prompt)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return &LLMOffloadBody{id: id, llm: llm, config: config, tmpl: tmpl}, nil
}

// NewLLMOffloadFromConfig is the ports.NodeBodyFactory boundary adapter.
func NewLLMOffloadFromConfig(id string, config map[string]any, llm ports.LLMClient) (ports.NodeBody, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	cfg := DefaultLLMOffloadConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return NewLLMOffloadBody(id, llm, cfg)
}

// Run implements ports.NodeBody. It renders the prompt template against
// every declared input Cell (coerced to its string form), issues the
// completion, and writes "text" and (optionally) "score" and
// "tokens_used" output Cells.
func (b *LLMOffloadBody) Run(ctx context.Context, inputs map[string]domain.Cell, outputs map[string]domain.Cell) error {
	vars := make(map[string]string, len(inputs))
	for name, cell := range inputs {
		vars[name] = cellToString(cell)
	}

	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, vars); err != nil {
		return fmt.Errorf("render prompt: %w", err)
	}

	options := map[string]any{
		"temperature": b.config.Temperature,
		"max_tokens":  b.config.MaxTokens,
	}

	text, tokensIn, tokensOut, err := b.llm.CompleteWithUsage(ctx, buf.String(), options)
	if err != nil {
		return fmt.Errorf("llm offload body %s: %w", b.id, err)
	}

	outputs["text"] = domain.NewText(text)
	outputs["tokens_used"] = domain.NewI64(int64(tokensIn + tokensOut))

	if b.config.ParseScore {
		score, err := parseScore(text, b.config.ScoreMin, b.config.ScoreMax)
		if err != nil {
			return fmt.Errorf("llm offload body %s: %w", b.id, err)
		}
		outputs["score"] = domain.NewF64(score)
	}

	return nil
}

func cellToString(c domain.Cell) string {
	if s, err := c.Text(); err == nil {
		return s
	}
	if v, err := c.F64(); err == nil {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	if v, err := c.I64(); err == nil {
		return strconv.FormatInt(v, 10)
	}
	return ""
}

// parseScore extracts the first numeric token from an LLM completion
// and validates it falls within [min, max] and within the hard bounds
// the teacher's score-judge config enforced.
func parseScore(text string, min, max float64) (float64, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty response, expected a numeric score")
	}
	field := strings.Trim(fields[0], ".,:;")
	value, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, fmt.Errorf("response does not begin with a numeric score: %q", text)
	}
	if value < minScoreValue || value > maxScoreValue {
		return 0, fmt.Errorf("score %.4f outside absolute bounds [%.0f, %.0f]", value, minScoreValue, maxScoreValue)
	}
	if value < min || value > max {
		return 0, fmt.Errorf("score %.4f outside configured range [%.4f, %.4f]", value, min, max)
	}
	return value, nil
}
