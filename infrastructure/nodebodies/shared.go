// Package nodebodies provides concrete ports.NodeBody implementations:
// deterministic text-matching bodies, numeric pooling bodies, and
// LLM device-offload bodies. Each is stateless and safe for concurrent
// Run calls; configuration is fixed at construction time.
package nodebodies

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// Common construction errors shared across node body constructors.
var (
	// ErrEmptyBodyID is returned when a body is constructed with an empty id.
	ErrEmptyBodyID = errors.New("node body id cannot be empty")

	// ErrMissingInput is returned when a declared input port holds no cell.
	ErrMissingInput = errors.New("required input port is missing")

	// ErrEmptyScores is returned when a pooling body receives no scores to pool.
	ErrEmptyScores = errors.New("no scores provided for pooling")

	// ErrTie is returned by PoolMax when TieError is configured and more
	// than one score ties for the maximum.
	ErrTie = errors.New("multiple scores tied for highest value")
)

// Package-level validator instance for configuration validation.
var validate = validator.New()
