package application

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ValidateNodeParameters validates the parameters for a specific node
// type, ensuring required fields are present and values meet domain
// constraints before a node body is instantiated from them.
func ValidateNodeParameters(nodeType string, params yaml.Node) error {
	var paramMap map[string]any
	if err := params.Decode(&paramMap); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}

	switch nodeType {
	case "answerer", "score_judge", "verification":
		return validateLLMOffloadParams(paramMap)
	case "arithmetic_mean", "max_pool", "median_pool":
		return validatePoolParams(paramMap)
	case "exact_match":
		return validateExactMatchParams(paramMap)
	case "fuzzy_match":
		return validateFuzzyMatchParams(paramMap)
	case "custom":
		return nil
	default:
		return fmt.Errorf("unknown node type: %s", nodeType)
	}
}

// validateLLMOffloadParams validates parameters shared by the three
// device-offload node types (answerer, score_judge, verification),
// which all render the same "prompt" template, optionally parsing a
// score out of the completion.
func validateLLMOffloadParams(params map[string]any) error {
	prompt, ok := params["prompt"]
	if !ok {
		return fmt.Errorf("device-offload node requires 'prompt' parameter")
	}
	promptStr, ok := prompt.(string)
	if !ok || promptStr == "" {
		return fmt.Errorf("prompt must be a non-empty string")
	}

	if temp, ok := params["temperature"]; ok {
		switch v := temp.(type) {
		case float64:
			if v < 0 || v > 2 {
				return fmt.Errorf("temperature must be between 0 and 2")
			}
		case int:
			if v < 0 || v > 2 {
				return fmt.Errorf("temperature must be between 0 and 2")
			}
		default:
			return fmt.Errorf("temperature must be a number")
		}
	}

	return nil
}

// validatePoolParams validates parameters for pooling nodes
// (arithmetic_mean, max_pool, median_pool). They work with scores
// produced upstream and carry no required parameters of their own.
func validatePoolParams(params map[string]any) error {
	if tb, ok := params["tie_breaker"]; ok {
		tbStr, ok := tb.(string)
		if !ok {
			return fmt.Errorf("tie_breaker must be a string")
		}
		switch tbStr {
		case "first", "random", "error":
		default:
			return fmt.Errorf("invalid tie_breaker: %s", tbStr)
		}
	}
	return nil
}

// validateExactMatchParams validates parameters for exact-match nodes.
func validateExactMatchParams(params map[string]any) error {
	if caseSensitive, ok := params["case_sensitive"]; ok {
		if _, ok := caseSensitive.(bool); !ok {
			return fmt.Errorf("case_sensitive must be a boolean")
		}
	}
	if trimWhitespace, ok := params["trim_whitespace"]; ok {
		if _, ok := trimWhitespace.(bool); !ok {
			return fmt.Errorf("trim_whitespace must be a boolean")
		}
	}
	return nil
}

// validateFuzzyMatchParams validates parameters for fuzzy-match nodes.
func validateFuzzyMatchParams(params map[string]any) error {
	if algorithm, ok := params["algorithm"]; ok {
		alg, ok := algorithm.(string)
		if !ok {
			return fmt.Errorf("algorithm must be a string")
		}
		if alg != "levenshtein" {
			return fmt.Errorf("fuzzy_match only supports 'levenshtein' algorithm")
		}
	}
	if threshold, ok := params["threshold"]; ok {
		switch v := threshold.(type) {
		case float64:
			if v < 0 || v > 1 {
				return fmt.Errorf("threshold must be between 0 and 1")
			}
		case int:
			if v < 0 || v > 1 {
				return fmt.Errorf("threshold must be between 0 and 1")
			}
		default:
			return fmt.Errorf("threshold must be a number")
		}
	}
	if caseSensitive, ok := params["case_sensitive"]; ok {
		if _, ok := caseSensitive.(bool); !ok {
			return fmt.Errorf("case_sensitive must be a boolean")
		}
	}
	return nil
}

// RegisterGraphValidators registers custom validation functions with
// the validator instance for use in graph configuration validation.
func RegisterGraphValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("modelformat", validateModelFormat); err != nil {
		return fmt.Errorf("failed to register modelformat validator: %w", err)
	}
	return nil
}

// validateModelFormat validates that a model string matches
// provider/model or provider/model@version.
func validateModelFormat(fl validator.FieldLevel) bool {
	model := fl.Field().String()
	if model == "" {
		return true
	}
	for i, ch := range model {
		if ch == '/' {
			if i == 0 || i == len(model)-1 {
				return false
			}
			return true
		}
	}
	return false
}

// registerCustomValidators registers domain-specific validation
// functions with the validator instance, including semantic version
// validation and graph-specific validation rules.
func registerCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		return fmt.Errorf("failed to register semver validator: %w", err)
	}
	if err := RegisterGraphValidators(v); err != nil {
		return fmt.Errorf("failed to register graph validators: %w", err)
	}
	return nil
}

// validateSemver validates that a string follows X.Y.Z semantic
// versioning format.
func validateSemver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	var major, minor, patch int
	n, err := fmt.Sscanf(value, "%d.%d.%d", &major, &minor, &patch)
	return err == nil && n == 3
}
