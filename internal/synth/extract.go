package synth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/FranksOps/shopwise/internal/model"
	"github.com/xeipuuv/gojsonschema"
)

var fenceOpen = regexp.MustCompile("(?i)```json")

const fenceClose = "```"

// resultSchema pins the types the rest of the system relies on.
const resultSchema = `{
  "type": "object",
  "required": ["product_comparisons"],
  "properties": {
    "comparison_results": {
      "type": "object",
      "properties": {
        "best_choice":   {"type": "string"},
        "best_value":    {"type": "string"},
        "best_quality":  {"type": "string"},
        "most_features": {"type": "string"}
      }
    },
    "product_comparisons": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["product_name"],
        "properties": {
          "product_name":       {"type": "string"},
          "brand":              {"type": "string"},
          "price":              {"type": "string"},
          "pros":               {"type": "array", "items": {"type": "string"}},
          "cons":               {"type": "array", "items": {"type": "string"}},
          "key_features":       {"type": "array", "items": {"type": "string"}},
          "suitable_scenarios": {"type": "array", "items": {"type": "string"}},
          "rating":             {"type": "number", "minimum": 0, "maximum": 10},
          "link":               {"type": "string"}
        }
      }
    },
    "analysis": {"type": "string"}
  }
}`

var schema = func() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(resultSchema))
	if err != nil {
		panic(fmt.Sprintf("synth: invalid result schema: %v", err))
	}
	return s
}()

// FencedJSON returns the body of the first ```json block in raw. An unclosed
// block runs to the end of the text.
func FencedJSON(raw string) (string, error) {
	loc := fenceOpen.FindStringIndex(raw)
	if loc == nil {
		return "", model.ErrExtractionFailed
	}
	rest := raw[loc[1]:]
	if end := strings.Index(rest, fenceClose); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest), nil
}

// ParseResult validates candidate against the result schema and decodes it,
// rejecting fields the schema does not name.
func ParseResult(candidate string) (*model.ComparisonResult, error) {
	if candidate == "" {
		return nil, fmt.Errorf("%w: empty block", model.ErrParseFailed)
	}

	res, err := schema.Validate(gojsonschema.NewStringLoader(candidate))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrParseFailed, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", model.ErrParseFailed, strings.Join(msgs, "; "))
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(candidate)))
	dec.DisallowUnknownFields()
	var out model.ComparisonResult
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrParseFailed, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after object", model.ErrParseFailed)
	}
	return &out, nil
}

// Interpret maps a raw reply onto its outcome: a structured result, the raw
// text when no block was found, or a parse-failure envelope.
func Interpret(raw string) model.Outcome {
	candidate, err := FencedJSON(raw)
	if err != nil {
		return model.Outcome{Fallback: &model.Fallback{Response: raw}}
	}
	result, err := ParseResult(candidate)
	if err != nil {
		return model.Outcome{Fallback: &model.Fallback{Error: model.ErrParseFailed.Error(), Response: raw}}
	}
	return model.Outcome{Result: result}
}
