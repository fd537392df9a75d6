package model

import "encoding/json"

// Picks names the winning product in each comparison category.
type Picks struct {
	BestChoice   string `json:"best_choice"`
	BestValue    string `json:"best_value"`
	BestQuality  string `json:"best_quality"`
	MostFeatures string `json:"most_features"`
}

// ProductComparison is the model's assessment of a single product.
type ProductComparison struct {
	ProductName       string   `json:"product_name"`
	Brand             string   `json:"brand"`
	Price             string   `json:"price"`
	Pros              []string `json:"pros"`
	Cons              []string `json:"cons"`
	KeyFeatures       []string `json:"key_features"`
	SuitableScenarios []string `json:"suitable_scenarios"`
	Rating            float64  `json:"rating"`
	Link              string   `json:"link"`
}

// ComparisonResult is the structured answer recovered from the model reply.
type ComparisonResult struct {
	Picks       Picks               `json:"comparison_results"`
	Comparisons []ProductComparison `json:"product_comparisons"`
	Analysis    string              `json:"analysis"`
}

// Fallback is returned in place of a ComparisonResult when the reply carried
// no usable structure. It is a successful response, not an error.
type Fallback struct {
	Error    string `json:"error,omitempty"`
	Response string `json:"response"`
}

// Outcome holds exactly one of Result or Fallback.
type Outcome struct {
	Result   *ComparisonResult
	Fallback *Fallback
}

// Structured reports whether the reply parsed into a ComparisonResult.
func (o Outcome) Structured() bool {
	return o.Result != nil
}

// Kind labels the outcome for metrics and storage.
func (o Outcome) Kind() string {
	switch {
	case o.Result != nil:
		return "structured"
	case o.Fallback != nil && o.Fallback.Error != "":
		return "parse_failed"
	case o.Fallback != nil:
		return "unstructured"
	default:
		return "empty"
	}
}

// MarshalJSON serializes whichever side is set, so the outcome can be written
// directly as a response body.
func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.Result != nil {
		return json.Marshal(o.Result)
	}
	if o.Fallback != nil {
		return json.Marshal(o.Fallback)
	}
	return []byte("null"), nil
}
