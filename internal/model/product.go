package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Unknown is the placeholder for any scalar product field a page did not provide.
const Unknown = "unknown"

// KeywordSet is the ordered list of search keywords produced by the planner.
type KeywordSet []string

// SearchHit is one ranked candidate link returned by the search provider.
// URL is the identity key.
type SearchHit struct {
	Title        string `json:"title"`
	URL          string `json:"url"`
	Snippet      string `json:"snippet"`
	SourceDomain string `json:"source_domain"`
}

// Status describes how much of a product page could be recovered.
type Status int

const (
	StatusFailed Status = iota
	StatusPartial
	StatusOK
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusPartial:
		return "partial"
	default:
		return "failed"
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "ok":
		*s = StatusOK
	case "partial":
		*s = StatusPartial
	case "failed":
		*s = StatusFailed
	default:
		return fmt.Errorf("unknown product status %q", str)
	}
	return nil
}

// Spec is one named specification row. A name reported once has a single
// value; repeated rows keep every value in page order.
type Spec struct {
	Name   string
	Values []string
}

// Value joins multi-valued specs with ", ".
func (s Spec) Value() string {
	return strings.Join(s.Values, ", ")
}

func (s Spec) MarshalJSON() ([]byte, error) {
	if len(s.Values) == 1 {
		return json.Marshal(struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		}{s.Name, s.Values[0]})
	}
	return json.Marshal(struct {
		Name  string   `json:"name"`
		Value []string `json:"value"`
	}{s.Name, s.Values})
}

func (s *Spec) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name  string          `json:"name"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Name = raw.Name
	var single string
	if err := json.Unmarshal(raw.Value, &single); err == nil {
		s.Values = []string{single}
		return nil
	}
	return json.Unmarshal(raw.Value, &s.Values)
}

// Specs keeps specification rows in first-seen order.
type Specs []Spec

// Add appends value under name, merging with an existing row of the same name.
func (s *Specs) Add(name, value string) {
	for i := range *s {
		if (*s)[i].Name == name {
			(*s)[i].Values = append((*s)[i].Values, value)
			return
		}
	}
	*s = append(*s, Spec{Name: name, Values: []string{value}})
}

// Get returns the values recorded under name.
func (s Specs) Get(name string) ([]string, bool) {
	for _, sp := range s {
		if sp.Name == name {
			return sp.Values, true
		}
	}
	return nil, false
}

// ProductRecord is the normalized form of one scraped product page.
type ProductRecord struct {
	SourceURL     string   `json:"source_url"`
	Name          string   `json:"name"`
	Brand         string   `json:"brand"`
	Price         string   `json:"price"`
	OriginalPrice string   `json:"original_price"`
	Features      []string `json:"features"`
	Specs         Specs    `json:"specs"`
	Notes         []string `json:"notes,omitempty"`
	Status        Status   `json:"status"`
	Error         string   `json:"error,omitempty"`
	DetectedBot   bool     `json:"detected_bot,omitempty"`
	DetectionSrc  string   `json:"detection_src,omitempty"`
}

// FailedRecord builds the record emitted when a page could not be fetched or read.
func FailedRecord(url, reason string) ProductRecord {
	return ProductRecord{
		SourceURL: url,
		Features:  []string{},
		Specs:     Specs{},
		Status:    StatusFailed,
		Error:     reason,
	}
}

// AssembledContext is the grounding text handed to the synthesizer.
type AssembledContext struct {
	Text         string   `json:"text"`
	Sources      []string `json:"sources"`
	FromSnippets bool     `json:"from_snippets"`
	Truncated    bool     `json:"truncated"`
}
