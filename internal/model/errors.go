package model

import (
	"errors"
	"strings"
)

var (
	// ErrUpstreamUnavailable marks a failed or timed out LLM, search or fetch call.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrStructureNotFound marks a fetched page with no recognizable product fields.
	ErrStructureNotFound = errors.New("product structure not found")
	// ErrExtractionFailed marks an LLM reply without a fenced JSON block.
	ErrExtractionFailed = errors.New("no fenced json block in reply")
	// ErrParseFailed marks a fenced block that does not satisfy the result schema.
	ErrParseFailed = errors.New("structured-parse-failed")
	// ErrInputInvalid marks an empty or blank query.
	ErrInputInvalid = errors.New("query must not be blank")
)

// ValidateQuery rejects blank queries before any external call is made.
func ValidateQuery(q string) error {
	if strings.TrimSpace(q) == "" {
		return ErrInputInvalid
	}
	return nil
}
