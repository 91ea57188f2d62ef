package domain

import (
	"fmt"
	"strings"
)

// ProviderError reports a single failed upstream call. Status is 0 when the
// failure happened before an HTTP status was received or while decoding.
type ProviderError struct {
	Source  Source
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s API error %d: %s", e.Source, e.Status, e.Message)
	}
	return fmt.Sprintf("%s request failed: %s", e.Source, e.Message)
}

// NoDataError reports that the upstream answered but had no usable record for
// the requested token.
type NoDataError struct {
	Source Source
	Token  string
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("%s: no data for %s", e.Source, e.Token)
}

// SourceFailure is one step of a fallback chain that did not produce a result.
type SourceFailure struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

func (f SourceFailure) String() string {
	return f.Source + " failed: " + f.Message
}

// AggregateFailure is returned when every step of a fallback chain failed.
// Failures are kept in the order the steps were attempted.
type AggregateFailure struct {
	Token    string
	Failures []SourceFailure
}

func (e *AggregateFailure) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.String()
	}
	return fmt.Sprintf("all price sources failed for %s. Errors: %s", e.Token, strings.Join(parts, "; "))
}
