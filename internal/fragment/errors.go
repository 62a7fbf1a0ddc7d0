// Package fragment reads the HTML snippets returned by the waste calendar
// site: it enumerates selectable options, resolves a human-readable query to
// one of them, and extracts collection dates from the result table.
//
// All parsing goes through goquery. Nothing in this package performs I/O.
package fragment

import (
	"fmt"
	"strings"

	"github.com/njoerd114/mohucal/internal/model"
)

// NoMatchError is returned by [Resolve] when no candidate label contains the
// query. It signals an input problem, not an upstream change.
type NoMatchError struct {
	Query      string
	Candidates []model.OptionRecord
}

func (e *NoMatchError) Error() string {
	labels := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		labels = append(labels, c.Label)
	}
	const maxShown = 10
	more := ""
	if len(labels) > maxShown {
		more = fmt.Sprintf(" (+%d more)", len(labels)-maxShown)
		labels = labels[:maxShown]
	}
	return fmt.Sprintf("no option matches %q among %d candidate(s): [%s]%s",
		e.Query, len(e.Candidates), strings.Join(labels, ", "), more)
}

// MalformedFragmentError reports markup whose structure is not what the site
// normally returns, usually because the upstream page changed.
type MalformedFragmentError struct {
	Reason string
	Err    error
}

func (e *MalformedFragmentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed fragment: %s: %v", e.Reason, e.Err)
	}
	return "malformed fragment: " + e.Reason
}

func (e *MalformedFragmentError) Unwrap() error { return e.Err }
