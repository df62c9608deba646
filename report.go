package fontclass

import "errors"

// Outcome tags the result of a single resolution strategy.
type Outcome int

const (
	OutcomeNotFound    Outcome = iota // strategy has nothing to say about the file
	OutcomeResolved                   // identifier derived
	OutcomeAmbiguous                  // several families compete for the file
	OutcomeParseFailed                // source present but unusable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeResolved:
		return "resolved"
	case OutcomeAmbiguous:
		return "ambiguous"
	case OutcomeParseFailed:
		return "parse_failed"
	default:
		return "not_found"
	}
}

// Resolution is the tagged result returned by a Strategy.
type Resolution struct {
	Outcome Outcome
	ID      FontIdentifier // set only when Outcome == OutcomeResolved
	Detail  string         // human-readable context
	Err     error          // cause for Ambiguous / ParseFailed
}

// Resolved builds a successful Resolution.
func Resolved(id FontIdentifier, detail string) Resolution {
	return Resolution{Outcome: OutcomeResolved, ID: id, Detail: detail}
}

// NotFound builds a Resolution telling the resolver to try the next strategy.
func NotFound(detail string) Resolution {
	return Resolution{Outcome: OutcomeNotFound, Detail: detail}
}

// Failed builds an Ambiguous or ParseFailed Resolution from err.
func Failed(err error) Resolution {
	var amb *NameAmbiguityError
	if errors.As(err, &amb) {
		return Resolution{Outcome: OutcomeAmbiguous, Detail: err.Error(), Err: err}
	}
	return Resolution{Outcome: OutcomeParseFailed, Detail: err.Error(), Err: err}
}

// Attempt records one strategy's contribution to a resolution.
type Attempt struct {
	Stage string // strategy name: "sidecar", "filename", "name_table"
	Resolution
}

// ResolutionReport combines every attempted strategy into a final verdict.
type ResolutionReport struct {
	ID       FontIdentifier // zero unless Resolved
	Resolved bool
	Attempts []Attempt // in cascade order (never nil, may be empty)
}

// GFN returns the canonical identifier string, or Unknown.
func (r ResolutionReport) GFN() string {
	if !r.Resolved {
		return Unknown
	}
	return r.ID.String()
}

// Stage returns the name of the strategy that produced the identifier, or "".
func (r ResolutionReport) Stage() string {
	for _, a := range r.Attempts {
		if a.Outcome == OutcomeResolved {
			return a.Stage
		}
	}
	return ""
}
