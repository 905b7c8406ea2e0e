package services

import (
	"errors"

	"github.com/Polymer/polymer-build/internal/core/domain"
)

type gateState int

const (
	gateRunning gateState = iota
	gateWarningsChecked
	gateSucceeded
	gateFailed
)

func (s gateState) String() string {
	switch s {
	case gateRunning:
		return "running"
	case gateWarningsChecked:
		return "warnings-checked"
	case gateSucceeded:
		return "succeeded"
	case gateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// completionGate decides the outcome of a run once no fragments are pending.
// It fires at most once.
type completionGate struct {
	state gateState
}

// fired reports whether the gate reached a terminal state.
func (g *completionGate) fired() bool {
	return g.state == gateSucceeded || g.state == gateFailed
}

// abort moves a running gate to failed without evaluating it.
func (g *completionGate) abort() {
	if g.state == gateRunning {
		g.state = gateFailed
	}
}

// evaluate fires the gate when remaining is zero. It returns whether the gate
// fired on this call and, if so, the failure.
func (g *completionGate) evaluate(remaining int, warnings []domain.Warning, unresolved []domain.CanonicalID) (bool, error) {
	if g.state != gateRunning || remaining > 0 {
		return false, nil
	}
	g.state = gateWarningsChecked

	if tally := domain.TallyWarnings(warnings); tally.Errors > 0 {
		g.state = gateFailed
		return true, &domain.WarningCountError{Count: tally.Errors}
	}

	if len(unresolved) > 0 {
		errs := make([]error, 0, len(unresolved))
		for _, id := range unresolved {
			errs = append(errs, &domain.FileNotFoundError{ID: id, Reason: "still pending at completion"})
		}
		g.state = gateFailed
		return true, errors.Join(errs...)
	}

	g.state = gateSucceeded
	return true, nil
}
