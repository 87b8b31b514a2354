package service

import (
	"github.com/xinyao2002/payfrontwithback/internal/models"
)

// DeriveStatus recomputes a bill's aggregate status from its splits.
// It is a pure function: the derivation trigger persists the result only
// when changed, and request handlers never write status themselves.
//
// Rules, in priority order:
//   - any rejected split makes the bill failed
//   - all splits responded and none rejected makes the bill ready
//   - otherwise the current status stands
//
// completed is only produced by the external settlement path, so derivation
// never moves a bill into or out of it except through the rules above.
func DeriveStatus(current models.BillStatus, splits []*models.Split) (models.BillStatus, bool) {
	for _, split := range splits {
		if split.Rejected() {
			if current != models.StatusFailed {
				return models.StatusFailed, true
			}
			return current, false
		}
	}
	if allRespondedAndAccepted(splits) && current != models.StatusReady {
		return models.StatusReady, true
	}
	return current, false
}

// allRespondedAndAccepted is the aggregate predicate of the split store:
// false while anyone has not responded, false if anyone rejected, true
// otherwise. Callers evaluate it on a consistent snapshot read inside the
// mutation transaction.
func allRespondedAndAccepted(splits []*models.Split) bool {
	for _, split := range splits {
		if !split.Responded() || split.Rejected() {
			return false
		}
	}
	return true
}
