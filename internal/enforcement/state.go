package enforcement

import (
	"fmt"
	"time"

	"warden/internal/models"
)

var transitions = map[models.CaseStatus][]models.CaseStatus{
	models.CaseOpen:      {models.CaseActioned, models.CaseEscalated, models.CaseDismissed},
	models.CaseActioned:  {models.CaseEscalated, models.CaseClosed},
	models.CaseEscalated: {models.CaseActioned, models.CaseDismissed},
	models.CaseDismissed: {models.CaseActioned, models.CaseClosed},
}

// CanTransition reports whether a case may move from one status to another.
func CanTransition(from, to models.CaseStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves c to status to, stamping ResolvedAt on terminal moves.
func Transition(c *models.ModerationCase, to models.CaseStatus, now time.Time) error {
	if !CanTransition(c.Status, to) {
		return models.WithDetail(models.ErrInvalidTransition, fmt.Errorf("case %s: %s -> %s", c.ID, c.Status, to))
	}
	c.Status = to
	if to == models.CaseDismissed || to == models.CaseClosed {
		c.ResolvedAt = &now
	}
	return nil
}
