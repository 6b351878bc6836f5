package lifecycle

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/smart-grievance/grievance-api/models"
)

// Actor identifies who is requesting an operation. The auth middleware
// resolves one per request.
type Actor struct {
	ID    primitive.ObjectID
	Email string
	Role  models.Role
}

// Machine is the pure status decision logic. It never touches the store;
// the engine consults it and encodes the same preconditions into its
// conditional writes.
type Machine struct{}

// transitions maps a requested target status to the statuses it may be
// requested from. ESCALATED is deliberately absent as a target: escalation
// enters only through the citizen request or the deadline sweep, and
// ESCALATED leaves only as a side effect of reassignment.
var transitions = map[models.CaseStatus][]models.CaseStatus{
	models.StatusInProgress: {models.StatusSubmitted, models.StatusInProgress},
	models.StatusResolved:   {models.StatusSubmitted, models.StatusInProgress},
	models.StatusRejected:   {models.StatusSubmitted, models.StatusInProgress},
	models.StatusWithdrawn:  {models.StatusSubmitted},
}

// FromStates returns the statuses from which a requested transition to the
// given status is legal. Empty for statuses that can never be requested
// directly.
func (Machine) FromStates(to models.CaseStatus) []models.CaseStatus {
	return transitions[to]
}

// CheckTransition decides whether actor may move c from its current status
// to the requested one. A nil return means the transition is legal;
// IN_PROGRESS to IN_PROGRESS is a no-op success.
func (m Machine) CheckTransition(c *models.Case, actor Actor, to models.CaseStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, to)
	}

	switch actor.Role {
	case models.RoleCitizen:
		if c.OwnerCitizenID != actor.ID {
			return fmt.Errorf("%w: case belongs to another citizen", ErrForbidden)
		}
		if to != models.StatusWithdrawn {
			return fmt.Errorf("%w: citizens may only withdraw", ErrInvalidTransition)
		}
	case models.RoleOfficer:
		if c.AssignedOfficerID == nil || *c.AssignedOfficerID != actor.ID {
			return fmt.Errorf("%w: case is not assigned to this officer", ErrForbidden)
		}
		if to == models.StatusWithdrawn {
			return fmt.Errorf("%w: only the owning citizen may withdraw", ErrForbidden)
		}
	case models.RoleAdmin:
		// admins may drive any officer-type transition without being the assignee
	default:
		return fmt.Errorf("%w: unknown role %q", ErrForbidden, actor.Role)
	}

	if to == models.StatusEscalated {
		// never requestable as a plain status change, not even by an admin
		return fmt.Errorf("%w: escalation happens via the escalation request or the deadline sweep", ErrInvalidTransition)
	}

	for _, from := range transitions[to] {
		if c.Status == from {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, to)
}

// CheckEscalation decides whether the case is eligible for escalation at the
// given instant. Both escalation paths (citizen request and the automatic
// sweep) apply the same rules; ownership is checked separately for the
// citizen path.
func (Machine) CheckEscalation(c *models.Case, now time.Time) error {
	if c.SubmissionType != models.SubmissionGrievance {
		return fmt.Errorf("%w: only grievances escalate", ErrNotEligible)
	}
	switch c.Status {
	case models.StatusEscalated:
		return fmt.Errorf("%w: already escalated", ErrNotEligible)
	case models.StatusSubmitted, models.StatusInProgress:
	default:
		return fmt.Errorf("%w: case is %s", ErrNotEligible, c.Status)
	}
	if c.Deadline == nil {
		return fmt.Errorf("%w: no deadline set", ErrNotEligible)
	}
	if !now.After(*c.Deadline) {
		return fmt.Errorf("%w: deadline has not passed yet", ErrNotEligible)
	}
	return nil
}
