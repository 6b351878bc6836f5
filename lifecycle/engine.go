package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/smart-grievance/grievance-api/databases"
	"github.com/smart-grievance/grievance-api/models"
)

// casRetries bounds the re-read/re-try loop for observed-status conditional
// updates when a case is contended
const casRetries = 3

// Engine composes the state machine, assignment, escalation and rating logic
// into the operations the handlers call. Every mutation is one conditional
// update whose filter encodes the legal-transition precondition, so writers
// racing on the same case cannot produce an illegal state or a lost update.
type Engine struct {
	CDB     databases.CaseDatabase
	UDB     databases.UserDatabase
	Machine Machine
	Events  *Broadcaster
}

// NewEngine wires an engine over the given case and user databases
func NewEngine(cdb databases.CaseDatabase, udb databases.UserDatabase, events *Broadcaster) *Engine {
	return &Engine{CDB: cdb, UDB: udb, Events: events}
}

// SubmitInput carries a citizen submission
type SubmitInput struct {
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Category       models.CaseCategory   `json:"category"`
	SubmissionType models.SubmissionType `json:"submissionType"`
	Visibility     models.Visibility     `json:"visibility"`
	PhotoRef       string                `json:"photoRef,omitempty"`
}

// Submit creates a new case with status SUBMITTED owned by the citizen
func (e *Engine) Submit(ctx context.Context, citizen Actor, in SubmitInput) (*models.Case, error) {
	if citizen.Role != models.RoleCitizen {
		return nil, fmt.Errorf("%w: only citizens submit cases", ErrForbidden)
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Description) == "" {
		return nil, fmt.Errorf("%w: title and description are required", ErrInvalidInput)
	}
	if in.Visibility != models.VisibilityPublic && in.Visibility != models.VisibilityAnonymous {
		return nil, fmt.Errorf("%w: choose either public or anonymous", ErrInvalidInput)
	}
	if in.Category == "" {
		in.Category = models.CategoryOthers
	}
	if !in.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, in.Category)
	}
	if in.SubmissionType == "" {
		in.SubmissionType = models.SubmissionFeedback
	}
	if in.SubmissionType != models.SubmissionFeedback && in.SubmissionType != models.SubmissionGrievance {
		return nil, fmt.Errorf("%w: unknown submission type %q", ErrInvalidInput, in.SubmissionType)
	}
	if in.PhotoRef != "" && in.SubmissionType != models.SubmissionGrievance {
		return nil, fmt.Errorf("%w: photos are accepted for grievances only", ErrInvalidInput)
	}

	now := time.Now().UTC()
	newCase := &models.Case{
		ID:             primitive.NewObjectID(),
		Title:          in.Title,
		Description:    in.Description,
		Category:       in.Category,
		SubmissionType: in.SubmissionType,
		Visibility:     in.Visibility,
		PhotoRef:       in.PhotoRef,
		Status:         models.StatusSubmitted,
		OwnerCitizenID: citizen.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := e.CDB.InsertOne(ctx, newCase); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	e.Events.publishCase(EventSubmitted, newCase)
	return newCase, nil
}

// UpdateStatus applies an officer- or admin-driven status change through the
// state machine. The conditional write pins the observed status so a racing
// writer forces a re-evaluation instead of a lost update.
func (e *Engine) UpdateStatus(ctx context.Context, actor Actor, caseID primitive.ObjectID, to models.CaseStatus) (*models.Case, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		c, err := e.findCase(ctx, caseID)
		if err != nil {
			return nil, err
		}
		if err := e.Machine.CheckTransition(c, actor, to); err != nil {
			return nil, err
		}

		filter := bson.M{"_id": caseID, "status": c.Status}
		if actor.Role == models.RoleOfficer {
			filter["assignedOfficerId"] = actor.ID
		}
		updated, err := e.CDB.FindOneAndUpdate(ctx, filter, bson.M{
			"$set": bson.M{"status": to, "updatedAt": time.Now().UTC()},
		})
		if errors.Is(err, mongo.ErrNoDocuments) {
			// lost the race, re-read and re-check
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		e.Events.publishCase(EventStatusChanged, updated)
		return updated, nil
	}
	return nil, fmt.Errorf("%w: case is contended, try again", ErrUnavailable)
}

// Withdraw retires a SUBMITTED case at the owning citizen's request
func (e *Engine) Withdraw(ctx context.Context, citizen Actor, caseID primitive.ObjectID) (*models.Case, error) {
	return e.UpdateStatus(ctx, citizen, caseID, models.StatusWithdrawn)
}

// Assign sets or overwrites the assigned officer. Assigning an ESCALATED case
// returns it to IN_PROGRESS; that is the only way out of ESCALATED. Repeating
// an assignment with the same officer is a no-op success.
func (e *Engine) Assign(ctx context.Context, actor Actor, caseID, officerID primitive.ObjectID) (*models.Case, error) {
	if actor.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins assign cases", ErrForbidden)
	}
	officer, err := e.UDB.FindOne(ctx, bson.M{"_id": officerID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: officer %s", ErrNotFound, officerID.Hex())
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if officer.Role != models.RoleOfficer {
		return nil, fmt.Errorf("%w: assignee must be an officer", ErrInvalidInput)
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		c, err := e.findCase(ctx, caseID)
		if err != nil {
			return nil, err
		}
		if c.Status.Terminal() {
			return nil, fmt.Errorf("%w: case is %s", ErrInvalidState, c.Status)
		}
		if c.AssignedOfficerID != nil && *c.AssignedOfficerID == officerID && c.Status != models.StatusEscalated {
			return c, nil
		}

		set := bson.M{"assignedOfficerId": officerID, "updatedAt": time.Now().UTC()}
		if c.Status == models.StatusEscalated {
			set["status"] = models.StatusInProgress
		}
		updated, err := e.CDB.FindOneAndUpdate(ctx, bson.M{"_id": caseID, "status": c.Status}, bson.M{"$set": set})
		if errors.Is(err, mongo.ErrNoDocuments) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		e.Events.publishCase(EventAssigned, updated)
		return updated, nil
	}
	return nil, fmt.Errorf("%w: case is contended, try again", ErrUnavailable)
}

// SetDeadline sets the resolution deadline on a grievance. The deadline may
// move freely but must be strictly in the future at the moment it is set.
func (e *Engine) SetDeadline(ctx context.Context, actor Actor, caseID primitive.ObjectID, deadline time.Time) (*models.Case, error) {
	if actor.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins set deadlines", ErrForbidden)
	}
	if !deadline.After(time.Now()) {
		return nil, fmt.Errorf("%w: deadline cannot be in the past", ErrInvalidInput)
	}

	filter := bson.M{
		"_id":            caseID,
		"submissionType": models.SubmissionGrievance,
		"status":         bson.M{"$nin": models.TerminalStatuses},
	}
	updated, err := e.CDB.FindOneAndUpdate(ctx, filter, bson.M{
		"$set": bson.M{"deadline": deadline.UTC(), "updatedAt": time.Now().UTC()},
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		c, ferr := e.findCase(ctx, caseID)
		if ferr != nil {
			return nil, ferr
		}
		if c.SubmissionType != models.SubmissionGrievance {
			return nil, fmt.Errorf("%w: deadlines apply to grievances only", ErrInvalidState)
		}
		return nil, fmt.Errorf("%w: case is %s", ErrInvalidState, c.Status)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return updated, nil
}

// ParseDeadline accepts RFC 3339, "2006-01-02T15:04" or a bare date, which is
// treated as 23:59 of that day
func ParseDeadline(s string) (time.Time, error) {
	s = strings.Replace(strings.TrimSpace(s), " ", "T", 1)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return d.Add(23*time.Hour + 59*time.Minute), nil
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized deadline %q", ErrInvalidInput, s)
}

// escalationFilter matches cases currently eligible for escalation. The
// $lt never matches a missing deadline, so only dated grievances qualify.
func escalationFilter(now time.Time) bson.M {
	return bson.M{
		"submissionType": models.SubmissionGrievance,
		"status":         bson.M{"$in": []models.CaseStatus{models.StatusSubmitted, models.StatusInProgress}},
		"deadline":       bson.M{"$lt": now},
	}
}

var escalationUpdate = bson.M{
	"$set": bson.M{"status": models.StatusEscalated},
	"$inc": bson.M{"escalationLevel": 1},
}

// Escalate serves the citizen-initiated escalation request. The write filter
// repeats the full eligibility check, so two concurrent escalations of the
// same case increment escalationLevel exactly once. The assigned officer is
// kept; only reassignment clears the escalation.
func (e *Engine) Escalate(ctx context.Context, citizen Actor, caseID primitive.ObjectID) (*models.Case, error) {
	now := time.Now().UTC()
	filter := escalationFilter(now)
	filter["_id"] = caseID
	filter["ownerCitizenId"] = citizen.ID

	updated, err := e.CDB.FindOneAndUpdate(ctx, filter, withUpdatedAt(escalationUpdate, now))
	if errors.Is(err, mongo.ErrNoDocuments) {
		c, ferr := e.findCase(ctx, caseID)
		if ferr != nil {
			return nil, ferr
		}
		if c.OwnerCitizenID != citizen.ID {
			return nil, fmt.Errorf("%w: case belongs to another citizen", ErrForbidden)
		}
		return nil, e.Machine.CheckEscalation(c, now)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	e.Events.publishCase(EventEscalated, updated)
	return updated, nil
}

// SweepOverdue escalates every eligible grievance whose deadline has passed.
// It shares the citizen path's conditional write, which makes re-sweeping an
// already escalated case a no-op. One bad case never aborts the rest of the
// scan.
func (e *Engine) SweepOverdue(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	candidates, err := e.CDB.Find(ctx, escalationFilter(now))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	escalated := 0
	for i := range candidates {
		c := &candidates[i]
		filter := escalationFilter(now)
		filter["_id"] = c.ID
		updated, err := e.CDB.FindOneAndUpdate(ctx, filter, withUpdatedAt(escalationUpdate, now))
		if errors.Is(err, mongo.ErrNoDocuments) {
			// escalated or resolved since the scan, nothing to do
			continue
		}
		if err != nil {
			zap.S().Errorw("sweep failed to escalate case, skipping",
				"caseId", c.ID.Hex(),
				"error", err,
			)
			continue
		}
		escalated++
		e.Events.publishCase(EventEscalated, updated)
	}
	return escalated, nil
}

// Rate records the owning citizen's one-time rating of a resolved case
func (e *Engine) Rate(ctx context.Context, citizen Actor, caseID primitive.ObjectID, stars int, comment string) (*models.Case, error) {
	if stars < 1 || stars > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}

	filter := bson.M{
		"_id":            caseID,
		"ownerCitizenId": citizen.ID,
		"status":         models.StatusResolved,
		"rating":         bson.M{"$exists": false},
	}
	update := bson.M{"$set": bson.M{
		"rating":        stars,
		"ratingComment": comment,
		"updatedAt":     time.Now().UTC(),
	}}
	updated, err := e.CDB.FindOneAndUpdate(ctx, filter, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		c, ferr := e.findCase(ctx, caseID)
		if ferr != nil {
			return nil, ferr
		}
		if c.OwnerCitizenID != citizen.ID {
			return nil, fmt.Errorf("%w: case belongs to another citizen", ErrForbidden)
		}
		if c.Rating != nil {
			return nil, ErrAlreadyRated
		}
		return nil, fmt.Errorf("%w: only resolved cases can be rated", ErrInvalidState)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return updated, nil
}

// SendMessage overwrites the single admin note on an escalated case. No
// history is retained.
func (e *Engine) SendMessage(ctx context.Context, actor Actor, caseID primitive.ObjectID, text string) (*models.Case, error) {
	if actor.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins send case messages", ErrForbidden)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: message text is required", ErrInvalidInput)
	}

	filter := bson.M{"_id": caseID, "status": models.StatusEscalated}
	updated, err := e.CDB.FindOneAndUpdate(ctx, filter, bson.M{
		"$set": bson.M{"adminMessage": text, "updatedAt": time.Now().UTC()},
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		c, ferr := e.findCase(ctx, caseID)
		if ferr != nil {
			return nil, ferr
		}
		return nil, fmt.Errorf("%w: messages go to escalated cases only, case is %s", ErrInvalidState, c.Status)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	e.Events.publishCase(EventMessaged, updated)
	return updated, nil
}

// Delete removes a case entirely. This is an administrative override outside
// the lifecycle contract: admins may delete any case, officers only cases
// assigned to them. ObjectIDs are never reused.
func (e *Engine) Delete(ctx context.Context, actor Actor, caseID primitive.ObjectID) error {
	c, err := e.findCase(ctx, caseID)
	if err != nil {
		return err
	}
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleOfficer:
		if c.AssignedOfficerID == nil || *c.AssignedOfficerID != actor.ID {
			return fmt.Errorf("%w: case is not assigned to this officer", ErrForbidden)
		}
	default:
		return fmt.Errorf("%w: citizens may withdraw but not delete", ErrForbidden)
	}
	if err := e.CDB.DeleteOne(ctx, bson.M{"_id": caseID}); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Mine lists the citizen's own cases
func (e *Engine) Mine(ctx context.Context, citizenID primitive.ObjectID) ([]models.Case, error) {
	return e.findCases(ctx, bson.M{"ownerCitizenId": citizenID})
}

// AssignedTo lists the cases assigned to an officer
func (e *Engine) AssignedTo(ctx context.Context, officerID primitive.ObjectID) ([]models.Case, error) {
	return e.findCases(ctx, bson.M{"assignedOfficerId": officerID})
}

// AdminFilter narrows the admin's full listing
type AdminFilter struct {
	Status         models.CaseStatus
	SubmissionType models.SubmissionType
	Category       models.CaseCategory
}

// All lists every case, optionally filtered
func (e *Engine) All(ctx context.Context, f AdminFilter) ([]models.Case, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.SubmissionType != "" {
		filter["submissionType"] = f.SubmissionType
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	return e.findCases(ctx, filter)
}

// Counts computes the dashboard counters, globally or scoped to one officer
func (e *Engine) Counts(ctx context.Context, officerID *primitive.ObjectID) (models.CaseCounts, error) {
	scope := func(extra bson.M) bson.M {
		if officerID != nil {
			extra["assignedOfficerId"] = *officerID
		}
		return extra
	}

	var counts models.CaseCounts
	var err error
	if counts.Total, err = e.CDB.CountDocuments(ctx, scope(bson.M{})); err != nil {
		return counts, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if counts.Rejected, err = e.CDB.CountDocuments(ctx, scope(bson.M{"status": models.StatusRejected})); err != nil {
		return counts, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	unresolved := bson.M{"status": bson.M{"$in": []models.CaseStatus{models.StatusSubmitted, models.StatusInProgress}}}
	if counts.Unresolved, err = e.CDB.CountDocuments(ctx, scope(unresolved)); err != nil {
		return counts, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if officerID != nil {
		// every case in an officer's scope is assigned by definition
		counts.Assigned = counts.Total
		return counts, nil
	}
	if counts.Assigned, err = e.CDB.CountDocuments(ctx, bson.M{"assignedOfficerId": bson.M{"$exists": true}}); err != nil {
		return counts, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return counts, nil
}

// Statistics groups the case store by status, category and submission type.
// Always recomputed from the store, never cached.
func (e *Engine) Statistics(ctx context.Context, officerID *primitive.ObjectID) (models.CaseStatistics, error) {
	filter := bson.M{}
	if officerID != nil {
		filter["assignedOfficerId"] = *officerID
	}
	cases, err := e.findCases(ctx, filter)
	if err != nil {
		return models.CaseStatistics{}, err
	}

	stats := models.CaseStatistics{
		StatusDistribution:         make(map[string]int64, len(models.AllStatuses)),
		TypeDistribution:           make(map[string]int64, len(models.AllCategories)),
		SubmissionTypeDistribution: make(map[string]int64, 2),
	}
	for _, s := range models.AllStatuses {
		stats.StatusDistribution[string(s)] = 0
	}
	for _, c := range models.AllCategories {
		stats.TypeDistribution[string(c)] = 0
	}
	stats.SubmissionTypeDistribution[string(models.SubmissionGrievance)] = 0
	stats.SubmissionTypeDistribution[string(models.SubmissionFeedback)] = 0

	for i := range cases {
		c := &cases[i]
		stats.StatusDistribution[string(c.Status)]++
		stats.TypeDistribution[string(c.Category)]++
		stats.SubmissionTypeDistribution[string(c.SubmissionType)]++
		switch c.Status {
		case models.StatusSubmitted:
			stats.Submitted++
		case models.StatusInProgress:
			stats.InProgress++
		case models.StatusResolved:
			stats.Resolved++
		case models.StatusRejected:
			stats.Rejected++
		case models.StatusEscalated:
			stats.Escalated++
		}
		if c.SubmissionType == models.SubmissionGrievance {
			stats.TotalGrievances++
		} else {
			stats.TotalFeedbacks++
		}
	}
	return stats, nil
}

// OfficerRating recomputes the officer's rolling average from every rated
// case assigned to them. Public aggregate data, no authorization involved.
func (e *Engine) OfficerRating(ctx context.Context, officerEmail string) (models.OfficerRatingSummary, error) {
	summary := models.OfficerRatingSummary{OfficerEmail: officerEmail}

	officer, err := e.UDB.FindOne(ctx, bson.M{"email": officerEmail})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return summary, nil
		}
		return summary, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	rated, err := e.findCases(ctx, bson.M{
		"assignedOfficerId": officer.ID,
		"rating":            bson.M{"$exists": true},
	})
	if err != nil {
		return summary, err
	}
	if len(rated) == 0 {
		return summary, nil
	}

	var sum int
	for i := range rated {
		sum += *rated[i].Rating
	}
	avg := float64(sum) / float64(len(rated))
	summary.AverageRating = &avg
	summary.TotalRatings = int64(len(rated))
	return summary, nil
}

func (e *Engine) findCase(ctx context.Context, caseID primitive.ObjectID) (*models.Case, error) {
	c, err := e.CDB.FindOne(ctx, bson.M{"_id": caseID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: case %s", ErrNotFound, caseID.Hex())
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return c, nil
}

func (e *Engine) findCases(ctx context.Context, filter bson.M) ([]models.Case, error) {
	cases, err := e.CDB.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(cases) == 0 {
		cases = []models.Case{}
	}
	return cases, nil
}

// withUpdatedAt folds the updatedAt stamp into an update document without
// mutating the shared template
func withUpdatedAt(update bson.M, now time.Time) bson.M {
	out := bson.M{"$inc": update["$inc"]}
	set := bson.M{"updatedAt": now}
	if base, ok := update["$set"].(bson.M); ok {
		for k, v := range base {
			set[k] = v
		}
	}
	out["$set"] = set
	if out["$inc"] == nil {
		delete(out, "$inc")
	}
	return out
}
