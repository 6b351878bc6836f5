package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SubmissionType distinguishes plain feedback from grievances, which carry
// deadlines and may escalate.
type SubmissionType string

// Submission types
const (
	SubmissionFeedback  SubmissionType = "FEEDBACK"
	SubmissionGrievance SubmissionType = "GRIEVANCE"
)

// CaseStatus is the lifecycle status of a case
type CaseStatus string

// Case statuses
const (
	StatusSubmitted  CaseStatus = "SUBMITTED"
	StatusInProgress CaseStatus = "IN_PROGRESS"
	StatusResolved   CaseStatus = "RESOLVED"
	StatusRejected   CaseStatus = "REJECTED"
	StatusEscalated  CaseStatus = "ESCALATED"
	StatusWithdrawn  CaseStatus = "WITHDRAWN"
)

// AllStatuses lists every case status, used for statistics grouping
var AllStatuses = []CaseStatus{
	StatusSubmitted, StatusInProgress, StatusResolved,
	StatusRejected, StatusEscalated, StatusWithdrawn,
}

// TerminalStatuses are the statuses no officer-driven change can leave
var TerminalStatuses = []CaseStatus{StatusResolved, StatusRejected, StatusWithdrawn}

// Valid reports whether s is a known case status
func (s CaseStatus) Valid() bool {
	switch s {
	case StatusSubmitted, StatusInProgress, StatusResolved, StatusRejected, StatusEscalated, StatusWithdrawn:
		return true
	}
	return false
}

// Terminal reports whether no further status change is allowed. ESCALATED is
// not terminal, it returns to IN_PROGRESS when an admin reassigns the case.
func (s CaseStatus) Terminal() bool {
	return s == StatusResolved || s == StatusRejected || s == StatusWithdrawn
}

// CaseCategory classifies the subject matter of a submission
type CaseCategory string

// Case categories
const (
	CategoryInfrastructure       CaseCategory = "INFRASTRUCTURE"
	CategoryPublicSafety         CaseCategory = "PUBLIC_SAFETY"
	CategoryHealthSanitation     CaseCategory = "HEALTH_SANITATION"
	CategoryEducation            CaseCategory = "EDUCATION"
	CategoryElectricity          CaseCategory = "ELECTRICITY"
	CategoryWaterSupply          CaseCategory = "WATER_SUPPLY"
	CategoryTransport            CaseCategory = "TRANSPORT"
	CategoryEnvironment          CaseCategory = "ENVIRONMENT"
	CategoryCorruptionGovernance CaseCategory = "CORRUPTION_GOVERNANCE"
	CategorySocialWelfare        CaseCategory = "SOCIAL_WELFARE"
	CategoryOthers               CaseCategory = "OTHERS"
)

// AllCategories lists every case category, used for statistics grouping
var AllCategories = []CaseCategory{
	CategoryInfrastructure, CategoryPublicSafety, CategoryHealthSanitation,
	CategoryEducation, CategoryElectricity, CategoryWaterSupply,
	CategoryTransport, CategoryEnvironment, CategoryCorruptionGovernance,
	CategorySocialWelfare, CategoryOthers,
}

// Valid reports whether c is a known category
func (c CaseCategory) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Visibility controls whether the submitting citizen's identity is shown to
// officers and admins
type Visibility string

// Visibility options
const (
	VisibilityPublic    Visibility = "PUBLIC"
	VisibilityAnonymous Visibility = "ANONYMOUS"
)

// Case holds the structure for the cases collection in mongo. Status is only
// ever written through the lifecycle engine's conditional updates.
type Case struct {
	ID                primitive.ObjectID  `json:"_id" bson:"_id"`
	Title             string              `json:"title" bson:"title"`
	Description       string              `json:"description" bson:"description"`
	Category          CaseCategory        `json:"category" bson:"category"`
	SubmissionType    SubmissionType      `json:"submissionType" bson:"submissionType"`
	Visibility        Visibility          `json:"visibility" bson:"visibility"`
	PhotoRef          string              `json:"photoRef,omitempty" bson:"photoRef,omitempty"`
	Status            CaseStatus          `json:"status" bson:"status"`
	OwnerCitizenID    primitive.ObjectID  `json:"ownerCitizenId" bson:"ownerCitizenId"`
	AssignedOfficerID *primitive.ObjectID `json:"assignedOfficerId,omitempty" bson:"assignedOfficerId,omitempty"`
	Deadline          *time.Time          `json:"deadline,omitempty" bson:"deadline,omitempty"`
	EscalationLevel   int                 `json:"escalationLevel" bson:"escalationLevel"`
	AdminMessage      string              `json:"adminMessage,omitempty" bson:"adminMessage,omitempty"`
	Rating            *int                `json:"rating,omitempty" bson:"rating,omitempty"`
	RatingComment     string              `json:"ratingComment,omitempty" bson:"ratingComment,omitempty"`
	CreatedAt         time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// Anonymous reports whether citizen identity must be withheld from
// non-owning roles
func (c *Case) Anonymous() bool {
	return c.Visibility == VisibilityAnonymous
}

// CaseItem is the listing view of a case returned to officers and admins.
// Citizen identity is masked when the case is anonymous.
type CaseItem struct {
	ID              primitive.ObjectID `json:"_id"`
	Title           string             `json:"title"`
	Status          CaseStatus         `json:"status"`
	Category        CaseCategory       `json:"category"`
	SubmissionType  SubmissionType     `json:"submissionType"`
	UpdatedAt       time.Time          `json:"updatedAt"`
	CitizenName     string             `json:"citizenName"`
	CitizenEmail    string             `json:"citizenEmail"`
	Anonymous       bool               `json:"anonymous"`
	OfficerEmail    string             `json:"officerEmail,omitempty"`
	Deadline        *time.Time         `json:"deadline,omitempty"`
	EscalationLevel int                `json:"escalationLevel"`
	PhotoRef        string             `json:"photoRef,omitempty"`
	AdminMessage    string             `json:"adminMessage,omitempty"`
	Rating          *int               `json:"rating,omitempty"`
	RatingComment   string             `json:"ratingComment,omitempty"`
}

// OfficerRatingSummary is the derived per-officer rating aggregate. It is
// recomputed from the case store on every read, never stored.
type OfficerRatingSummary struct {
	OfficerEmail  string   `json:"officerEmail"`
	AverageRating *float64 `json:"averageRating"`
	TotalRatings  int64    `json:"totalRatings"`
}

// CaseCounts holds the aggregate counters shown on dashboards, scoped either
// globally (admin) or to a single officer
type CaseCounts struct {
	Unresolved int64 `json:"unresolved"`
	Assigned   int64 `json:"assigned"`
	Rejected   int64 `json:"rejected"`
	Total      int64 `json:"total"`
}

// CaseStatistics holds the read-side distribution aggregates
type CaseStatistics struct {
	TotalGrievances            int64            `json:"totalGrievances"`
	TotalFeedbacks             int64            `json:"totalFeedbacks"`
	Submitted                  int64            `json:"submitted"`
	InProgress                 int64            `json:"inProgress"`
	Resolved                   int64            `json:"resolved"`
	Rejected                   int64            `json:"rejected"`
	Escalated                  int64            `json:"escalated"`
	StatusDistribution         map[string]int64 `json:"statusDistribution"`
	TypeDistribution           map[string]int64 `json:"typeDistribution"`
	SubmissionTypeDistribution map[string]int64 `json:"submissionTypeDistribution"`
}
