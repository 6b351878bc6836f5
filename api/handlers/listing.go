package handlers

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/smart-grievance/grievance-api/databases"
	"github.com/smart-grievance/grievance-api/models"
)

// anonymousName is shown in place of the citizen's identity on anonymous cases
const anonymousName = "Anonymous user"

// buildCaseItems converts cases into the officer/admin listing view. Citizen
// identity is resolved in one batch and withheld on anonymous cases.
func buildCaseItems(ctx context.Context, udb databases.UserDatabase, cases []models.Case) []models.CaseItem {
	ids := make([]primitive.ObjectID, 0, len(cases)*2)
	seen := make(map[primitive.ObjectID]struct{}, len(cases)*2)
	add := func(id primitive.ObjectID) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for i := range cases {
		add(cases[i].OwnerCitizenID)
		if cases[i].AssignedOfficerID != nil {
			add(*cases[i].AssignedOfficerID)
		}
	}

	byID := make(map[primitive.ObjectID]models.User, len(ids))
	if len(ids) > 0 {
		users, err := udb.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
		if err != nil {
			// listing still works, identities just come back empty
			zap.S().Warnw("failed to resolve case participants", "error", err)
		}
		for i := range users {
			byID[users[i].ID] = users[i]
		}
	}

	items := make([]models.CaseItem, 0, len(cases))
	for i := range cases {
		c := &cases[i]
		item := models.CaseItem{
			ID:              c.ID,
			Title:           c.Title,
			Status:          c.Status,
			Category:        c.Category,
			SubmissionType:  c.SubmissionType,
			UpdatedAt:       c.UpdatedAt,
			Anonymous:       c.Anonymous(),
			Deadline:        c.Deadline,
			EscalationLevel: c.EscalationLevel,
			PhotoRef:        c.PhotoRef,
			AdminMessage:    c.AdminMessage,
			Rating:          c.Rating,
			RatingComment:   c.RatingComment,
		}
		if c.Anonymous() {
			item.CitizenName = anonymousName
		} else if owner, ok := byID[c.OwnerCitizenID]; ok {
			item.CitizenName = owner.Name
			item.CitizenEmail = owner.Email
		}
		if c.AssignedOfficerID != nil {
			if officer, ok := byID[*c.AssignedOfficerID]; ok {
				item.OfficerEmail = officer.Email
			}
		}
		items = append(items, item)
	}
	return items
}
