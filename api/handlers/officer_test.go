package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/smart-grievance/grievance-api/api/handlers"
	mocksdb "github.com/smart-grievance/grievance-api/databases/mocks"
	"github.com/smart-grievance/grievance-api/lifecycle"
	"github.com/smart-grievance/grievance-api/models"
)

func TestOfficer_UpdateStatusHandler(t *testing.T) {
	officerID := primitive.NewObjectID()
	caseID := primitive.NewObjectID()
	current := &models.Case{
		ID:                caseID,
		Status:            models.StatusSubmitted,
		OwnerCitizenID:    primitive.NewObjectID(),
		AssignedOfficerID: &officerID,
	}
	updated := &models.Case{ID: caseID, Status: models.StatusInProgress, AssignedOfficerID: &officerID}

	cdb := &mocksdb.CaseDatabase{}
	cdb.On("FindOne", mock.Anything, mock.Anything).Return(current, nil)
	cdb.On("FindOneAndUpdate", mock.Anything, mock.Anything, mock.Anything).Return(updated, nil)

	h := handlers.Officer{Engine: newEngine(cdb, &mocksdb.UserDatabase{})}

	body, _ := json.Marshal(map[string]string{"status": "IN_PROGRESS"})
	req, err := http.NewRequest("PUT", "/api/v1/case/"+caseID.Hex()+"/status", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"case_id": caseID.Hex()})
	req = withActor(req, lifecycle.Actor{ID: officerID, Role: models.RoleOfficer})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.UpdateStatusHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var got models.Case
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, models.StatusInProgress, got.Status)
}

func TestOfficer_UpdateStatusHandlerUnassignedOfficer(t *testing.T) {
	caseID := primitive.NewObjectID()
	cdb := &mocksdb.CaseDatabase{}
	cdb.On("FindOne", mock.Anything, mock.Anything).Return(&models.Case{
		ID:             caseID,
		Status:         models.StatusSubmitted,
		OwnerCitizenID: primitive.NewObjectID(),
	}, nil)

	h := handlers.Officer{Engine: newEngine(cdb, &mocksdb.UserDatabase{})}

	body, _ := json.Marshal(map[string]string{"status": "RESOLVED"})
	req, err := http.NewRequest("PUT", "/api/v1/case/"+caseID.Hex()+"/status", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"case_id": caseID.Hex()})
	req = withActor(req, lifecycle.Actor{ID: primitive.NewObjectID(), Role: models.RoleOfficer})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.UpdateStatusHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestOfficer_AssignedCasesHandlerMasksAnonymous(t *testing.T) {
	officerID := primitive.NewObjectID()
	citizenID := primitive.NewObjectID()

	cdb := &mocksdb.CaseDatabase{}
	cdb.On("Find", mock.Anything, mock.Anything).Return([]models.Case{
		{
			ID:                primitive.NewObjectID(),
			Title:             "Broken pipeline",
			Status:            models.StatusInProgress,
			Visibility:        models.VisibilityAnonymous,
			OwnerCitizenID:    citizenID,
			AssignedOfficerID: &officerID,
		},
	}, nil)

	udb := &mocksdb.UserDatabase{}
	udb.On("Find", mock.Anything, mock.Anything).Return([]models.User{
		{ID: citizenID, Name: "Jane Citizen", Email: "jane@example.com", Role: models.RoleCitizen},
		{ID: officerID, Email: "officer@example.com", Role: models.RoleOfficer},
	}, nil)

	h := handlers.Officer{Engine: newEngine(cdb, udb), UDB: udb}

	req, err := http.NewRequest("GET", "/api/v1/cases/assigned", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = withActor(req, lifecycle.Actor{ID: officerID, Role: models.RoleOfficer})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.AssignedCasesHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var items []models.CaseItem
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &items))
	if assert.Len(t, items, 1) {
		assert.True(t, items[0].Anonymous)
		assert.Equal(t, "Anonymous user", items[0].CitizenName)
		assert.Empty(t, items[0].CitizenEmail)
		assert.Equal(t, "officer@example.com", items[0].OfficerEmail)
	}
}

func TestOfficer_CountsHandler(t *testing.T) {
	officerID := primitive.NewObjectID()
	cdb := &mocksdb.CaseDatabase{}
	cdb.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(4), nil)

	h := handlers.Officer{Engine: newEngine(cdb, &mocksdb.UserDatabase{})}

	req, err := http.NewRequest("GET", "/api/v1/cases/assigned/counts", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = withActor(req, lifecycle.Actor{ID: officerID, Role: models.RoleOfficer})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.CountsHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var counts models.CaseCounts
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &counts))
	assert.Equal(t, counts.Total, counts.Assigned)
}
