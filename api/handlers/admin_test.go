package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/smart-grievance/grievance-api/api/handlers"
	mocksdb "github.com/smart-grievance/grievance-api/databases/mocks"
	"github.com/smart-grievance/grievance-api/lifecycle"
	"github.com/smart-grievance/grievance-api/models"
)

func adminActor() lifecycle.Actor {
	return lifecycle.Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin}
}

func TestAdmin_AssignHandler(t *testing.T) {
	caseID := primitive.NewObjectID()
	officerID := primitive.NewObjectID()
	current := &models.Case{ID: caseID, Status: models.StatusSubmitted, OwnerCitizenID: primitive.NewObjectID()}
	assigned := &models.Case{ID: caseID, Status: models.StatusSubmitted, AssignedOfficerID: &officerID}

	udb := &mocksdb.UserDatabase{}
	udb.On("FindOne", mock.Anything, mock.Anything).Return(&models.User{ID: officerID, Role: models.RoleOfficer}, nil)
	cdb := &mocksdb.CaseDatabase{}
	cdb.On("FindOne", mock.Anything, mock.Anything).Return(current, nil)
	cdb.On("FindOneAndUpdate", mock.Anything, mock.Anything, mock.Anything).Return(assigned, nil)

	h := handlers.Admin{Engine: newEngine(cdb, udb), UDB: udb}

	body, _ := json.Marshal(map[string]string{"officerId": officerID.Hex()})
	req, err := http.NewRequest("PUT", "/api/v1/admin/case/"+caseID.Hex()+"/assign", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"case_id": caseID.Hex()})
	req = withActor(req, adminActor())

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.AssignHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var got models.Case
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	if assert.NotNil(t, got.AssignedOfficerID) {
		assert.Equal(t, officerID, *got.AssignedOfficerID)
	}
}

func TestAdmin_AssignHandlerBadOfficerID(t *testing.T) {
	caseID := primitive.NewObjectID()
	h := handlers.Admin{Engine: newEngine(&mocksdb.CaseDatabase{}, &mocksdb.UserDatabase{})}

	body, _ := json.Marshal(map[string]string{"officerId": "not-an-id"})
	req, err := http.NewRequest("PUT", "/api/v1/admin/case/"+caseID.Hex()+"/assign", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"case_id": caseID.Hex()})
	req = withActor(req, adminActor())

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.AssignHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdmin_SetDeadlineHandler(t *testing.T) {
	caseID := primitive.NewObjectID()
	deadline := time.Now().Add(48 * time.Hour).UTC()
	updated := &models.Case{
		ID:             caseID,
		Status:         models.StatusSubmitted,
		SubmissionType: models.SubmissionGrievance,
		Deadline:       &deadline,
	}

	cdb := &mocksdb.CaseDatabase{}
	cdb.On("FindOneAndUpdate", mock.Anything, mock.Anything, mock.Anything).Return(updated, nil)

	h := handlers.Admin{Engine: newEngine(cdb, &mocksdb.UserDatabase{})}

	body, _ := json.Marshal(map[string]string{"deadline": deadline.Format(time.RFC3339)})
	req, err := http.NewRequest("PUT", "/api/v1/admin/case/"+caseID.Hex()+"/deadline", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"case_id": caseID.Hex()})
	req = withActor(req, adminActor())

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.SetDeadlineHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAdmin_SetDeadlineHandlerPastDeadline(t *testing.T) {
	caseID := primitive.NewObjectID()
	h := handlers.Admin{Engine: newEngine(&mocksdb.CaseDatabase{}, &mocksdb.UserDatabase{})}

	body, _ := json.Marshal(map[string]string{"deadline": "2020-01-01"})
	req, err := http.NewRequest("PUT", "/api/v1/admin/case/"+caseID.Hex()+"/deadline", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"case_id": caseID.Hex()})
	req = withActor(req, adminActor())

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.SetDeadlineHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdmin_SendMessageHandlerNotEscalated(t *testing.T) {
	caseID := primitive.NewObjectID()
	cdb := &mocksdb.CaseDatabase{}
	cdb.On("FindOneAndUpdate", mock.Anything, mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)
	cdb.On("FindOne", mock.Anything, mock.Anything).Return(&models.Case{ID: caseID, Status: models.StatusSubmitted}, nil)

	h := handlers.Admin{Engine: newEngine(cdb, &mocksdb.UserDatabase{})}

	body, _ := json.Marshal(map[string]string{"message": "looking into it"})
	req, err := http.NewRequest("PUT", "/api/v1/admin/case/"+caseID.Hex()+"/message", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"case_id": caseID.Hex()})
	req = withActor(req, adminActor())

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.SendMessageHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestAdmin_CasesHandlerRejectsUnknownStatus(t *testing.T) {
	h := handlers.Admin{Engine: newEngine(&mocksdb.CaseDatabase{}, &mocksdb.UserDatabase{})}

	req, err := http.NewRequest("GET", "/api/v1/admin/cases?status=BOGUS", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = withActor(req, adminActor())

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.CasesHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdmin_CreateUserHandler(t *testing.T) {
	udb := &mocksdb.UserDatabase{}
	udb.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)
	udb.On("InsertOne", mock.Anything, mock.Anything).Return(nil, nil)

	h := handlers.Admin{Engine: newEngine(&mocksdb.CaseDatabase{}, udb), UDB: udb}

	body, _ := json.Marshal(map[string]string{
		"name":     "New Officer",
		"email":    "New.Officer@Example.com",
		"password": "hunter22",
		"role":     "OFFICER",
	})
	req, err := http.NewRequest("POST", "/api/v1/admin/users", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req = withActor(req, adminActor())

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.CreateUserHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var got models.User
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "new.officer@example.com", got.Email)
	assert.Equal(t, models.RoleOfficer, got.Role)
}

func TestAdmin_DeleteUserHandlerSelf(t *testing.T) {
	actor := adminActor()
	h := handlers.Admin{Engine: newEngine(&mocksdb.CaseDatabase{}, &mocksdb.UserDatabase{})}

	req, err := http.NewRequest("DELETE", "/api/v1/admin/users/"+actor.ID.Hex(), nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"user_id": actor.ID.Hex()})
	req = withActor(req, actor)

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.DeleteUserHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestAdmin_DeleteCaseHandlerOfficerNotAssigned(t *testing.T) {
	caseID := primitive.NewObjectID()
	otherOfficer := primitive.NewObjectID()
	cdb := &mocksdb.CaseDatabase{}
	cdb.On("FindOne", mock.Anything, mock.Anything).Return(&models.Case{
		ID:                caseID,
		Status:            models.StatusInProgress,
		OwnerCitizenID:    primitive.NewObjectID(),
		AssignedOfficerID: &otherOfficer,
	}, nil)

	h := handlers.Admin{Engine: newEngine(cdb, &mocksdb.UserDatabase{})}

	req, err := http.NewRequest("DELETE", "/api/v1/case/"+caseID.Hex(), nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"case_id": caseID.Hex()})
	req = withActor(req, lifecycle.Actor{ID: primitive.NewObjectID(), Role: models.RoleOfficer})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.DeleteCaseHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}
