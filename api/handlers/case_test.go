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
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/smart-grievance/grievance-api/api"
	"github.com/smart-grievance/grievance-api/api/handlers"
	mocksdb "github.com/smart-grievance/grievance-api/databases/mocks"
	"github.com/smart-grievance/grievance-api/lifecycle"
	"github.com/smart-grievance/grievance-api/models"
)

func newEngine(cdb *mocksdb.CaseDatabase, udb *mocksdb.UserDatabase) *lifecycle.Engine {
	return lifecycle.NewEngine(cdb, udb, lifecycle.NewBroadcaster())
}

func withActor(req *http.Request, actor lifecycle.Actor) *http.Request {
	return req.WithContext(api.WithActor(req.Context(), actor))
}

func TestCaseHandler_SubmitHandler(t *testing.T) {
	cdb := &mocksdb.CaseDatabase{}
	cdb.On("InsertOne", mock.Anything, mock.Anything).Return(nil, nil)

	h := handlers.CaseHandler{Engine: newEngine(cdb, &mocksdb.UserDatabase{})}

	body, _ := json.Marshal(map[string]string{
		"title":          "Water leak on Oak Street",
		"description":    "A main has been leaking for two days",
		"submissionType": "GRIEVANCE",
		"category":       "WATER_SUPPLY",
		"visibility":     "PUBLIC",
	})
	req, err := http.NewRequest("POST", "/api/v1/case", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req = withActor(req, lifecycle.Actor{ID: primitive.NewObjectID(), Role: models.RoleCitizen})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.SubmitHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var got models.Case
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, models.StatusSubmitted, got.Status)
	assert.Equal(t, models.CategoryWaterSupply, got.Category)
}

func TestCaseHandler_SubmitHandlerInvalidVisibility(t *testing.T) {
	h := handlers.CaseHandler{Engine: newEngine(&mocksdb.CaseDatabase{}, &mocksdb.UserDatabase{})}

	body, _ := json.Marshal(map[string]string{
		"title":       "t",
		"description": "d",
		"visibility":  "SECRET",
	})
	req, err := http.NewRequest("POST", "/api/v1/case", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req = withActor(req, lifecycle.Actor{ID: primitive.NewObjectID(), Role: models.RoleCitizen})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.SubmitHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCaseHandler_RateHandlerAlreadyRated(t *testing.T) {
	citizenID := primitive.NewObjectID()
	caseID := primitive.NewObjectID()
	stars := 5
	cdb := &mocksdb.CaseDatabase{}
	cdb.On("FindOneAndUpdate", mock.Anything, mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)
	cdb.On("FindOne", mock.Anything, mock.Anything).Return(&models.Case{
		ID:             caseID,
		Status:         models.StatusResolved,
		OwnerCitizenID: citizenID,
		Rating:         &stars,
	}, nil)

	h := handlers.CaseHandler{Engine: newEngine(cdb, &mocksdb.UserDatabase{})}

	body, _ := json.Marshal(map[string]interface{}{"rating": 4})
	req, err := http.NewRequest("POST", "/api/v1/case/"+caseID.Hex()+"/rating", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"case_id": caseID.Hex()})
	req = withActor(req, lifecycle.Actor{ID: citizenID, Role: models.RoleCitizen})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.RateHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestCaseHandler_EscalateHandlerNotFound(t *testing.T) {
	caseID := primitive.NewObjectID()
	cdb := &mocksdb.CaseDatabase{}
	cdb.On("FindOneAndUpdate", mock.Anything, mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)
	cdb.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)

	h := handlers.CaseHandler{Engine: newEngine(cdb, &mocksdb.UserDatabase{})}

	req, err := http.NewRequest("POST", "/api/v1/case/"+caseID.Hex()+"/escalate", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"case_id": caseID.Hex()})
	req = withActor(req, lifecycle.Actor{ID: primitive.NewObjectID(), Role: models.RoleCitizen})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.EscalateHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCaseHandler_EscalateHandlerBadID(t *testing.T) {
	h := handlers.CaseHandler{Engine: newEngine(&mocksdb.CaseDatabase{}, &mocksdb.UserDatabase{})}

	req, err := http.NewRequest("POST", "/api/v1/case/1234/escalate", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"case_id": "1234"})
	req = withActor(req, lifecycle.Actor{ID: primitive.NewObjectID(), Role: models.RoleCitizen})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.EscalateHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	expected := models.ErrorMessageResponse{Response: models.MessageError{Message: "failed to get objectID from Hex", Error: "the provided hex string is not a valid ObjectID"}}
	b, _ := json.Marshal(expected)
	assert.Equal(t, string(b), rr.Body.String())
}

func TestCaseHandler_OfficerRatingHandler(t *testing.T) {
	officerID := primitive.NewObjectID()
	four := 4
	udb := &mocksdb.UserDatabase{}
	udb.On("FindOne", mock.Anything, mock.Anything).Return(&models.User{ID: officerID, Email: "officer@example.com"}, nil)
	cdb := &mocksdb.CaseDatabase{}
	cdb.On("Find", mock.Anything, mock.Anything).Return([]models.Case{{Rating: &four}}, nil)

	h := handlers.CaseHandler{Engine: newEngine(cdb, udb)}

	req, err := http.NewRequest("GET", "/api/v1/officer/officer@example.com/rating", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"email": "officer@example.com"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.OfficerRatingHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var got models.OfficerRatingSummary
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, int64(1), got.TotalRatings)
	if assert.NotNil(t, got.AverageRating) {
		assert.InDelta(t, 4.0, *got.AverageRating, 1e-9)
	}
}
