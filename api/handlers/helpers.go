package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/smart-grievance/grievance-api/api"
	"github.com/smart-grievance/grievance-api/config"
	"github.com/smart-grievance/grievance-api/lifecycle"
)

// lifecycleError maps an engine error onto the HTTP status it deserves and
// writes the standard error body
func lifecycleError(message string, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, lifecycle.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, lifecycle.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrInvalidState),
		errors.Is(err, lifecycle.ErrNotEligible),
		errors.Is(err, lifecycle.ErrAlreadyRated):
		status = http.StatusConflict
	case errors.Is(err, lifecycle.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	config.ErrorStatus(message, status, w, err)
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	b, err := json.Marshal(body)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(status)
	w.Write(b)
}

// requestActor pulls the authenticated actor stashed by the auth middleware
func requestActor(w http.ResponseWriter, r *http.Request) (lifecycle.Actor, bool) {
	actor, ok := api.ActorFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "unauthorized"}`))
	}
	return actor, ok
}

// caseIDVar parses the {case_id} route variable
func caseIDVar(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["case_id"])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return primitive.NilObjectID, false
	}
	return id, true
}
