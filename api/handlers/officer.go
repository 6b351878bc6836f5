package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/smart-grievance/grievance-api/config"
	"github.com/smart-grievance/grievance-api/databases"
	"github.com/smart-grievance/grievance-api/lifecycle"
	"github.com/smart-grievance/grievance-api/models"
)

// Officer serves the officer-facing case operations
type Officer struct {
	Engine *lifecycle.Engine
	UDB    databases.UserDatabase
}

// AssignedCasesHandler lists the cases assigned to the requesting officer
func (h Officer) AssignedCasesHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}

	cases, err := h.Engine.AssignedTo(r.Context(), actor.ID)
	if err != nil {
		lifecycleError("failed to get assigned cases", w, err)
		return
	}
	respond(w, http.StatusOK, buildCaseItems(r.Context(), h.UDB, cases))
}

type updateStatusRequest struct {
	Status models.CaseStatus `json:"status"`
}

// UpdateStatusHandler drives a case through the state machine
func (h Officer) UpdateStatusHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	caseID, ok := caseIDVar(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("invalid request body", http.StatusBadRequest, w, err)
		return
	}

	c, err := h.Engine.UpdateStatus(r.Context(), actor, caseID, req.Status)
	if err != nil {
		lifecycleError("failed to update case status", w, err)
		return
	}
	respond(w, http.StatusOK, c)
}

// CountsHandler returns the officer's dashboard counters
func (h Officer) CountsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}

	counts, err := h.Engine.Counts(r.Context(), &actor.ID)
	if err != nil {
		lifecycleError("failed to get case counts", w, err)
		return
	}
	respond(w, http.StatusOK, counts)
}

// StatisticsHandler returns distribution aggregates over the officer's cases
func (h Officer) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}

	stats, err := h.Engine.Statistics(r.Context(), &actor.ID)
	if err != nil {
		lifecycleError("failed to get case statistics", w, err)
		return
	}
	respond(w, http.StatusOK, stats)
}
