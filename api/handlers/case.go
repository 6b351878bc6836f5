package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/smart-grievance/grievance-api/config"
	"github.com/smart-grievance/grievance-api/lifecycle"
)

// CaseHandler serves the citizen-facing case operations
type CaseHandler struct {
	Engine *lifecycle.Engine
}

// SubmitHandler files a new grievance or feedback case
func (h CaseHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}

	var in lifecycle.SubmitInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		config.ErrorStatus("invalid request body", http.StatusBadRequest, w, err)
		return
	}

	c, err := h.Engine.Submit(r.Context(), actor, in)
	if err != nil {
		lifecycleError("failed to submit case", w, err)
		return
	}
	respond(w, http.StatusCreated, c)
}

// MyCasesHandler lists the citizen's own cases
func (h CaseHandler) MyCasesHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}

	cases, err := h.Engine.Mine(r.Context(), actor.ID)
	if err != nil {
		lifecycleError("failed to get cases", w, err)
		return
	}
	respond(w, http.StatusOK, cases)
}

// EscalateHandler escalates an overdue grievance at the owner's request
func (h CaseHandler) EscalateHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	caseID, ok := caseIDVar(w, r)
	if !ok {
		return
	}

	c, err := h.Engine.Escalate(r.Context(), actor, caseID)
	if err != nil {
		lifecycleError("failed to escalate case", w, err)
		return
	}
	respond(w, http.StatusOK, c)
}

// WithdrawHandler retires a submitted case at the owner's request
func (h CaseHandler) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	caseID, ok := caseIDVar(w, r)
	if !ok {
		return
	}

	c, err := h.Engine.Withdraw(r.Context(), actor, caseID)
	if err != nil {
		lifecycleError("failed to withdraw case", w, err)
		return
	}
	respond(w, http.StatusOK, c)
}

type rateRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// RateHandler records the one-time rating on a resolved case
func (h CaseHandler) RateHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	caseID, ok := caseIDVar(w, r)
	if !ok {
		return
	}

	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("invalid request body", http.StatusBadRequest, w, err)
		return
	}

	c, err := h.Engine.Rate(r.Context(), actor, caseID, req.Rating, req.Comment)
	if err != nil {
		lifecycleError("failed to rate case", w, err)
		return
	}
	respond(w, http.StatusOK, c)
}

// OfficerRatingHandler returns the public rating aggregate for an officer
func (h CaseHandler) OfficerRatingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	email := mux.Vars(r)["email"]

	summary, err := h.Engine.OfficerRating(r.Context(), email)
	if err != nil {
		lifecycleError("failed to get officer rating", w, err)
		return
	}
	respond(w, http.StatusOK, summary)
}
