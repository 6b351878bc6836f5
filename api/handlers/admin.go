package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/smart-grievance/grievance-api/config"
	"github.com/smart-grievance/grievance-api/databases"
	"github.com/smart-grievance/grievance-api/lifecycle"
	"github.com/smart-grievance/grievance-api/models"
)

// Admin serves case oversight and user management
type Admin struct {
	Engine *lifecycle.Engine
	UDB    databases.UserDatabase
}

// CasesHandler lists every case, narrowed by the optional status,
// submissionType and category query parameters
func (h Admin) CasesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := lifecycle.AdminFilter{
		Status:         models.CaseStatus(q.Get("status")),
		SubmissionType: models.SubmissionType(q.Get("submissionType")),
		Category:       models.CaseCategory(q.Get("category")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		config.ErrorStatus("unknown status filter", http.StatusBadRequest, w, errors.New("invalid status"))
		return
	}
	if filter.Category != "" && !filter.Category.Valid() {
		config.ErrorStatus("unknown category filter", http.StatusBadRequest, w, errors.New("invalid category"))
		return
	}

	cases, err := h.Engine.All(r.Context(), filter)
	if err != nil {
		lifecycleError("failed to get cases", w, err)
		return
	}
	respond(w, http.StatusOK, buildCaseItems(r.Context(), h.UDB, cases))
}

// CountsHandler returns the global dashboard counters
func (h Admin) CountsHandler(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Engine.Counts(r.Context(), nil)
	if err != nil {
		lifecycleError("failed to get case counts", w, err)
		return
	}
	respond(w, http.StatusOK, counts)
}

// StatisticsHandler returns distribution aggregates over all cases
func (h Admin) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Engine.Statistics(r.Context(), nil)
	if err != nil {
		lifecycleError("failed to get case statistics", w, err)
		return
	}
	respond(w, http.StatusOK, stats)
}

type assignRequest struct {
	OfficerID string `json:"officerId"`
}

// AssignHandler assigns or reassigns an officer to a case
func (h Admin) AssignHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	caseID, ok := caseIDVar(w, r)
	if !ok {
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("invalid request body", http.StatusBadRequest, w, err)
		return
	}
	officerID, err := primitive.ObjectIDFromHex(req.OfficerID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	c, err := h.Engine.Assign(r.Context(), actor, caseID, officerID)
	if err != nil {
		lifecycleError("failed to assign case", w, err)
		return
	}
	respond(w, http.StatusOK, c)
}

type deadlineRequest struct {
	Deadline string `json:"deadline"`
}

// SetDeadlineHandler sets the resolution deadline on a grievance
func (h Admin) SetDeadlineHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	caseID, ok := caseIDVar(w, r)
	if !ok {
		return
	}

	var req deadlineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("invalid request body", http.StatusBadRequest, w, err)
		return
	}
	deadline, err := lifecycle.ParseDeadline(req.Deadline)
	if err != nil {
		lifecycleError("failed to parse deadline", w, err)
		return
	}

	c, err := h.Engine.SetDeadline(r.Context(), actor, caseID, deadline)
	if err != nil {
		lifecycleError("failed to set deadline", w, err)
		return
	}
	respond(w, http.StatusOK, c)
}

type messageRequest struct {
	Message string `json:"message"`
}

// SendMessageHandler attaches the admin note to an escalated case
func (h Admin) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	caseID, ok := caseIDVar(w, r)
	if !ok {
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("invalid request body", http.StatusBadRequest, w, err)
		return
	}

	c, err := h.Engine.SendMessage(r.Context(), actor, caseID, req.Message)
	if err != nil {
		lifecycleError("failed to send message", w, err)
		return
	}
	respond(w, http.StatusOK, c)
}

// DeleteCaseHandler removes a case entirely
func (h Admin) DeleteCaseHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	caseID, ok := caseIDVar(w, r)
	if !ok {
		return
	}

	if err := h.Engine.Delete(r.Context(), actor, caseID); err != nil {
		lifecycleError("failed to delete case", w, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"deleted": caseID.Hex()})
}

// ListUsersHandler lists every account, optionally narrowed by role
func (h Admin) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	filter := bson.M{}
	if role := r.URL.Query().Get("role"); role != "" {
		if !models.Role(role).Valid() {
			config.ErrorStatus("unknown role filter", http.StatusBadRequest, w, errors.New("invalid role"))
			return
		}
		filter["role"] = models.Role(role)
	}

	users, err := h.UDB.Find(r.Context(), filter)
	if err != nil {
		config.ErrorStatus("failed to get users", http.StatusServiceUnavailable, w, err)
		return
	}
	if len(users) == 0 {
		users = []models.User{}
	}
	respond(w, http.StatusOK, users)
}

// ListOfficersHandler lists officer accounts for the assignment picker
func (h Admin) ListOfficersHandler(w http.ResponseWriter, r *http.Request) {
	officers, err := h.UDB.Find(r.Context(), bson.M{"role": models.RoleOfficer})
	if err != nil {
		config.ErrorStatus("failed to get officers", http.StatusServiceUnavailable, w, err)
		return
	}
	if len(officers) == 0 {
		officers = []models.User{}
	}
	respond(w, http.StatusOK, officers)
}

type createUserRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

// CreateUserHandler provisions an account with any role
func (h Admin) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("invalid request body", http.StatusBadRequest, w, err)
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || email == "" || req.Password == "" {
		config.ErrorStatus("name, email and password are required", http.StatusBadRequest, w, errors.New("missing fields"))
		return
	}
	if !req.Role.Valid() {
		config.ErrorStatus("unknown role", http.StatusBadRequest, w, errors.New("invalid role"))
		return
	}

	_, err := h.UDB.FindOne(r.Context(), bson.M{"email": email})
	if err == nil {
		config.ErrorStatus("email already registered", http.StatusConflict, w, errors.New("duplicate email"))
		return
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		config.ErrorStatus("failed to check email", http.StatusServiceUnavailable, w, err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:        primitive.NewObjectID(),
		Name:      req.Name,
		Email:     email,
		Password:  string(hashed),
		Role:      req.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := h.UDB.InsertOne(r.Context(), user); err != nil {
		config.ErrorStatus("failed to create user", http.StatusServiceUnavailable, w, err)
		return
	}
	respond(w, http.StatusCreated, user)
}

type updateUserRequest struct {
	Name     string      `json:"name"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

// UpdateUserHandler updates an account's name, password or role
func (h Admin) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := primitive.ObjectIDFromHex(mux.Vars(r)["user_id"])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("invalid request body", http.StatusBadRequest, w, err)
		return
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	if req.Name != "" {
		set["name"] = req.Name
	}
	if req.Role != "" {
		if !req.Role.Valid() {
			config.ErrorStatus("unknown role", http.StatusBadRequest, w, errors.New("invalid role"))
			return
		}
		set["role"] = req.Role
	}
	if req.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
			return
		}
		set["password"] = string(hashed)
	}

	user, err := h.UDB.UpdateOne(r.Context(), bson.M{"_id": userID}, bson.M{"$set": set})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			config.ErrorStatus("user not found", http.StatusNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to update user", http.StatusServiceUnavailable, w, err)
		return
	}
	respond(w, http.StatusOK, user)
}

// DeleteUserHandler removes an account. The caller cannot delete itself.
func (h Admin) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	userID, err := primitive.ObjectIDFromHex(mux.Vars(r)["user_id"])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	if userID == actor.ID {
		config.ErrorStatus("cannot delete own account", http.StatusConflict, w, errors.New("self deletion"))
		return
	}

	if err := h.UDB.DeleteOne(r.Context(), bson.M{"_id": userID}); err != nil {
		config.ErrorStatus("failed to delete user", http.StatusServiceUnavailable, w, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"deleted": userID.Hex()})
}
