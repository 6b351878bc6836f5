package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/smart-grievance/grievance-api/config"
	"github.com/smart-grievance/grievance-api/databases"
	"github.com/smart-grievance/grievance-api/models"
)

// Auth handles registration, login and profile management
type Auth struct {
	DB        databases.UserDatabase
	JWTSecret string
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// RegisterHandler creates a new citizen account. Officer and admin accounts
// are provisioned through the admin user management endpoints.
func (a Auth) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("invalid request body", http.StatusBadRequest, w, err)
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || email == "" || req.Password == "" {
		config.ErrorStatus("name, email and password are required", http.StatusBadRequest, w, errors.New("missing fields"))
		return
	}

	_, err := a.DB.FindOne(r.Context(), bson.M{"email": email})
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
		Role:      models.RoleCitizen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := a.DB.InsertOne(r.Context(), user); err != nil {
		config.ErrorStatus("failed to create user", http.StatusServiceUnavailable, w, err)
		return
	}

	respond(w, http.StatusCreated, user)
}

// LoginHandler verifies credentials and returns a signed JWT
func (a Auth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("invalid request body", http.StatusBadRequest, w, err)
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		config.ErrorStatus("email and password are required", http.StatusBadRequest, w, errors.New("missing fields"))
		return
	}

	user, err := a.DB.FindOne(r.Context(), bson.M{"email": email})
	if err != nil {
		config.ErrorStatus("invalid credentials", http.StatusUnauthorized, w, err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		config.ErrorStatus("invalid credentials", http.StatusUnauthorized, w, err)
		return
	}

	claims := jwt.MapClaims{
		"sub":   user.ID.Hex(),
		"email": user.Email,
		"role":  string(user.Role),
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.JWTSecret))
	if err != nil {
		config.ErrorStatus("token generation failed", http.StatusInternalServerError, w, err)
		return
	}

	respond(w, http.StatusOK, loginResponse{Token: signed, User: user})
}

// ProfileHandler returns the authenticated user's account
func (a Auth) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	user, err := a.DB.FindOne(r.Context(), bson.M{"_id": actor.ID})
	if err != nil {
		config.ErrorStatus("failed to get user", http.StatusNotFound, w, err)
		return
	}
	respond(w, http.StatusOK, user)
}

type updateProfileRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// UpdateProfileHandler updates the authenticated user's name or password.
// Email and role are immutable here.
func (a Auth) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("invalid request body", http.StatusBadRequest, w, err)
		return
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	if req.Name != "" {
		set["name"] = req.Name
	}
	if req.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
			return
		}
		set["password"] = string(hashed)
	}

	user, err := a.DB.UpdateOne(r.Context(), bson.M{"_id": actor.ID}, bson.M{"$set": set})
	if err != nil {
		config.ErrorStatus("failed to update user", http.StatusServiceUnavailable, w, err)
		return
	}
	respond(w, http.StatusOK, user)
}
