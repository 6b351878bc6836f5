package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/smart-grievance/grievance-api/lifecycle"
	"github.com/smart-grievance/grievance-api/models"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func TestVerifyToken(t *testing.T) {
	m := MiddlewareDB{JWTSecret: "test-secret"}
	userID := primitive.NewObjectID()

	token := signToken(t, "test-secret", jwt.MapClaims{
		"sub":   userID.Hex(),
		"email": "asha.rao@example.com",
		"role":  "CITIZEN",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	info, err := m.VerifyToken(context.Background(), nil, token)
	assert.NoError(t, err)
	assert.Equal(t, userID.Hex(), info.ID())
	assert.Equal(t, []string{"CITIZEN"}, info.Groups())
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	m := MiddlewareDB{JWTSecret: "test-secret"}

	token := signToken(t, "other-secret", jwt.MapClaims{
		"sub":  primitive.NewObjectID().Hex(),
		"role": "CITIZEN",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	_, err := m.VerifyToken(context.Background(), nil, token)
	assert.Error(t, err)
}

func TestVerifyTokenExpired(t *testing.T) {
	m := MiddlewareDB{JWTSecret: "test-secret"}

	token := signToken(t, "test-secret", jwt.MapClaims{
		"sub":  primitive.NewObjectID().Hex(),
		"role": "CITIZEN",
		"exp":  time.Now().Add(-time.Hour).Unix(),
	})

	_, err := m.VerifyToken(context.Background(), nil, token)
	assert.Error(t, err)
}

func TestVerifyTokenMissingRole(t *testing.T) {
	m := MiddlewareDB{JWTSecret: "test-secret"}

	token := signToken(t, "test-secret", jwt.MapClaims{
		"sub": primitive.NewObjectID().Hex(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := m.VerifyToken(context.Background(), nil, token)
	assert.Error(t, err)
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), models.RoleAdmin)

	// no actor on the context at all
	req := httptest.NewRequest("GET", "/api/v1/admin/cases", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// authenticated but holding the wrong role
	citizen := lifecycle.Actor{ID: primitive.NewObjectID(), Role: models.RoleCitizen}
	req = httptest.NewRequest("GET", "/api/v1/admin/cases", nil)
	req = req.WithContext(WithActor(req.Context(), citizen))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// the right role passes through
	admin := lifecycle.Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin}
	req = httptest.NewRequest("GET", "/api/v1/admin/cases", nil)
	req = req.WithContext(WithActor(req.Context(), admin))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestActorFromContextRoundTrip(t *testing.T) {
	actor := lifecycle.Actor{ID: primitive.NewObjectID(), Email: "o@example.com", Role: models.RoleOfficer}

	ctx := WithActor(context.Background(), actor)
	got, ok := ActorFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, actor, got)

	_, ok = ActorFromContext(context.Background())
	assert.False(t, ok)
}
