package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"tutoring-platform/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func handlerCapturingActor(t *testing.T, got *Actor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := GetActor(r.Context())
		require.True(t, ok)
		*got = actor
		w.WriteHeader(http.StatusOK)
	})
}

func TestActorMiddleware_InjectsActorFromHeaders(t *testing.T) {
	actorID := uuid.New()
	var captured Actor
	handler := ActorMiddleware(handlerCapturingActor(t, &captured))

	req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
	req.Header.Set("X-User-Id", actorID.String())
	req.Header.Set("X-User-Role", string(models.CancelledByTutor))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, actorID, captured.ID)
	assert.Equal(t, models.CancelledByTutor, captured.Role)
	assert.False(t, captured.IsAdmin())
}

func TestActorMiddleware_AdminRole(t *testing.T) {
	var captured Actor
	handler := ActorMiddleware(handlerCapturingActor(t, &captured))

	req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
	req.Header.Set("X-User-Id", uuid.New().String())
	req.Header.Set("X-User-Role", string(models.CancelledByAdmin))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.True(t, captured.IsAdmin())
}

func TestActorMiddleware_RejectsMissingHeaders(t *testing.T) {
	called := false
	handler := ActorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestActorMiddleware_RejectsInvalidUserID(t *testing.T) {
	handler := ActorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
	req.Header.Set("X-User-Id", "not-a-uuid")
	req.Header.Set("X-User-Role", string(models.CancelledByStudent))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestActorMiddleware_RejectsUnknownRole(t *testing.T) {
	handler := ActorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
	req.Header.Set("X-User-Id", uuid.New().String())
	req.Header.Set("X-User-Role", "superuser")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetActor_AbsentFromBareContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
	_, ok := GetActor(req.Context())
	assert.False(t, ok)
}
