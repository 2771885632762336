package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/LWS49/reading-list-api/models"
	"github.com/LWS49/reading-list-api/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

func signToken(t *testing.T, userID string, ttl time.Duration) string {
	t.Helper()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestAuth(t *testing.T) {
	mem, err := store.NewMemory("")
	require.NoError(t, err)
	userID, err := mem.CreateUser(context.Background(), &models.User{Email: "a@example.com", Password: "hash"})
	require.NoError(t, err)

	var gotUserID primitive.ObjectID
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserIDFromContext(r.Context())
		require.True(t, ok)
		gotUserID = id
		w.WriteHeader(http.StatusOK)
	})
	protected := Auth(testSecret, mem)(next)

	serve := func(authorization string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if authorization != "" {
			r.Header.Set("Authorization", authorization)
		}
		protected.ServeHTTP(w, r)
		return w
	}

	t.Run("valid token passes user through", func(t *testing.T) {
		w := serve("Bearer " + signToken(t, userID.Hex(), time.Hour))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, userID, gotUserID)
	})

	t.Run("missing header", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve("").Code)
	})

	t.Run("not a bearer token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve("Basic abc").Code)
	})

	t.Run("expired token", func(t *testing.T) {
		w := serve("Bearer " + signToken(t, userID.Hex(), -time.Minute))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("token for unknown user", func(t *testing.T) {
		w := serve("Bearer " + signToken(t, primitive.NewObjectID().Hex(), time.Hour))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		w := serve("Bearer not.a.jwt")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
