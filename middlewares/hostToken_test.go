package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gateserver/models"

	jwt "github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTokens(secret string) *HostTokens {
	return NewHostTokens(models.AuthConfig{HostTokenSecret: secret, HostTokenTTL: time.Hour})
}

func TestHostTokens_RoundTrip(t *testing.T) {
	tokens := newTokens("s3cret")
	token, err := tokens.Generate("lobby1")
	require.NoError(t, err)

	assert.NoError(t, tokens.Validate(token, "lobby1"))
	assert.ErrorIs(t, tokens.Validate(token, "lobby2"), ErrLobbyMismatch)
}

func TestHostTokens_RejectsForeignSecret(t *testing.T) {
	token, err := newTokens("other").Generate("lobby1")
	require.NoError(t, err)

	assert.ErrorIs(t, newTokens("s3cret").Validate(token, "lobby1"), ErrInvalidHostToken)
}

func TestHostTokens_RejectsExpired(t *testing.T) {
	tokens := newTokens("s3cret")
	tokens.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	token, err := tokens.Generate("lobby1")
	require.NoError(t, err)

	assert.ErrorIs(t, tokens.Validate(token, "lobby1"), ErrInvalidHostToken)
}

func TestHostTokens_RejectsUnsignedToken(t *testing.T) {
	claims := &models.HostClaims{LobbyID: "lobby1"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	assert.ErrorIs(t, newTokens("s3cret").Validate(token, "lobby1"), ErrInvalidHostToken)
}

func TestHostTokens_DisabledWithoutSecret(t *testing.T) {
	assert.False(t, newTokens("").Enabled())
	assert.False(t, (*HostTokens)(nil).Enabled())
	assert.True(t, newTokens("x").Enabled())
}

func serveGuarded(tokens *HostTokens, path, authorization string) *httptest.ResponseRecorder {
	router := gin.New()
	router.POST("/start_private_lobby/:id", RequireHostToken(tokens, zap.NewNop()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireHostToken(t *testing.T) {
	tokens := newTokens("s3cret")
	token, err := tokens.Generate("lobby1")
	require.NoError(t, err)

	tests := []struct {
		name          string
		tokens        *HostTokens
		path          string
		authorization string
		wantStatus    int
	}{
		{"disabled passes through", newTokens(""), "/start_private_lobby/lobby1", "", http.StatusOK},
		{"valid bearer", tokens, "/start_private_lobby/lobby1", "Bearer " + token, http.StatusOK},
		{"raw token", tokens, "/start_private_lobby/lobby1", token, http.StatusOK},
		{"missing", tokens, "/start_private_lobby/lobby1", "", http.StatusUnauthorized},
		{"garbage", tokens, "/start_private_lobby/lobby1", "Bearer nope", http.StatusUnauthorized},
		{"other lobby", tokens, "/start_private_lobby/lobby2", "Bearer " + token, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serveGuarded(tt.tokens, tt.path, tt.authorization)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
			}
		})
	}
}
