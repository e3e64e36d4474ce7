package middlewares

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gateserver/models"

	jwt "github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	ErrInvalidHostToken = errors.New("invalid host token")
	ErrLobbyMismatch    = errors.New("host token belongs to another lobby")
)

// HostTokens はプライベートロビーの作成者に渡すトークンを発行・検証する。
// 秘密鍵が空なら無効で、全てのリクエストを通す
type HostTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewHostTokens(cfg models.AuthConfig) *HostTokens {
	return &HostTokens{
		secret: []byte(cfg.HostTokenSecret),
		ttl:    cfg.HostTokenTTL,
		now:    time.Now,
	}
}

func (h *HostTokens) Enabled() bool {
	return h != nil && len(h.secret) > 0
}

// Generate はロビーIDに紐づいたJWTトークンを生成する
func (h *HostTokens) Generate(lobbyID string) (string, error) {
	issuedAt := h.now()
	claims := &models.HostClaims{
		LobbyID: lobbyID,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  issuedAt.Unix(),
			ExpiresAt: issuedAt.Add(h.ttl).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.secret)
}

// Validate はトークンを解析し、指定のロビーのものかを確認する
func (h *HostTokens) Validate(tokenString, lobbyID string) error {
	claims := &models.HostClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return h.secret, nil
	})
	if err != nil || !token.Valid {
		return fmt.Errorf("%w: %v", ErrInvalidHostToken, err)
	}
	if claims.LobbyID != lobbyID {
		return ErrLobbyMismatch
	}
	return nil
}

// bearerToken は Authorization ヘッダからトークンを取り出す
func bearerToken(c *gin.Context) string {
	tokenString := c.GetHeader("Authorization")
	// Bearerトークンのプレフィックスを確認し、存在する場合は削除
	return strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
}

// RequireHostToken はURLの :id と同じロビーのトークンを持つリクエストだけを通す
func RequireHostToken(tokens *HostTokens, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !tokens.Enabled() {
			c.Next()
			return
		}

		lobbyID := c.Param("id")
		tokenString := bearerToken(c)
		if tokenString == "" {
			logger.Warn("Host token is missing", zap.String("gameID", lobbyID))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		if err := tokens.Validate(tokenString, lobbyID); err != nil {
			logger.Warn("Host token rejected", zap.String("gameID", lobbyID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
