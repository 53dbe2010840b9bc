// Package server exposes the HTTP surface: token exchange, the public read
// endpoints, the authenticated post and vote endpoints, and the trigger
// endpoints for rotation and seeding.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/framelab/dailyframe/internal/auth"
	"github.com/framelab/dailyframe/internal/fault"
	"github.com/framelab/dailyframe/internal/posts"
	"github.com/framelab/dailyframe/internal/seed"
	"github.com/framelab/dailyframe/internal/topics"
	"github.com/framelab/dailyframe/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userIDContextKey = "dailyframe_user_id"

var (
	errMissingVerifier      = errors.New("identity verifier dependency required")
	errMissingTokenIssuer   = errors.New("token issuer dependency required")
	errMissingUsersService  = errors.New("users service dependency required")
	errMissingTopicsService = errors.New("topics service dependency required")
	errMissingPostsService  = errors.New("posts service dependency required")
	errMissingCronSecret    = errors.New("cron secret required")
	errMissingAdminSecret   = errors.New("admin secret required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// IdentityVerifier validates a third-party identity token and returns its
// claims.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (auth.ProviderClaims, error)
}

// SessionTokenIssuer mints and validates the backend's own session tokens.
type SessionTokenIssuer interface {
	IssueSessionToken(ctx context.Context, userID string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// Dependencies wires the services behind the HTTP surface.
type Dependencies struct {
	Verifier      IdentityVerifier
	TokenIssuer   SessionTokenIssuer
	UsersService  *users.Service
	TopicsService *topics.Service
	PostsService  *posts.Service
	Seeder        *seed.Seeder
	CronSecret    string
	AdminSecret   string
	// UploadsDirectory, when set, is served read-only under /uploads.
	UploadsDirectory string
	Logger           *zap.Logger
}

// NewHTTPHandler builds the router. The seeder is optional; without it the
// admin seed and reset endpoints respond 404.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Verifier == nil {
		return nil, errMissingVerifier
	}
	if deps.TokenIssuer == nil {
		return nil, errMissingTokenIssuer
	}
	if deps.UsersService == nil {
		return nil, errMissingUsersService
	}
	if deps.TopicsService == nil {
		return nil, errMissingTopicsService
	}
	if deps.PostsService == nil {
		return nil, errMissingPostsService
	}
	if strings.TrimSpace(deps.CronSecret) == "" {
		return nil, errMissingCronSecret
	}
	if strings.TrimSpace(deps.AdminSecret) == "" {
		return nil, errMissingAdminSecret
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		verifier: deps.Verifier,
		tokens:   deps.TokenIssuer,
		users:    deps.UsersService,
		topics:   deps.TopicsService,
		posts:    deps.PostsService,
		seeder:   deps.Seeder,
		logger:   logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.POST("/auth/token", handler.handleTokenExchange)
	router.GET("/topics/active", handler.handleActiveTopic)
	router.GET("/topics/:id", handler.handleGetTopic)
	router.GET("/topics/:id/posts", handler.handleTopicPosts)
	router.GET("/feed/today", handler.handleTodaysFeed)
	router.GET("/posts/:id", handler.handleGetPost)
	router.GET("/posts/:id/comments", handler.handleListComments)

	if deps.UploadsDirectory != "" {
		router.Static("/uploads", deps.UploadsDirectory)
	}

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/posts", handler.handleCreatePost)
	protected.POST("/posts/:id/vote", handler.handleApplyVote)
	protected.GET("/posts/:id/vote", handler.handleUserVote)
	protected.POST("/posts/:id/comments", handler.handleCreateComment)
	protected.GET("/me", handler.handleMe)
	protected.GET("/me/posts", handler.handleMyPosts)

	cron := router.Group("/cron")
	cron.Use(requireBearerSecret(deps.CronSecret))
	cron.POST("/rotate-topic", handler.handleRotateTopic)

	admin := router.Group("/admin")
	admin.Use(requireBearerSecret(deps.AdminSecret))
	admin.POST("/topics/generate", handler.handleRotateTopic)
	admin.POST("/seed", handler.handleSeed)
	admin.POST("/reset", handler.handleReset)

	return router, nil
}

type httpHandler struct {
	verifier IdentityVerifier
	tokens   SessionTokenIssuer
	users    *users.Service
	topics   *topics.Service
	posts    *posts.Service
	seeder   *seed.Seeder
	logger   *zap.Logger
}

// authorizeRequest validates the Bearer session token and stores the user id
// for the handler.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	userID, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("session token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, userID)
	c.Next()
}

// requireBearerSecret gates trigger endpoints behind a shared secret compared
// in constant time.
func requireBearerSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

// respondError maps a classified service error onto an HTTP status.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	kind := fault.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case fault.KindNotFound:
		status = http.StatusNotFound
	case fault.KindConflict:
		status = http.StatusConflict
	case fault.KindForbidden:
		status = http.StatusForbidden
	case fault.KindBadRequest:
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": string(kind)})
}
