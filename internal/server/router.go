package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sevasetu/portal/internal/identity"
	"github.com/sevasetu/portal/internal/relay"
	"github.com/sevasetu/portal/internal/users"
	"go.uber.org/zap"
)

var (
	errMissingIdentityClient = errors.New("identity client dependency required")
	errMissingUsersService   = errors.New("users service dependency required")
	errMissingGenerator      = errors.New("stream generator dependency required")
	errMissingTranscriber    = errors.New("transcriber dependency required")
)

// IdentityClient is the identity collaborator surface the handlers consume.
type IdentityClient interface {
	SignUp(ctx context.Context, email, password string) (identity.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (identity.Session, error)
	ExchangeCode(ctx context.Context, code string) (identity.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (identity.Session, error)
	GetUser(ctx context.Context, accessToken string) (identity.Profile, error)
	AuthorizeURL(provider, redirectTo string) string
}

// StreamGenerator opens a token stream against the LLM collaborator.
type StreamGenerator interface {
	StreamGenerate(ctx context.Context, prompt string) relay.Source
}

// Transcriber converts an audio file into text, synchronously.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// AccessTokenValidator validates provider-issued access tokens offline.
type AccessTokenValidator interface {
	Validate(token string) (string, error)
}

// Dependencies lists the explicitly constructed collaborators the HTTP
// surface is built from; nothing here is reachable through package globals.
type Dependencies struct {
	Identity       IdentityClient
	Users          *users.Service
	Generator      StreamGenerator
	Transcriber    Transcriber
	TokenValidator AccessTokenValidator
	RedisClient    *redis.Client
	RateLimit      int
	ClientURL      string
	ServerURL      string
	Logger         *zap.Logger
}

// NewHTTPHandler wires the portal's REST surface.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Identity == nil {
		return nil, errMissingIdentityClient
	}
	if deps.Users == nil {
		return nil, errMissingUsersService
	}
	if deps.Generator == nil {
		return nil, errMissingGenerator
	}
	if deps.Transcriber == nil {
		return nil, errMissingTranscriber
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(cors.New(corsConfig(deps.ClientURL)))

	handler := &httpHandler{
		identity:       deps.Identity,
		users:          deps.Users,
		generator:      deps.Generator,
		transcriber:    deps.Transcriber,
		tokenValidator: deps.TokenValidator,
		clientURL:      deps.ClientURL,
		serverURL:      deps.ServerURL,
		logger:         logger,
	}

	api := router.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := api.Group("/auth")
	authGroup.POST("/sign-up", handler.handleSignUp)
	authGroup.POST("/sign-in", handler.handleSignIn)
	authGroup.POST("/sign-in-with-provider", handler.handleSignInWithProvider)
	authGroup.GET("/cb", handler.handleOAuthCallback)
	authGroup.GET("/refresh", handler.handleRefresh)
	authGroup.GET("/user-data", handler.handleUserData)

	aiGroup := api.Group("/ai")
	if deps.RedisClient != nil && deps.RateLimit > 0 {
		aiGroup.Use(rateLimit(deps.RedisClient, deps.RateLimit, logger))
	}
	aiGroup.POST("/stream", handler.handleStream)
	aiGroup.POST("/audio-transcribe", handler.handleAudioTranscribe)

	return router, nil
}

func corsConfig(clientURL string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Cookie"},
		ExposeHeaders:    []string{"Set-Cookie", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if clientURL != "" {
		cfg.AllowOrigins = []string{clientURL}
	} else {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	}
	return cfg
}

type httpHandler struct {
	identity       IdentityClient
	users          *users.Service
	generator      StreamGenerator
	transcriber    Transcriber
	tokenValidator AccessTokenValidator
	clientURL      string
	serverURL      string
	logger         *zap.Logger
}
