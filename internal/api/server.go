// Package api wires the gin HTTP surface spec §6 names onto the
// dispatcher: per-family chat endpoints, model listings, the
// operational routes, and a thin admin stub, grounded on the teacher's
// internal/api.Server route-grouping and middleware conventions.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/SolarCrown57/antigravity-claude-proxy/internal/dispatcher"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/metrics"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/pool"

	// Each family sub-package registers its inbound/outbound transforms
	// into translator.Default via init(); the registry is otherwise
	// reached only through the Family-keyed lookups below, so nothing
	// else in the import graph forces these to load.
	_ "github.com/SolarCrown57/antigravity-claude-proxy/internal/translator/anthropic"
	_ "github.com/SolarCrown57/antigravity-claude-proxy/internal/translator/gemini"
	_ "github.com/SolarCrown57/antigravity-claude-proxy/internal/translator/openai"
)

// Server bundles the gin engine with the collaborators its handlers
// close over.
type Server struct {
	engine     *gin.Engine
	dispatcher *dispatcher.Dispatcher
	pool       *pool.Manager
	admin      *adminAuth
}

// NewServer builds the gin engine and registers every route group.
func NewServer(d *dispatcher.Dispatcher, p *pool.Manager, adminUsername, adminPassword, jwtSecret string) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{
		engine:     engine,
		dispatcher: d,
		pool:       p,
		admin:      newAdminAuth(adminUsername, adminPassword, jwtSecret),
	}
	s.registerRoutes()
	return s
}

// Engine returns the underlying gin engine, e.g. for http.ListenAndServe.
func (s *Server) Engine() *gin.Engine { return s.engine }

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()
		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("request handled")
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.POST("/refresh-token", s.handleRefreshToken)
	s.engine.GET("/account-limits", s.handleAccountLimits)
	s.engine.GET("/metrics", gin.WrapH(metricsHandler()))

	v1 := s.engine.Group("/v1")
	v1.POST("/chat/completions", s.handleOpenAIChatCompletions)
	v1.GET("/models", s.handleOpenAIModels)
	v1.POST("/messages", s.handleAnthropicMessages)

	v1beta := s.engine.Group("/v1beta")
	v1beta.POST("/models/:model", s.handleGeminiGenerateOrStream)
	v1beta.GET("/models", s.handleGeminiModelsList)
	v1beta.GET("/models/:model", s.handleGeminiModelGet)

	admin := s.engine.Group("/admin")
	admin.POST("/login", s.handleAdminLogin)
	authed := admin.Group("")
	authed.Use(s.admin.middleware())
	authed.GET("/accounts", s.handleAdminListAccounts)
	authed.POST("/accounts", s.handleAdminAddAccount)
	authed.DELETE("/accounts/:email", s.handleAdminDeleteAccount)
	authed.POST("/accounts/:email/revalidate", s.handleAdminRevalidate)
	authed.POST("/accounts/reset-limits", s.handleAdminResetLimits)
}

func (s *Server) handleHealth(c *gin.Context) {
	snap := s.pool.Snapshot()
	metrics.AccountsTotal.WithLabelValues("available").Set(float64(snap.Available))
	metrics.AccountsTotal.WithLabelValues("rate_limited").Set(float64(snap.RateLimited))
	metrics.AccountsTotal.WithLabelValues("invalid").Set(float64(snap.Invalid))
	c.JSON(http.StatusOK, gin.H{"status": "ok", "pool": snap.Summary})
}

func (s *Server) handleAccountLimits(c *gin.Context) {
	c.JSON(http.StatusOK, s.pool.Snapshot().Redacted())
}

func (s *Server) handleRefreshToken(c *gin.Context) {
	snap := s.pool.Snapshot()
	var failures []string
	for _, acc := range snap.Accounts {
		if err := s.pool.Revalidate(c.Request.Context(), acc.Email); err != nil {
			failures = append(failures, acc.Email)
		}
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": len(snap.Accounts) - len(failures), "failed": failures})
}
