// Package httpapi wires the HTTP surface (§6) onto gin: script CRUD, the
// run/webhook/debug-access execution paths, the history proxy, and the
// static-validator and trigger-test supplemental endpoints. Grounded on the
// upstream app's gin wiring (runtime/app.go, runtime/http_handler.go) —
// kept as one router file per handler group rather than the teacher's
// one-route-per-flow loop, since HomeScript's routes are fixed rather than
// generated from a flow file.
package httpapi

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/kwld/homescript/authn"
	"github.com/kwld/homescript/config"
	"github.com/kwld/homescript/ratelimit"
	"github.com/kwld/homescript/runner"
	"github.com/kwld/homescript/script"
)

// Server bundles the dependencies every handler group needs.
type Server struct {
	store   script.Store
	run     *runner.Runner
	cfg     *config.Config
	auth    *authn.Authenticator
	limiter *ratelimit.Limiter
	debug   *DebugAccess
	logger  *slog.Logger
}

func NewServer(store script.Store, run *runner.Runner, cfg *config.Config, auth *authn.Authenticator, limiter *ratelimit.Limiter, debug *DebugAccess, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: store, run: run, cfg: cfg, auth: auth, limiter: limiter, debug: debug, logger: logger}
}

// Mount registers every route in §6 onto g.
func (s *Server) Mount(g *gin.Engine) {
	g.GET("/api/config", s.handleGetConfig)
	g.POST("/api/validate", s.handleValidate)

	admin := g.Group("/api")
	admin.Use(s.auth.Require())
	{
		admin.GET("/scripts", s.handleListScripts)
		admin.POST("/scripts", s.handleCreateScript)
		admin.GET("/scripts/:id", s.handleGetScript)
		admin.PUT("/scripts/:id", s.handleUpdateScript)
		admin.DELETE("/scripts/:id", s.handleDeleteScript)
		admin.PUT("/scripts/:id/debug", s.handleUpdateDebug)
		admin.POST("/scripts/:id/debug/promote", s.handlePromoteDebug)
		admin.POST("/scripts/:id/trigger/test", s.handleTriggerTest)
		admin.GET("/history", s.handleHistory)
	}

	g.GET("/api/run/:endpoint", s.rateLimited(s.handleRun))
	g.POST("/api/run/:endpoint", s.rateLimited(s.handleRun))
	g.POST("/api/webhook/:endpoint", s.rateLimited(s.handleWebhook))

	g.GET("/api/debug-access/public", s.handleDebugAccessPublic)
	g.POST("/api/debug-access/run/:endpoint", s.handleDebugAccessRun)
}

func (s *Server) handleGetConfig(c *gin.Context) {
	c.JSON(200, gin.H{"mock": s.cfg.Mock})
}
