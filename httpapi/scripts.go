package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kwld/homescript/script"
	"github.com/kwld/homescript/trigger"
	"github.com/kwld/homescript/validate"
)

// scriptRequest takes triggerConfig as a bag of any since field-level types
// loosen at the client boundary (a threshold may arrive as "12" or 12);
// DecodeTriggerConfig normalizes it via mapstructure's weakly-typed decode.
type scriptRequest struct {
	Name          string `json:"name" binding:"required"`
	Endpoint      string `json:"endpoint" binding:"required"`
	Code          string `json:"code"`
	TestParams    string `json:"testParams"`
	TriggerConfig any    `json:"triggerConfig"`
	DebugEnabled  bool   `json:"debugEnabled"`
	DebugCode     string `json:"debugCode"`
}

func (s *Server) handleListScripts(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.List())
}

func (s *Server) handleCreateScript(c *gin.Context) {
	var req scriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !script.ValidEndpoint(req.Endpoint) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint must match [a-z0-9-]+"})
		return
	}

	triggerCfg, err := script.DecodeTriggerConfig(req.TriggerConfig)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid triggerConfig: " + err.Error()})
		return
	}

	sc := script.New(req.Name, req.Endpoint, req.Code)
	sc.TestParams = req.TestParams
	sc.TriggerConfig = triggerCfg
	sc.DebugEnabled = req.DebugEnabled
	sc.DebugCode = req.DebugCode

	created, err := s.store.Create(sc)
	if err == script.ErrEndpointTaken {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleGetScript(c *gin.Context) {
	sc, err := s.store.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"script":        sc,
		"debug_code":    sc.DebugCode,
		"debug_enabled": sc.DebugEnabled,
	})
}

func (s *Server) handleUpdateScript(c *gin.Context) {
	id := c.Param("id")
	existing, err := s.store.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var req scriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !script.ValidEndpoint(req.Endpoint) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint must match [a-z0-9-]+"})
		return
	}

	triggerCfg, err := script.DecodeTriggerConfig(req.TriggerConfig)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid triggerConfig: " + err.Error()})
		return
	}

	existing.Name = req.Name
	existing.Endpoint = req.Endpoint
	existing.Code = req.Code
	existing.TestParams = req.TestParams
	existing.TriggerConfig = triggerCfg
	existing.DebugEnabled = req.DebugEnabled
	existing.DebugCode = req.DebugCode

	updated, err := s.store.Update(id, existing)
	if err == script.ErrEndpointTaken {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteScript(c *gin.Context) {
	if err := s.store.Delete(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

type debugUpdateRequest struct {
	DebugCode    *string `json:"debugCode"`
	DebugEnabled *bool   `json:"debugEnabled"`
}

func (s *Server) handleUpdateDebug(c *gin.Context) {
	id := c.Param("id")
	sc, err := s.store.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var req debugUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	code := sc.DebugCode
	if req.DebugCode != nil {
		code = *req.DebugCode
	}
	enabled := sc.DebugEnabled
	if req.DebugEnabled != nil {
		enabled = *req.DebugEnabled
	}

	updated, err := s.store.UpdateDebug(id, code, enabled)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, updated)
}

// handlePromoteDebug copies debug_code over code — SPEC_FULL.md §12's
// "debug draft promotion" endpoint, the explicit operator action the
// glossary names.
func (s *Server) handlePromoteDebug(c *gin.Context) {
	updated, err := s.store.PromoteDebug(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, updated)
}

type triggerTestRequest struct {
	EntityID string `json:"entityId" binding:"required"`
	OldState string `json:"oldState"`
	NewState string `json:"newState"`
}

// handleTriggerTest is SPEC_FULL.md §12's rule-group dry evaluation
// endpoint: run §4.5's matching logic against a hand-entered fake event
// without dispatching the bound script.
func (s *Server) handleTriggerTest(c *gin.Context) {
	sc, err := s.store.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var req triggerTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	change := trigger.StateChange{EntityID: req.EntityID, Old: req.OldState, New: req.NewState}
	result := trigger.Evaluate(s.run.Evaluator(), sc.TriggerConfig, change)
	name := trigger.DeriveEventName(sc.TriggerConfig.Rules, result.Vars, change)
	c.JSON(http.StatusOK, trigger.Payload(sc.TriggerConfig, change, result, name))
}

// handleValidate exposes C2 directly for the (out-of-scope) editor's
// inline diagnostics, though it is reachable on its own for completeness.
func (s *Server) handleValidate(c *gin.Context) {
	var body struct {
		Source string `json:"source"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"diagnostics": validate.Validate(body.Source)})
}
