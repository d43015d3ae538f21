package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kwld/homescript/host"
	"github.com/kwld/homescript/runner"
)

// handleWebhook is POST /api/webhook/:endpoint (§6): unauthenticated,
// scope receives {webhook_data, webhook_query, ...query}.
func (s *Server) handleWebhook(c *gin.Context) {
	sc, err := s.store.GetByEndpoint(c.Param("endpoint"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "script not found"})
		return
	}

	query := map[string]any{}
	queryParams := map[string]string{}
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
			queryParams[k] = v[0]
		}
	}

	var data any
	if c.Request.Body != nil {
		raw, _ := io.ReadAll(c.Request.Body)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &data)
		}
	}

	scope := map[string]any{
		"webhook_data":  data,
		"webhook_query": query,
	}
	for k, v := range query {
		scope[k] = v
	}

	report := s.run.Run(c.Request.Context(), sc, sc.Code, runner.Request{
		Scope:       scope,
		QueryParams: queryParams,
		AuthMode:    host.AuthUnknown,
	})

	if report.Success {
		c.JSON(report.Meta.HTTPStatus, gin.H{"output": report.Output, "variables": report.Variables, "report": report})
		return
	}
	var line *int
	if report.Error != nil {
		line = report.Error.Line
	}
	c.JSON(report.Meta.HTTPStatus, gin.H{"error": errMessage(report), "line": line, "report": report})
}
