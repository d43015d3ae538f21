package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kwld/homescript/authn"
	"github.com/kwld/homescript/host"
	"github.com/kwld/homescript/runner"
)

// handleRun is GET/POST /api/run/:endpoint (§6): query string and JSON body
// merge into the initial scope, body winning on conflict; declared
// REQUIRED/OPTIONAL parameters are sourced from the same merged map.
func (s *Server) handleRun(c *gin.Context) {
	sc, err := s.store.GetByEndpoint(c.Param("endpoint"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "script not found"})
		return
	}

	queryParams := map[string]string{}
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			queryParams[k] = v[0]
		}
	}
	scope := map[string]any{}
	for k, v := range queryParams {
		scope[k] = v
	}
	mergeJSONBody(c, scope, queryParams)

	source := sc.Code
	if sc.DebugEnabled && sc.DebugCode != "" {
		source = sc.DebugCode
	}

	report := s.run.Run(c.Request.Context(), sc, source, runner.Request{
		Scope:       scope,
		QueryParams: queryParams,
		AuthMode:    authn.ModeFromContext(c),
	})

	status := report.Meta.HTTPStatus
	if report.Success {
		c.JSON(status, gin.H{"output": report.Output, "variables": report.Variables, "report": report})
		return
	}
	var line *int
	if report.Error != nil {
		line = report.Error.Line
	}
	c.JSON(status, gin.H{"error": errMessage(report), "line": line, "report": report})
}

func errMessage(r *host.Report) string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Message
}

// mergeJSONBody decodes a JSON request body (if present) into scope and
// queryParams, overriding any query-string value with the same key — §6's
// "body wins on conflict".
func mergeJSONBody(c *gin.Context, scope map[string]any, queryParams map[string]string) {
	if c.Request.Body == nil {
		return
	}
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil || len(raw) == 0 {
		return
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return
	}
	for k, v := range body {
		scope[k] = v
		if s, ok := v.(string); ok {
			queryParams[k] = s
		} else if v != nil {
			queryParams[k] = jsonString(v)
		}
	}
}

func jsonString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
