package httpapi

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kwld/homescript/host"
	"github.com/kwld/homescript/runner"
)

// DebugAccess gates the LAN-debugging bypass path (§6): a caller whose
// source IP falls inside a configured CIDR set and who presents a
// recognized service ID may run a script without the normal bearer/
// service-key check. CIDR matching itself is explicitly out of scope
// per spec.md §1 ("thin adapter... rewritten mechanically"); this is
// the minimal net.ParseCIDR-based stand-in the interface needs, not a
// reimplementation of a dedicated CIDR-matching library.
type DebugAccess struct {
	nets     []*net.IPNet
	services map[string]struct{}
}

func NewDebugAccess(cidrs []string, serviceIDs []string) *DebugAccess {
	da := &DebugAccess{services: make(map[string]struct{}, len(serviceIDs))}
	for _, c := range cidrs {
		if _, n, err := net.ParseCIDR(c); err == nil {
			da.nets = append(da.nets, n)
		}
	}
	for _, id := range serviceIDs {
		da.services[id] = struct{}{}
	}
	return da
}

func (d *DebugAccess) allowedIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range d.nets {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

func (d *DebugAccess) validService(id string) bool {
	_, ok := d.services[id]
	return ok
}

// handleDebugAccessPublic tells a LAN client whether its address qualifies
// for the bypass path, without requiring a service ID yet.
func (s *Server) handleDebugAccessPublic(c *gin.Context) {
	if s.debug == nil {
		c.JSON(http.StatusOK, gin.H{"eligible": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"eligible": s.debug.allowedIP(c.ClientIP())})
}

type debugRunRequest struct {
	ServiceID string         `json:"serviceId" binding:"required"`
	Scope     map[string]any `json:"scope"`
}

func (s *Server) handleDebugAccessRun(c *gin.Context) {
	if s.debug == nil || !s.debug.allowedIP(c.ClientIP()) {
		c.JSON(http.StatusForbidden, gin.H{"error": "debug access not permitted from this address"})
		return
	}

	var req debugRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !s.debug.validService(req.ServiceID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "unknown service id"})
		return
	}

	sc, err := s.store.GetByEndpoint(c.Param("endpoint"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "script not found"})
		return
	}

	source := sc.Code
	if sc.DebugEnabled && sc.DebugCode != "" {
		source = sc.DebugCode
	}

	report := s.run.Run(c.Request.Context(), sc, source, runner.Request{
		Scope:    req.Scope,
		AuthMode: host.AuthDebugBypass,
	})
	c.JSON(report.Meta.HTTPStatus, gin.H{"output": report.Output, "variables": report.Variables, "report": report})
}
