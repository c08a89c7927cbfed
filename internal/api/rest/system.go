package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GET /api/v1/system/status
func (s *Server) getSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.lm.GetCurrentStatus())
}

// GET /api/v1/system/machine
func (s *Server) getMachineStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.lm.MachineController().GetStatus())
}

// POST /api/v1/system/reload
func (s *Server) reload(c *gin.Context) {
	if err := s.lm.Reload(c.Request.Context()); err != nil {
		s.logger.Error("Reload failed", zap.Error(err))
		s.fail(c, "SYSTEM", "Reload failed", err, nil)
		return
	}

	def := s.lm.MachineController().Definition()
	resp := gin.H{"message": "Machine definition reloaded"}
	if def != nil {
		resp["machine"] = def.Name
		resp["components"] = def.ComponentIDs()
		resp["functions"] = def.FunctionNames()
	}
	c.JSON(http.StatusOK, resp)
}
