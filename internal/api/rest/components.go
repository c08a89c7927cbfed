package rest

import (
	"net/http"

	"github.com/KevinKickass/OpenGCodeCore/internal/component"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func describeComponent(comp component.Component) gin.H {
	actions := make([]component.ActionInfo, 0)
	for _, name := range comp.Actions() {
		if info, ok := comp.ActionInfo(name); ok {
			actions = append(actions, info)
		}
	}
	return gin.H{
		"id":      comp.ID(),
		"type":    comp.Type(),
		"actions": actions,
	}
}

// GET /api/v1/components
func (s *Server) listComponents(c *gin.Context) {
	reg := s.lm.MachineController().Components()

	response := make([]gin.H, 0, reg.Len())
	for _, id := range reg.IDs() {
		comp, err := reg.Get(id)
		if err != nil {
			continue
		}
		response = append(response, gin.H{
			"id":      comp.ID(),
			"type":    comp.Type(),
			"actions": comp.Actions(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"components": response,
		"count":      len(response),
		"types":      reg.Types(),
	})
}

// GET /api/v1/components/:id
func (s *Server) getComponent(c *gin.Context) {
	comp, err := s.lm.MachineController().Components().Get(c.Param("id"))
	if err != nil {
		s.fail(c, "COMPONENT", "Component not found", err, nil)
		return
	}
	c.JSON(http.StatusOK, describeComponent(comp))
}

// POST /api/v1/components/:id/actions/:action
func (s *Server) invokeComponent(c *gin.Context) {
	var req struct {
		Value any `json:"value"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "COMPONENT", "Invalid request body", err)
			return
		}
	}

	id, action := c.Param("id"), c.Param("action")
	res, err := s.lm.MachineController().Invoke(c.Request.Context(), id, action, req.Value)
	if err != nil {
		s.logger.Warn("Component action failed",
			zap.String("component", id),
			zap.String("action", action),
			zap.Error(err))
		s.fail(c, "COMPONENT", "Component action failed", err, nil)
		return
	}
	c.JSON(http.StatusOK, res)
}
