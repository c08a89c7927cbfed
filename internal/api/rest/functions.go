package rest

import (
	"errors"
	"net/http"

	"github.com/KevinKickass/OpenGCodeCore/internal/function"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GET /api/v1/functions
func (s *Server) listFunctions(c *gin.Context) {
	reg := s.lm.MachineController().Functions()

	response := make([]gin.H, 0, reg.Len())
	for _, name := range reg.Names() {
		f, err := reg.Get(name)
		if err != nil {
			continue
		}
		response = append(response, gin.H{
			"name":        f.Name(),
			"description": f.Description(),
			"operations":  f.Operations(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"functions": response,
		"count":     len(response),
	})
}

// GET /api/v1/functions/:name
func (s *Server) getFunction(c *gin.Context) {
	f, err := s.lm.MachineController().Functions().Get(c.Param("name"))
	if err != nil {
		s.fail(c, "FUNCTION", "Function not found", err, nil)
		return
	}

	arity := make(map[string]int)
	for _, op := range f.Operations() {
		n, _ := f.Arity(op)
		arity[op] = n
	}
	c.JSON(http.StatusOK, gin.H{
		"name":       f.Name(),
		"definition": f.Definition(),
		"arity":      arity,
	})
}

// GET /api/v1/functions/:name/validate
func (s *Server) validateFunction(c *gin.Context) {
	f, err := s.lm.MachineController().Functions().Get(c.Param("name"))
	if err != nil {
		s.fail(c, "FUNCTION", "Function not found", err, nil)
		return
	}
	c.JSON(http.StatusOK, f.Validate())
}

// POST /api/v1/functions/:name/operations/:op
func (s *Server) invokeFunction(c *gin.Context) {
	var req struct {
		Args []any `json:"args"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "FUNCTION", "Invalid request body", err)
			return
		}
	}

	name, op := c.Param("name"), c.Param("op")
	results, err := s.lm.MachineController().Call(c.Request.Context(), name, op, req.Args...)
	if err != nil {
		s.logger.Warn("Function failed",
			zap.String("function", name),
			zap.String("operation", op),
			zap.Error(err))

		var stepErr *function.StepError
		if errors.As(err, &stepErr) {
			s.fail(c, "FUNCTION", "Function step failed", err, gin.H{
				"error":       err.Error(),
				"failed_step": stepErr.Index,
				"component":   stepErr.Step.Component,
				"results":     results,
			})
			return
		}
		s.fail(c, "FUNCTION", "Function invocation failed", err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"function":  name,
		"operation": op,
		"results":   results,
	})
}
