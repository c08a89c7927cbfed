package rest

import (
	"errors"
	"net/http"

	"github.com/KevinKickass/OpenGCodeCore/internal/instruction"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type executeRequest struct {
	Line    string              `json:"line"`
	Code    string              `json:"code"`
	Params  []instruction.Param `json:"params"`
	Comment string              `json:"comment"`
}

// GET /api/v1/instructions
func (s *Server) listInstructions(c *gin.Context) {
	codes := s.lm.MachineController().Instructions().Codes()
	c.JSON(http.StatusOK, gin.H{
		"instructions": codes,
		"count":        len(codes),
	})
}

// POST /api/v1/instructions/execute
func (s *Server) executeInstruction(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INSTRUCTION", "Invalid request body", err)
		return
	}
	if (req.Line == "") == (req.Code == "") {
		badRequest(c, "INSTRUCTION", "Invalid request body", errors.New("exactly one of line or code is required"))
		return
	}

	ctrl := s.lm.MachineController()
	var (
		res *instruction.Result
		err error
	)
	if req.Line != "" {
		res, err = ctrl.ExecuteLine(c.Request.Context(), req.Line)
	} else {
		res, err = ctrl.Execute(c.Request.Context(), req.Code, req.Params, req.Comment)
	}
	if err != nil {
		s.logger.Warn("Instruction failed",
			zap.String("line", req.Line),
			zap.String("code", req.Code),
			zap.Error(err))
		s.fail(c, "INSTRUCTION", "Instruction execution failed", err, nil)
		return
	}

	c.JSON(http.StatusOK, res)
}

// POST /api/v1/instructions/query
func (s *Server) queryRaw(c *gin.Context) {
	var req struct {
		Line string `json:"line" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INSTRUCTION", "Invalid request body", err)
		return
	}

	resp, err := s.lm.MachineController().Query(c.Request.Context(), req.Line)
	if err != nil {
		s.fail(c, "INSTRUCTION", "Query failed", err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"line":     req.Line,
		"response": resp,
	})
}
