package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/KevinKickass/OpenGCodeCore/internal/state"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GET /api/v1/state
func (s *Server) getState(c *gin.Context) {
	var (
		data  []byte
		depth int
	)
	err := s.lm.MachineController().WithState(func(st *state.Manager) error {
		var err error
		data, err = st.Serialize()
		depth = st.Depth()
		return err
	})
	if err != nil {
		s.fail(c, "STATE", "Failed to read state", err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": s.lm.MachineController().SessionID(),
		"depth":      depth,
		"state":      json.RawMessage(data),
	})
}

// GET /api/v1/state/:domain
func (s *Server) getStateDomain(c *gin.Context) {
	name := c.Param("domain")

	var data []byte
	err := s.lm.MachineController().WithState(func(st *state.Manager) error {
		d, err := st.Domain(name)
		if err != nil {
			return err
		}
		data, err = d.Serialize()
		return err
	})
	if err != nil {
		s.fail(c, "STATE", "Failed to read state domain", err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"domain":      name,
		"state":       json.RawMessage(data),
		"overridable": state.Overridable()[name],
	})
}

// POST /api/v1/state/push
func (s *Server) pushState(c *gin.Context) {
	var depth int
	_ = s.lm.MachineController().WithState(func(st *state.Manager) error {
		st.Push()
		depth = st.Depth()
		return nil
	})
	c.JSON(http.StatusOK, gin.H{"depth": depth})
}

// POST /api/v1/state/pop
func (s *Server) popState(c *gin.Context) {
	var depth int
	err := s.lm.MachineController().WithState(func(st *state.Manager) error {
		_, err := st.Pop()
		depth = st.Depth()
		return err
	})
	if err != nil {
		s.fail(c, "STATE", "Failed to pop state", err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"depth": depth})
}

// POST /api/v1/state/reset
func (s *Server) resetState(c *gin.Context) {
	s.lm.MachineController().Reset()
	c.JSON(http.StatusOK, gin.H{"message": "State reset", "depth": 0})
}

// POST /api/v1/state/snapshots
func (s *Server) saveSnapshot(c *gin.Context) {
	var req struct {
		Label string `json:"label"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "STATE", "Invalid request body", err)
			return
		}
	}

	id, err := s.lm.MachineController().SaveSnapshot(c.Request.Context(), req.Label)
	if err != nil {
		s.fail(c, "STATE", "Failed to save snapshot", err, nil)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "label": req.Label})
}

// POST /api/v1/state/snapshots/:id/restore
func (s *Server) restoreSnapshot(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "STATE", "Invalid snapshot ID", err)
		return
	}

	snap, err := s.lm.MachineController().RestoreSnapshot(c.Request.Context(), id)
	if err != nil {
		s.fail(c, "STATE", "Failed to restore snapshot", err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         snap.ID,
		"label":      snap.Label,
		"created_at": snap.CreatedAt,
	})
}

// GET /api/v1/journal?limit=N
func (s *Server) getJournal(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil && n < 1 {
			err = fmt.Errorf("limit must be positive, got %d", n)
		}
		if err != nil {
			badRequest(c, "JOURNAL", "Invalid limit", err)
			return
		}
		limit = n
	}

	records, err := s.lm.MachineController().History(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, "JOURNAL", "Failed to read journal", err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id":   s.lm.MachineController().SessionID(),
		"instructions": records,
		"count":        len(records),
	})
}
