package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/roach88/dmap/internal/engine"
	"github.com/roach88/dmap/internal/ir"
)

// AssignRequest is the body of PUT /v1/members/me/group.
type AssignRequest struct {
	Group *ir.GroupID `json:"group" binding:"required"`
	Score *ir.Score   `json:"score" binding:"required"`
}

// ValueRequest is the body of the entries write calls.
type ValueRequest struct {
	Value *uint32 `json:"value" binding:"required"`
}

func (s *Server) submit(c *gin.Context, call engine.Call) {
	call.Caller = caller(c)
	call.CallID = c.GetHeader(CallIDHeader)

	res, err := s.Engine.Submit(c.Request.Context(), call)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) join(c *gin.Context) {
	s.submit(c, engine.Call{Op: engine.OpJoin})
}

func (s *Server) removeMember(c *gin.Context) {
	s.submit(c, engine.Call{Op: engine.OpRemoveMember})
}

func (s *Server) assignToGroup(c *gin.Context) {
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body must be {\"group\": uint32, \"score\": uint32}")
		return
	}
	s.submit(c, engine.Call{Op: engine.OpAssignToGroup, Group: *req.Group, Score: *req.Score})
}

func (s *Server) removeGroupScores(c *gin.Context) {
	g, err := parseUint(c, "group", 32)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	s.submit(c, engine.Call{Op: engine.OpRemoveGroupScores, Group: ir.GroupID(g)})
}

func (s *Server) setEntry(c *gin.Context) {
	var req ValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body must be {\"value\": uint32}")
		return
	}
	s.submit(c, engine.Call{Op: engine.OpEntrySet, Value: *req.Value})
}

func (s *Server) increaseEntry(c *gin.Context) {
	var req ValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body must be {\"value\": uint32}")
		return
	}
	s.submit(c, engine.Call{Op: engine.OpEntryIncrease, Value: *req.Value})
}

func (s *Server) takeEntry(c *gin.Context) {
	s.submit(c, engine.Call{Op: engine.OpEntryTake})
}

func (s *Server) getEntry(c *gin.Context) {
	account, err := parseUint(c, "account", 64)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	s.submit(c, engine.Call{Op: engine.OpEntryGet, Account: ir.AccountID(account)})
}

func (s *Server) listMembers(c *gin.Context) {
	members, err := s.Registry.Members(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (s *Server) getGroup(c *gin.Context) {
	id, err := parseUint(c, "id", 64)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	g, ok, err := s.Registry.GroupOf(c.Request.Context(), ir.AccountID(id))
	if err != nil {
		s.fail(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, errorBody("NO_GROUP", "member has no group"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"member": id, "group": g})
}

func (s *Server) getScore(c *gin.Context) {
	id, err := parseUint(c, "id", 64)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	score, ok, err := s.Registry.ScoreOf(c.Request.Context(), ir.AccountID(id))
	if err != nil {
		s.fail(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, errorBody("NO_SCORE", "member has no score in its group"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"member": id, "score": score})
}

func (s *Server) listGroupScores(c *gin.Context) {
	g, err := parseUint(c, "group", 32)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	rows, err := s.Registry.GroupScores(c.Request.Context(), ir.GroupID(g))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"group": g, "scores": rows})
}

func (s *Server) listEvents(c *gin.Context) {
	after, err := strconv.ParseInt(c.DefaultQuery("after", "0"), 10, 64)
	if err != nil || after < 0 {
		badRequest(c, "after must be a non-negative integer")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		badRequest(c, "limit must be a non-negative integer")
		return
	}
	events, err := s.Events.ReadEvents(c.Request.Context(), after, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
