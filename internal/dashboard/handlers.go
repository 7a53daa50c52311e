package dashboard

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, newStatusResponse(s.source.Snapshot()))
}

func (s *Server) getHistory(c *gin.Context) {
	if s.history == nil {
		abortWithError(c, http.StatusNotFound, "history_disabled", "Status history requires a database")
		return
	}

	name := strings.TrimPrefix(c.Param("name"), "/")
	if name == "" {
		abortWithError(c, http.StatusBadRequest, "invalid_target", "Target name is required")
		return
	}

	if !s.knownTarget(name) {
		abortWithError(c, http.StatusNotFound, "unknown_target", "Target is not monitored")
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			abortWithError(c, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	events, err := s.history.ListByTarget(c.Request.Context(), name, limit)
	if err != nil {
		s.logger.Error("Failed to load history", "target", name, "error", err)
		abortWithError(c, http.StatusInternalServerError, "history_failed", "Failed to load status history")
		return
	}
	c.JSON(http.StatusOK, newHistoryResponse(name, events))
}

func (s *Server) knownTarget(name string) bool {
	for _, st := range s.source.Snapshot().Statuses {
		if st.Name == name {
			return true
		}
	}
	return false
}
