package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/views"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/errs"
	"github.com/custodia-labs/sercha-kb/internal/logger"
)

// defaultListLimit applies when a list request has no limit parameter.
const defaultListLimit = 50

// AskRequest is the body of POST /v1/ask. An empty question is passed to
// the query service, which rejects and records it.
type AskRequest struct {
	Question    string   `json:"question"`
	K           int      `json:"k" binding:"gte=0,lte=50"`
	Role        string   `json:"role"`
	Temperature *float64 `json:"temperature" binding:"omitempty,gte=0,lte=2"`
	Debug       bool     `json:"debug"`
}

// RetrieveRequest is the body of POST /v1/retrieve.
type RetrieveRequest struct {
	Question string `json:"question" binding:"required"`
	K        int    `json:"k" binding:"gte=0,lte=50"`
	Role     string `json:"role"`
}

// SyncRequest is the body of POST /v1/sync.
type SyncRequest struct {
	Manifest string `json:"manifest"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleAsk(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	answer, err := s.ports.Query.Ask(c.Request.Context(), domain.QueryRequest{
		Question:    strings.TrimSpace(req.Question),
		K:           req.K,
		Role:        req.Role,
		Temperature: req.Temperature,
	})
	if answer == nil {
		writeError(c, err)
		return
	}
	// Failed answers still carry a caller-safe message and the record id.
	c.JSON(errs.HTTPStatus(err), views.FromAnswer(answer, req.Debug))
}

func (s *Server) handleRetrieve(c *gin.Context) {
	var req RetrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		badRequest(c, domain.ErrEmptyQuestion)
		return
	}

	result, err := s.ports.Query.Retrieve(c.Request.Context(), question, req.K, req.Role)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, views.FromRetrieval(question, req.K, req.Role, result))
}

func (s *Server) handleSync(c *gin.Context) {
	var req SyncRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	manifest := req.Manifest
	if manifest == "" {
		manifest = s.ports.DefaultManifest
	}
	if manifest == "" {
		badRequest(c, errors.New("manifest is required"))
		return
	}

	if !s.syncMu.TryLock() {
		c.JSON(http.StatusConflict, views.Error{Message: "a sync is already running"})
		return
	}
	defer s.syncMu.Unlock()

	run, err := s.ports.Indexer.Sync(c.Request.Context(), manifest)
	if err != nil && run == nil {
		writeError(c, err)
		return
	}
	if err != nil {
		logger.Warn("Sync %s finished with error: %v", run.ID, err)
	}
	c.JSON(http.StatusOK, views.FromSyncRun(run))
}

func (s *Server) handleListQueries(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	records, err := s.ports.Audit.ListQueries(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, views.FromQueryRecords(records))
}

func (s *Server) handleGetQuery(c *gin.Context) {
	record, err := s.ports.Audit.GetQuery(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, views.FromQueryRecord(*record))
}

func (s *Server) handleListSyncRuns(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	runs, err := s.ports.Audit.ListSyncRuns(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, views.FromSyncRuns(runs))
}

func (s *Server) handleListDocuments(c *gin.Context) {
	docs, err := s.ports.Audit.ListDocuments(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, views.FromDocStates(docs))
}

// parseLimit reads ?limit=; it writes a 400 and returns false when invalid.
func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		badRequest(c, errors.New("limit must be a positive integer"))
		return 0, false
	}
	return n, true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, views.Error{
		Code:    string(errs.CodeRetrievalQueryInvalid),
		Message: err.Error(),
	})
}

// writeError maps err to a status and a body that does not leak
// provider details.
func writeError(c *gin.Context, err error) {
	if err == nil {
		err = errors.New("no result")
	}
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, views.Error{Message: "not found"})
		return
	}

	code := errs.CodeOf(err)
	if code == "" {
		logger.Error("Request %s failed: %v", c.Request.URL.Path, err)
	}
	c.JSON(errs.HTTPStatus(err), views.Error{
		Code:    string(code),
		Message: errs.SafeMessage(err),
	})
}
