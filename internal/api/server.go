// internal/api/server.go

// Package api is the thin HTTP transport over the workflow gateway.
// Actor identity arrives in X-Actor-* headers set by the upstream auth
// layer; this layer only parses requests and maps typed errors to HTTP
// statuses.
package api

import (
	"net/http"
	"strconv"
	"time"

	apperrors "match-engine/internal/common/errors"
	"match-engine/internal/common/logger"
	"match-engine/internal/gateway"
	"match-engine/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	gateway *gateway.Gateway
	router  *gin.Engine
	logger  logger.Logger
}

func NewServer(gw *gateway.Gateway, log logger.Logger) *Server {
	s := &Server{
		gateway: gw,
		logger:  log.WithFields(map[string]interface{}{"component": "api"}),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/match-score", s.MatchScore)
	router.POST("/applications/apply", s.Apply)
	router.PUT("/applications/status", s.UpdateStatus)
	router.PUT("/applications/interview", s.ScheduleInterview)

	router.GET("/jobs/:jobID/candidates/top", s.TopCandidates)
	router.GET("/jobs/:jobID/candidates", s.AllCandidates)
	router.GET("/jobs/:jobID/status-counts", s.StatusCounts)

	router.GET("/candidates/:candidateID/applications", s.MyApplications)
	router.POST("/candidates/:candidateID/resume-updated", s.ResumeUpdated)

	s.router = router
	return s
}

// Router exposes the handler for the HTTP server and for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) MatchScore(c *gin.Context) {
	candidateID := c.Query("candidateId")
	jobID := c.Query("jobId")
	if candidateID == "" || jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "candidateId and jobId are required"})
		return
	}

	bundle, err := s.gateway.MatchScore(c.Request.Context(), actorFrom(c), candidateID, jobID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bundle)
}

type applyRequest struct {
	CandidateID string `json:"candidateId" binding:"required"`
	JobID       string `json:"jobId" binding:"required"`
}

func (s *Server) Apply(c *gin.Context) {
	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	app, err := s.gateway.Apply(c.Request.Context(), actorFrom(c), req.CandidateID, req.JobID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

type interviewRequest struct {
	ScheduledAt time.Time `json:"scheduledAt"`
	Mode        string    `json:"mode"`
}

type updateStatusRequest struct {
	CandidateID string            `json:"candidateId" binding:"required"`
	JobID       string            `json:"jobId" binding:"required"`
	Status      string            `json:"status" binding:"required"`
	Interview   *interviewRequest `json:"interview,omitempty"`
}

func (s *Server) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	app, err := s.gateway.UpdateStatus(c.Request.Context(), actorFrom(c),
		req.CandidateID, req.JobID, models.ApplicationStatus(req.Status), toInterview(req.Interview))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

type scheduleInterviewRequest struct {
	CandidateID string           `json:"candidateId" binding:"required"`
	JobID       string           `json:"jobId" binding:"required"`
	Interview   interviewRequest `json:"interview" binding:"required"`
}

func (s *Server) ScheduleInterview(c *gin.Context) {
	var req scheduleInterviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	app, err := s.gateway.ScheduleInterview(c.Request.Context(), actorFrom(c),
		req.CandidateID, req.JobID, toInterview(&req.Interview))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

func (s *Server) TopCandidates(c *gin.Context) {
	jobID := c.Param("jobID")
	n, err := strconv.Atoi(c.DefaultQuery("n", "10"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "n must be an integer"})
		return
	}

	ranked, err := s.gateway.TopCandidates(c.Request.Context(), actorFrom(c), jobID, n)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidates": ranked})
}

func (s *Server) AllCandidates(c *gin.Context) {
	jobID := c.Param("jobID")

	var statusFilter *models.ApplicationStatus
	if raw := c.Query("status"); raw != "" {
		status := models.ApplicationStatus(raw)
		statusFilter = &status
	}

	ranked, err := s.gateway.AllCandidates(c.Request.Context(), actorFrom(c), jobID, statusFilter)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidates": ranked})
}

func (s *Server) StatusCounts(c *gin.Context) {
	counts, err := s.gateway.StatusCounts(c.Request.Context(), actorFrom(c), c.Param("jobID"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts})
}

func (s *Server) MyApplications(c *gin.Context) {
	entries, err := s.gateway.MyApplications(c.Request.Context(), actorFrom(c), c.Param("candidateID"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": entries})
}

func (s *Server) ResumeUpdated(c *gin.Context) {
	removed, err := s.gateway.ResumeUpdated(c.Request.Context(), actorFrom(c), c.Param("candidateID"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invalidated": removed})
}

func actorFrom(c *gin.Context) models.Actor {
	return models.Actor{
		ID:    c.GetHeader("X-Actor-Id"),
		Role:  models.Role(c.GetHeader("X-Actor-Role")),
		OrgID: c.GetHeader("X-Actor-Org"),
	}
}

func toInterview(req *interviewRequest) *models.Interview {
	if req == nil {
		return nil
	}
	return &models.Interview{
		ScheduledAt: req.ScheduledAt,
		Mode:        models.InterviewMode(req.Mode),
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	stdErr := apperrors.AsStandard(err)
	status := apperrors.HTTPStatus(stdErr.Code)

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", map[string]interface{}{
			"path":   c.FullPath(),
			"code":   string(stdErr.Code),
			"error":  stdErr.Details,
			"status": status,
		})
	}

	c.JSON(status, gin.H{
		"error":     stdErr.Message,
		"code":      string(stdErr.Code),
		"retryable": stdErr.Retryable,
	})
}
