package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/joescharf/evidence/internal/aggregate"
	"github.com/joescharf/evidence/internal/evidence"
	"github.com/joescharf/evidence/internal/logger"
	"github.com/joescharf/evidence/internal/models"
	"github.com/joescharf/evidence/internal/period"
	"github.com/joescharf/evidence/internal/store"
	"github.com/joescharf/evidence/internal/syncer"
	"github.com/joescharf/evidence/internal/tracker"
)

// Aggregator fetches one month of issues.
type Aggregator interface {
	Aggregate(ctx context.Context, req aggregate.Request) (*models.DataIssue, error)
}

// Generator produces evidence documents.
type Generator interface {
	CreateMonth(ctx context.Context, req aggregate.Request) (*models.Evidence, error)
	CreateYear(ctx context.Context, req aggregate.Request) (*models.YearReport, error)
}

// SyncRunner runs a Redmine sync with the caller's authorization header.
type SyncRunner interface {
	Run(ctx context.Context, authorization string) (*syncer.Result, error)
}

// Config holds the HTTP-level settings.
type Config struct {
	Role         string
	AllowOrigins []string
}

// Server provides the REST API handlers.
type Server struct {
	store    store.Store
	issues   Aggregator
	pipeline Generator
	sync     SyncRunner
	cfg      Config
	log      *slog.Logger
}

// NewServer creates a new API server. sr may be nil when Redmine
// persistence is not configured.
func NewServer(s store.Store, agg Aggregator, gen Generator, sr SyncRunner, cfg Config, log *slog.Logger) *Server {
	return &Server{
		store:    s,
		issues:   agg,
		pipeline: gen,
		sync:     sr,
		cfg:      cfg,
		log:      logger.OrDefault(log),
	}
}

// Router returns the gin engine for the API routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLog)
	r.Use(cors.New(s.corsConfig()))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	v1 := r.Group("/api/v1", basicAuth)

	v1.POST("/issues", s.aggregateIssues)
	v1.POST("/evidence", s.composeEvidence)

	v1.POST("/templates", s.createTemplate)
	v1.POST("/templates/year", s.createTemplateYear)
	v1.GET("/templates", s.listTemplates)
	v1.GET("/templates/:id", s.getTemplate)

	v1.POST("/redmine/sync", s.syncRedmine)
	v1.GET("/redmine/issues", s.listRedmineIssues)
	v1.GET("/redmine/issues/:id", s.getRedmineIssue)

	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if len(s.cfg.AllowOrigins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = s.cfg.AllowOrigins
	cfg.AllowCredentials = true
	return cfg
}

func (s *Server) requestLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.Info("http",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"elapsed_ms", time.Since(start).Milliseconds())
}

const credentialsKey = "credentials"

// basicAuth decodes the Authorization header into tracker.Credentials.
// The pair is not verified here; the trackers reject bad credentials.
func basicAuth(c *gin.Context) {
	user, pass, ok := c.Request.BasicAuth()
	if !ok || user == "" {
		c.Header("WWW-Authenticate", `Basic realm="evidence"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "basic authorization required"})
		return
	}
	c.Set(credentialsKey, tracker.Credentials{Username: user, Password: pass})
	c.Next()
}

func credentials(c *gin.Context) tracker.Credentials {
	creds, _ := c.MustGet(credentialsKey).(tracker.Credentials)
	return creds
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// fail maps err to an HTTP status.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var upstream *tracker.UpstreamError
	switch {
	case errors.As(err, &upstream):
		status = http.StatusBadGateway
	case errors.Is(err, period.ErrInvalidMonth), errors.Is(err, aggregate.ErrNoSource):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "path", c.FullPath(), "error", err)
	}
	writeError(c, status, err.Error())
}

// --- Issues and evidence ---

type monthBody struct {
	Month   int                      `json:"month" binding:"required,min=1,max=12"`
	Year    int                      `json:"year" binding:"required,min=1"`
	Jira    *aggregate.JiraParams    `json:"jira"`
	Redmine *aggregate.RedmineParams `json:"redmine"`
}

func (s *Server) bindMonth(c *gin.Context) (aggregate.Request, bool) {
	var body monthBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return aggregate.Request{}, false
	}
	if body.Jira == nil && body.Redmine == nil {
		writeError(c, http.StatusBadRequest, aggregate.ErrNoSource.Error())
		return aggregate.Request{}, false
	}
	return aggregate.Request{
		Month:       body.Month,
		Year:        body.Year,
		Credentials: credentials(c),
		Jira:        body.Jira,
		Redmine:     body.Redmine,
	}, true
}

func (s *Server) aggregateIssues(c *gin.Context) {
	req, ok := s.bindMonth(c)
	if !ok {
		return
	}
	data, err := s.issues.Aggregate(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (s *Server) composeEvidence(c *gin.Context) {
	req, ok := s.bindMonth(c)
	if !ok {
		return
	}
	data, err := s.issues.Aggregate(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	ev, err := evidence.Compose(data, req.Month, req.Year, evidence.Options{Role: s.cfg.Role})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// --- Templates ---

func (s *Server) createTemplate(c *gin.Context) {
	req, ok := s.bindMonth(c)
	if !ok {
		return
	}
	ev, err := s.pipeline.CreateMonth(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ev)
}

func (s *Server) createTemplateYear(c *gin.Context) {
	req, ok := s.bindMonth(c)
	if !ok {
		return
	}
	report, err := s.pipeline.CreateYear(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type pageQuery struct {
	Skip  int `form:"skip" binding:"min=0"`
	Limit int `form:"limit" binding:"min=0,max=500"`
}

type templateQuery struct {
	pageQuery
	Year int `form:"year" binding:"min=0"`
}

func (s *Server) listTemplates(c *gin.Context) {
	var q templateQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	templates, err := s.store.ListTemplates(c.Request.Context(), store.TemplateFilter{
		Username: credentials(c).Username,
		Year:     q.Year,
		Skip:     q.Skip,
		Limit:    q.Limit,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	if templates == nil {
		templates = []*models.UserTemplate{}
	}
	c.JSON(http.StatusOK, templates)
}

func (s *Server) getTemplate(c *gin.Context) {
	t, err := s.store.GetTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if t.Username != credentials(c).Username {
		writeError(c, http.StatusNotFound, "template not found")
		return
	}
	c.JSON(http.StatusOK, t)
}

// --- Redmine persistence ---

func (s *Server) syncRedmine(c *gin.Context) {
	if s.sync == nil {
		writeError(c, http.StatusServiceUnavailable, "redmine sync is not configured")
		return
	}
	res, err := s.sync.Run(c.Request.Context(), credentials(c).Authorization())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type issueQuery struct {
	pageQuery
	AssignedToID int       `form:"assignedToId" binding:"min=0"`
	From         time.Time `form:"from" time_format:"2006-01-02" time_utc:"1"`
	To           time.Time `form:"to" time_format:"2006-01-02" time_utc:"1"`
}

func (s *Server) listRedmineIssues(c *gin.Context) {
	var q issueQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	f := store.IssueFilter{
		Source:       models.SourceRedmine,
		AssignedToID: q.AssignedToID,
		UpdatedFrom:  q.From,
		Skip:         q.Skip,
		Limit:        q.Limit,
	}
	if !q.To.IsZero() {
		// "to" names a day; include all of it.
		f.UpdatedTo = q.To.Add(24*time.Hour - time.Millisecond)
	}
	issues, err := s.store.ListIssues(c.Request.Context(), f)
	if err != nil {
		s.fail(c, err)
		return
	}
	if issues == nil {
		issues = []*models.UserIssue{}
	}
	c.JSON(http.StatusOK, issues)
}

func (s *Server) getRedmineIssue(c *gin.Context) {
	issue, err := s.store.GetIssueByExternalID(c.Request.Context(), models.SourceRedmine, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}
