package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/teazle/autosocialai/internal/domain"
	"github.com/teazle/autosocialai/internal/infrastructure/lock"
	"github.com/teazle/autosocialai/internal/pipeline"
	"github.com/teazle/autosocialai/internal/settings"
	"github.com/teazle/autosocialai/internal/usecase"
)

type generateRequest struct {
	ClientID string `json:"clientId"`
}

type killSwitchRequest struct {
	Enabled *bool `json:"enabled"`
}

type settingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type validationView struct {
	Approved bool                    `json:"approved"`
	Status   domain.ValidationStatus `json:"status"`
	Score    int                     `json:"score"`
	Issues   []string                `json:"issues"`
}

func unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": what + " is not configured"})
}

func (s *Server) generatePosts(c *gin.Context) {
	if s.deps.Planner == nil {
		unavailable(c, "generation")
		return
	}
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ClientID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "clientId is required"})
		return
	}

	report, err := s.deps.Planner.RunClient(c.Request.Context(), req.ClientID, manualHorizonDays)
	if err != nil {
		s.fail(c, err)
		return
	}
	posts := make([]domain.PipelineItem, 0, len(report.Created))
	for _, outcome := range report.Created {
		posts = append(posts, outcome.Item)
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"scheduled": report.Scheduled,
		"needed":    report.Needed,
		"created":   report.CreatedCount(),
		"failed":    report.Failed,
		"posts":     posts,
	})
}

func (s *Server) getKillSwitch(c *gin.Context) {
	if s.deps.Flags == nil {
		unavailable(c, "kill switch")
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": s.deps.Flags.KillSwitchEnabled()})
}

func (s *Server) setKillSwitch(c *gin.Context) {
	if s.deps.Flags == nil {
		unavailable(c, "kill switch")
		return
	}
	var req killSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "enabled must be a boolean"})
		return
	}
	if err := s.deps.Flags.SetKillSwitch(c.Request.Context(), *req.Enabled); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "enabled": *req.Enabled})
}

func (s *Server) listSettings(c *gin.Context) {
	if s.deps.Settings == nil {
		unavailable(c, "settings")
		return
	}
	items, err := s.deps.Settings.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": items})
}

func (s *Server) updateSetting(c *gin.Context) {
	if s.deps.Settings == nil {
		unavailable(c, "settings")
		return
	}
	var req settingRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Key) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "key is required"})
		return
	}
	if err := s.deps.Settings.Set(c.Request.Context(), req.Key, req.Value); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "key": req.Key})
}

func (s *Server) revalidate(c *gin.Context) {
	if s.deps.Editor == nil {
		unavailable(c, "validation")
		return
	}
	outcome, err := s.deps.Editor.Revalidate(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, outcomeBody(outcome))
}

// regenerate binds a route to a fixed mode, or reads ?mode= when fixed is empty.
func (s *Server) regenerate(fixed usecase.RegenerateMode) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.deps.Editor == nil {
			unavailable(c, "regeneration")
			return
		}
		mode := fixed
		if mode == "" {
			parsed, err := usecase.ParseMode(c.Query("mode"))
			if err != nil {
				s.fail(c, err)
				return
			}
			mode = parsed
		}
		outcome, err := s.deps.Editor.Regenerate(c.Request.Context(), c.Param("id"), mode)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, outcomeBody(outcome))
	}
}

func (s *Server) publish(c *gin.Context) {
	if s.deps.Publisher == nil {
		unavailable(c, "publishing")
		return
	}
	res, err := s.deps.Publisher.Publish(c.Request.Context(), c.Param("id"))
	if errors.Is(err, usecase.ErrPublishFailed) {
		c.JSON(http.StatusOK, gin.H{"success": false, "post": res.Item, "post_refs": res.Refs, "errors": res.Errors})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "post": res.Item, "post_refs": res.Refs})
}

func outcomeBody(o usecase.Outcome) gin.H {
	issues := o.Item.ValidationIssues
	if issues == nil {
		issues = o.Result.IssueMessages()
	}
	return gin.H{
		"success": true,
		"post":    o.Item,
		"validation": validationView{
			Approved: o.Result.Approved,
			Status:   o.Item.ValidationStatus,
			Score:    o.Result.Details.OverallScore,
			Issues:   issues,
		},
		"attempts": o.Attempts,
		"warnings": o.Warnings,
	}
}

// fail maps use case errors onto HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"success": false, "error": err.Error()}

	var rejected *usecase.RejectedError
	if errors.As(err, &rejected) {
		body["validation_status"] = rejected.Status
		body["score"] = rejected.Score
		body["issues"] = rejected.Issues
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, usecase.ErrKillSwitch):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrNotApproved),
		errors.Is(err, usecase.ErrInvalidMode),
		errors.Is(err, usecase.ErrNoAccounts),
		errors.Is(err, settings.ErrInvalidSetting):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrInvalidTransition),
		errors.Is(err, pipeline.ErrRetriesExhausted),
		errors.Is(err, usecase.ErrAlreadyPublished),
		errors.Is(err, lock.ErrBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
