package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rchan/rchan-web/middleware"
	"github.com/rchan/rchan-web/models"
	"github.com/rchan/rchan-web/services"
	"github.com/rchan/rchan-web/session"
)

const (
	msgLoadProfile = "Error al cargar el perfil"
	msgLoadLogs    = "Error al cargar los logs de moderación"
)

// StatsController serves the administration dashboard and the moderation log.
type StatsController struct {
	env *Env
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(env *Env) *StatsController {
	return &StatsController{env: env}
}

// Dashboard shows the profile card and the stats the role may see.
func (s *StatsController) Dashboard(ctx *gin.Context) {
	role := middleware.CurrentSession(ctx).Role()
	d, err := services.NewAudit(s.env.api(ctx)).Dashboard(ctx, role)
	if err != nil {
		if s.env.expired(ctx, err) {
			return
		}
		report(ctx, err)
		flash(ctx, session.FlashError, msgLoadProfile)
	}
	s.env.render(ctx, http.StatusOK, "dashboard.html", gin.H{
		"Title":     "Panel de administración",
		"Dashboard": d,
	})
}

// Logs lists the moderation log, optionally filtered with ?action=.
func (s *StatsController) Logs(ctx *gin.Context) {
	page := pageParam(ctx)
	logs, action, err := services.NewAudit(s.env.api(ctx)).Logs(ctx, ctx.Query("action"), page)
	loadError := ""
	if err != nil {
		if s.env.expired(ctx, err) {
			return
		}
		report(ctx, err)
		loadError = msgLoadLogs
	}
	s.env.render(ctx, http.StatusOK, "logs.html", gin.H{
		"Title":     "Logs de moderación",
		"Actions":   models.LogActions,
		"Action":    action,
		"Logs":      logs,
		"Page":      page,
		"HasNext":   logs.HasNext(services.LogsPageSize),
		"LoadError": loadError,
	})
}
