package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rchan/rchan-web/middleware"
	"github.com/rchan/rchan-web/services"
	"github.com/rchan/rchan-web/utils"
)

// ConfigController serves the theme switch, the health check and the section reference data.
type ConfigController struct {
	env *Env
}

func NewConfigController(env *Env) *ConfigController { return &ConfigController{env: env} }

// Theme stores the dark mode preference and returns to the previous page.
// A missing or invalid "dark" value toggles the current preference.
func (c *ConfigController) Theme(ctx *gin.Context) {
	dark, err := strconv.ParseBool(ctx.PostForm("dark"))
	if err != nil {
		dark = !middleware.DarkMode(ctx)
	}
	middleware.SetDarkMode(ctx, dark)
	if utils.WantsJSON(ctx) {
		utils.Success(ctx, gin.H{"darkMode": dark})
		return
	}
	middleware.Redirect(ctx, middleware.Back(ctx))
}

// Health reports liveness.
func (c *ConfigController) Health(ctx *gin.Context) {
	utils.Success(ctx, gin.H{"status": "ok"})
}

// Sections returns the section list, cached.
func (c *ConfigController) Sections(ctx *gin.Context) {
	sections, err := services.NewFeed(c.env.api(ctx), c.env.Cache, c.env.sectionTTL()).Sections(ctx)
	if err != nil {
		c.env.failJSON(ctx, err)
		return
	}
	utils.Success(ctx, sections)
}

// NotFound renders the 404 page.
func (c *ConfigController) NotFound(ctx *gin.Context) {
	c.env.renderError(ctx, http.StatusNotFound, "Página no encontrada")
}
