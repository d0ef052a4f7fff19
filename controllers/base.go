package controllers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rchan/rchan-web/apiclient"
	"github.com/rchan/rchan-web/config"
	"github.com/rchan/rchan-web/middleware"
	"github.com/rchan/rchan-web/services"
	"github.com/rchan/rchan-web/session"
	"github.com/rchan/rchan-web/utils"
)

var (
	_ services.FeedAPI       = (*apiclient.Client)(nil)
	_ services.ContentAPI    = (*apiclient.Client)(nil)
	_ services.ModerationAPI = (*apiclient.Client)(nil)
	_ services.AccountsAPI   = (*apiclient.Client)(nil)
	_ services.AuditAPI      = (*apiclient.Client)(nil)
	_ services.ResetAPI      = (*apiclient.Client)(nil)
)

// Env carries the dependencies shared by every controller.
type Env struct {
	Config  config.AppConfig
	Signer  *utils.Signer
	States  *utils.StateTokens
	Cache   *utils.Cache
	Nonces  *utils.FormNonces
	Captcha *utils.Captcha
	Guard   *utils.LoginGuard
	Boards  *services.Boards
	// Transport overrides the backend round tripper. Nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// api returns a backend client for this request, authenticated when the visitor is signed in.
func (e *Env) api(ctx *gin.Context) *apiclient.Client {
	base := apiclient.ResolveBaseURL(e.Config.APIBaseURL, ctx.Request.Host, e.Config.APIPort)
	var opts []apiclient.Option
	if e.Transport != nil {
		opts = append(opts, apiclient.WithTransport(e.Transport))
	}
	client := apiclient.New(base, time.Duration(e.Config.APITimeoutSec)*time.Second, opts...)
	return client.WithToken(middleware.CurrentSession(ctx).Token)
}

// render commits the session and writes page with the data every layout needs.
func (e *Env) render(ctx *gin.Context, status int, page string, data gin.H) {
	s := middleware.CurrentSession(ctx)
	if data == nil {
		data = gin.H{}
	}
	if _, ok := data["Errors"]; !ok {
		data["Errors"] = services.FieldErrors{}
	}
	data["User"] = s.User
	data["IsAdmin"] = s.IsAdmin()
	data["Flashes"] = s.PopFlashes()
	data["CSRF"] = middleware.CSRFToken(ctx, e.Signer)
	data["DarkMode"] = s.DarkMode
	data["Path"] = ctx.Request.URL.Path
	middleware.Commit(ctx)
	ctx.HTML(status, page, data)
}

// renderError shows the error page.
func (e *Env) renderError(ctx *gin.Context, status int, message string) {
	e.render(ctx, status, "error.html", gin.H{"Title": "Error", "Status": status, "Message": message})
}

func flash(ctx *gin.Context, kind session.FlashKind, message string) {
	middleware.CurrentSession(ctx).AddFlash(kind, message)
}

// fail handles a backend error in an HTML flow. Expired tokens log the visitor out; anything
// else is flashed on target.
func (e *Env) fail(ctx *gin.Context, err error, prefix, target string) {
	if e.expired(ctx, err) {
		return
	}
	report(ctx, err)
	flash(ctx, session.FlashError, prefix+err.Error())
	middleware.Redirect(ctx, target)
}

// failJSON is fail for the JSON endpoints.
func (e *Env) failJSON(ctx *gin.Context, err error) {
	if apiclient.IsSessionExpired(err) {
		middleware.EndSession(ctx)
		middleware.Commit(ctx)
		utils.Error(ctx, http.StatusUnauthorized, 40102, middleware.MsgSessionExpired)
		return
	}
	report(ctx, err)
	status := apiclient.StatusOf(err)
	if status == 0 {
		status = http.StatusBadGateway
	}
	utils.Error(ctx, status, status*100, err.Error())
}

// report logs backend failures and sends the hard ones to Sentry.
func report(ctx *gin.Context, err error) {
	status := apiclient.StatusOf(err)
	var ne *apiclient.NetworkError
	if status >= 500 || errors.As(err, &ne) {
		utils.Logger.Error("backend call failed",
			zap.Error(err),
			zap.Int("status", status),
			zap.String("path", ctx.Request.URL.Path),
			zap.String(utils.RequestIDKey, ctx.GetString(utils.RequestIDKey)),
		)
		utils.CaptureError(ctx, err)
		return
	}
	utils.Logger.Debug("backend rejected request", zap.Error(err), zap.Int("status", status))
}

// validationErrors extracts per-field errors from err.
func validationErrors(err error) (services.FieldErrors, bool) {
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		return ve.Fields, true
	}
	return nil, false
}

// pageParam reads a zero-based page number.
func pageParam(ctx *gin.Context) int {
	page, err := strconv.Atoi(ctx.Query("page"))
	if err != nil || page < 0 {
		return 0
	}
	return page
}

// formFile reads the optional "file" upload. The returned closer is never nil.
func formFile(ctx *gin.Context) (*apiclient.FilePart, func(), error) {
	fh, err := ctx.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}
	if fh.Size == 0 && fh.Filename == "" {
		return nil, func() {}, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, err
	}
	return &apiclient.FilePart{
		Name:        fh.Filename,
		ContentType: contentType(fh),
		Size:        fh.Size,
		Reader:      f,
	}, func() { _ = f.Close() }, nil
}

func contentType(fh *multipart.FileHeader) string {
	ct := fh.Header.Get("Content-Type")
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(strings.ToLower(ct))
}

// nonceOK consumes the single-use token of a submission form.
func (e *Env) nonceOK(ctx *gin.Context) bool {
	if e.Nonces == nil {
		return true
	}
	return e.Nonces.Consume(ctx, ctx.PostForm("nonce"))
}

func (e *Env) issueNonce(ctx *gin.Context) string {
	if e.Nonces == nil {
		return ""
	}
	return e.Nonces.Issue(ctx)
}

const msgDuplicateSubmit = "Este formulario ya fue enviado. Recarga la página para enviar otro."

func (e *Env) sectionTTL() time.Duration {
	return time.Duration(e.Config.SectionCacheTTLSec) * time.Second
}

// expired logs the visitor out when err says the backend token expired.
func (e *Env) expired(ctx *gin.Context, err error) bool {
	if !apiclient.IsSessionExpired(err) {
		return false
	}
	middleware.ExpireSession(ctx)
	return true
}
