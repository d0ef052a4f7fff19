package controllers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rchan/rchan-web/apiclient"
	"github.com/rchan/rchan-web/middleware"
	"github.com/rchan/rchan-web/services"
	"github.com/rchan/rchan-web/session"
)

const (
	msgPostNotFound = "Post no encontrado"
	msgLoadPosts    = "Error al cargar los posts"
	msgUploadFailed = "No se pudo leer el archivo adjunto"
)

// PostController serves the public pages: the feed, threads, submissions and attachments.
type PostController struct {
	env *Env
}

// NewPostController creates a new PostController instance.
func NewPostController(env *Env) *PostController {
	return &PostController{env: env}
}

type postFormView struct {
	Title   string
	Content string
	Section string
}

type repostFormView struct {
	Content string
}

func (p *PostController) feed(ctx *gin.Context) *services.Feed {
	return services.NewFeed(p.env.api(ctx), p.env.Cache, p.env.sectionTTL())
}

// Home lists threads, optionally restricted with ?section=.
func (p *PostController) Home(ctx *gin.Context) {
	p.renderHome(ctx, http.StatusOK, postFormView{Section: ctx.Query("section")}, nil)
}

func (p *PostController) renderHome(ctx *gin.Context, status int, form postFormView, errs services.FieldErrors) {
	home, err := p.feed(ctx).Home(ctx, pageParam(ctx), ctx.Query("section"))
	loadError := ""
	if err != nil {
		report(ctx, err)
		loadError = msgLoadPosts
	}
	if errs == nil {
		errs = services.FieldErrors{}
	}
	p.env.render(ctx, status, "home.html", gin.H{
		"Title":     "Inicio",
		"Nonce":     p.env.issueNonce(ctx),
		"Form":      form,
		"Errors":    errs,
		"Choices":   services.SectionChoices(),
		"Home":      home,
		"LoadError": loadError,
	})
}

// CreatePost submits a new thread.
func (p *PostController) CreatePost(ctx *gin.Context) {
	form := postFormView{
		Title:   ctx.PostForm("title"),
		Content: ctx.PostForm("content"),
		Section: ctx.PostForm("sectionType"),
	}
	if !p.env.nonceOK(ctx) {
		flash(ctx, session.FlashWarning, msgDuplicateSubmit)
		middleware.Redirect(ctx, "/")
		return
	}
	file, closeFile, err := formFile(ctx)
	defer closeFile()
	if err != nil {
		flash(ctx, session.FlashError, msgUploadFailed)
		p.renderHome(ctx, http.StatusBadRequest, form, nil)
		return
	}

	res, err := services.NewSubmitter(p.env.api(ctx)).SubmitPost(ctx, services.PostForm{
		Title:   form.Title,
		Content: form.Content,
		Section: form.Section,
		File:    file,
	})
	if errs, ok := validationErrors(err); ok {
		p.renderHome(ctx, http.StatusUnprocessableEntity, form, errs)
		return
	}
	if !res.Outcome.Succeeded() {
		report(ctx, res.Err)
		flash(ctx, session.FlashError, res.Message)
		// the form clears on failure too so a reload does not resubmit it
		p.renderHome(ctx, http.StatusOK, postFormView{Section: form.Section}, nil)
		return
	}
	flash(ctx, session.FlashSuccess, res.Message)
	target := "/"
	if form.Section != "" {
		target = "/?section=" + url.QueryEscape(strings.ToUpper(form.Section))
	}
	middleware.Redirect(ctx, target)
}

// Thread shows a post with its replies.
func (p *PostController) Thread(ctx *gin.Context) {
	p.renderThread(ctx, http.StatusOK, repostFormView{}, nil)
}

func (p *PostController) renderThread(ctx *gin.Context, status int, form repostFormView, errs services.FieldErrors) {
	thread, err := p.feed(ctx).Thread(ctx, ctx.Param("id"))
	loadError := ""
	if err != nil {
		code := apiclient.StatusOf(err)
		if code == http.StatusNotFound || code == http.StatusBadRequest {
			p.env.renderError(ctx, http.StatusNotFound, msgPostNotFound)
			return
		}
		report(ctx, err)
		loadError = err.Error()
	}
	if errs == nil {
		errs = services.FieldErrors{}
	}
	title := msgPostNotFound
	if thread.Post != nil {
		title = thread.Post.Title
	}
	p.env.render(ctx, status, "thread.html", gin.H{
		"Title":     title,
		"Thread":    thread,
		"Nonce":     p.env.issueNonce(ctx),
		"Form":      form,
		"Errors":    errs,
		"LoadError": loadError,
	})
}

// CreateRepost submits a reply to the thread in the path.
func (p *PostController) CreateRepost(ctx *gin.Context) {
	postID := ctx.Param("id")
	back := "/thread/" + url.PathEscape(postID)
	form := repostFormView{Content: ctx.PostForm("content")}
	if !p.env.nonceOK(ctx) {
		flash(ctx, session.FlashWarning, msgDuplicateSubmit)
		middleware.Redirect(ctx, back)
		return
	}
	file, closeFile, err := formFile(ctx)
	defer closeFile()
	if err != nil {
		flash(ctx, session.FlashError, msgUploadFailed)
		p.renderThread(ctx, http.StatusBadRequest, form, nil)
		return
	}

	res, err := services.NewSubmitter(p.env.api(ctx)).SubmitRepost(ctx, services.RepostForm{
		PostID:  postID,
		Content: form.Content,
		File:    file,
	})
	if errs, ok := validationErrors(err); ok {
		p.renderThread(ctx, http.StatusUnprocessableEntity, form, errs)
		return
	}
	if !res.Outcome.Succeeded() {
		report(ctx, res.Err)
		flash(ctx, session.FlashError, res.Message)
		p.renderThread(ctx, http.StatusOK, repostFormView{}, nil)
		return
	}
	flash(ctx, session.FlashSuccess, res.Message)
	middleware.Redirect(ctx, back)
}

// ViewFile streams an attachment from the backend.
func (p *PostController) ViewFile(ctx *gin.Context) {
	name := strings.TrimSpace(ctx.Query("fileName"))
	if name == "" {
		ctx.AbortWithStatus(http.StatusBadRequest)
		return
	}
	f, err := p.env.api(ctx).OpenFile(ctx, name)
	if err != nil {
		status := apiclient.StatusOf(err)
		if status == 0 {
			status = http.StatusBadGateway
		}
		if status >= 500 || status == http.StatusBadGateway {
			report(ctx, err)
		}
		ctx.AbortWithStatus(status)
		return
	}
	defer f.Close()
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	ctx.DataFromReader(http.StatusOK, f.ContentLength, ct, f.Body, map[string]string{
		"Cache-Control": "private, max-age=3600",
	})
}
