package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rchan/rchan-web/middleware"
	"github.com/rchan/rchan-web/models"
	"github.com/rchan/rchan-web/services"
	"github.com/rchan/rchan-web/session"
	"github.com/rchan/rchan-web/utils"
)

const (
	boardPath = "/administrator/all-posts"
	// keepParam asks the board page to show the in-memory lists without refetching them.
	keepParam = "keep"

	msgPostDeleted    = "Publicación eliminada exitosamente"
	msgPostUpdated    = "Publicación actualizada exitosamente"
	msgRepostDeleted  = "Respuesta eliminada exitosamente"
	msgRepostUpdated  = "Respuesta actualizada exitosamente"
	msgStatusChanged  = "Estado de aprobación cambiado a %s"
	msgLoadBoard      = "Error al cargar las publicaciones"
	msgLoadReplies    = "Error al cargar las respuestas"
	prefixDeletePost  = "Error al eliminar la publicación: "
	prefixUpdatePost  = "Error al actualizar la publicación: "
	prefixDeleteReply = "Error al eliminar la respuesta: "
	prefixUpdateReply = "Error al actualizar la respuesta: "
	prefixStatus      = "Error al cambiar el estado: "
)

// ModerationController serves the moderation board of posts and reposts.
type ModerationController struct {
	env *Env
}

// NewModerationController creates a ModerationController.
func NewModerationController(env *Env) *ModerationController {
	return &ModerationController{env: env}
}

func (m *ModerationController) moderation(ctx *gin.Context) *services.Moderation {
	board := m.env.Boards.Get(middleware.CurrentSession(ctx).ID)
	return services.NewModeration(m.env.api(ctx), board)
}

// Board reloads the lists under ?filter= and ?tab= and shows them. ?expand= opens the replies
// of one post.
func (m *ModerationController) Board(ctx *gin.Context) {
	api := m.env.api(ctx)
	board := m.env.Boards.Get(middleware.CurrentSession(ctx).ID)
	filter := models.ParseStatusFilter(ctx.Query("filter"))
	tab := services.ParseTab(ctx.Query("tab"))

	loadError := ""
	view := board.Snapshot()
	keep := ctx.Query(keepParam) != "" && view.Loaded && view.Filter == filter && view.Tab == tab
	if !keep {
		if err := board.Reload(ctx, api, filter, tab); err != nil && !errors.Is(err, services.ErrStaleReload) {
			if m.env.expired(ctx, err) {
				return
			}
			report(ctx, err)
			loadError = msgLoadBoard
		}
	}
	expand := strings.TrimSpace(ctx.Query("expand"))
	if expand != "" && loadError == "" {
		if _, err := board.Replies(ctx, api, expand); err != nil {
			if m.env.expired(ctx, err) {
				return
			}
			report(ctx, err)
			loadError = msgLoadReplies
		}
	}
	m.env.render(ctx, http.StatusOK, "all_posts.html", gin.H{
		"Title":        "Publicaciones",
		"Board":        board.Snapshot(),
		"Tabs":         []services.Tab{services.TabPosts, services.TabReposts},
		"Filters":      models.StatusFilters,
		"Transitions":  models.ApprovalTransitions,
		"Statuses":     models.ApprovalStatuses,
		"FileStatuses": models.FileStatuses,
		"Expand":       expand,
		"LoadError":    loadError,
	})
}

// Replies returns the replies of one post as JSON, cached per board.
func (m *ModerationController) Replies(ctx *gin.Context) {
	board := m.env.Boards.Get(middleware.CurrentSession(ctx).ID)
	replies, err := board.Replies(ctx, m.env.api(ctx), ctx.Param("id"))
	if err != nil {
		m.env.failJSON(ctx, err)
		return
	}
	utils.Success(ctx, replies)
}

// done finishes a mutation: success flashes ok, a failed follow-up reload still counts as
// success, anything else is flashed with prefix. Successful mutations already left the board
// current, so the redirect shows it without another fetch.
func (m *ModerationController) done(ctx *gin.Context, err error, ok, prefix string) {
	if err != nil && !errors.Is(err, services.ErrBoardReload) {
		if _, invalid := validationErrors(err); invalid {
			flash(ctx, session.FlashError, prefix+err.Error())
			middleware.Redirect(ctx, boardBack(ctx, false))
			return
		}
		m.env.fail(ctx, err, prefix, boardBack(ctx, false))
		return
	}
	if err != nil {
		if m.env.expired(ctx, err) {
			return
		}
		utils.Logger.Warn("board reload after mutation failed", zap.Error(err))
	}
	utils.Logger.Info("moderation action",
		zap.String("path", ctx.FullPath()),
		zap.String("id", ctx.Param("id")),
		zap.String("by", actor(ctx)),
	)
	flash(ctx, session.FlashSuccess, ok)
	middleware.Redirect(ctx, boardBack(ctx, err == nil))
}

// PostStatus moves a post to another approval status.
func (m *ModerationController) PostStatus(ctx *gin.Context) {
	to, _ := models.ParseApprovalStatus(ctx.PostForm("approvalStatus"))
	err := m.moderation(ctx).SetPostApproval(ctx, ctx.Param("id"), to)
	m.done(ctx, err, fmt.Sprintf(msgStatusChanged, to.Label()), prefixStatus)
}

// RepostStatus moves a reply to another approval status.
func (m *ModerationController) RepostStatus(ctx *gin.Context) {
	to, _ := models.ParseApprovalStatus(ctx.PostForm("approvalStatus"))
	err := m.moderation(ctx).SetRepostApproval(ctx, ctx.Param("id"), to)
	m.done(ctx, err, fmt.Sprintf(msgStatusChanged, to.Label()), prefixStatus)
}

// DeletePost removes a post with its replies.
func (m *ModerationController) DeletePost(ctx *gin.Context) {
	err := m.moderation(ctx).DeletePost(ctx, ctx.Param("id"))
	m.done(ctx, err, msgPostDeleted, prefixDeletePost)
}

// DeleteRepost removes a reply. The parent post id comes from the form.
func (m *ModerationController) DeleteRepost(ctx *gin.Context) {
	err := m.moderation(ctx).DeleteRepost(ctx, strings.TrimSpace(ctx.PostForm("postId")), ctx.Param("id"))
	m.done(ctx, err, msgRepostDeleted, prefixDeleteReply)
}

// EditPost applies the moderator edit form of a post.
func (m *ModerationController) EditPost(ctx *gin.Context) {
	file, closeFile, err := formFile(ctx)
	defer closeFile()
	if err != nil {
		flash(ctx, session.FlashError, prefixUpdatePost+msgUploadFailed)
		middleware.Redirect(ctx, boardBack(ctx, false))
		return
	}
	_, err = m.moderation(ctx).UpdatePost(ctx, ctx.Param("id"), services.PostEdit{
		Title:          ctx.PostForm("title"),
		Content:        ctx.PostForm("content"),
		FileStatus:     ctx.PostForm("fileStatus"),
		ApprovalStatus: ctx.PostForm("approvalStatus"),
		File:           file,
	})
	m.done(ctx, err, msgPostUpdated, prefixUpdatePost)
}

// EditRepost applies the moderator edit form of a reply.
func (m *ModerationController) EditRepost(ctx *gin.Context) {
	file, closeFile, err := formFile(ctx)
	defer closeFile()
	if err != nil {
		flash(ctx, session.FlashError, prefixUpdateReply+msgUploadFailed)
		middleware.Redirect(ctx, boardBack(ctx, false))
		return
	}
	_, err = m.moderation(ctx).UpdateRepost(ctx, ctx.Param("id"), services.RepostEdit{
		Content:        ctx.PostForm("content"),
		FileStatus:     ctx.PostForm("fileStatus"),
		ApprovalStatus: ctx.PostForm("approvalStatus"),
		File:           file,
	})
	m.done(ctx, err, msgRepostUpdated, prefixUpdateReply)
}

// boardBack returns to the board page the form was posted from, keeping its filter, tab and
// expanded post. keep marks the in-memory board as current.
func boardBack(ctx *gin.Context, keep bool) string {
	target := middleware.Back(ctx)
	if !strings.HasPrefix(target, boardPath) {
		target = boardPath
	}
	u, err := url.Parse(target)
	if err != nil {
		return boardPath
	}
	q := u.Query()
	if keep {
		q.Set(keepParam, "1")
	} else {
		q.Del(keepParam)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
