// Package services holds the workflows behind the pages: content submission, the moderation
// board, password reset, account management and the public feed.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/rchan/rchan-web/apiclient"
	"github.com/rchan/rchan-web/models"
	"github.com/rchan/rchan-web/utils"
)

const (
	MaxTitleLength   = 255
	MaxContentLength = 500
	MaxFileSize      = 15 << 20
)

// AllowedFileTypes is the attachment allow-list, matched on the declared MIME type.
var AllowedFileTypes = []string{"image/png", "image/jpeg", "image/jpg", "video/mp4", "application/pdf"}

const (
	msgTitleRequired   = "El título es obligatorio"
	msgTitleTooLong    = "El título no puede exceder 255 caracteres"
	msgContentTooLong  = "El contenido no puede exceder 500 caracteres"
	msgContentRequired = "El contenido es obligatorio cuando no hay archivo adjunto"
	msgSectionRequired = "Por favor selecciona una sección"
	msgSectionInvalid  = "La sección seleccionada no es válida"
	msgFileType        = "Tipo de archivo no permitido. Formatos: PNG, JPG, JPEG, MP4, PDF"
	msgFileTooLarge    = "El archivo excede el límite de 15MB"
	msgPostMissing     = "No se pudo identificar el post"
)

// PostForm is a new thread as submitted by a visitor.
type PostForm struct {
	Title   string
	Content string
	Section string
	File    *apiclient.FilePart
}

// RepostForm is a reply as submitted by a visitor.
type RepostForm struct {
	PostID  string
	Content string
	File    *apiclient.FilePart
}

func (f *PostForm) normalize() {
	f.Title = utils.Sanitize(f.Title)
	f.Content = utils.Sanitize(f.Content)
	f.Section = strings.TrimSpace(f.Section)
}

func (f *RepostForm) normalize() {
	f.PostID = strings.TrimSpace(f.PostID)
	f.Content = utils.Sanitize(f.Content)
}

// ValidatePost checks f without touching the network.
func ValidatePost(f PostForm) FieldErrors {
	errs := FieldErrors{}
	switch title := strings.TrimSpace(f.Title); {
	case title == "":
		errs.Add("title", msgTitleRequired)
	case utf8.RuneCountInString(title) > MaxTitleLength:
		errs.Add("title", msgTitleTooLong)
	}
	if f.Section == "" {
		errs.Add("sectionType", msgSectionRequired)
	} else if _, err := models.ParseSectionType(f.Section); err != nil {
		errs.Add("sectionType", msgSectionInvalid)
	}
	validateBody(errs, f.Content, f.File)
	return errs
}

// ValidateRepost checks f without touching the network.
func ValidateRepost(f RepostForm) FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(f.PostID) == "" {
		errs.Add("postId", msgPostMissing)
	}
	validateBody(errs, f.Content, f.File)
	return errs
}

// validateBody enforces that a submission carries text, a file, or both.
func validateBody(errs FieldErrors, content string, file *apiclient.FilePart) {
	hasFile := file != nil && file.Reader != nil
	content = strings.TrimSpace(content)
	switch {
	case content == "" && !hasFile:
		errs.Add("content", msgContentRequired)
	case utf8.RuneCountInString(content) > MaxContentLength:
		errs.Add("content", msgContentTooLong)
	}
	if hasFile {
		if msg := ValidateFile(file.ContentType, file.Size); msg != "" {
			errs.Add("file", msg)
		}
	}
}

// ValidateFile returns the user-facing problem with an attachment, or "".
func ValidateFile(contentType string, size int64) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	allowed := false
	for _, t := range AllowedFileTypes {
		if ct == t {
			allowed = true
			break
		}
	}
	if !allowed {
		return msgFileType
	}
	if size > MaxFileSize {
		return msgFileTooLarge
	}
	return ""
}

// Outcome is how a submission attempt ended, from the visitor's point of view.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	// OutcomePublished: the content is visible now.
	OutcomePublished
	// OutcomeQueued: the content waits for a moderator.
	OutcomeQueued
	// OutcomeAccepted: stored, but the backend did not say whether it is visible.
	OutcomeAccepted
	// OutcomeReset: the connection dropped while the backend was still scanning the content.
	// The write most likely went through.
	OutcomeReset
)

// Succeeded reports whether the visitor should see a success alert.
func (o Outcome) Succeeded() bool {
	switch o {
	case OutcomePublished, OutcomeQueued, OutcomeAccepted, OutcomeReset:
		return true
	case OutcomeFailed:
		return false
	}
	return false
}

// ClassifySuccess maps the approval status returned by a successful create call.
func ClassifySuccess(status models.ApprovalStatus) Outcome {
	switch status {
	case models.ApprovalApproved, models.ApprovalAutoApproved:
		return OutcomePublished
	case models.ApprovalPending:
		return OutcomeQueued
	case models.ApprovalRejected, models.ApprovalUnknown:
		return OutcomeAccepted
	}
	return OutcomeAccepted
}

// Error markers the backend uses when content was stored but held for review.
var reviewMarkers = []string{"CONTENT_UNDER_REVIEW", "PENDING_REVIEW", "UNDER_REVIEW"}

// ClassifyFailure decides what a failed create call most likely means. Structured signals
// (error type or code, transport reset) win; message text is only a fallback for backends
// that do not send them.
func ClassifyFailure(err error) Outcome {
	if err == nil {
		return OutcomeAccepted
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return OutcomeFailed
	}

	var ne *apiclient.NetworkError
	if errors.As(err, &ne) && ne.Reset() {
		return OutcomeReset
	}
	var ae *apiclient.APIError
	if errors.As(err, &ae) {
		for _, m := range reviewMarkers {
			if strings.EqualFold(ae.Type, m) || strings.EqualFold(ae.Code, m) {
				return OutcomeQueued
			}
		}
	}

	msg := err.Error()
	if ae != nil && ae.Message != "" {
		msg = ae.Message
	}
	switch {
	case strings.Contains(strings.ToLower(msg), "revisión"):
		return OutcomeQueued
	case strings.Contains(strings.ToLower(msg), "connection reset"):
		return OutcomeReset
	}
	return OutcomeFailed
}

// Kind selects the message wording.
type Kind int

const (
	KindPost Kind = iota
	KindReply
)

// Message returns the alert text for an outcome. err is only used for OutcomeFailed.
func Message(kind Kind, o Outcome, err error) string {
	switch kind {
	case KindPost:
		switch o {
		case OutcomePublished:
			return "¡Post publicado exitosamente!"
		case OutcomeQueued:
			return "Post enviado a revisión. Será visible una vez aprobado por un moderador."
		case OutcomeAccepted:
			return "Post enviado correctamente. Si contiene archivos o palabras sensibles, será revisado antes de publicarse."
		case OutcomeReset:
			return "Post enviado correctamente. Puede tardar un momento en aparecer debido a la revisión de contenido."
		case OutcomeFailed:
			return "Error: " + errorText(err, "Error al crear el post")
		}
	case KindReply:
		switch o {
		case OutcomePublished:
			return "¡Respuesta publicada exitosamente!"
		case OutcomeQueued:
			return "Respuesta enviada a revisión. Será visible una vez aprobado por un moderador."
		case OutcomeAccepted:
			return "Respuesta enviada correctamente. Si contiene archivos, será revisada antes de publicarse."
		case OutcomeReset:
			return "Respuesta enviada correctamente. Puede tardar un momento en aparecer debido a la revisión de contenido."
		case OutcomeFailed:
			return "Error al publicar: " + errorText(err, "Error desconocido")
		}
	}
	return ""
}

func errorText(err error, fallback string) string {
	if err == nil || err.Error() == "" {
		return fallback
	}
	return err.Error()
}

// Result is what the page needs after a submission attempt.
type Result struct {
	Outcome Outcome
	Message string
	Err     error
	Post    *models.Post
	Repost  *models.Repost
}

// ContentAPI is the slice of the backend used by visitors.
type ContentAPI interface {
	CreatePost(ctx context.Context, in apiclient.PostInput, file *apiclient.FilePart) (*models.Post, error)
	CreateRepost(ctx context.Context, in apiclient.RepostInput, file *apiclient.FilePart) (*models.Repost, error)
}

// Submitter validates and sends visitor submissions.
type Submitter struct {
	api ContentAPI
}

// NewSubmitter returns a Submitter over api.
func NewSubmitter(api ContentAPI) *Submitter {
	return &Submitter{api: api}
}

// SubmitPost validates f and creates the post. A *ValidationError means nothing was sent;
// every other case is reported through the Result so the form can be cleared.
func (s *Submitter) SubmitPost(ctx context.Context, f PostForm) (Result, error) {
	f.normalize()
	if errs := ValidatePost(f); !errs.Empty() {
		return Result{}, &ValidationError{Fields: errs}
	}
	section, _ := models.ParseSectionType(f.Section)

	post, err := s.api.CreatePost(ctx, apiclient.PostInput{
		Title:       f.Title,
		Content:     f.Content,
		SectionType: section,
	}, f.File)
	return finish(KindPost, err, func(r *Result) {
		r.Post = post
		if post != nil {
			r.Outcome = ClassifySuccess(post.ApprovalStatus)
		}
	}), nil
}

// SubmitRepost validates f and creates the reply.
func (s *Submitter) SubmitRepost(ctx context.Context, f RepostForm) (Result, error) {
	f.normalize()
	if errs := ValidateRepost(f); !errs.Empty() {
		return Result{}, &ValidationError{Fields: errs}
	}

	repost, err := s.api.CreateRepost(ctx, apiclient.RepostInput{
		Content: f.Content,
		PostID:  f.PostID,
	}, f.File)
	return finish(KindReply, err, func(r *Result) {
		r.Repost = repost
		if repost != nil {
			r.Outcome = ClassifySuccess(repost.ApprovalStatus)
		}
	}), nil
}

func finish(kind Kind, err error, onSuccess func(*Result)) Result {
	r := Result{Err: err}
	if err != nil {
		r.Outcome = ClassifyFailure(err)
	} else {
		// empty success bodies carry no status
		r.Outcome = OutcomeAccepted
		onSuccess(&r)
	}
	r.Message = Message(kind, r.Outcome, err)
	return r
}
