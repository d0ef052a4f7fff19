package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ApprovalStatus is the moderation state of a post or repost.
type ApprovalStatus string

const (
	ApprovalUnknown      ApprovalStatus = ""
	ApprovalPending      ApprovalStatus = "PENDING"
	ApprovalApproved     ApprovalStatus = "APPROVED"
	ApprovalAutoApproved ApprovalStatus = "AUTO_APPROVED"
	ApprovalRejected     ApprovalStatus = "REJECTED"
)

// ApprovalStatuses lists every known status in display order.
var ApprovalStatuses = []ApprovalStatus{ApprovalPending, ApprovalApproved, ApprovalAutoApproved, ApprovalRejected}

// ApprovalTransitions are the statuses a moderator can pick in the approval control.
// AUTO_APPROVED is only ever set by the backend or through a full edit.
var ApprovalTransitions = []ApprovalStatus{ApprovalPending, ApprovalApproved, ApprovalRejected}

// ParseApprovalStatus parses s case-insensitively.
func ParseApprovalStatus(s string) (ApprovalStatus, error) {
	st := ApprovalStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return ApprovalUnknown, fmt.Errorf("unknown approval status %q", s)
	}
	return st, nil
}

// Valid reports whether s is one of the known statuses.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalAutoApproved, ApprovalRejected:
		return true
	case ApprovalUnknown:
		return false
	}
	return false
}

// Published reports whether content in this state is publicly visible.
func (s ApprovalStatus) Published() bool {
	switch s {
	case ApprovalApproved, ApprovalAutoApproved:
		return true
	case ApprovalPending, ApprovalRejected, ApprovalUnknown:
		return false
	}
	return false
}

// Label is the human readable name shown in moderation views.
func (s ApprovalStatus) Label() string {
	switch s {
	case ApprovalPending:
		return "Pendiente"
	case ApprovalApproved:
		return "Aprobado"
	case ApprovalAutoApproved:
		return "Auto-aprobado"
	case ApprovalRejected:
		return "Rechazado"
	case ApprovalUnknown:
		return "Desconocido"
	}
	return "Desconocido"
}

// UnmarshalJSON keeps unknown wire values as ApprovalUnknown instead of failing the whole payload.
func (s *ApprovalStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		*s = ApprovalUnknown
		return nil
	}
	st, err := ParseApprovalStatus(raw)
	if err != nil {
		*s = ApprovalUnknown
		return nil
	}
	*s = st
	return nil
}

// StatusFilter selects which approval states a moderation list shows.
type StatusFilter string

const (
	FilterAll          StatusFilter = "ALL"
	FilterPending      StatusFilter = "PENDING"
	FilterApproved     StatusFilter = "APPROVED"
	FilterAutoApproved StatusFilter = "AUTO_APPROVED"
	FilterRejected     StatusFilter = "REJECTED"
)

// StatusFilters lists the filters in tab order.
var StatusFilters = []StatusFilter{FilterAll, FilterPending, FilterApproved, FilterAutoApproved, FilterRejected}

// ParseStatusFilter returns FilterAll for empty or unknown input.
func ParseStatusFilter(s string) StatusFilter {
	f := StatusFilter(strings.ToUpper(strings.TrimSpace(s)))
	switch f {
	case FilterAll, FilterPending, FilterApproved, FilterAutoApproved, FilterRejected:
		return f
	}
	return FilterAll
}

// Matches reports whether an item with status st belongs under the filter.
// APPROVED also includes AUTO_APPROVED.
func (f StatusFilter) Matches(st ApprovalStatus) bool {
	switch f {
	case FilterAll:
		return true
	case FilterPending:
		return st == ApprovalPending
	case FilterApproved:
		return st == ApprovalApproved || st == ApprovalAutoApproved
	case FilterAutoApproved:
		return st == ApprovalAutoApproved
	case FilterRejected:
		return st == ApprovalRejected
	}
	return false
}

// Label is the tab title for the filter.
func (f StatusFilter) Label() string {
	switch f {
	case FilterAll:
		return "Todos"
	case FilterPending:
		return "Pendientes"
	case FilterApproved:
		return "Aprobados"
	case FilterAutoApproved:
		return "Auto-aprobados"
	case FilterRejected:
		return "Rechazados"
	}
	return string(f)
}

// FileStatus controls whether an attachment is shown.
type FileStatus string

const (
	FileUnknown FileStatus = ""
	FileVisible FileStatus = "VISIBLE"
	FileHidden  FileStatus = "HIDDEN"
)

// FileStatuses lists the known file states.
var FileStatuses = []FileStatus{FileVisible, FileHidden}

func ParseFileStatus(s string) (FileStatus, error) {
	fs := FileStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch fs {
	case FileVisible, FileHidden:
		return fs, nil
	}
	return FileUnknown, fmt.Errorf("unknown file status %q", s)
}

func (s FileStatus) Label() string {
	switch s {
	case FileVisible:
		return "Visible"
	case FileHidden:
		return "Oculto"
	case FileUnknown:
		return "Desconocido"
	}
	return "Desconocido"
}

func (s *FileStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		*s = FileUnknown
		return nil
	}
	fs, err := ParseFileStatus(raw)
	if err != nil {
		*s = FileUnknown
		return nil
	}
	*s = fs
	return nil
}

// Role is an administrative role.
type Role string

const (
	RoleUnknown   Role = ""
	RoleAdmin     Role = "ADMIN"
	RoleModerator Role = "MODERATOR"
)

// ParseRole accepts ADMIN, ADMINISTRATOR and MODERATOR in any case.
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ADMIN", "ADMINISTRATOR":
		return RoleAdmin, nil
	case "MODERATOR":
		return RoleModerator, nil
	}
	return RoleUnknown, fmt.Errorf("unknown role %q", s)
}

func (r Role) IsAdmin() bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleModerator, RoleUnknown:
		return false
	}
	return false
}

// Toggle swaps ADMIN and MODERATOR.
func (r Role) Toggle() Role {
	switch r {
	case RoleAdmin:
		return RoleModerator
	case RoleModerator:
		return RoleAdmin
	case RoleUnknown:
		return RoleModerator
	}
	return RoleModerator
}

// APIPrefix is the path segment the backend uses for role scoped endpoints.
func (r Role) APIPrefix() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleModerator, RoleUnknown:
		return "moderator"
	}
	return "moderator"
}

func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "Administrador"
	case RoleModerator:
		return "Moderador"
	case RoleUnknown:
		return "Desconocido"
	}
	return "Desconocido"
}

func (r *Role) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		*r = RoleUnknown
		return nil
	}
	role, err := ParseRole(raw)
	if err != nil {
		*r = RoleUnknown
		return nil
	}
	*r = role
	return nil
}

// LogAction is the kind of a moderation log entry.
type LogAction string

const (
	ActionPostCreated   LogAction = "POST_CREATED"
	ActionPostUpdated   LogAction = "POST_UPDATED"
	ActionPostDeleted   LogAction = "POST_DELETED"
	ActionPostApproved  LogAction = "POST_APPROVED"
	ActionPostRejected  LogAction = "POST_REJECTED"
	ActionRepostCreated LogAction = "REPOST_CREATED"
	ActionRepostDeleted LogAction = "REPOST_DELETED"
	ActionUserCreated   LogAction = "USER_CREATED"
	ActionUserDeleted   LogAction = "USER_DELETED"
)

// LogActions lists the actions offered by the audit log filter.
var LogActions = []LogAction{
	ActionPostCreated, ActionPostUpdated, ActionPostDeleted, ActionPostApproved, ActionPostRejected,
	ActionRepostCreated, ActionRepostDeleted, ActionUserCreated, ActionUserDeleted,
}

func ParseLogAction(s string) (LogAction, error) {
	a := LogAction(strings.ToUpper(strings.TrimSpace(s)))
	if a.Label() == "" {
		return "", fmt.Errorf("unknown log action %q", s)
	}
	return a, nil
}

func (a LogAction) Label() string {
	switch a {
	case ActionPostCreated:
		return "Post creado"
	case ActionPostUpdated:
		return "Post actualizado"
	case ActionPostDeleted:
		return "Post eliminado"
	case ActionPostApproved:
		return "Post aprobado"
	case ActionPostRejected:
		return "Post rechazado"
	case ActionRepostCreated:
		return "Respuesta creada"
	case ActionRepostDeleted:
		return "Respuesta eliminada"
	case ActionUserCreated:
		return "Usuario creado"
	case ActionUserDeleted:
		return "Usuario eliminado"
	}
	return ""
}

// FilterLabel is the plural form used by the log filter.
func (a LogAction) FilterLabel() string {
	switch a {
	case ActionPostCreated:
		return "Posts creados"
	case ActionPostUpdated:
		return "Posts actualizados"
	case ActionPostDeleted:
		return "Posts eliminados"
	case ActionPostApproved:
		return "Posts aprobados"
	case ActionPostRejected:
		return "Posts rechazados"
	case ActionRepostCreated:
		return "Respuestas creadas"
	case ActionRepostDeleted:
		return "Respuestas eliminadas"
	case ActionUserCreated:
		return "Usuarios creados"
	case ActionUserDeleted:
		return "Usuarios eliminados"
	}
	return "Todas las acciones"
}

// FileType is the attachment type reported by the backend.
type FileType string

const (
	FileTypeNone FileType = ""
	FileTypePNG  FileType = "PNG"
	FileTypeJPG  FileType = "JPG"
	FileTypeJPEG FileType = "JPEG"
	FileTypeMP4  FileType = "MP4"
	FileTypePDF  FileType = "PDF"
)

// MediaKind decides how an attachment is rendered.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaOther MediaKind = "other"
)

// MediaKindOf classifies a file name by its extension.
func MediaKindOf(fileName string) MediaKind {
	i := strings.LastIndex(fileName, ".")
	if i < 0 {
		return MediaOther
	}
	switch strings.ToLower(fileName[i+1:]) {
	case "jpg", "jpeg", "png", "gif", "webp":
		return MediaImage
	case "mp4", "webm", "ogg":
		return MediaVideo
	}
	return MediaOther
}
