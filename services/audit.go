package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rchan/rchan-web/models"
)

// LogsPageSize is the page size of the moderation log.
const LogsPageSize = 20

// summaryKeys are shown, at most two of them, for details without an old/new diff.
var summaryKeys = []string{"content", "title", "username", "email", "reason"}

// FormatLogDetails renders a log entry's details on one line.
func FormatLogDetails(d models.LogDetails) string {
	if len(d) == 0 {
		return "Sin detalles"
	}

	oldVals, okOld := d["old"].(map[string]any)
	newVals, okNew := d["new"].(map[string]any)
	if okOld && okNew {
		keys := make([]string, 0, len(newVals))
		for k := range newVals {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		changes := []string{}
		for _, k := range keys {
			before, after := oldVals[k], newVals[k]
			if fmt.Sprint(before) == fmt.Sprint(after) {
				continue
			}
			changes = append(changes, fmt.Sprintf("%s: %s → %s", k, orNull(before), orNull(after)))
		}
		if len(changes) == 0 {
			return "Sin cambios detectados"
		}
		return strings.Join(changes, ", ")
	}

	parts := []string{}
	for _, k := range summaryKeys {
		if v, ok := d[k]; ok && !blank(v) {
			parts = append(parts, fmt.Sprintf("%s: %v", k, v))
			if len(parts) == 2 {
				break
			}
		}
	}
	if len(parts) == 0 {
		return "Detalles técnicos"
	}
	return strings.Join(parts, ", ")
}

// DetailRows returns every detail as key/value pairs, sorted by key, for the detail view.
func DetailRows(d models.LogDetails) [][2]string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][2]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, [2]string{k, fmt.Sprint(d[k])})
	}
	return rows
}

func blank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	}
	return false
}

func orNull(v any) string {
	if blank(v) {
		return "null"
	}
	return fmt.Sprint(v)
}

// AuditAPI is the slice of the backend used by the dashboard and the log pages.
type AuditAPI interface {
	Profile(ctx context.Context, role models.Role) (*models.AdminUser, error)
	AdminStats(ctx context.Context, adminID string) (*models.AdminStats, error)
	GlobalStats(ctx context.Context) (*models.GlobalStats, error)
	UserStats(ctx context.Context) (*models.UserStats, error)
	ListLogs(ctx context.Context, page, size int) (models.Page[models.ModerationLog], error)
	ListLogsByAction(ctx context.Context, action models.LogAction, page, size int) (models.Page[models.ModerationLog], error)
}

// Audit serves the dashboard and the moderation log.
type Audit struct {
	api AuditAPI
}

// NewAudit returns an Audit over api.
func NewAudit(api AuditAPI) *Audit {
	return &Audit{api: api}
}

// Logs returns one page of the log, filtered by action when it is not empty.
// Unknown actions are treated as no filter.
func (a *Audit) Logs(ctx context.Context, action string, page int) (models.Page[models.ModerationLog], models.LogAction, error) {
	if page < 0 {
		page = 0
	}
	if strings.TrimSpace(action) != "" {
		if act, err := models.ParseLogAction(action); err == nil {
			p, err := a.api.ListLogsByAction(ctx, act, page, LogsPageSize)
			return p, act, err
		}
	}
	p, err := a.api.ListLogs(ctx, page, LogsPageSize)
	return p, "", err
}

// Profile loads the signed-in account.
func (a *Audit) Profile(ctx context.Context, role models.Role) (*models.AdminUser, error) {
	return a.api.Profile(ctx, role)
}

// Dashboard is the landing page data of the administration area.
type Dashboard struct {
	Profile     *models.AdminUser
	AdminStats  *models.AdminStats
	GlobalStats *models.GlobalStats
	UserStats   *models.UserStats
}

// Dashboard loads the profile first, then the stats in parallel. Only a failing profile is
// fatal; missing stats render as empty cards. User and global stats are admin-only.
func (a *Audit) Dashboard(ctx context.Context, role models.Role) (Dashboard, error) {
	profile, err := a.api.Profile(ctx, role)
	if err != nil {
		return Dashboard{}, err
	}
	d := Dashboard{Profile: profile}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := a.api.AdminStats(gctx, profile.ID)
		d.AdminStats = s
		return expiredOnly(err)
	})
	if role.IsAdmin() {
		g.Go(func() error {
			s, err := a.api.GlobalStats(gctx)
			d.GlobalStats = s
			return expiredOnly(err)
		})
		g.Go(func() error {
			s, err := a.api.UserStats(gctx)
			d.UserStats = s
			return expiredOnly(err)
		})
	}
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}
