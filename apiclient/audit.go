package apiclient

import (
	"context"
	"net/http"

	"github.com/rchan/rchan-web/models"
)

const logsPath = "/admin/api/logs"

// Profile returns the account behind the bearer token. Admins and moderators use different paths.
func (c *Client) Profile(ctx context.Context, role models.Role) (*models.AdminUser, error) {
	var out models.AdminUser
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/" + role.APIPrefix() + "/api/profile",
		fallback: "Error al cargar el perfil",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminStats(ctx context.Context, adminID string) (*models.AdminStats, error) {
	if adminID == "" {
		return nil, errEmptyID
	}
	var out models.AdminStats
	if err := c.getJSON(ctx, logsPath+"/stats/admin", idQuery(adminID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GlobalStats(ctx context.Context) (*models.GlobalStats, error) {
	var out models.GlobalStats
	if err := c.getJSON(ctx, logsPath+"/stats/global", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListLogs returns the audit log, newest first.
func (c *Client) ListLogs(ctx context.Context, page, size int) (models.Page[models.ModerationLog], error) {
	var out models.Page[models.ModerationLog]
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     logsPath,
		query:    pageQuery(page, size, "createdAt", "DESC"),
		fallback: "Error al cargar los logs",
	}, &out)
	return out, err
}

// ListLogsByAction returns the audit entries of one action kind.
func (c *Client) ListLogsByAction(ctx context.Context, action models.LogAction, page, size int) (models.Page[models.ModerationLog], error) {
	q := pageQuery(page, size, "", "")
	q.Set("action", string(action))
	var out models.Page[models.ModerationLog]
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     logsPath + "/action",
		query:    q,
		fallback: "Error al cargar los logs",
	}, &out)
	return out, err
}
