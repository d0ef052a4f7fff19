package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rchan/rchan-web/apiclient"
	"github.com/rchan/rchan-web/models"
)

func TestFormatLogDetails(t *testing.T) {
	cases := []struct {
		name string
		in   models.LogDetails
		want string
	}{
		{"empty", nil, "Sin detalles"},
		{"diff", models.LogDetails{
			"old": map[string]any{"title": "a", "status": "PENDING", "content": "same"},
			"new": map[string]any{"title": "b", "status": "APPROVED", "content": "same"},
		}, "status: PENDING → APPROVED, title: a → b"},
		{"blank old value", models.LogDetails{
			"old": map[string]any{"reason": ""},
			"new": map[string]any{"reason": "spam"},
		}, "reason: null → spam"},
		{"no changes", models.LogDetails{
			"old": map[string]any{"title": "a"},
			"new": map[string]any{"title": "a"},
		}, "Sin cambios detectados"},
		{"summary keeps two", models.LogDetails{"title": "t", "content": "c", "email": "e"}, "content: c, title: t"},
		{"unknown keys", models.LogDetails{"ip": "1.2.3.4"}, "Detalles técnicos"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatLogDetails(tc.in))
		})
	}
}

func TestDetailRowsSorted(t *testing.T) {
	rows := DetailRows(models.LogDetails{"b": 2.0, "a": "x"})
	assert.Equal(t, [][2]string{{"a", "x"}, {"b", "2"}}, rows)
}

func TestLogsFilter(t *testing.T) {
	api := newFakeAPI()
	audit := NewAudit(api)

	p, act, err := audit.Logs(context.Background(), "post_deleted", 0)
	require.NoError(t, err)
	assert.Equal(t, models.ActionPostDeleted, act)
	assert.Equal(t, models.ActionPostDeleted, p.Content[0].Action)

	_, act, err = audit.Logs(context.Background(), "BOGUS", -3)
	require.NoError(t, err)
	assert.Empty(t, act)
	assert.Equal(t, 1, api.Calls("ListLogs"))
	assert.Equal(t, 1, api.Calls("ListLogsByAction"))
}

func TestDashboardByRole(t *testing.T) {
	api := newFakeAPI()
	audit := NewAudit(api)

	d, err := audit.Dashboard(context.Background(), models.RoleModerator)
	require.NoError(t, err)
	require.NotNil(t, d.AdminStats)
	assert.Equal(t, "u1", d.AdminStats.AdminID)
	assert.Nil(t, d.GlobalStats)
	assert.Zero(t, api.Calls("GlobalStats"))

	d, err = audit.Dashboard(context.Background(), models.RoleAdmin)
	require.NoError(t, err)
	assert.NotNil(t, d.GlobalStats)
	assert.NotNil(t, d.UserStats)
}

func TestDashboardStatsFailures(t *testing.T) {
	api := newFakeAPI()
	audit := NewAudit(api)

	api.listErr = &apiclient.APIError{Status: 500}
	d, err := audit.Dashboard(context.Background(), models.RoleAdmin)
	require.NoError(t, err, "stats failures render as empty cards")
	assert.Nil(t, d.GlobalStats)

	api.listErr = &apiclient.SessionExpiredError{}
	_, err = audit.Dashboard(context.Background(), models.RoleAdmin)
	assert.True(t, apiclient.IsSessionExpired(err))
}
