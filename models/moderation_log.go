package models

import (
	"bytes"
	"encoding/json"
)

// ModerationLog is an append-only audit record.
type ModerationLog struct {
	ID            string     `json:"id"`
	Action        LogAction  `json:"action"`
	AdminID       string     `json:"adminId"`
	AdminUsername string     `json:"adminUsername"`
	PostID        string     `json:"postId,omitempty"`
	RepostID      string     `json:"repostId,omitempty"`
	Details       LogDetails `json:"details"`
	CreatedAt     LocalTime  `json:"createdAt"`
}

// AdminStats is the per-admin activity summary.
type AdminStats struct {
	AdminID      string           `json:"adminId,omitempty"`
	TotalActions int64            `json:"totalActions"`
	ByAction     map[string]int64 `json:"actionCounts,omitempty"`
}

// GlobalStats is the site-wide activity summary.
type GlobalStats struct {
	TotalActions int64            `json:"totalActions"`
	TotalPosts   int64            `json:"totalPosts,omitempty"`
	TotalReposts int64            `json:"totalReposts,omitempty"`
	ByAction     map[string]int64 `json:"actionCounts,omitempty"`
}

// LogDetails is the free-form key/value payload of a log entry.
type LogDetails map[string]any

// UnmarshalJSON accepts an object or a string holding a JSON object. Strings that are not
// JSON are kept under "message".
func (d *LogDetails) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*d = nil
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			*d = LogDetails{"message": s}
			return nil
		}
		*d = m
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*d = m
	return nil
}
