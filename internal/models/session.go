package models

// Session is the live binding between a connection and a character identity.
// It is a snapshot of the profile taken at join or update time; later profile
// edits do not change it retroactively.
type Session struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Avatar        string `json:"avatar"`
	Description   string `json:"description"`
	Sheet         string `json:"sheet,omitempty"`
	IsStoryteller bool   `json:"isStoryteller"`
}
