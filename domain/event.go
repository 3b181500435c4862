package domain

// Event describes a committed change to a board.
type Event struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Board   string         `json:"board"`
	Actor   string         `json:"actor,omitempty"`
	Session string         `json:"session,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Time    int64          `json:"time"`
}
