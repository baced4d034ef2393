package models

import "time"

// ColumnSettings toggle column-level behavior.
type ColumnSettings struct {
	// IsDoneColumn marks tasks moved into the column as done.
	IsDoneColumn bool `json:"is_done_column"`
	Collapsed    bool `json:"collapsed"`
}

// DefaultColumnSettings returns the settings of a freshly created column.
func DefaultColumnSettings() ColumnSettings {
	return ColumnSettings{}
}

// Column is an ordered list of tasks inside a board.
type Column struct {
	ID        string         `json:"id"`
	BoardID   string         `json:"board_id"`
	Name      string         `json:"name"`
	Position  int            `json:"position"`
	Color     string         `json:"color"`
	WIPLimit  *int           `json:"wip_limit,omitempty"`
	Settings  ColumnSettings `json:"settings"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// DefaultColumnTemplate describes a column created with a new board.
type DefaultColumnTemplate struct {
	Name     string
	Color    string
	Settings ColumnSettings
}

// DefaultColumns are created when a board is requested with default columns.
func DefaultColumns() []DefaultColumnTemplate {
	return []DefaultColumnTemplate{
		{Name: "To Do", Color: "#64748b"},
		{Name: "In Progress", Color: "#2563eb"},
		{Name: "Done", Color: "#059669", Settings: ColumnSettings{IsDoneColumn: true}},
	}
}
