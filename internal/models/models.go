package models

import "fmt"

// FollowURLTemplate builds the page a board session displays.
const FollowURLTemplate = "%s/boards/%s/follow"

// Board is a single physical board followed in its own browser tab.
type Board struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// FollowURL returns the follow page of the board on the given base URL.
func (b Board) FollowURL(baseURL string) string {
	return fmt.Sprintf(FollowURLTemplate, baseURL, b.ID)
}

// ViewMode is the board view toggled through the page's mode buttons.
type ViewMode string

const (
	ViewModeNone     ViewMode = ""
	ViewModeSegments ViewMode = "Segments mode"
	ViewModeCoords   ViewMode = "Coords mode"
	ViewModeLive     ViewMode = "Live mode"
)

// Valid reports whether the mode is one the page knows about.
func (m ViewMode) Valid() bool {
	switch m {
	case ViewModeNone, ViewModeSegments, ViewModeCoords, ViewModeLive:
		return true
	}
	return false
}

// BoardStatus is the public snapshot of one board session.
type BoardStatus struct {
	Board   Board               `json:"board"`
	URL     string              `json:"url"`
	State   ConnectivityState   `json:"state"`
	Latest  *ConnectivityStatus `json:"latest,omitempty"`
	Overlay string              `json:"overlay,omitempty"`
}
