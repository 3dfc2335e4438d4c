// Package ui holds the static theme for the terminal frontend: a mapping of
// semantic color names to terminal color values plus the fixed layout widths.
// Pure configuration; rendering lives outside this module.
package ui

// Layout widths (columns).
const (
	PanelWidth   = 100
	SidebarWidth = 32
)

// Semantic color names.
const (
	ColorPrimary   = "primary"
	ColorSecondary = "secondary"
	ColorAccent    = "accent"
	ColorSuccess   = "success"
	ColorWarning   = "warning"
	ColorError     = "error"
	ColorMuted     = "muted"
	ColorText      = "text"
	ColorBorder    = "border"
)

// Colors maps semantic names to terminal color values.
var Colors = map[string]string{
	ColorPrimary:   "#7aa2f7",
	ColorSecondary: "#bb9af7",
	ColorAccent:    "#7dcfff",
	ColorSuccess:   "#9ece6a",
	ColorWarning:   "#e0af68",
	ColorError:     "#f7768e",
	ColorMuted:     "#565f89",
	ColorText:      "#c0caf5",
	ColorBorder:    "#3b4261",
}
