package models

// FilterType represents the type of a parsed filter line
type FilterType int

const (
	FilterTypeComment FilterType = iota
	FilterTypeBlock
	FilterTypeAllow
)

// Filter represents one classified line of a filter list
type Filter struct {
	Type    FilterType
	Raw     string // Original filter line
	Pattern string // Lowercased pattern with @@ and $options stripped
	Options string // Raw option text after $, not interpreted
}
