package models

import "regexp"

// RuleKind is the matching strategy of a compiled rule
type RuleKind int

const (
	RuleKindDomain   RuleKind = iota // ||host^
	RuleKindPrefix                   // |https://prefix
	RuleKindWildcard                 // contains * or ^
	RuleKindContains                 // plain substring
)

func (k RuleKind) String() string {
	switch k {
	case RuleKindDomain:
		return "domain"
	case RuleKindPrefix:
		return "prefix"
	case RuleKindWildcard:
		return "wildcard"
	case RuleKindContains:
		return "contains"
	}
	return "unknown"
}

// FilterRule is one compiled matcher. Expr is set only for RuleKindWildcard.
type FilterRule struct {
	Kind    RuleKind
	Pattern string
	Expr    *regexp.Regexp
}

// Resource type labels reported by the rendering engine
const (
	ResourceDocument   = "document"
	ResourceImage      = "image"
	ResourceStyleSheet = "stylesheet"
	ResourceScript     = "script"
	ResourceFont       = "font"
	ResourceMedia      = "media"
	ResourceXHR        = "xhr"
	ResourceFetch      = "fetch"
	ResourceOther      = "other"
)
