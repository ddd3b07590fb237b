package models

import "strings"

// Severity is the repair urgency tier of a failure.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Weight returns the base priority for the severity.
func (s Severity) Weight() int {
	switch s {
	case SeverityHigh:
		return 10
	case SeverityMedium:
		return 5
	default:
		return 1
	}
}

// PropertyStructure is the property name used for topological mismatches.
const PropertyStructure = "structure"

// MissingValue is the actual value recorded when an element or property is absent.
const MissingValue = "<missing>"

// SeverityForProperty classifies a normalized property name. The policy is
// fixed: color, background and font-size are high; spacing and sizing are
// medium; everything else is low.
func SeverityForProperty(prop string) Severity {
	switch {
	case isColorLike(prop), prop == "font-size":
		return SeverityHigh
	case isSpacingOrSizing(prop):
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// IsSalientProperty reports whether the property is visually salient
// (color, background or font).
func IsSalientProperty(prop string) bool {
	return isColorLike(prop) || strings.HasPrefix(prop, "font")
}

func isColorLike(prop string) bool {
	return prop == "color" || strings.HasSuffix(prop, "-color") || strings.HasPrefix(prop, "background")
}

func isSpacingOrSizing(prop string) bool {
	switch {
	case strings.HasPrefix(prop, "padding"), strings.HasPrefix(prop, "margin"):
		return true
	case prop == "gap", prop == "row-gap", prop == "column-gap", prop == "letter-spacing", prop == "word-spacing":
		return true
	case prop == "width", prop == "height",
		prop == "min-width", prop == "max-width",
		prop == "min-height", prop == "max-height":
		return true
	case strings.HasPrefix(prop, "border") && strings.HasSuffix(prop, "-width"):
		return true
	default:
		return false
	}
}

// ValidationFailure is one discrepancy between original and generated pages.
type ValidationFailure struct {
	// Path is the original element path involved.
	Path string `json:"path"`
	// Property is the style property, or "structure".
	Property string   `json:"property"`
	Expected string   `json:"expected"`
	Actual   string   `json:"actual"`
	Severity Severity `json:"severity"`
	// Priority is filled in by ranking and always equals the ranking formula
	// for the spec set the ranking ran against.
	Priority int `json:"priority"`
}

// NewStyleFailure builds a failure for a style property mismatch.
func NewStyleFailure(path, prop, expected, actual string) ValidationFailure {
	return ValidationFailure{
		Path:     path,
		Property: prop,
		Expected: expected,
		Actual:   actual,
		Severity: SeverityForProperty(prop),
	}
}

// NewStructureFailure builds a failure for a topological mismatch.
func NewStructureFailure(path, expected, actual string) ValidationFailure {
	return ValidationFailure{
		Path:     path,
		Property: PropertyStructure,
		Expected: expected,
		Actual:   actual,
		Severity: SeverityForProperty(PropertyStructure),
	}
}
