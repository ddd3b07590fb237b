package models

// TokenCategory names a group of design tokens.
type TokenCategory string

const (
	TokenColor      TokenCategory = "color"
	TokenSpacing    TokenCategory = "spacing"
	TokenTypography TokenCategory = "typography"
)

// DesignTokens holds the shared visual constants of the original page.
// Built once from the original fingerprint and held immutable for a run.
type DesignTokens struct {
	Color      map[string]string `json:"color" yaml:"color"`
	Spacing    map[string]string `json:"spacing" yaml:"spacing"`
	Typography map[string]string `json:"typography" yaml:"typography"`
}

// NewDesignTokens returns tokens with empty, non-nil categories.
func NewDesignTokens() DesignTokens {
	return DesignTokens{
		Color:      map[string]string{},
		Spacing:    map[string]string{},
		Typography: map[string]string{},
	}
}

// Category returns the name → value mapping for a category.
func (t DesignTokens) Category(c TokenCategory) map[string]string {
	switch c {
	case TokenColor:
		return t.Color
	case TokenSpacing:
		return t.Spacing
	case TokenTypography:
		return t.Typography
	default:
		return nil
	}
}

// Count returns the total number of tokens across categories.
func (t DesignTokens) Count() int {
	return len(t.Color) + len(t.Spacing) + len(t.Typography)
}
