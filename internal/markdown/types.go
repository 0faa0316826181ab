package markdown

// StyleType is the kind of emphasis applied to a run of description text.
type StyleType int

const (
	StyleNormal StyleType = iota
	StyleBold
	StyleItalic
	StyleCode
	StyleLink
	StyleHeader
	StyleQuote
)

// StyleRange marks Text[Start:End], in runes, with a style.
type StyleRange struct {
	Start int
	End   int
	Type  StyleType
}

// Result is converted text plus the styled regions within it.
type Result struct {
	Text   string
	Styles []StyleRange
}
