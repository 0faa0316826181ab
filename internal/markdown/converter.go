package markdown

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	md "github.com/JohannesKaufmann/html-to-markdown"
)

// Converter turns feed descriptions (usually HTML) into terminal text with
// style ranges.
type Converter struct {
	html *md.Converter

	headerPattern     *regexp.Regexp
	listItemPattern   *regexp.Regexp
	blockquotePattern *regexp.Regexp
	inlinePattern     *regexp.Regexp
	blankLines        *regexp.Regexp
	hardBreaks        *regexp.Regexp
	htmlTagPattern    *regexp.Regexp
}

// Inline pattern groups.
const (
	groupEscape = iota + 1
	groupBoldStar
	groupBoldUnderscore
	groupItalicStar
	groupItalicUnderscore
	groupCode
	groupLinkText
	groupLinkURL
)

func NewConverter() *Converter {
	htmlConv := md.NewConverter("", true, nil)
	// <br> is a line break inside a paragraph, not a new paragraph.
	htmlConv.AddRules(md.Rule{
		Filter: []string{"br"},
		Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
			return md.String("  \n")
		},
	})

	return &Converter{
		html: htmlConv,

		headerPattern:     regexp.MustCompile(`^(#{1,6})\s+(.+)$`),
		listItemPattern:   regexp.MustCompile(`^(\s*)([-*+]|\d+\.)\s+(.+)$`),
		blockquotePattern: regexp.MustCompile(`^>\s?(.*)$`),
		inlinePattern: regexp.MustCompile(
			`\\([\\` + "`" + `*_{}\[\]()#+\-.!>|])` +
				`|\*\*(.+?)\*\*` +
				`|__(.+?)__` +
				`|\*([^*\s][^*]*?)\*` +
				`|_([^_\s][^_]*?)_` +
				"|`([^`]+)`" +
				`|\[([^\]]+)\]\(([^)\s]+)\)`),
		blankLines:     regexp.MustCompile(`\n{3,}`),
		hardBreaks:     regexp.MustCompile(` {2,}\n`),
		htmlTagPattern: regexp.MustCompile(`<(/?)([a-zA-Z][^>]*)>`),
	}
}

// ToMarkdown converts an HTML description to markdown. Text without markup
// passes through with entities decoded.
func (c *Converter) ToMarkdown(description string) string {
	if !c.htmlTagPattern.MatchString(description) {
		return strings.TrimSpace(html.UnescapeString(description))
	}
	out, err := c.html.ConvertString(description)
	if err != nil {
		// Fall back to the description with tags stripped.
		return strings.TrimSpace(html.UnescapeString(c.htmlTagPattern.ReplaceAllString(description, "")))
	}
	return strings.TrimSpace(out)
}

// Convert renders a description for the terminal.
func (c *Converter) Convert(description string) Result {
	return c.Render(c.ToMarkdown(description))
}

// PlainText is Convert without the styles.
func (c *Converter) PlainText(description string) string {
	return c.Convert(description).Text
}

// Render converts markdown into display text and style ranges. Style
// positions are rune offsets into Text.
func (c *Converter) Render(markdown string) Result {
	markdown = strings.ReplaceAll(markdown, "\r\n", "\n")
	markdown = c.hardBreaks.ReplaceAllString(markdown, "\n")
	markdown = c.blankLines.ReplaceAllString(markdown, "\n\n")

	w := &styledWriter{}
	lines := strings.Split(markdown, "\n")
	for i, line := range lines {
		c.renderLine(w, line)
		if i < len(lines)-1 {
			w.write("\n")
		}
	}

	return Result{
		Text:   strings.TrimRight(w.b.String(), "\n "),
		Styles: w.styles,
	}
}

func (c *Converter) renderLine(w *styledWriter, line string) {
	if m := c.headerPattern.FindStringSubmatch(line); m != nil {
		start := w.pos
		c.renderInline(w, m[2])
		w.styles = append(w.styles, StyleRange{Start: start, End: w.pos, Type: StyleHeader})
		return
	}

	if m := c.listItemPattern.FindStringSubmatch(line); m != nil {
		// Nesting level from indentation
		level := len(m[1]) / 2
		if level > 2 {
			level = 2
		}
		switch level {
		case 0:
			w.write("• ")
		case 1:
			w.write("  ◦ ")
		default:
			w.write("    ▸ ")
		}
		c.renderInline(w, m[3])
		return
	}

	if m := c.blockquotePattern.FindStringSubmatch(line); m != nil {
		w.write("│ ")
		start := w.pos
		c.renderInline(w, m[1])
		w.styles = append(w.styles, StyleRange{Start: start, End: w.pos, Type: StyleQuote})
		return
	}

	c.renderInline(w, line)
}

func (c *Converter) renderInline(w *styledWriter, text string) {
	matches := c.inlinePattern.FindAllStringSubmatchIndex(text, -1)
	last := 0
	for _, m := range matches {
		w.write(text[last:m[0]])
		last = m[1]

		group := func(n int) (string, bool) {
			if m[2*n] < 0 {
				return "", false
			}
			return text[m[2*n]:m[2*n+1]], true
		}

		if s, ok := group(groupEscape); ok {
			w.write(s)
			continue
		}
		if s, ok := group(groupBoldStar); ok {
			w.styled(s, StyleBold)
			continue
		}
		if s, ok := group(groupBoldUnderscore); ok {
			w.styled(s, StyleBold)
			continue
		}
		if s, ok := group(groupItalicStar); ok {
			w.styled(s, StyleItalic)
			continue
		}
		if s, ok := group(groupItalicUnderscore); ok {
			w.styled(s, StyleItalic)
			continue
		}
		if s, ok := group(groupCode); ok {
			w.styled(s, StyleCode)
			continue
		}
		if s, ok := group(groupLinkText); ok {
			url, _ := group(groupLinkURL)
			if s == url {
				w.styled(url, StyleLink)
			} else {
				w.styled(s+" ("+url+")", StyleLink)
			}
			continue
		}
	}
	w.write(text[last:])
}

type styledWriter struct {
	b      strings.Builder
	pos    int
	styles []StyleRange
}

func (w *styledWriter) write(s string) {
	w.b.WriteString(s)
	w.pos += utf8.RuneCountInString(s)
}

func (w *styledWriter) styled(s string, style StyleType) {
	start := w.pos
	w.write(s)
	w.styles = append(w.styles, StyleRange{Start: start, End: w.pos, Type: style})
}
