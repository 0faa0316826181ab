package markdown

import (
	"strings"
	"testing"
)

func TestBrTagConversion(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Simple br tag",
			input:    "Line 1<br>Line 2",
			expected: "Line 1\nLine 2",
		},
		{
			name:     "Self-closing br tag with slash",
			input:    "Line 1<br/>Line 2",
			expected: "Line 1\nLine 2",
		},
		{
			name:     "Self-closing br tag with space",
			input:    "Line 1<br />Line 2",
			expected: "Line 1\nLine 2",
		},
	}

	converter := NewConverter()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := converter.PlainText(tt.input); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestBrKeepsParagraphBreaks(t *testing.T) {
	converter := NewConverter()

	got := converter.PlainText("<p>Zeile eins<br>Zeile zwei</p><p>Absatz</p>")
	expected := "Zeile eins\nZeile zwei\n\nAbsatz"
	if got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

func TestRenderHardBreak(t *testing.T) {
	converter := NewConverter()

	got := converter.Render("Line 1  \nLine 2").Text
	if got != "Line 1\nLine 2" {
		t.Errorf("Expected %q, got %q", "Line 1\nLine 2", got)
	}
}

func TestPlainTextPassesThrough(t *testing.T) {
	converter := NewConverter()

	got := converter.PlainText("  Sterne &amp; Planeten  ")
	if got != "Sterne & Planeten" {
		t.Errorf("Expected %q, got %q", "Sterne & Planeten", got)
	}
}

func TestHTMLParagraphsAndStyles(t *testing.T) {
	converter := NewConverter()

	result := converter.Convert("<p>Heute geht es um <strong>Pulsare</strong>.</p><p>Mehr <em>bald</em>.</p>")

	if !strings.Contains(result.Text, "Heute geht es um Pulsare.") {
		t.Errorf("Expected first paragraph without markup, got %q", result.Text)
	}
	if !strings.Contains(result.Text, "\n\nMehr bald.") {
		t.Errorf("Expected paragraph break before second paragraph, got %q", result.Text)
	}

	assertStyle(t, result, StyleBold, "Pulsare")
	assertStyle(t, result, StyleItalic, "bald")
}

func TestLinksKeepURL(t *testing.T) {
	converter := NewConverter()

	result := converter.Convert(`Unterstützt mich auf <a href="https://example.com/support">Patreon</a>`)

	want := "Patreon (https://example.com/support)"
	if !strings.Contains(result.Text, want) {
		t.Errorf("Expected %q in %q", want, result.Text)
	}
	assertStyle(t, result, StyleLink, want)
}

func TestListsAndHeaders(t *testing.T) {
	converter := NewConverter()

	result := converter.Render("# Titel\n\n- eins\n- zwei\n  - drei")

	for _, want := range []string{"Titel", "• eins", "• zwei", "  ◦ drei"} {
		if !strings.Contains(result.Text, want) {
			t.Errorf("Expected %q in %q", want, result.Text)
		}
	}
	if strings.Contains(result.Text, "#") {
		t.Errorf("Expected header marker to be removed, got %q", result.Text)
	}
	assertStyle(t, result, StyleHeader, "Titel")
}

func TestEscapesAreRemoved(t *testing.T) {
	converter := NewConverter()

	result := converter.Render(`Folge 1\. snake\_case \*nicht kursiv\*`)

	want := "Folge 1. snake_case *nicht kursiv*"
	if result.Text != want {
		t.Errorf("Expected %q, got %q", want, result.Text)
	}
	if len(result.Styles) != 0 {
		t.Errorf("Expected no styles, got %+v", result.Styles)
	}
}

func TestStylePositionsAreRuneOffsets(t *testing.T) {
	converter := NewConverter()

	result := converter.Render("Größe **Äther**")

	if len(result.Styles) != 1 {
		t.Fatalf("Expected 1 style, got %d", len(result.Styles))
	}
	s := result.Styles[0]
	runes := []rune(result.Text)
	if got := string(runes[s.Start:s.End]); got != "Äther" {
		t.Errorf("Expected styled text 'Äther', got %q", got)
	}
}

func TestBlockquote(t *testing.T) {
	converter := NewConverter()

	result := converter.Render("> Das Universum ist **groß**")

	if result.Text != "│ Das Universum ist groß" {
		t.Errorf("Expected quote marker, got %q", result.Text)
	}
	assertStyle(t, result, StyleQuote, "Das Universum ist groß")
	assertStyle(t, result, StyleBold, "groß")
}

func assertStyle(t *testing.T, result Result, style StyleType, text string) {
	t.Helper()
	runes := []rune(result.Text)
	for _, s := range result.Styles {
		if s.Type != style || s.Start < 0 || s.End > len(runes) {
			continue
		}
		if string(runes[s.Start:s.End]) == text {
			return
		}
	}
	t.Errorf("Expected style %d over %q in %q (styles %+v)", style, text, result.Text, result.Styles)
}
