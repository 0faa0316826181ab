package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/csams/sterncast/internal/models"
)

// iTunes podcast namespace URIs seen in the wild. Feeds that use the itunes
// prefix without declaring it decode with the bare prefix as the space.
var itunesSpaces = map[string]bool{
	"http://www.itunes.com/dtds/podcast-1.0.dtd":  true,
	"http://itunes.apple.com/dtds/podcast-1.0.dtd": true,
	"itunes": true,
}

// node is a generic XML element.
type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []node     `xml:",any"`
}

// text returns the element's own character data followed by its descendants'.
func (n *node) text() string {
	if len(n.Children) == 0 {
		return n.Text
	}
	var b strings.Builder
	b.WriteString(n.Text)
	for i := range n.Children {
		b.WriteString(n.Children[i].text())
	}
	return b.String()
}

func (n *node) attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Space == "" && a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// child returns the first direct child accepted by match.
func (n *node) child(match func(xml.Name) bool) *node {
	for i := range n.Children {
		if match(n.Children[i].XMLName) {
			return &n.Children[i]
		}
	}
	return nil
}

// find returns the first element in document order accepted by match,
// searching n's descendants.
func (n *node) find(match func(xml.Name) bool) *node {
	for i := range n.Children {
		c := &n.Children[i]
		if match(c.XMLName) {
			return c
		}
		if found := c.find(match); found != nil {
			return found
		}
	}
	return nil
}

func plain(local string) func(xml.Name) bool {
	return func(name xml.Name) bool {
		return name.Space == "" && name.Local == local
	}
}

func anySpace(local string) func(xml.Name) bool {
	return func(name xml.Name) bool {
		return name.Local == local
	}
}

func itunes(local string) func(xml.Name) bool {
	return func(name xml.Name) bool {
		return name.Local == local && itunesSpaces[name.Space]
	}
}

func childText(n *node, match func(xml.Name) bool) string {
	if c := n.child(match); c != nil {
		return c.text()
	}
	return ""
}

func newDecoder(data []byte) *xml.Decoder {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	return dec
}

// checkWellFormed walks every token so that trailing garbage, a second root
// element or unclosed tags are rejected, not just the first element.
func checkWellFormed(data []byte) error {
	dec := newDecoder(data)
	depth, roots := 0, 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
				if roots > 1 {
					return fmt.Errorf("unexpected second root element <%s>", t.Name.Local)
				}
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return errors.New("text outside the root element")
			}
		}
	}
	if roots == 0 {
		return errors.New("document has no root element")
	}
	return nil
}

// Parse turns an RSS 2.0 document into a PodcastFeed stamped with now.
func Parse(data []byte, now time.Time) (*models.PodcastFeed, error) {
	if err := checkWellFormed(data); err != nil {
		return nil, &ParseError{Err: err}
	}

	var root node
	if err := newDecoder(data).Decode(&root); err != nil {
		return nil, &ParseError{Err: err}
	}

	channel := &root
	if !plain("channel")(root.XMLName) {
		channel = root.find(plain("channel"))
	}
	if channel == nil {
		return nil, &ParseError{Err: ErrNoChannel}
	}

	feed := &models.PodcastFeed{
		Title:       childText(channel, plain("title")),
		Description: childText(channel, plain("description")),
		LastUpdated: models.NowMillis(now),
	}
	if feed.Title == "" {
		feed.Title = models.DefaultFeedTitle
	}

	episodes := make([]models.Episode, 0, len(channel.Children))
	for i := range channel.Children {
		item := &channel.Children[i]
		if !plain("item")(item.XMLName) {
			continue
		}
		ep := parseItem(item)
		if ep.AudioURL == "" {
			continue
		}
		episodes = append(episodes, ep)
	}
	feed.Episodes = reverseDocumentOrder(episodes)

	return feed, nil
}

func parseItem(item *node) models.Episode {
	ep := models.Episode{
		Title:       childText(item, plain("title")),
		Description: childText(item, plain("description")),
		PubDate:     childText(item, plain("pubDate")),
	}
	if enc := item.child(plain("enclosure")); enc != nil {
		ep.AudioURL = enc.attr("url")
	}
	if d := item.child(anySpace("duration")); d != nil {
		ep.Duration = parseDuration(d.text())
	}
	ep.EpisodeNumber = childText(item, itunes("episode"))
	ep.GenerateID()
	return ep
}

// reverseDocumentOrder returns the kept items in the reverse of their
// document order. The source feed lists newest first, so the result is
// oldest first.
func reverseDocumentOrder(episodes []models.Episode) []models.Episode {
	out := make([]models.Episode, len(episodes))
	for i, ep := range episodes {
		out[len(episodes)-1-i] = ep
	}
	return out
}

// parseDuration converts MM:SS or HH:MM:SS into seconds. Otherwise the
// leading integer counts ("3600.5" is 3600), and a value without one yields
// nil.
func parseDuration(duration string) *int {
	duration = strings.TrimSpace(duration)
	if duration == "" {
		return nil
	}

	if strings.Contains(duration, ":") {
		if seconds, ok := parseTimeFormatDuration(duration); ok {
			return &seconds
		}
	}

	if seconds, ok := leadingInt(duration); ok {
		return &seconds
	}
	return nil
}

func leadingInt(s string) (int, bool) {
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseTimeFormatDuration(timeStr string) (int, bool) {
	parts := strings.Split(timeStr, ":")

	var hours, minutes, seconds int
	var err error

	switch len(parts) {
	case 2: // MM:SS
		if minutes, err = strconv.Atoi(parts[0]); err != nil {
			return 0, false
		}
		if seconds, err = strconv.Atoi(parts[1]); err != nil {
			return 0, false
		}
	case 3: // HH:MM:SS
		if hours, err = strconv.Atoi(parts[0]); err != nil {
			return 0, false
		}
		if minutes, err = strconv.Atoi(parts[1]); err != nil {
			return 0, false
		}
		if seconds, err = strconv.Atoi(parts[2]); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}

	return hours*3600 + minutes*60 + seconds, true
}
