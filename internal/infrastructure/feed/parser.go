package feed

import (
	"bytes"
	"encoding/xml"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
)

// RawItem is one normalized item block extracted from a feed document. All
// fields except Title may be empty; Published carries the raw source string.
type RawItem struct {
	Title       string
	Link        string
	GUID        string
	Published   string
	Description string
}

// Parser extracts item blocks from one feed shape.
type Parser interface {
	Parse(doc []byte) []RawItem
}

type rssParser struct{}

func (rssParser) Parse(doc []byte) []RawItem { return scanBlocks(doc, "item") }

type atomParser struct{}

func (atomParser) Parse(doc []byte) []RawItem { return scanBlocks(doc, "entry") }

var parsers = []Parser{rssParser{}, atomParser{}}

// Parse tries the RSS-item and Atom-entry shapes in order and returns the
// first non-empty result. Malformed documents never fail: whatever was
// extracted before the first syntax error is returned.
func Parse(doc []byte) []RawItem {
	for _, p := range parsers {
		if items := p.Parse(doc); len(items) > 0 {
			return items
		}
	}
	return nil
}

func scanBlocks(doc []byte, blockName string) []RawItem {
	d := xml.NewDecoder(bytes.NewReader(doc))
	d.Strict = false
	d.AutoClose = xml.HTMLAutoClose
	d.Entity = xml.HTMLEntity

	var items []RawItem
	for {
		tok, err := d.Token()
		if err != nil {
			break
		}
		start, ok := tok.(xml.StartElement)
		if !ok || !strings.EqualFold(start.Name.Local, blockName) {
			continue
		}
		if item, ok := scanBlock(d, blockName); ok {
			items = append(items, item)
		}
	}
	return items
}

// scanBlock consumes tokens up to the closing block tag and applies the field
// fallback chains. Blocks without a title are discarded.
func scanBlock(d *xml.Decoder, blockName string) (RawItem, bool) {
	fields := map[string]string{}
	var linkHref string

loop:
	for {
		tok, err := d.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := strings.ToLower(t.Name.Local)
			switch name {
			case "title", "link", "guid", "id", "pubdate", "updated", "published", "description", "summary":
				if name == "link" && linkHref == "" {
					for _, attr := range t.Attr {
						if strings.EqualFold(attr.Name.Local, "href") {
							linkHref = strings.TrimSpace(attr.Value)
							break
						}
					}
				}
				text := elementText(d)
				if fields[name] == "" {
					fields[name] = text
				}
			default:
				// Skip unknown elements wholesale so nested markup (author
				// blocks, embedded media) cannot shadow the item's own fields.
				if err := d.Skip(); err != nil {
					break loop
				}
			}
		case xml.EndElement:
			if strings.EqualFold(t.Name.Local, blockName) {
				break loop
			}
		}
	}

	title := fields["title"]
	if title == "" {
		return RawItem{}, false
	}

	link := fields["link"]
	if link == "" {
		link = linkHref
	}

	guid := firstNonEmpty(fields["guid"], fields["id"], link, title)
	if guid == "" {
		guid = uuid.NewString()
	}

	return RawItem{
		Title:       title,
		Link:        link,
		GUID:        guid,
		Published:   firstNonEmpty(fields["pubdate"], fields["updated"], fields["published"]),
		Description: StripMarkup(firstNonEmpty(fields["description"], fields["summary"])),
	}, true
}

// elementText accumulates character data until the element just opened is
// closed, ignoring any nested tags.
func elementText(d *xml.Decoder) string {
	var sb strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			sb.Write(t)
		}
	}
	return strings.TrimSpace(sb.String())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// StripMarkup reduces HTML markup often embedded in feed descriptions to its
// text content. The input is returned untouched when it cannot be parsed.
func StripMarkup(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

// Truncate bounds a summary at max runes.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

var timeFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses the publish timestamp formats seen in the wild across
// RSS and Atom feeds.
func ParseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timeFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
