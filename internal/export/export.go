package export

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/net/html/charset"

	ferrors "git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/logfields"
)

// ContentNamespace is the RSS content module namespace carrying post bodies.
const ContentNamespace = "http://purl.org/rss/1.0/modules/content/"

// RawPost is one export item as found in the document. Absent fields are nil.
type RawPost struct {
	Title       *string
	Body        *string
	PublishedAt *string
	SourceID    string
	Status      string // WXR wp:status, empty when absent
	PostType    string // WXR wp:post_type, empty when absent
}

type field int

const (
	fieldNone field = iota
	fieldTitle
	fieldBody
	fieldPubDate
	fieldGUID
	fieldPostID
	fieldStatus
	fieldPostType
)

// classify maps a direct item child to the field it carries.
func classify(name xml.Name) field {
	switch {
	case name.Space == "" && name.Local == "title":
		return fieldTitle
	case name.Space == "" && name.Local == "pubDate":
		return fieldPubDate
	case name.Space == "" && name.Local == "guid":
		return fieldGUID
	case name.Local == "encoded" && (name.Space == ContentNamespace || name.Space == "content"):
		return fieldBody
	case isWordPressSpace(name.Space):
		switch name.Local {
		case "post_id":
			return fieldPostID
		case "status":
			return fieldStatus
		case "post_type":
			return fieldPostType
		}
	}
	return fieldNone
}

// isWordPressSpace accepts every WXR version namespace
// (http://wordpress.org/export/1.0/ ... /1.2/) and an undeclared wp prefix.
func isWordPressSpace(space string) bool {
	return space == "wp" || strings.Contains(space, "wordpress.org/export/")
}

// ParseFile parses the export document at path.
func ParseFile(path string) ([]RawPost, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ferrors.InputError("cannot open export").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	defer func() { _ = f.Close() }()
	return parse(bufio.NewReader(f), path)
}

// Parse parses an export document from r.
func Parse(r io.Reader) ([]RawPost, error) {
	return parse(r, "")
}

// itemState accumulates one item while its children stream past.
type itemState struct {
	depth   int
	current field
	text    strings.Builder
	seen    map[field]bool
	values  map[field]string
}

func (s *itemState) finish(position int) RawPost {
	rp := RawPost{
		Title:       s.optional(fieldTitle),
		Body:        s.optional(fieldBody),
		PublishedAt: s.optional(fieldPubDate),
		Status:      strings.TrimSpace(s.values[fieldStatus]),
		PostType:    strings.TrimSpace(s.values[fieldPostType]),
	}
	switch {
	case strings.TrimSpace(s.values[fieldGUID]) != "":
		rp.SourceID = strings.TrimSpace(s.values[fieldGUID])
	case strings.TrimSpace(s.values[fieldPostID]) != "":
		rp.SourceID = strings.TrimSpace(s.values[fieldPostID])
	default:
		rp.SourceID = fmt.Sprintf("item-%d", position)
	}
	return rp
}

// optional returns nil for a missing element or one without character data.
func (s *itemState) optional(f field) *string {
	v, ok := s.values[f]
	if !ok || v == "" {
		return nil
	}
	return &v
}

func parse(r io.Reader, path string) ([]RawPost, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = true
	dec.CharsetReader = charset.NewReaderLabel

	var (
		posts     []RawPost
		item      *itemState
		depth     int
		rootSeen  bool
		rootEnded bool
	)

	malformed := func(err error) error {
		line, _ := dec.InputPos()
		var syn *xml.SyntaxError
		if errors.As(err, &syn) {
			line = syn.Line
		}
		return ferrors.InputError("malformed export document").
			WithCause(&MalformedInputError{Path: path, Line: line, Err: err}).
			WithContext("path", path).
			WithContext("line", line).
			Build()
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if rootEnded {
				return nil, malformed(errors.New("content after document element"))
			}
			rootSeen = true
			depth++
			switch {
			case item == nil && t.Name.Space == "" && t.Name.Local == "item":
				item = &itemState{depth: depth, seen: map[field]bool{}, values: map[field]string{}}
			case item != nil && depth == item.depth+1:
				f := classify(t.Name)
				if f != fieldNone && !item.seen[f] {
					item.current = f
					item.text.Reset()
				}
			}
		case xml.EndElement:
			if item != nil {
				switch {
				case depth == item.depth:
					posts = append(posts, item.finish(len(posts)+1))
					item = nil
				case depth == item.depth+1 && item.current != fieldNone:
					item.values[item.current] = item.text.String()
					item.seen[item.current] = true
					item.current = fieldNone
				}
			}
			depth--
			if depth == 0 {
				rootEnded = true
			}
		case xml.CharData:
			if item != nil && item.current != fieldNone {
				item.text.Write(t)
			} else if depth == 0 && strings.TrimSpace(string(t)) != "" {
				return nil, malformed(errors.New("character data outside document element"))
			}
		}
	}

	if !rootSeen {
		return nil, malformed(errors.New("empty document"))
	}
	if !rootEnded {
		return nil, malformed(io.ErrUnexpectedEOF)
	}

	slog.Debug("Parsed export", logfields.Path(path), logfields.Count(len(posts)))
	return posts, nil
}
