package audit

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"git.home.luguber.info/inful/blogbuilder/internal/util/sets"
)

// chromeElements never count towards post content.
var chromeElements = sets.New(atom.Header, atom.Nav, atom.Footer, atom.Script, atom.Style)

// pageScan is what the auditor extracts from one page.
type pageScan struct {
	text      string
	images    []string // non-empty src values in document order
	brokenTag bool     // some img has no src or a blank one
}

// scanPage collects images from the whole document, then measures the
// content text: chrome elements are removed, and when a main element
// exists its first h1 is dropped and only main is measured.
func scanPage(doc *html.Node) pageScan {
	var scan pageScan
	walk(doc, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Img {
			src, ok := attr(n, "src")
			switch {
			case !ok || strings.TrimSpace(src) == "":
				scan.brokenTag = true
			default:
				scan.images = append(scan.images, src)
			}
		}
		return true
	})

	var chrome []*html.Node
	walk(doc, func(n *html.Node) bool {
		if n.Type == html.ElementNode && chromeElements.Has(n.DataAtom) {
			chrome = append(chrome, n)
			return false
		}
		return true
	})
	for _, n := range chrome {
		n.Parent.RemoveChild(n)
	}

	scope := doc
	if main := find(doc, atom.Main); main != nil {
		if h1 := find(main, atom.H1); h1 != nil {
			h1.Parent.RemoveChild(h1)
		}
		scope = main
	}
	scan.text = textOf(scope)
	return scan
}

// walk visits n and its descendants depth-first. Returning false from fn
// skips the children of the visited node.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// find returns the first element with the given atom below n.
func find(n *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) bool {
		if found != nil {
			return false
		}
		if c != n && c.Type == html.ElementNode && c.DataAtom == a {
			found = c
			return false
		}
		return true
	})
	return found
}

// textOf concatenates every text node below n with surrounding whitespace
// stripped, skipping the ones that become empty.
func textOf(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(strings.TrimSpace(c.Data))
		}
		return true
	})
	return b.String()
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// preview returns the first 100 runes of text, or "(empty)".
func preview(text string) string {
	if text == "" {
		return "(empty)"
	}
	if utf8.RuneCountInString(text) <= 100 {
		return text
	}
	return string([]rune(text)[:100])
}

// isExternal reports srcs the auditor assumes to exist.
func isExternal(src string) bool {
	lower := strings.ToLower(strings.TrimSpace(src))
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "//") ||
		strings.HasPrefix(lower, "data:")
}

// localCandidates returns the spellings of src to look up on disk: the
// decoded path without query or fragment, and src itself.
func localCandidates(src string) []string {
	src = strings.TrimSpace(src)
	out := []string{}
	if u, err := url.Parse(src); err == nil && u.Path != "" {
		out = append(out, u.Path)
	}
	if len(out) == 0 || out[0] != src {
		out = append(out, src)
	}
	return out
}
