package media

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"git.home.luguber.info/inful/blogbuilder/internal/post"
)

// Ref is a post body image reference and its resolution.
type Ref = post.MediaRef

// Reasons recorded on unresolved refs.
const (
	ReasonEmptySrc       = "empty-src"
	ReasonUnsupportedURL = "unsupported-url"
	ReasonFetchFailed    = "fetch-failed"
	ReasonNotStored      = "not-stored"
)

// bodyContext is the element post bodies are parsed inside of.
func bodyContext() *html.Node {
	return &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
}

// parseFragment parses a post body the way a browser would parse it inside <body>.
func parseFragment(body string) ([]*html.Node, error) {
	return html.ParseFragment(strings.NewReader(body), bodyContext())
}

// ExtractRefs returns the src of every img in body in document order. An
// img without a src contributes "".
func ExtractRefs(body string) ([]string, error) {
	nodes, err := parseFragment(body)
	if err != nil {
		return nil, err
	}
	var refs []string
	for _, n := range nodes {
		walkImages(n, func(img *html.Node) {
			src, _ := attr(img, "src")
			refs = append(refs, src)
		})
	}
	return refs, nil
}

// walkImages calls fn for every img element in the subtree rooted at n.
// fn may detach the node it is given.
func walkImages(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode && n.DataAtom == atom.Img {
		fn(n)
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		walkImages(c, fn)
		c = next
	}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttrs(n *html.Node, keys ...string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		drop := false
		for _, k := range keys {
			if a.Namespace == "" && a.Key == k {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}
