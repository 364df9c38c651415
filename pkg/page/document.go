// Package page holds the shell document fragments are mounted into.
//
// A Document is the server-side stand-in for the browser DOM: elements are
// addressed by id and every mutation goes through one lock, which plays the
// part of the single UI thread.
package page

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNotFound is returned when no element carries the requested id
var ErrNotFound = errors.New("element not found")

// Document is a parsed HTML page safe for concurrent use.
type Document struct {
	mu   sync.RWMutex
	root *html.Node
}

// Parse reads a full HTML document
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse shell: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseString is Parse over a string
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Namespace == "" && a.Key == "id" && a.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func (d *Document) lookup(id string) (*html.Node, error) {
	n := findByID(d.root, id)
	if n == nil {
		return nil, fmt.Errorf("%w: #%s", ErrNotFound, id)
	}
	return n, nil
}

func clearChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

// parseInto parses markup in the context of parent and appends the result.
func parseInto(parent *html.Node, markup string) error {
	nodes, err := html.ParseFragment(strings.NewReader(markup), parent)
	if err != nil {
		return fmt.Errorf("parse fragment: %w", err)
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	return nil
}

// HasElement reports whether an element with id exists
func (d *Document) HasElement(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return findByID(d.root, id) != nil
}

// ClearChildren removes every child of the element with id
func (d *Document) ClearChildren(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.lookup(id)
	if err != nil {
		return err
	}
	clearChildren(n)
	return nil
}

// SetInnerHTML replaces the content of the element with id by markup
func (d *Document) SetInnerHTML(id, markup string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.lookup(id)
	if err != nil {
		return err
	}
	clearChildren(n)
	return parseInto(n, markup)
}

// AppendWrapped builds <tag id=wrapperID class=class>markup</tag> and appends
// it to the element with containerID. An empty class is omitted.
func (d *Document) AppendWrapped(containerID, tag, wrapperID, class, markup string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	container, err := d.lookup(containerID)
	if err != nil {
		return err
	}

	wrapper := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     []html.Attribute{{Key: "id", Val: wrapperID}},
	}
	if class != "" {
		wrapper.Attr = append(wrapper.Attr, html.Attribute{Key: "class", Val: class})
	}
	if err := parseInto(wrapper, markup); err != nil {
		return err
	}
	container.AppendChild(wrapper)
	return nil
}

// InnerHTML renders the children of the element with id
func (d *Document) InnerHTML(id string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n, err := d.lookup(id)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// Children returns the child nodes of the element with id. The nodes belong
// to the document; callers must only read them.
func (d *Document) Children(id string) ([]*html.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n, err := d.lookup(id)
	if err != nil {
		return nil, err
	}
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out, nil
}

// Render writes the whole document
func (d *Document) Render(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return html.Render(w, d.root)
}

// String renders the whole document, or "" if rendering fails
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// Edit runs fn with a goquery view of the document under the write lock.
func (d *Document) Edit(fn func(doc *goquery.Document) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(goquery.NewDocumentFromNode(d.root))
}

// Query runs fn with a goquery view of the document under the read lock.
// fn must not modify the document.
func (d *Document) Query(fn func(doc *goquery.Document)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn(goquery.NewDocumentFromNode(d.root))
}
