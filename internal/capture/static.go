package capture

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ShayCichocki/replica/pkg/models"
)

// maxDocumentSize bounds the markup read by HTMLCapturer.
const maxDocumentSize = 10 << 20

// HTMLCapturer fingerprints a page from its markup alone. Styles come from
// <style> blocks and inline style attributes; inherited properties flow from
// parent to child. There is no layout engine, so each visible element gets a
// synthetic full-width box one pixel tall, stacked in document order.
type HTMLCapturer struct {
	client *http.Client
}

// NewHTMLCapturer creates an HTMLCapturer. A nil client uses a default one.
func NewHTMLCapturer(client *http.Client) *HTMLCapturer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTMLCapturer{client: client}
}

// Capture fetches url and fingerprints the returned document.
func (c *HTMLCapturer) Capture(ctx context.Context, url string, vp models.Viewport) (*models.Fingerprint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, models.NewCaptureError(err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, models.NewCaptureError(fmt.Errorf("fetch %s: %w", url, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, models.NewCaptureError(fmt.Errorf("fetch %s: status %d", url, resp.StatusCode))
	}

	root, err := ParseHTML(io.LimitReader(resp.Body, maxDocumentSize), vp)
	if err != nil {
		return nil, models.NewCaptureError(err)
	}
	return &models.Fingerprint{
		URL:        url,
		Viewport:   vp,
		CapturedAt: time.Now(),
		Root:       root,
	}, nil
}

// ParseHTML builds an element tree from an HTML document.
func ParseHTML(r io.Reader, vp models.Viewport) (*models.ElementNode, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	htmlNode := findElement(doc, atom.Html)
	if htmlNode == nil {
		return nil, fmt.Errorf("malformed fingerprint: no html element")
	}

	b := &treeBuilder{
		rules: ParseStylesheet(collectStyles(doc)),
		width: float64(vp.Width),
	}
	if b.width <= 0 {
		b.width = float64(models.ViewportDesktop.Width)
	}
	root, _ := b.element(htmlNode, nil)
	return root, nil
}

type treeBuilder struct {
	rules []Rule
	width float64
	seq   int
}

// element converts n and its element children. The second result is false
// when n is hidden.
func (b *treeBuilder) element(n *html.Node, parentStyles map[string]string) (*models.ElementNode, bool) {
	id := attr(n, "id")
	classes := strings.Fields(attr(n, "class"))

	styles := make(map[string]string)
	for prop, v := range parentStyles {
		if inherited[prop] {
			styles[prop] = v
		}
	}
	for _, d := range Cascade(b.rules, n.Data, id, classes) {
		styles[d.Property] = d.Value
	}
	for _, d := range ParseDeclarations(attr(n, "style")) {
		styles[d.Property] = d.Value
	}

	if hasAttr(n, "hidden") || styles["display"] == "none" || styles["visibility"] == "hidden" {
		return nil, false
	}

	el := &models.ElementNode{
		Tag:     n.Data,
		Role:    attr(n, "role"),
		Classes: classes,
		Box:     &models.Rect{Y: float64(b.seq), Width: b.width, Height: 1},
		Styles:  styles,
	}
	b.seq++

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || Skip(c.Data, attr(c, "id"), strings.Fields(attr(c, "class"))) {
			continue
		}
		if child, ok := b.element(c, styles); ok {
			el.Children = append(el.Children, child)
		}
	}
	return el, true
}

func collectStyles(doc *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Style {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					sb.WriteString(c.Data)
					sb.WriteByte('\n')
				}
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return sb.String()
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}
