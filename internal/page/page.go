// Package page extracts back-in-stock widget markers and merchant settings
// from rendered storefront HTML.
package page

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/restock-alert/restock-alert/internal/config"
	"github.com/restock-alert/restock-alert/internal/widget"
)

// MarkerClass identifies a widget root element.
const MarkerClass = "klaviyo-back-in-stock"

// Marker attributes.
const (
	AttrComponent    = "data-klaviyo-component"
	AttrProductID    = "data-product-id"
	AttrVariantID    = "data-variant-id"
	AttrProductTitle = "data-product-title"
	AttrContext      = "data-context"
)

var globalAssign = regexp.MustCompile(`window\.(\w+)\s*=\s*['"]([^'"]*)['"]`)

// Page is a parsed storefront document.
type Page struct {
	Instances []widget.Instance
	Scripts   []string
}

// Parse reads an HTML document and collects widget instances in document
// order together with the text of every inline script.
func Parse(r io.Reader) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	p := &Page{}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.DataAtom == atom.Script && attr(n, "src") == "":
				if text := textContent(n); strings.TrimSpace(text) != "" {
					p.Scripts = append(p.Scripts, text)
				}
			case hasClass(n, MarkerClass):
				p.Instances = append(p.Instances, instanceFrom(n))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return p, nil
}

// Settings returns a config source over the page's inline scripts.
func (p *Page) Settings() *config.MarkupSource {
	return config.NewMarkupSource(p.Scripts...)
}

// Globals returns string globals assigned in inline scripts, e.g.
// window.klaviyoPublicApiKey = "PK_x". Later assignments win.
func (p *Page) Globals() config.Globals {
	g := config.Globals{}
	for _, script := range p.Scripts {
		for _, m := range globalAssign.FindAllStringSubmatch(script, -1) {
			g[m[1]] = m[2]
		}
	}
	return g
}

// Resolver resolves merchant settings the way a browser host would: page
// globals first, then inline settings, then any extra fallback sources.
func (p *Page) Resolver(fallback ...config.Source) *config.Resolver {
	sources := append([]config.Source{p.Globals(), p.Settings()}, fallback...)
	return config.NewResolver(sources...)
}

// Document pairs each instance with a view built by newView.
func (p *Page) Document(newView func(widget.Instance) widget.View) widget.Document {
	return widget.DocumentFunc(func() []widget.Marker {
		markers := make([]widget.Marker, 0, len(p.Instances))
		for _, inst := range p.Instances {
			markers = append(markers, widget.Marker{Instance: inst, View: newView(inst)})
		}
		return markers
	})
}

// instanceFrom reads a marker. The component attribute names the instance;
// the element id is the fallback.
func instanceFrom(n *html.Node) widget.Instance {
	id := attr(n, AttrComponent)
	if id == "" {
		id = attr(n, "id")
	}
	return widget.Instance{
		ID:           id,
		ProductID:    attr(n, AttrProductID),
		VariantID:    attr(n, AttrVariantID),
		ProductTitle: attr(n, AttrProductTitle),
		Context:      attr(n, AttrContext),
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
