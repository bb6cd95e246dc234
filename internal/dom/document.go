//go:build js && wasm

package dom

import (
	"strconv"
	"sync"
	"syscall/js"

	"github.com/restock-alert/restock-alert/internal/config"
	"github.com/restock-alert/restock-alert/internal/widget"
)

const (
	markerSelector = ".klaviyo-back-in-stock"
	idAttr         = "data-klaviyo-bis-id"

	// Set by the relay server's bis.js.
	settingsGlobal = "klaviyoBackInStockSettings"
	ServerGlobal   = "klaviyoBackInStockServer"
)

// Document lists the widget roots currently in the page.
type Document struct {
	doc js.Value

	mu    sync.Mutex
	next  int
	roots map[string]js.Value
}

func NewDocument() *Document {
	return &Document{
		doc:   js.Global().Get("document"),
		roots: map[string]js.Value{},
	}
}

// Markers names each widget root by its component attribute, else its
// element id. A root with neither is tagged with a generated id on first
// sight, so a root re-rendered by the theme is seen as a new instance.
func (d *Document) Markers() []widget.Marker {
	var markers []widget.Marker
	d.mu.Lock()
	defer d.mu.Unlock()

	each(d.doc.Call("querySelectorAll", markerSelector), func(el js.Value) {
		ds := el.Get("dataset")
		id := d.instanceID(el, ds)
		if _, ok := d.roots[id]; !ok {
			d.roots[id] = el
		}
		markers = append(markers, widget.Marker{
			Instance: widget.Instance{
				ID:           id,
				ProductID:    datasetString(ds, "productId"),
				VariantID:    datasetString(ds, "variantId"),
				ProductTitle: datasetString(ds, "productTitle"),
				Context:      datasetString(ds, "context"),
			},
			View: NewView(el),
		})
	})
	return markers
}

// Resolve reads the page as it is now, so settings a late-loading bis.js
// assigns reach every widget bound after it ran.
func (d *Document) Resolve() config.MerchantConfig {
	return d.Resolver().Resolve()
}

// Resolver reads explicit window globals, then the bis.js settings object,
// then inline script text.
func (d *Document) Resolver() *config.Resolver {
	return config.NewResolver(d.globals(), config.NewMarkupSource(d.scripts()...))
}

// Prune calls forget for every instance whose root element has left the
// page. A theme that re-renders a root under the same component id then
// gets a fresh binding on the next scan.
func (d *Document) Prune(forget func(id string)) {
	d.mu.Lock()
	var gone []string
	for id, el := range d.roots {
		if !el.Get("isConnected").Bool() {
			gone = append(gone, id)
			delete(d.roots, id)
		}
	}
	d.mu.Unlock()

	for _, id := range gone {
		forget(id)
	}
}

// ServerURL is the relay server bis.js announced, or "" before it loads.
func ServerURL() string {
	if v := js.Global().Get(ServerGlobal); v.Type() == js.TypeString {
		return v.String()
	}
	return ""
}

// instanceID is called with mu held.
func (d *Document) instanceID(el, ds js.Value) string {
	if id := datasetString(ds, "klaviyoComponent"); id != "" {
		return id
	}
	if id := el.Get("id"); id.Type() == js.TypeString && id.String() != "" {
		return id.String()
	}
	id := el.Call("getAttribute", idAttr)
	if id.IsNull() {
		d.next++
		el.Call("setAttribute", idAttr, "bis-"+strconv.Itoa(d.next))
		id = el.Call("getAttribute", idAttr)
	}
	return id.String()
}

func (d *Document) globals() config.Globals {
	win := js.Global()
	g := config.Globals{}

	if settings := win.Get(settingsGlobal); settings.Type() == js.TypeObject {
		keys := js.Global().Get("Object").Call("keys", settings)
		each(keys, func(k js.Value) {
			if v := settings.Get(k.String()); v.Type() == js.TypeString {
				g[k.String()] = v.String()
			}
		})
	}
	for _, name := range config.GlobalNames {
		if v := win.Get(name); v.Type() == js.TypeString {
			g[name] = v.String()
		}
	}
	return g
}

func (d *Document) scripts() []string {
	var out []string
	each(d.doc.Call("querySelectorAll", "script:not([src])"), func(el js.Value) {
		if text := el.Get("textContent"); text.Truthy() {
			out = append(out, text.String())
		}
	})
	return out
}

func datasetString(ds js.Value, key string) string {
	v := ds.Get(key)
	if v.Type() != js.TypeString {
		return ""
	}
	return v.String()
}
