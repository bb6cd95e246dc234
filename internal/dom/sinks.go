//go:build js && wasm

package dom

import (
	"syscall/js"

	"github.com/restock-alert/restock-alert/internal/analytics"
)

// LearnqSink pushes ['track', name, props] onto window._learnq. The queue
// is looked up per event because the Klaviyo script may load after us.
func LearnqSink() analytics.Sink {
	return analytics.SinkFunc(func(name string, props analytics.Properties) error {
		q := js.Global().Get("_learnq")
		if !q.Truthy() || q.Get("push").Type() != js.TypeFunction {
			return nil
		}
		q.Call("push", []interface{}{"track", name, jsProps(props)})
		return nil
	})
}

// GtagSink calls gtag('event', snake_case_name, props) when gtag exists.
func GtagSink() analytics.Sink {
	return analytics.SinkFunc(func(name string, props analytics.Properties) error {
		gtag := js.Global().Get("gtag")
		if gtag.Type() != js.TypeFunction {
			return nil
		}
		gtag.Invoke("event", analytics.GtagName(name), jsProps(props))
		return nil
	})
}

func jsProps(props analytics.Properties) map[string]interface{} {
	m := make(map[string]interface{}, len(props))
	for k, v := range props {
		m[k] = v
	}
	return m
}
