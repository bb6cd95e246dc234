//go:build js && wasm

package main

import (
	"context"
	"syscall/js"

	"go.uber.org/zap"

	"github.com/restock-alert/restock-alert/internal/analytics"
	"github.com/restock-alert/restock-alert/internal/config"
	"github.com/restock-alert/restock-alert/internal/dom"
	"github.com/restock-alert/restock-alert/internal/klaviyo"
	"github.com/restock-alert/restock-alert/internal/logging"
	"github.com/restock-alert/restock-alert/internal/subcache"
	"github.com/restock-alert/restock-alert/internal/widget"
)

func main() {
	logger, err := logging.New("development", "warn")
	if err != nil {
		logger = zap.NewNop()
	}

	doc := dom.NewDocument()

	emitter := analytics.NewEmitter(logger,
		dom.LearnqSink(),
		dom.GtagSink(),
		analytics.NewDeferredBeacon(dom.ServerURL, logger),
	)

	mgr := widget.NewManager(widget.ManagerDeps{
		Config:  doc,
		Cache:   subcache.New(context.Background(), dom.LocalStorage{}, subcache.WithLogger(logger)),
		Emitter: emitter,
		NewSubscriber: func(cfg config.MerchantConfig) widget.Subscriber {
			return klaviyo.NewClient(cfg.PublicAPIKey)
		},
		Logger: logger,
	})

	document := js.Global().Get("document")

	// Roots the theme replaced are forgotten before each re-scan.
	live := widget.DocumentFunc(func() []widget.Marker {
		doc.Prune(mgr.Forget)
		return doc.Markers()
	})

	scan := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		mgr.Scan(doc)
		return nil
	})
	if document.Get("readyState").String() == "loading" {
		document.Call("addEventListener", "DOMContentLoaded", scan)
	} else {
		mgr.Scan(doc)
	}

	// Themes re-render the widget on variant change; give them time to settle.
	variantChanged := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		mgr.ContentUpdated(live)
		return nil
	})
	document.Call("addEventListener", "variant:change", variantChanged)

	select {}
}
