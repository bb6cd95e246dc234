//go:build js && wasm

// Package dom hosts back-in-stock widgets in a browser page.
package dom

import (
	"syscall/js"

	"github.com/restock-alert/restock-alert/internal/config"
	"github.com/restock-alert/restock-alert/internal/widget"
)

// Selectors inside a widget root.
const (
	selInitial      = ".klaviyo-bis-initial-state"
	selForm         = ".klaviyo-bis-form-state"
	selSuccess      = ".klaviyo-bis-success-state"
	selError        = ".klaviyo-bis-error-state"
	selErrorMessage = ".klaviyo-bis-error-message"
	selTrigger      = ".klaviyo-bis-trigger"
	selCancel       = ".klaviyo-bis-cancel"
	selRetry        = ".klaviyo-bis-retry"
	selSubmitForm   = ".klaviyo-bis-subscription-form"
	selSubmit       = ".klaviyo-bis-submit"
	selFieldError   = ".field__error"

	classFieldError = "field__input--error"
)

// View binds one widget root element.
type View struct {
	root      js.Value
	listeners []listener
}

type listener struct {
	el    js.Value
	event string
	fn    js.Func
}

func NewView(root js.Value) *View {
	return &View{root: root}
}

func (v *View) Bind(h widget.Handlers) {
	v.on(v.query(selTrigger), "click", func(js.Value) { h.Activate() })
	v.on(v.query(selCancel), "click", func(js.Value) { h.Cancel() })
	v.on(v.query(selRetry), "click", func(js.Value) { h.Retry() })

	v.on(v.query(selSubmitForm), "submit", func(e js.Value) {
		e.Call("preventDefault")
		h.Submit(widget.FormValues{
			Phone:          v.field(widget.FieldPhone).Get("value").String(),
			MarketingOptIn: checked(v.field(widget.FieldConsent)),
		})
	})

	input := v.field(widget.FieldPhone)
	v.on(input, "input", func(e js.Value) {
		target := e.Get("target")
		target.Set("value", h.PhoneInput(target.Get("value").String()))
	})
	v.on(input, "blur", func(e js.Value) {
		h.PhoneBlur(e.Get("target").Get("value").String())
	})
}

// Render applies settings the markup cannot know in advance.
func (v *View) Render(cfg config.MerchantConfig) {
	if cfg.ColorScheme != "" {
		v.root.Get("classList").Call("add", "color-"+cfg.ColorScheme)
	}
	if consent := v.field(widget.FieldConsent); consent.Truthy() {
		wrapper := consent.Call("closest", ".field")
		if wrapper.Truthy() {
			wrapper.Set("hidden", !cfg.MarketingOptInEnabled())
		}
	}
}

func (v *View) ShowRegion(r widget.Region) {
	regions := map[widget.Region]string{
		widget.RegionInitial: selInitial,
		widget.RegionForm:    selForm,
		widget.RegionSuccess: selSuccess,
		widget.RegionError:   selError,
	}
	for region, sel := range regions {
		if el := v.query(sel); el.Truthy() {
			el.Set("hidden", region != r)
		}
	}
}

func (v *View) FocusPhone() {
	if el := v.field(widget.FieldPhone); el.Truthy() {
		el.Call("focus")
	}
}

func (v *View) ResetForm() {
	if form := v.query(selSubmitForm); form.Truthy() {
		form.Call("reset")
	}
}

func (v *View) ShowFieldError(f widget.Field, message string) {
	field := v.field(f)
	if !field.Truthy() {
		return
	}
	field.Get("classList").Call("add", classFieldError)
	if el := fieldErrorElement(field); el.Truthy() {
		el.Set("textContent", message)
		el.Set("hidden", false)
	}
}

func (v *View) ClearFieldError(f widget.Field) {
	field := v.field(f)
	if !field.Truthy() {
		return
	}
	field.Get("classList").Call("remove", classFieldError)
	if el := fieldErrorElement(field); el.Truthy() {
		el.Set("hidden", true)
	}
}

func (v *View) ClearFieldErrors() {
	each(v.root.Call("querySelectorAll", "."+classFieldError), func(el js.Value) {
		el.Get("classList").Call("remove", classFieldError)
	})
	each(v.root.Call("querySelectorAll", selFieldError), func(el js.Value) {
		el.Set("hidden", true)
	})
}

func (v *View) SetBusy(busy bool) {
	btn := v.query(selSubmit)
	if !btn.Truthy() {
		return
	}
	btn.Set("disabled", busy)
	if text := btn.Call("querySelector", ".btn__text"); text.Truthy() {
		text.Set("hidden", busy)
	}
	if spinner := btn.Call("querySelector", ".loading-overlay__spinner"); spinner.Truthy() {
		if busy {
			spinner.Get("classList").Call("remove", "hidden")
		} else {
			spinner.Get("classList").Call("add", "hidden")
		}
	}
}

func (v *View) SetSubmitEnabled(enabled bool) {
	if btn := v.query(selSubmit); btn.Truthy() {
		btn.Set("disabled", !enabled)
	}
}

func (v *View) SetErrorMessage(message string) {
	if el := v.query(selErrorMessage); el.Truthy() {
		el.Set("textContent", message)
	}
}

// Release removes the listeners Bind added and frees their callbacks. The
// view can be bound again afterwards.
func (v *View) Release() {
	for _, l := range v.listeners {
		l.el.Call("removeEventListener", l.event, l.fn)
		l.fn.Release()
	}
	v.listeners = nil
}

func (v *View) query(sel string) js.Value {
	return v.root.Call("querySelector", sel)
}

func (v *View) field(f widget.Field) js.Value {
	return v.query(`input[name="` + string(f) + `"]`)
}

func (v *View) on(el js.Value, event string, fn func(e js.Value)) {
	if !el.Truthy() {
		return
	}
	cb := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		if len(args) > 0 {
			fn(args[0])
		}
		return nil
	})
	v.listeners = append(v.listeners, listener{el: el, event: event, fn: cb})
	el.Call("addEventListener", event, cb)
}

func fieldErrorElement(field js.Value) js.Value {
	parent := field.Get("parentElement")
	if !parent.Truthy() {
		return js.Null()
	}
	return parent.Call("querySelector", selFieldError)
}

func checked(el js.Value) bool {
	return el.Truthy() && el.Get("checked").Bool()
}

func each(list js.Value, fn func(js.Value)) {
	for i := 0; i < list.Length(); i++ {
		fn(list.Index(i))
	}
}
