package cli

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/restock-alert/restock-alert/internal/config"
	"github.com/restock-alert/restock-alert/internal/phone"
	"github.com/restock-alert/restock-alert/internal/widget"
)

// TerminalView renders one widget instance as lines of text.
type TerminalView struct {
	out io.Writer

	mu            sync.Mutex
	handlers      widget.Handlers
	cfg           config.MerchantConfig
	region        widget.Region
	busy          bool
	submitEnabled bool
	fieldErrors   map[widget.Field]string
}

func NewTerminalView(out io.Writer) *TerminalView {
	return &TerminalView{
		out:           out,
		submitEnabled: true,
		fieldErrors:   map[widget.Field]string{},
	}
}

func (v *TerminalView) Bind(h widget.Handlers) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.handlers = h
}

func (v *TerminalView) Release() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.handlers = widget.Handlers{}
}

func (v *TerminalView) Render(cfg config.MerchantConfig) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cfg = cfg
}

func (v *TerminalView) ShowRegion(r widget.Region) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.region = r
	switch r {
	case widget.RegionForm:
		fmt.Fprintln(v.out)
		fmt.Fprintln(v.out, v.cfg.Texts.FormHeading)
		fmt.Fprintln(v.out, v.cfg.Texts.FormDescription)
	case widget.RegionSuccess:
		fmt.Fprintln(v.out, v.cfg.Texts.SuccessMessage)
	}
}

func (v *TerminalView) FocusPhone() {}

func (v *TerminalView) ResetForm() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fieldErrors = map[widget.Field]string{}
}

func (v *TerminalView) ShowFieldError(f widget.Field, message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fieldErrors[f] = message
	fmt.Fprintf(v.out, "  ! %s\n", message)
}

func (v *TerminalView) ClearFieldError(f widget.Field) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.fieldErrors, f)
}

func (v *TerminalView) ClearFieldErrors() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fieldErrors = map[widget.Field]string{}
}

func (v *TerminalView) SetBusy(busy bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if busy && !v.busy {
		fmt.Fprintln(v.out, "Submitting...")
	}
	v.busy = busy
}

func (v *TerminalView) SetSubmitEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.submitEnabled = enabled
}

func (v *TerminalView) SetErrorMessage(message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, "✗ %s\n", message)
}

func (v *TerminalView) Region() widget.Region {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.region
}

func (v *TerminalView) FieldError(f widget.Field) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fieldErrors[f]
}

func (v *TerminalView) snapshot() (widget.Handlers, config.MerchantConfig, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.handlers, v.cfg, v.submitEnabled
}

// errQuit ends the interaction loop without an error.
var errQuit = errors.New("quit")

// runTerminalWidget drives one bound widget through prompts until the
// shopper quits. The controller is only reached through the view's handlers.
func runTerminalWidget(ctrl *widget.Controller, view *TerminalView, p prompter) error {
	for {
		var err error
		switch view.Region() {
		case widget.RegionInitial:
			err = initialStep(view, p)
		case widget.RegionForm:
			err = formStep(view, p)
			ctrl.Wait()
		case widget.RegionSuccess:
			err = successStep(view, p)
		case widget.RegionError:
			err = errorStep(view, p)
		}
		if errors.Is(err, errQuit) || errors.Is(err, errInterrupted) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func initialStep(view *TerminalView, p prompter) error {
	h, cfg, _ := view.snapshot()
	idx, err := p.Select(cfg.Texts.ButtonText+"?", []string{cfg.Texts.ButtonText, "Quit"})
	if err != nil {
		return err
	}
	if idx != 0 {
		return errQuit
	}
	h.Activate()
	return nil
}

func formStep(view *TerminalView, p prompter) error {
	h, cfg, enabled := view.snapshot()
	if !enabled {
		return fmt.Errorf("%w: set KLAVIYO_PUBLIC_API_KEY or pass --relay", widget.ErrNotConfigured)
	}

	raw, err := p.Input("Mobile number (blank to cancel)", func(s string) error {
		if s == "" || phone.IsValid(h.PhoneInput(s)) {
			return nil
		}
		return errors.New(cfg.ErrorMessages.InvalidPhone)
	})
	if err != nil {
		return err
	}
	if raw == "" {
		h.Cancel()
		return nil
	}

	formatted := h.PhoneInput(raw)
	h.PhoneBlur(formatted)

	values := widget.FormValues{Phone: formatted}
	if cfg.MarketingOptInEnabled() {
		if values.MarketingOptIn, err = p.Confirm(cfg.Texts.ConsentText); err != nil {
			return err
		}
	}
	h.Submit(values)
	return nil
}

func successStep(view *TerminalView, p prompter) error {
	h, _, _ := view.snapshot()
	idx, err := p.Select("Signed up", []string{"Sign up another number", "Done"})
	if err != nil {
		return err
	}
	if idx != 0 {
		return errQuit
	}
	h.Retry()
	return nil
}

func errorStep(view *TerminalView, p prompter) error {
	h, _, _ := view.snapshot()
	idx, err := p.Select("Sign-up failed", []string{"Try again", "Cancel", "Quit"})
	if err != nil {
		return err
	}
	switch idx {
	case 0:
		h.Retry()
	case 1:
		// Cancel only applies to an open form, so reopen it first.
		h.Retry()
		h.Cancel()
	default:
		return errQuit
	}
	return nil
}
