package widget_test

import (
	"context"
	"sync"

	"github.com/restock-alert/restock-alert/internal/analytics"
	"github.com/restock-alert/restock-alert/internal/config"
	"github.com/restock-alert/restock-alert/internal/widget"
)

// fakeView records what the controller asked it to show.
type fakeView struct {
	mu             sync.Mutex
	handlers       []widget.Handlers
	releases       int
	region         widget.Region
	focused        int
	resets         int
	fieldErrors    map[widget.Field]string
	busy           bool
	submitDisabled bool
	errorMessage   string
	rendered       *config.MerchantConfig
}

func newFakeView() *fakeView {
	return &fakeView{fieldErrors: map[widget.Field]string{}}
}

func (v *fakeView) Bind(h widget.Handlers) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.handlers = append(v.handlers, h)
}

func (v *fakeView) Release() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.handlers = nil
	v.releases++
}

func (v *fakeView) Render(cfg config.MerchantConfig) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rendered = &cfg
}

func (v *fakeView) ShowRegion(r widget.Region) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.region = r
}

func (v *fakeView) FocusPhone() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.focused++
}

func (v *fakeView) ResetForm() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.resets++
}

func (v *fakeView) ShowFieldError(f widget.Field, message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fieldErrors[f] = message
}

func (v *fakeView) ClearFieldError(f widget.Field) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.fieldErrors, f)
}

func (v *fakeView) ClearFieldErrors() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fieldErrors = map[widget.Field]string{}
}

func (v *fakeView) SetBusy(busy bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.busy = busy
}

func (v *fakeView) SetSubmitEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.submitDisabled = !enabled
}

func (v *fakeView) SetErrorMessage(message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errorMessage = message
}

// click fires Activate on every bound handler set, like a DOM click would
// reach every listener attached to the button.
func (v *fakeView) click() {
	v.mu.Lock()
	hs := append([]widget.Handlers(nil), v.handlers...)
	v.mu.Unlock()

	for _, h := range hs {
		h.Activate()
	}
}

type viewState struct {
	binds          int
	releases       int
	region         widget.Region
	focused        int
	resets         int
	fieldErrors    map[widget.Field]string
	busy           bool
	submitDisabled bool
	errorMessage   string
	rendered       *config.MerchantConfig
}

func (v *fakeView) snapshot() viewState {
	v.mu.Lock()
	defer v.mu.Unlock()

	errs := map[widget.Field]string{}
	for k, val := range v.fieldErrors {
		errs[k] = val
	}
	return viewState{
		binds:          len(v.handlers),
		releases:       v.releases,
		region:         v.region,
		focused:        v.focused,
		resets:         v.resets,
		fieldErrors:    errs,
		busy:           v.busy,
		submitDisabled: v.submitDisabled,
		errorMessage:   v.errorMessage,
		rendered:       v.rendered,
	}
}

// fakeSubscriber records requests and blocks until released when gated.
type fakeSubscriber struct {
	mu       sync.Mutex
	requests []widget.SubscriptionRequest
	err      error
	gate     chan struct{}
}

func (s *fakeSubscriber) Subscribe(ctx context.Context, req widget.SubscriptionRequest) error {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	gate := s.gate
	err := s.err
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (s *fakeSubscriber) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *fakeSubscriber) last() widget.SubscriptionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

type recordedEvent struct {
	name  string
	props analytics.Properties
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *eventRecorder) Notify(name string, props analytics.Properties) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{name: name, props: props})
	return nil
}

func (r *eventRecorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.events {
		if e.name == name {
			n++
		}
	}
	return n
}

func (r *eventRecorder) first(name string) (recordedEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.events {
		if e.name == name {
			return e, true
		}
	}
	return recordedEvent{}, false
}

func configuredMerchant() config.MerchantConfig {
	cfg := config.NewResolver(config.Globals{
		"klaviyoPublicApiKey": "PK_test",
	}).Resolve()
	return cfg
}
