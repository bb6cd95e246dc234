package widget_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restock-alert/restock-alert/internal/analytics"
	"github.com/restock-alert/restock-alert/internal/config"
	"github.com/restock-alert/restock-alert/internal/subcache"
	"github.com/restock-alert/restock-alert/internal/widget"
)

var testInstance = widget.Instance{
	ID:           "bis-1",
	ProductID:    "8001",
	VariantID:    "9001",
	ProductTitle: "Trail Runner",
	Context:      "product",
}

type harness struct {
	ctrl   *widget.Controller
	view   *fakeView
	sub    *fakeSubscriber
	cache  *subcache.Cache
	events *eventRecorder
}

func newHarness(t *testing.T, cfg config.MerchantConfig) *harness {
	t.Helper()

	h := &harness{
		view:   newFakeView(),
		sub:    &fakeSubscriber{},
		cache:  subcache.New(context.Background(), subcache.NewMemoryStorage()),
		events: &eventRecorder{},
	}
	h.ctrl = widget.NewController(testInstance, h.view, widget.Deps{
		Config:     cfg,
		Cache:      h.cache,
		Emitter:    analytics.NewEmitter(nil, h.events),
		Subscriber: h.sub,
	})
	h.ctrl.Bind()
	return h
}

func TestController_Bind(t *testing.T) {
	h := newHarness(t, configuredMerchant())

	s := h.view.snapshot()
	assert.Equal(t, 1, s.binds)
	assert.Equal(t, widget.RegionInitial, s.region)
	assert.False(t, s.submitDisabled)
	require.NotNil(t, s.rendered)
	assert.Equal(t, "PK_test", s.rendered.PublicAPIKey)

	h.ctrl.Bind()
	assert.Equal(t, 1, h.view.snapshot().binds)
}

func TestController_HappyPath(t *testing.T) {
	h := newHarness(t, configuredMerchant())
	h.sub.gate = make(chan struct{})

	assert.Equal(t, widget.StateInitial, h.ctrl.State())

	h.ctrl.Activate()
	s := h.view.snapshot()
	assert.Equal(t, widget.StateFormOpen, h.ctrl.State())
	assert.Equal(t, widget.RegionForm, s.region)
	assert.Equal(t, 1, s.focused)

	opened, ok := h.events.first(analytics.EventFormOpened)
	require.True(t, ok)
	assert.Equal(t, analytics.Properties{
		"Product ID":   "8001",
		"Product Name": "Trail Runner",
		"Variant ID":   "9001",
		"Context":      "product",
	}, opened.props)

	// Invalid phone stays on the form with a field error and no network call.
	err := h.ctrl.Submit(widget.FormValues{Phone: "555-1234"})
	assert.ErrorIs(t, err, widget.ErrInvalidPhone)
	assert.Equal(t, widget.StateFormOpen, h.ctrl.State())
	assert.Equal(t, "Please enter a valid mobile number", h.view.snapshot().fieldErrors[widget.FieldPhone])
	assert.Equal(t, 0, h.sub.calls())

	// Valid phone moves to Submitting with the control disabled.
	require.NoError(t, h.ctrl.Submit(widget.FormValues{Phone: "(555) 123-4567"}))
	assert.Equal(t, widget.StateSubmitting, h.ctrl.State())
	s = h.view.snapshot()
	assert.True(t, s.busy)
	assert.Empty(t, s.fieldErrors)

	// Re-entrant submit is ignored.
	assert.NoError(t, h.ctrl.Submit(widget.FormValues{Phone: "(555) 123-4567"}))

	close(h.sub.gate)
	h.ctrl.Wait()

	assert.Equal(t, 1, h.sub.calls())
	assert.Equal(t, widget.StateSuccess, h.ctrl.State())
	s = h.view.snapshot()
	assert.Equal(t, widget.RegionSuccess, s.region)
	assert.False(t, s.busy)
	assert.False(t, h.cache.CanSubmit("8001", "+15551234567"))
	assert.Equal(t, 1, h.events.count(analytics.EventSubscribed))

	req := h.sub.last()
	assert.Equal(t, widget.SubscriptionRequest{
		ProductID: "8001",
		VariantID: "9001",
		Phone:     "+15551234567",
	}, req)
}

func TestController_SubmitRequiresDisplayForm(t *testing.T) {
	h := newHarness(t, configuredMerchant())
	h.ctrl.Activate()

	for _, raw := range []string{"555-123-4567", "5551234567", "+1 555 123 4567"} {
		err := h.ctrl.Submit(widget.FormValues{Phone: raw})
		assert.ErrorIs(t, err, widget.ErrInvalidPhone, raw)
	}
	assert.Equal(t, widget.StateFormOpen, h.ctrl.State())
	assert.Equal(t, 0, h.sub.calls())

	require.NoError(t, h.ctrl.Submit(widget.FormValues{Phone: h.ctrl.PhoneInput("555-123-4567")}))
	h.ctrl.Wait()
	assert.Equal(t, "+15551234567", h.sub.last().Phone)
}

func TestController_DuplicateSubmission(t *testing.T) {
	h := newHarness(t, configuredMerchant())
	h.cache.MarkSubmitted(context.Background(), "8001", "+15551234567")

	h.ctrl.Activate()
	err := h.ctrl.Submit(widget.FormValues{Phone: "(555) 123-4567"})

	assert.ErrorIs(t, err, widget.ErrDuplicateSubmission)
	assert.ErrorIs(t, h.ctrl.Err(), widget.ErrDuplicateSubmission)
	assert.Equal(t, widget.StateError, h.ctrl.State())
	s := h.view.snapshot()
	assert.Equal(t, widget.RegionError, s.region)
	assert.Equal(t, "You're already signed up to be notified about this item.", s.errorMessage)
	assert.False(t, s.busy)
	assert.Equal(t, 0, h.sub.calls())
}

func TestController_NetworkFailure(t *testing.T) {
	h := newHarness(t, configuredMerchant())
	h.sub.err = errors.New("klaviyo returned 500")

	h.ctrl.Activate()
	require.NoError(t, h.ctrl.Submit(widget.FormValues{Phone: "(555) 123-4567"}))
	h.ctrl.Wait()

	assert.Equal(t, widget.StateError, h.ctrl.State())
	assert.Equal(t, "Unable to sign you up right now. Please try again.", h.view.snapshot().errorMessage)
	assert.True(t, h.cache.CanSubmit("8001", "+15551234567"), "failed submissions are not cached")

	failed, ok := h.events.first(analytics.EventSubscribeFailed)
	require.True(t, ok)
	assert.Equal(t, "api_failure", failed.props["Reason"])

	// Retry goes back to the form without resetting it.
	h.ctrl.Retry()
	assert.Equal(t, widget.StateFormOpen, h.ctrl.State())
	s := h.view.snapshot()
	assert.Equal(t, widget.RegionForm, s.region)
	assert.Equal(t, 0, s.resets)
	assert.NoError(t, h.ctrl.Err())
}

func TestController_Timeout(t *testing.T) {
	view := newFakeView()
	sub := &fakeSubscriber{gate: make(chan struct{})}
	ctrl := widget.NewController(testInstance, view, widget.Deps{
		Config:        configuredMerchant(),
		Subscriber:    sub,
		SubmitTimeout: 20 * time.Millisecond,
	})
	ctrl.Bind()

	ctrl.Activate()
	require.NoError(t, ctrl.Submit(widget.FormValues{Phone: "(555) 123-4567"}))
	ctrl.Wait()

	assert.Equal(t, widget.StateError, ctrl.State())
	assert.ErrorIs(t, ctrl.Err(), context.DeadlineExceeded)
}

func TestController_CancelResetsForm(t *testing.T) {
	h := newHarness(t, configuredMerchant())

	h.ctrl.Activate()
	_ = h.ctrl.Submit(widget.FormValues{Phone: "12"})
	require.NotEmpty(t, h.view.snapshot().fieldErrors)

	h.ctrl.Cancel()

	s := h.view.snapshot()
	assert.Equal(t, widget.StateInitial, h.ctrl.State())
	assert.Equal(t, widget.RegionInitial, s.region)
	assert.Empty(t, s.fieldErrors)
	assert.Equal(t, 1, s.resets)
}

func TestController_LateResponseAfterCancel(t *testing.T) {
	h := newHarness(t, configuredMerchant())
	h.sub.gate = make(chan struct{})

	h.ctrl.Activate()
	require.NoError(t, h.ctrl.Submit(widget.FormValues{Phone: "(555) 123-4567"}))
	h.ctrl.Cancel()
	assert.Equal(t, widget.StateInitial, h.ctrl.State())

	close(h.sub.gate)
	h.ctrl.Wait()

	assert.Equal(t, widget.StateInitial, h.ctrl.State())
	assert.Equal(t, widget.RegionInitial, h.view.snapshot().region)
	assert.Equal(t, 0, h.events.count(analytics.EventSubscribed))
}

func TestController_InvalidTransitionsIgnored(t *testing.T) {
	h := newHarness(t, configuredMerchant())

	h.ctrl.Retry()
	h.ctrl.Cancel()
	assert.NoError(t, h.ctrl.Submit(widget.FormValues{Phone: "(555) 123-4567"}))
	assert.Equal(t, widget.StateInitial, h.ctrl.State())
	assert.Equal(t, 0, h.sub.calls())

	h.ctrl.Activate()
	h.ctrl.Activate()
	assert.Equal(t, 1, h.events.count(analytics.EventFormOpened))
}

func TestController_ConsentRequired(t *testing.T) {
	cfg := configuredMerchant()
	cfg.SMSMarketingListID = "LIST1"
	cfg.ConsentRequired = true
	h := newHarness(t, cfg)

	h.ctrl.Activate()
	err := h.ctrl.Submit(widget.FormValues{Phone: "(555) 123-4567"})
	assert.ErrorIs(t, err, widget.ErrConsentRequired)
	assert.Equal(t, widget.StateFormOpen, h.ctrl.State())
	assert.Contains(t, h.view.snapshot().fieldErrors, widget.FieldConsent)
	assert.Equal(t, 0, h.sub.calls())

	require.NoError(t, h.ctrl.Submit(widget.FormValues{Phone: "(555) 123-4567", MarketingOptIn: true}))
	h.ctrl.Wait()

	assert.Equal(t, widget.StateSuccess, h.ctrl.State())
	req := h.sub.last()
	assert.True(t, req.SMSMarketingOptIn)
	assert.Equal(t, "LIST1", req.ListID)
}

func TestController_OptInWithoutListIsDropped(t *testing.T) {
	h := newHarness(t, configuredMerchant())

	h.ctrl.Activate()
	require.NoError(t, h.ctrl.Submit(widget.FormValues{Phone: "(555) 123-4567", MarketingOptIn: true}))
	h.ctrl.Wait()

	req := h.sub.last()
	assert.False(t, req.SMSMarketingOptIn)
	assert.Empty(t, req.ListID)
}

func TestController_NotConfigured(t *testing.T) {
	h := newHarness(t, config.NewResolver().Resolve())

	assert.True(t, h.view.snapshot().submitDisabled)

	h.ctrl.Activate()
	assert.Equal(t, widget.StateFormOpen, h.ctrl.State())

	err := h.ctrl.Submit(widget.FormValues{Phone: "(555) 123-4567"})
	assert.ErrorIs(t, err, widget.ErrNotConfigured)
	assert.Equal(t, widget.StateFormOpen, h.ctrl.State())
	assert.Equal(t, 0, h.sub.calls())
}

func TestController_PhoneHelpers(t *testing.T) {
	h := newHarness(t, configuredMerchant())

	assert.Equal(t, "(555) 123-4567", h.ctrl.PhoneInput("5551234567"))

	h.ctrl.PhoneBlur("(555) 123")
	assert.Contains(t, h.view.snapshot().fieldErrors, widget.FieldPhone)

	h.ctrl.PhoneBlur("(555) 123-4567")
	assert.NotContains(t, h.view.snapshot().fieldErrors, widget.FieldPhone)

	h.ctrl.PhoneBlur("12")
	h.ctrl.PhoneBlur("")
	assert.NotContains(t, h.view.snapshot().fieldErrors, widget.FieldPhone)
}

func TestController_HandlersDriveController(t *testing.T) {
	h := newHarness(t, configuredMerchant())

	h.view.click()
	assert.Equal(t, widget.StateFormOpen, h.ctrl.State())

	h.view.handlers[0].Submit(widget.FormValues{Phone: "(555) 123-4567"})
	h.ctrl.Wait()
	assert.Equal(t, widget.StateSuccess, h.ctrl.State())

	h.view.handlers[0].Retry()
	assert.Equal(t, widget.StateFormOpen, h.ctrl.State())

	h.view.handlers[0].Cancel()
	assert.Equal(t, widget.StateInitial, h.ctrl.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "initial", widget.StateInitial.String())
	assert.Equal(t, "submitting", widget.StateSubmitting.String())
	assert.Equal(t, "unknown", widget.State(42).String())
}
