package widget

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/restock-alert/restock-alert/internal/analytics"
	"github.com/restock-alert/restock-alert/internal/config"
	"github.com/restock-alert/restock-alert/internal/phone"
	"github.com/restock-alert/restock-alert/internal/subcache"
)

// DefaultSubmitTimeout bounds how long a submission may stay in flight.
const DefaultSubmitTimeout = 15 * time.Second

// Deps are the collaborators of a single Controller.
type Deps struct {
	Config        config.MerchantConfig
	Cache         *subcache.Cache
	Emitter       *analytics.Emitter
	Subscriber    Subscriber
	Logger        *zap.Logger
	SubmitTimeout time.Duration
}

// Controller runs the state machine of one widget instance.
//
// All view calls happen with mu held, so a view never sees two updates
// interleave. The subscriber call runs on its own goroutine; its result
// is applied only if the submission it belongs to is still current.
type Controller struct {
	inst       Instance
	view       View
	cfg        config.MerchantConfig
	cache      *subcache.Cache
	emitter    *analytics.Emitter
	subscriber Subscriber
	logger     *zap.Logger
	timeout    time.Duration

	mu         sync.Mutex
	state      State
	generation uint64
	lastErr    error
	bound      bool

	inflight sync.WaitGroup
}

func NewController(inst Instance, view View, deps Deps) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := deps.SubmitTimeout
	if timeout <= 0 {
		timeout = DefaultSubmitTimeout
	}

	return &Controller{
		inst:       inst,
		view:       view,
		cfg:        deps.Config,
		cache:      deps.Cache,
		emitter:    deps.Emitter,
		subscriber: deps.Subscriber,
		logger:     logger.With(zap.String("widget", inst.Key()), zap.String("product_id", inst.ProductID)),
		timeout:    timeout,
		state:      StateInitial,
	}
}

// Bind wires the view's controls to this controller. Only the first call
// has any effect.
func (c *Controller) Bind() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bound {
		return
	}
	c.bound = true

	c.view.Bind(Handlers{
		Activate:   c.Activate,
		Cancel:     c.Cancel,
		Retry:      c.Retry,
		Submit:     func(v FormValues) { _ = c.Submit(v) },
		PhoneInput: c.PhoneInput,
		PhoneBlur:  c.PhoneBlur,
	})
	c.view.Render(c.cfg)
	c.view.ShowRegion(RegionInitial)

	if !c.canSend() {
		c.logger.Warn("no public API key or subscriber configured, submissions disabled")
		c.view.SetSubmitEnabled(false)
	}
}

// Release detaches the view's controls and drops any in-flight result. A
// released controller is never bound again.
func (c *Controller) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.bound {
		return
	}
	c.view.Release()
	c.generation++
}

func (c *Controller) Instance() Instance {
	return c.inst
}

func (c *Controller) Config() config.MerchantConfig {
	return c.cfg
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the failure behind the current Error state, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Activate opens the form from the initial state.
func (c *Controller) Activate() {
	c.mu.Lock()
	if c.state != StateInitial {
		c.mu.Unlock()
		return
	}
	c.state = StateFormOpen
	c.view.ShowRegion(RegionForm)
	c.view.FocusPhone()
	c.mu.Unlock()

	c.emitter.Emit(analytics.EventFormOpened, c.properties())
}

// Cancel closes the form and resets it. Cancelling during a submission
// abandons it; its eventual result is ignored.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateFormOpen:
	case StateSubmitting:
		c.generation++
		c.view.SetBusy(false)
	default:
		return
	}

	c.state = StateInitial
	c.lastErr = nil
	c.view.ClearFieldErrors()
	c.view.ResetForm()
	c.view.ShowRegion(RegionInitial)
}

// Retry returns to the form from Error or Success, keeping entered values.
func (c *Controller) Retry() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateError && c.state != StateSuccess {
		return
	}
	c.state = StateFormOpen
	c.lastErr = nil
	c.view.ShowRegion(RegionForm)
	c.view.FocusPhone()
}

// PhoneInput formats the phone field as the shopper types.
func (c *Controller) PhoneInput(raw string) string {
	return phone.Format(raw)
}

// PhoneBlur shows or clears the invalid-phone error for a non-empty value.
func (c *Controller) PhoneBlur(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if value != "" && !phone.IsValid(value) {
		c.view.ShowFieldError(FieldPhone, c.cfg.ErrorMessages.InvalidPhone)
		return
	}
	c.view.ClearFieldError(FieldPhone)
}

// Submit validates the form and starts a submission. The phone must already
// be in display form, as PhoneInput leaves it. Validation and
// configuration problems are returned and leave the form open. A duplicate
// goes straight to Error and returns ErrDuplicateSubmission. Calls outside
// FormOpen, including while a submission is in flight, are ignored.
func (c *Controller) Submit(values FormValues) error {
	c.mu.Lock()
	if c.state != StateFormOpen {
		c.mu.Unlock()
		return nil
	}
	if !c.canSend() {
		c.mu.Unlock()
		return ErrNotConfigured
	}

	if !phone.IsValid(values.Phone) {
		c.view.ShowFieldError(FieldPhone, c.cfg.ErrorMessages.InvalidPhone)
		c.mu.Unlock()
		return ErrInvalidPhone
	}
	c.view.ClearFieldError(FieldPhone)

	optInOffered := c.cfg.MarketingOptInEnabled()
	if optInOffered && c.cfg.ConsentRequired && !values.MarketingOptIn {
		c.view.ShowFieldError(FieldConsent, c.cfg.ErrorMessages.ConsentRequired)
		c.mu.Unlock()
		return ErrConsentRequired
	}
	c.view.ClearFieldError(FieldConsent)

	req := SubscriptionRequest{
		ProductID:         c.inst.ProductID,
		VariantID:         c.inst.VariantID,
		Phone:             phone.ToCanonical(values.Phone),
		SMSMarketingOptIn: optInOffered && values.MarketingOptIn,
	}
	if req.SMSMarketingOptIn {
		req.ListID = c.cfg.SMSMarketingListID
	}

	c.state = StateSubmitting
	c.view.SetBusy(true)

	if c.cache != nil && !c.cache.CanSubmit(req.ProductID, req.Phone) {
		c.fail(ErrDuplicateSubmission, c.cfg.ErrorMessages.AlreadySubscribed)
		c.mu.Unlock()

		c.emitter.Emit(analytics.EventSubscribeFailed, c.properties(analytics.PropReason, "already_subscribed"))
		return ErrDuplicateSubmission
	}

	c.generation++
	gen := c.generation
	c.inflight.Add(1)
	c.mu.Unlock()

	go c.send(gen, req)
	return nil
}

// Wait blocks until every started submission has settled.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

func (c *Controller) send(gen uint64, req SubscriptionRequest) {
	defer c.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	err := c.subscriber.Subscribe(ctx, req)
	cancel()

	if err == nil && c.cache != nil {
		c.cache.MarkSubmitted(context.Background(), req.ProductID, req.Phone)
	}

	c.mu.Lock()
	if c.state != StateSubmitting || c.generation != gen {
		c.mu.Unlock()
		c.logger.Debug("ignoring late subscription result", zap.Error(err))
		return
	}

	if err != nil {
		c.fail(err, c.cfg.ErrorMessages.APIFailure)
		c.mu.Unlock()

		c.logger.Warn("subscription failed", zap.Error(err))
		c.emitter.Emit(analytics.EventSubscribeFailed, c.properties(analytics.PropReason, "api_failure"))
		return
	}

	c.state = StateSuccess
	c.view.SetBusy(false)
	c.view.ShowRegion(RegionSuccess)
	c.mu.Unlock()

	c.emitter.Emit(analytics.EventSubscribed, c.properties())
}

// fail moves to Error. Caller holds mu.
func (c *Controller) fail(err error, message string) {
	c.state = StateError
	c.lastErr = err
	c.view.SetBusy(false)
	c.view.SetErrorMessage(message)
	c.view.ShowRegion(RegionError)
}

func (c *Controller) canSend() bool {
	return c.cfg.HasAPIKey() && c.subscriber != nil
}

func (c *Controller) properties(extra ...string) analytics.Properties {
	props := analytics.Properties{
		analytics.PropProductID:   c.inst.ProductID,
		analytics.PropProductName: c.inst.ProductTitle,
		analytics.PropVariantID:   c.inst.VariantID,
		analytics.PropContext:     c.inst.Context,
	}
	for i := 0; i+1 < len(extra); i += 2 {
		props[extra[i]] = extra[i+1]
	}
	return props
}
