// Package widget drives back-in-stock widget instances: one Controller per
// rendered instance, and a Manager that finds and binds instances.
package widget

import (
	"context"
	"errors"

	"github.com/restock-alert/restock-alert/internal/config"
)

// State is where a widget instance is in its sign-up flow.
type State int

const (
	StateInitial State = iota
	StateFormOpen
	StateSubmitting
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateFormOpen:
		return "form"
	case StateSubmitting:
		return "submitting"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Region is one of the mutually exclusive visible sections of a widget.
type Region int

const (
	RegionInitial Region = iota
	RegionForm
	RegionSuccess
	RegionError
)

// Field names a form input that can carry a field-level error.
type Field string

const (
	FieldPhone   Field = "phone"
	FieldConsent Field = "sms_consent"
)

var (
	ErrInvalidPhone        = errors.New("invalid phone number")
	ErrConsentRequired     = errors.New("sms consent required")
	ErrDuplicateSubmission = errors.New("already subscribed")
	ErrNotConfigured       = errors.New("widget not configured")
)

// Instance is one rendered occurrence of the widget.
type Instance struct {
	ID           string
	ProductID    string
	VariantID    string
	ProductTitle string
	Context      string
}

// Key returns the instance ID, or a product/variant/context composite when
// the markup carried no explicit ID.
func (i Instance) Key() string {
	if i.ID != "" {
		return i.ID
	}
	return i.ProductID + "-" + i.VariantID + "-" + i.Context
}

// FormValues is what the shopper entered.
type FormValues struct {
	Phone          string
	MarketingOptIn bool
}

// SubscriptionRequest is built per submit and handed to the Subscriber.
type SubscriptionRequest struct {
	ProductID         string `json:"product_id"`
	VariantID         string `json:"variant_id"`
	Phone             string `json:"phone"`
	SMSMarketingOptIn bool   `json:"sms_marketing_opt_in"`
	ListID            string `json:"list_id,omitempty"`
}

// Subscriber is the network boundary. A nil error means accepted.
type Subscriber interface {
	Subscribe(ctx context.Context, req SubscriptionRequest) error
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ctx context.Context, req SubscriptionRequest) error

func (f SubscriberFunc) Subscribe(ctx context.Context, req SubscriptionRequest) error {
	return f(ctx, req)
}

// Handlers are the callbacks a View wires to its controls.
type Handlers struct {
	Activate   func()
	Cancel     func()
	Retry      func()
	Submit     func(FormValues)
	PhoneInput func(raw string) string
	PhoneBlur  func(value string)
}

// View is the rendering surface for one instance: a DOM subtree in a
// browser, a terminal in the CLI. Release undoes Bind.
type View interface {
	Bind(h Handlers)
	Release()
	Render(cfg config.MerchantConfig)
	ShowRegion(r Region)
	FocusPhone()
	ResetForm()
	ShowFieldError(f Field, message string)
	ClearFieldError(f Field)
	ClearFieldErrors()
	SetBusy(busy bool)
	SetSubmitEnabled(enabled bool)
	SetErrorMessage(message string)
}

// ConfigProvider yields the merchant configuration for an instance.
type ConfigProvider interface {
	Resolve() config.MerchantConfig
}

// Marker is a discovered widget instance together with its view.
type Marker struct {
	Instance Instance
	View     View
}

// Document is anything that can list the widget markers currently rendered.
type Document interface {
	Markers() []Marker
}

// DocumentFunc adapts a function to Document.
type DocumentFunc func() []Marker

func (f DocumentFunc) Markers() []Marker {
	return f()
}
