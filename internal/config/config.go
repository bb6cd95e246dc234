// Package config resolves the merchant's back-in-stock settings from
// whatever the hosting page exposes: explicit globals, settings embedded in
// inline scripts, or environment variables on a Go host.
package config

import "strconv"

// Setting keys as they appear in the theme settings schema.
const (
	KeyEnabled            = "klaviyo_back_in_stock_enabled"
	KeyPublicAPIKey       = "klaviyo_public_api_key"
	KeySMSMarketingListID = "klaviyo_sms_marketing_list_id"
	KeyBackInStockListID  = "klaviyo_back_in_stock_list_id"
	KeyConsentRequired    = "klaviyo_sms_consent_required"

	KeyButtonText      = "klaviyo_back_in_stock_button_text"
	KeyPreorderText    = "klaviyo_preorder_back_in_stock_override"
	KeyFormHeading     = "klaviyo_back_in_stock_form_heading"
	KeyFormDescription = "klaviyo_back_in_stock_form_description"
	KeySuccessMessage  = "klaviyo_back_in_stock_success_message"
	KeyConsentText     = "klaviyo_sms_consent_text"
	KeyColorScheme     = "klaviyo_back_in_stock_color_scheme"

	KeyErrorInvalidPhone      = "klaviyo_error_invalid_phone"
	KeyErrorAPIFailure        = "klaviyo_error_api_failure"
	KeyErrorAlreadySubscribed = "klaviyo_error_already_subscribed"
	KeyErrorConsentRequired   = "klaviyo_error_consent_required"
)

// Defaults for every setting that has one. API key and list IDs have none.
var Defaults = map[string]string{
	KeyEnabled:                "true",
	KeyButtonText:             "Notify When Available",
	KeyFormHeading:            "Get notified when available",
	KeyFormDescription:        "Enter your mobile number and we'll text you when this item is back in stock.",
	KeySuccessMessage:         "✓ You'll be notified when available",
	KeyConsentText:            "Also send me promotional texts (optional). Msg & data rates may apply.",
	KeyColorScheme:            "accent-1",
	KeyErrorInvalidPhone:      "Please enter a valid mobile number",
	KeyErrorAPIFailure:        "Unable to sign you up right now. Please try again.",
	KeyErrorAlreadySubscribed: "You're already signed up to be notified about this item.",
	KeyErrorConsentRequired:   "Please confirm you agree to receive text messages.",
}

// GlobalNames maps setting keys to the page globals that may override them.
var GlobalNames = map[string]string{
	KeyPublicAPIKey:       "klaviyoPublicApiKey",
	KeySMSMarketingListID: "klaviyoSmsMarketingListId",
	KeyBackInStockListID:  "klaviyoBackInStockListId",
}

// ErrorMessages holds the shopper-facing text for each failure kind.
type ErrorMessages struct {
	InvalidPhone      string `json:"invalidPhone"`
	APIFailure        string `json:"apiFailure"`
	AlreadySubscribed string `json:"alreadySubscribed"`
	ConsentRequired   string `json:"consentRequired"`
}

// Texts are the display strings the merchant can override.
type Texts struct {
	ButtonText      string `json:"buttonText"`
	PreorderText    string `json:"preorderText,omitempty"`
	FormHeading     string `json:"formHeading"`
	FormDescription string `json:"formDescription"`
	SuccessMessage  string `json:"successMessage"`
	ConsentText     string `json:"consentText"`
}

// MerchantConfig is read-only once resolved. Empty IDs mean "not configured".
type MerchantConfig struct {
	Enabled            bool          `json:"enabled"`
	PublicAPIKey       string        `json:"publicApiKey,omitempty"`
	SMSMarketingListID string        `json:"smsMarketingListId,omitempty"`
	BackInStockListID  string        `json:"backInStockListId,omitempty"`
	ConsentRequired    bool          `json:"consentRequired"`
	ColorScheme        string        `json:"colorScheme"`
	Texts              Texts         `json:"texts"`
	ErrorMessages      ErrorMessages `json:"errorMessages"`
}

// HasAPIKey reports whether submissions can be sent at all.
func (c MerchantConfig) HasAPIKey() bool {
	return c.PublicAPIKey != ""
}

// MarketingOptInEnabled reports whether the consent checkbox should be shown.
func (c MerchantConfig) MarketingOptInEnabled() bool {
	return c.SMSMarketingListID != ""
}

// Settings flattens the config back into setting keys, omitting empty values.
func (c MerchantConfig) Settings() map[string]string {
	m := map[string]string{
		KeyEnabled:                strconv.FormatBool(c.Enabled),
		KeyConsentRequired:        strconv.FormatBool(c.ConsentRequired),
		KeyPublicAPIKey:           c.PublicAPIKey,
		KeySMSMarketingListID:     c.SMSMarketingListID,
		KeyBackInStockListID:      c.BackInStockListID,
		KeyColorScheme:            c.ColorScheme,
		KeyButtonText:             c.Texts.ButtonText,
		KeyPreorderText:           c.Texts.PreorderText,
		KeyFormHeading:            c.Texts.FormHeading,
		KeyFormDescription:        c.Texts.FormDescription,
		KeySuccessMessage:         c.Texts.SuccessMessage,
		KeyConsentText:            c.Texts.ConsentText,
		KeyErrorInvalidPhone:      c.ErrorMessages.InvalidPhone,
		KeyErrorAPIFailure:        c.ErrorMessages.APIFailure,
		KeyErrorAlreadySubscribed: c.ErrorMessages.AlreadySubscribed,
		KeyErrorConsentRequired:   c.ErrorMessages.ConsentRequired,
	}
	for k, v := range m {
		if v == "" {
			delete(m, k)
		}
	}
	return m
}
