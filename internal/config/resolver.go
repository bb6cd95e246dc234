package config

import (
	"os"
	"regexp"
	"strings"
	"sync"
)

// Source looks up a raw setting value.
type Source interface {
	Lookup(key string) (string, bool)
}

// Globals holds explicit process-wide values keyed by global name
// (see GlobalNames), e.g. window.klaviyoPublicApiKey, or by setting key.
type Globals map[string]string

func (g Globals) Lookup(key string) (string, bool) {
	if name, ok := GlobalNames[key]; ok {
		if v, ok := g.get(name); ok {
			return v, true
		}
	}
	return g.get(key)
}

func (g Globals) get(name string) (string, bool) {
	v, ok := g[name]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// MarkupSource finds `"key": "value"` pairs inside inline script bodies.
type MarkupSource struct {
	scripts []string

	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

func NewMarkupSource(scripts ...string) *MarkupSource {
	return &MarkupSource{scripts: scripts, patterns: map[string]*regexp.Regexp{}}
}

func (m *MarkupSource) Lookup(key string) (string, bool) {
	re := m.pattern(key)
	for _, script := range m.scripts {
		if !strings.Contains(script, key) {
			continue
		}
		if match := re.FindStringSubmatch(script); match != nil {
			return match[1], true
		}
	}
	return "", false
}

func (m *MarkupSource) pattern(key string) *regexp.Regexp {
	m.mu.Lock()
	defer m.mu.Unlock()

	if re, ok := m.patterns[key]; ok {
		return re
	}
	re := regexp.MustCompile(regexp.QuoteMeta(key) + `['"]\s*:\s*['"]([^'"]+)['"]`)
	m.patterns[key] = re
	return re
}

// EnvSource reads settings from environment variables named after the
// upper-cased setting key, e.g. KLAVIYO_PUBLIC_API_KEY.
type EnvSource struct {
	Prefix string
}

func (e EnvSource) Lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(e.Prefix + strings.ToUpper(key))
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Resolver resolves a MerchantConfig from an ordered list of sources.
// Earlier sources win; defaults fill whatever is left.
type Resolver struct {
	sources []Source
}

func NewResolver(sources ...Source) *Resolver {
	return &Resolver{sources: sources}
}

// Resolve never fails. Missing API key and list IDs resolve to "".
func (r *Resolver) Resolve() MerchantConfig {
	return MerchantConfig{
		Enabled:            parseBool(r.lookup(KeyEnabled)),
		PublicAPIKey:       r.lookup(KeyPublicAPIKey),
		SMSMarketingListID: r.lookup(KeySMSMarketingListID),
		BackInStockListID:  r.lookup(KeyBackInStockListID),
		ConsentRequired:    parseBool(r.lookup(KeyConsentRequired)),
		ColorScheme:        r.lookup(KeyColorScheme),
		Texts: Texts{
			ButtonText:      r.lookup(KeyButtonText),
			PreorderText:    r.lookup(KeyPreorderText),
			FormHeading:     r.lookup(KeyFormHeading),
			FormDescription: r.lookup(KeyFormDescription),
			SuccessMessage:  r.lookup(KeySuccessMessage),
			ConsentText:     r.lookup(KeyConsentText),
		},
		ErrorMessages: ErrorMessages{
			InvalidPhone:      r.lookup(KeyErrorInvalidPhone),
			APIFailure:        r.lookup(KeyErrorAPIFailure),
			AlreadySubscribed: r.lookup(KeyErrorAlreadySubscribed),
			ConsentRequired:   r.lookup(KeyErrorConsentRequired),
		},
	}
}

func (r *Resolver) lookup(key string) string {
	for _, src := range r.sources {
		if src == nil {
			continue
		}
		if v, ok := src.Lookup(key); ok {
			return v
		}
	}
	return Defaults[key]
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
