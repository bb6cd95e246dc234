package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/restock-alert/restock-alert/internal/config"
)

// Globals set by the settings script besides the named config globals.
const (
	GlobalSettings = "klaviyoBackInStockSettings"
	GlobalServer   = "klaviyoBackInStockServer"
)

// handleSettingsJS serves the merchant settings as page globals
func (s *Server) handleSettingsJS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Determine server URL from request
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	serverURL := fmt.Sprintf("%s://%s", scheme, r.Host)

	script, err := GenerateSettingsScript(serverURL, s.merchant)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Write([]byte(script))
}

// GenerateSettingsScript renders the bis.js body: one window assignment per
// named global, the relay server URL and the full settings object.
func GenerateSettingsScript(serverURL string, cfg config.MerchantConfig) (string, error) {
	settings := cfg.Settings()

	var b strings.Builder
	b.WriteString("(function(){\n")

	keys := make([]string, 0, len(config.GlobalNames))
	for key := range config.GlobalNames {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		v, ok := settings[key]
		if !ok {
			continue
		}
		if err := writeAssign(&b, config.GlobalNames[key], v); err != nil {
			return "", err
		}
	}
	if err := writeAssign(&b, GlobalServer, serverURL); err != nil {
		return "", err
	}
	if err := writeAssign(&b, GlobalSettings, settings); err != nil {
		return "", err
	}

	b.WriteString("})();\n")
	return b.String(), nil
}

func writeAssign(b *strings.Builder, name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	fmt.Fprintf(b, "  window.%s = %s;\n", name, data)
	return nil
}
