package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/restock-alert/restock-alert/internal/analytics"
	"github.com/restock-alert/restock-alert/internal/store"
	"github.com/restock-alert/restock-alert/internal/widget"
)

type HealthResponse struct {
	Status             string `json:"status"`
	EventsCount        int    `json:"events_count"`
	SubscriptionsCount int    `json:"subscriptions_count"`
	RelayEnabled       bool   `json:"relay_enabled"`
	DBSizeBytes        int64  `json:"db_size_bytes"`
	UptimeSeconds      int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	counts, err := s.store.CountEvents(ctx)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	events := 0
	for _, c := range counts {
		events += c.Count
	}

	subs, err := s.store.CountSubscriptions(ctx, "")
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Get database size
	var dbSize int64
	db := s.store.DB()
	row := db.QueryRowContext(ctx, "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()")
	if err := row.Scan(&dbSize); err != nil {
		if info, statErr := os.Stat(s.store.Path()); statErr == nil {
			dbSize = info.Size()
		}
	}

	stats := db.Stats()
	s.metrics.RecordDBPoolStats(stats.OpenConnections, stats.InUse, stats.Idle, stats.WaitCount, stats.WaitDuration)

	response := HealthResponse{
		Status:             "ok",
		EventsCount:        events,
		SubscriptionsCount: subs,
		RelayEnabled:       s.subscriber != nil,
		DBSizeBytes:        dbSize,
		UptimeSeconds:      int64(time.Since(s.startTime).Seconds()),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func setCORS(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// handleBeacon stores one analytics event sent by a widget
func (s *Server) handleBeacon(w http.ResponseWriter, r *http.Request) {
	setCORS(w, "POST, OPTIONS")

	// Handle preflight
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req analytics.BeaconPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Name == "" {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	e := &store.Event{
		Name:       req.Name,
		SessionID:  req.SessionID,
		ProductID:  req.Properties[analytics.PropProductID],
		VariantID:  req.Properties[analytics.PropVariantID],
		Context:    req.Properties[analytics.PropContext],
		Properties: req.Properties,
	}
	if err := s.store.RecordEvent(r.Context(), e); err != nil {
		s.logger.Error("failed to record beacon", zap.String("event", req.Name), zap.Error(err))
		http.Error(w, "Failed to record event", http.StatusInternalServerError)
		return
	}
	s.metrics.BeaconEvents.WithLabelValues(req.Name).Inc()

	w.WriteHeader(http.StatusNoContent)
}

// SubscribeRequest is the relay's inbound body; it mirrors widget.SubscriptionRequest
type SubscribeRequest struct {
	ProductID         string `json:"product_id" validate:"required,max=64"`
	VariantID         string `json:"variant_id" validate:"required,numeric,max=32"`
	Phone             string `json:"phone" validate:"required,us_phone"`
	SMSMarketingOptIn bool   `json:"sms_marketing_opt_in"`
	ListID            string `json:"list_id" validate:"omitempty,alphanum,max=32"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleSubscribe relays a sign-up to the marketing platform
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	setCORS(w, "POST, OPTIONS")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.subscriber == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "relay not configured"})
		return
	}

	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON"})
		return
	}
	if err := s.validate.Validate(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	sub := widget.SubscriptionRequest{
		ProductID:         req.ProductID,
		VariantID:         req.VariantID,
		Phone:             req.Phone,
		SMSMarketingOptIn: req.SMSMarketingOptIn,
	}
	if req.SMSMarketingOptIn {
		sub.ListID = req.ListID
		if sub.ListID == "" {
			sub.ListID = s.merchant.SMSMarketingListID
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.relayTimeout)
	defer cancel()

	start := time.Now()
	err := s.subscriber.Subscribe(ctx, sub)
	s.metrics.UpstreamDuration.Observe(time.Since(start).Seconds())

	record := &store.Subscription{
		ProductID:      sub.ProductID,
		VariantID:      sub.VariantID,
		Phone:          sub.Phone,
		MarketingOptIn: sub.SMSMarketingOptIn,
		Outcome:        store.OutcomeAccepted,
	}
	if err != nil {
		record.Outcome = store.OutcomeFailed
		record.Error = err.Error()
	}
	// Record with a fresh context so a timed-out upstream call is still logged
	if recErr := s.store.RecordSubscription(context.Background(), record); recErr != nil {
		s.logger.Error("failed to record subscription", zap.Error(recErr))
	}
	s.metrics.Subscriptions.WithLabelValues(string(record.Outcome)).Inc()

	if err != nil {
		s.logger.Warn("relay subscribe failed",
			zap.String("product_id", sub.ProductID),
			zap.String("variant_id", sub.VariantID),
			zap.Error(err),
		)
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, status, errorResponse{Error: "subscription failed"})
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
