package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restock-alert/restock-alert/internal/page"
	"github.com/restock-alert/restock-alert/internal/store"
	"github.com/restock-alert/restock-alert/internal/widget"
)

const productPage = `<html><head>
<script>window.klaviyoPublicApiKey = "PK_test";</script>
</head><body>
<div id="bis-main" class="klaviyo-back-in-stock" data-product-id="8001" data-variant-id="9001"
     data-product-title="Trail Runner" data-context="product"></div>
</body></html>`

// scriptedPrompter answers prompts from a fixed script, in order.
type scriptedPrompter struct {
	t       *testing.T
	selects []int
	inputs  []string
	confirm []bool
	labels  []string
}

func (s *scriptedPrompter) Select(label string, items []string) (int, error) {
	s.labels = append(s.labels, label)
	if len(s.selects) == 0 {
		s.t.Fatalf("unexpected select prompt %q", label)
	}
	idx := s.selects[0]
	s.selects = s.selects[1:]
	return idx, nil
}

func (s *scriptedPrompter) Input(label string, validate func(string) error) (string, error) {
	s.labels = append(s.labels, label)
	if len(s.inputs) == 0 {
		s.t.Fatalf("unexpected input prompt %q", label)
	}
	v := s.inputs[0]
	s.inputs = s.inputs[1:]
	if err := validate(v); err != nil {
		s.t.Fatalf("scripted input %q failed validation: %v", v, err)
	}
	return v, nil
}

func (s *scriptedPrompter) Confirm(label string) (bool, error) {
	s.labels = append(s.labels, label)
	if len(s.confirm) == 0 {
		s.t.Fatalf("unexpected confirm prompt %q", label)
	}
	v := s.confirm[0]
	s.confirm = s.confirm[1:]
	return v, nil
}

type relayStub struct {
	mu     sync.Mutex
	reqs   []widget.SubscriptionRequest
	status int
}

func newRelayStub(t *testing.T, status int) (*httptest.Server, *relayStub) {
	t.Helper()
	stub := &relayStub{status: status}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req widget.SubscriptionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		stub.mu.Lock()
		stub.reqs = append(stub.reqs, req)
		stub.mu.Unlock()
		w.WriteHeader(stub.status)
	}))
	t.Cleanup(srv.Close)
	return srv, stub
}

func (r *relayStub) requests() []widget.SubscriptionRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]widget.SubscriptionRequest(nil), r.reqs...)
}

func setupSubscribe(t *testing.T, html string) (*page.Page, *store.SQLiteStore) {
	t.Helper()
	p, err := page.Parse(strings.NewReader(html))
	require.NoError(t, err)

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return p, s
}

func TestSubscribe_HappyPath(t *testing.T) {
	p, s := setupSubscribe(t, productPage)
	relay, stub := newRelayStub(t, http.StatusAccepted)

	in := &scriptedPrompter{
		t:       t,
		selects: []int{0, 1}, // open the form, then Done
		inputs:  []string{"555.123.4567"},
	}
	var out bytes.Buffer
	err := runSubscribe(context.Background(), &out, p, s, subscribeOptions{relayURL: relay.URL}, in)
	require.NoError(t, err)

	reqs := stub.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, widget.SubscriptionRequest{ProductID: "8001", VariantID: "9001", Phone: "+15551234567"}, reqs[0])
	assert.Contains(t, out.String(), "Trail Runner (variant 9001)")
	assert.Contains(t, out.String(), "You'll be notified when available")
}

func TestSubscribe_DisabledStore(t *testing.T) {
	disabled := strings.Replace(productPage, "</head>",
		`<script>var s = {"klaviyo_back_in_stock_enabled": "false"};</script></head>`, 1)
	p, s := setupSubscribe(t, disabled)
	relay, stub := newRelayStub(t, http.StatusAccepted)

	err := runSubscribe(context.Background(), &bytes.Buffer{}, p, s, subscribeOptions{relayURL: relay.URL}, &scriptedPrompter{t: t})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
	assert.Empty(t, stub.requests())
}

func TestSubscribe_DuplicateWithinCooldown(t *testing.T) {
	p, s := setupSubscribe(t, productPage)
	relay, stub := newRelayStub(t, http.StatusAccepted)
	opts := subscribeOptions{relayURL: relay.URL}

	first := &scriptedPrompter{t: t, selects: []int{0, 1}, inputs: []string{"5551234567"}}
	require.NoError(t, runSubscribe(context.Background(), &bytes.Buffer{}, p, s, opts, first))

	// Same number again from a fresh process: the sqlite-backed cache blocks it.
	second := &scriptedPrompter{t: t, selects: []int{0, 2}, inputs: []string{"(555) 123-4567"}}
	var out bytes.Buffer
	require.NoError(t, runSubscribe(context.Background(), &out, p, s, opts, second))

	assert.Len(t, stub.requests(), 1)
	assert.Contains(t, out.String(), "already signed up")
}

func TestSubscribe_FailureThenCancel(t *testing.T) {
	p, s := setupSubscribe(t, productPage)
	relay, stub := newRelayStub(t, http.StatusBadGateway)

	in := &scriptedPrompter{
		t:       t,
		selects: []int{0, 1, 1}, // open, Cancel after failure, Quit at initial
		inputs:  []string{"5551234567"},
	}
	var out bytes.Buffer
	require.NoError(t, runSubscribe(context.Background(), &out, p, s, subscribeOptions{relayURL: relay.URL}, in))

	assert.Len(t, stub.requests(), 1)
	assert.Contains(t, out.String(), "Unable to sign you up right now")
}

func TestSubscribe_BlankPhoneCancels(t *testing.T) {
	p, s := setupSubscribe(t, productPage)
	relay, stub := newRelayStub(t, http.StatusAccepted)

	in := &scriptedPrompter{t: t, selects: []int{0, 1}, inputs: []string{""}}
	require.NoError(t, runSubscribe(context.Background(), &bytes.Buffer{}, p, s, subscribeOptions{relayURL: relay.URL}, in))

	assert.Empty(t, stub.requests())
}

func TestSubscribe_MarketingConsent(t *testing.T) {
	html := strings.Replace(productPage, `</script>`,
		`window.klaviyoSmsMarketingListId = "LIST1";</script>`, 1)
	p, s := setupSubscribe(t, html)
	relay, stub := newRelayStub(t, http.StatusAccepted)

	in := &scriptedPrompter{t: t, selects: []int{0, 1}, inputs: []string{"5551234567"}, confirm: []bool{true}}
	require.NoError(t, runSubscribe(context.Background(), &bytes.Buffer{}, p, s, subscribeOptions{relayURL: relay.URL}, in))

	reqs := stub.requests()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].SMSMarketingOptIn)
	assert.Equal(t, "LIST1", reqs[0].ListID)
}

func TestSubscribe_NotConfigured(t *testing.T) {
	html := strings.Replace(productPage, `window.klaviyoPublicApiKey = "PK_test";`, "", 1)
	p, s := setupSubscribe(t, html)
	t.Setenv("KLAVIYO_PUBLIC_API_KEY", "")

	in := &scriptedPrompter{t: t, selects: []int{0}}
	err := runSubscribe(context.Background(), &bytes.Buffer{}, p, s, subscribeOptions{}, in)
	assert.ErrorIs(t, err, widget.ErrNotConfigured)
}

func TestPickInstance(t *testing.T) {
	instances := []widget.Instance{
		{ID: "a", ProductID: "1"},
		{ID: "b", ProductID: "2"},
	}

	got, err := pickInstance(instances, "b", nil)
	require.NoError(t, err)
	assert.Equal(t, "2", got.ProductID)

	_, err = pickInstance(instances, "missing", nil)
	assert.Error(t, err)

	got, err = pickInstance(instances, "", &scriptedPrompter{t: t, selects: []int{1}})
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)
}

func TestTerminalView_FieldErrors(t *testing.T) {
	var out bytes.Buffer
	v := NewTerminalView(&out)

	v.ShowFieldError(widget.FieldPhone, "Please enter a valid mobile number")
	assert.Equal(t, "Please enter a valid mobile number", v.FieldError(widget.FieldPhone))
	assert.Contains(t, out.String(), "! Please enter a valid mobile number")

	v.ClearFieldError(widget.FieldPhone)
	assert.Empty(t, v.FieldError(widget.FieldPhone))
}
