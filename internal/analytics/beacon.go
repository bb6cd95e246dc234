package analytics

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BeaconPayload is the body POSTed to the relay server's /b endpoint.
type BeaconPayload struct {
	Name       string            `json:"n"`
	SessionID  string            `json:"sid"`
	Properties map[string]string `json:"p,omitempty"`
}

// BeaconSink sends events to a relay server without waiting for the reply.
type BeaconSink struct {
	url       string
	sessionID string
	client    *http.Client
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// NewBeaconSink targets serverURL + "/b" with a fresh session id.
func NewBeaconSink(serverURL string, logger *zap.Logger) *BeaconSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BeaconSink{
		url:       strings.TrimRight(serverURL, "/") + "/b",
		sessionID: uuid.NewString(),
		client:    &http.Client{Timeout: 5 * time.Second},
		logger:    logger,
	}
}

func (b *BeaconSink) SessionID() string {
	return b.sessionID
}

// Notify queues the POST and returns immediately.
func (b *BeaconSink) Notify(name string, props Properties) error {
	body, err := json.Marshal(BeaconPayload{Name: name, SessionID: b.sessionID, Properties: props})
	if err != nil {
		return err
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		resp, err := b.client.Post(b.url, "application/json", bytes.NewReader(body))
		if err != nil {
			b.logger.Debug("beacon failed", zap.String("event", name), zap.Error(err))
			return
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			b.logger.Debug("beacon rejected", zap.String("event", name), zap.Int("status", resp.StatusCode))
		}
	}()
	return nil
}

// Flush waits for queued beacons to finish.
func (b *BeaconSink) Flush() {
	b.wg.Wait()
}

// DeferredBeacon finds the relay server when an event is sent rather than
// when it is created, so a bis.js that loads after the widget still gets
// every later event. Events sent while no server is known are dropped.
type DeferredBeacon struct {
	serverURL func() string
	logger    *zap.Logger

	mu    sync.Mutex
	sinks map[string]*BeaconSink
}

func NewDeferredBeacon(serverURL func() string, logger *zap.Logger) *DeferredBeacon {
	return &DeferredBeacon{
		serverURL: serverURL,
		logger:    logger,
		sinks:     map[string]*BeaconSink{},
	}
}

func (d *DeferredBeacon) Notify(name string, props Properties) error {
	url := strings.TrimSpace(d.serverURL())
	if url == "" {
		return nil
	}
	return d.sink(url).Notify(name, props)
}

// Flush waits for beacons queued to every server seen so far.
func (d *DeferredBeacon) Flush() {
	d.mu.Lock()
	sinks := make([]*BeaconSink, 0, len(d.sinks))
	for _, s := range d.sinks {
		sinks = append(sinks, s)
	}
	d.mu.Unlock()

	for _, s := range sinks {
		s.Flush()
	}
}

func (d *DeferredBeacon) sink(url string) *BeaconSink {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.sinks[url]
	if !ok {
		s = NewBeaconSink(url, d.logger)
		d.sinks[url] = s
	}
	return s
}
