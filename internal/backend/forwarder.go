package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/sensorlink/internal/groutine"
	"github.com/srg/sensorlink/internal/telemetry"
)

// ErrIngestionFailed matches every *IngestionError.
var ErrIngestionFailed = errors.New("ingestion failed")

// IngestionError reports a rejected or unreachable ingestion post.
type IngestionError struct {
	Kind       telemetry.Kind
	StatusCode int // 0 when the request never got an answer
	Err        error
}

func (e *IngestionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s: status %d", ErrIngestionFailed, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s: %v", ErrIngestionFailed, e.Kind, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

func (e *IngestionError) Is(target error) bool {
	return target == ErrIngestionFailed
}

type temperatureRecord struct {
	DeviceID    int64   `json:"deviceId"`
	Temperature float64 `json:"temperature"`
	Timestamp   int64   `json:"timestamp"`
}

type accelerometerRecord struct {
	DeviceID  int64 `json:"deviceId"`
	X         int16 `json:"x"`
	Y         int16 `json:"y"`
	Z         int16 `json:"z"`
	Timestamp int64 `json:"timestamp"`
}

type voltageRecord struct {
	DeviceID  int64   `json:"deviceId"`
	Voltage   float64 `json:"voltage"`
	Timestamp int64   `json:"timestamp"`
}

// record maps a reading to its ingestion path and JSON body.
func record(activeID int64, r telemetry.Reading) (string, any, error) {
	ts := r.Time().Unix()
	switch v := r.(type) {
	case telemetry.TemperatureReading:
		return "/api/temperature", temperatureRecord{DeviceID: activeID, Temperature: v.Celsius, Timestamp: ts}, nil
	case telemetry.AccelerometerReading:
		return "/api/accelerometer", accelerometerRecord{DeviceID: activeID, X: v.X, Y: v.Y, Z: v.Z, Timestamp: ts}, nil
	case telemetry.VoltageReading:
		return "/api/voltage", voltageRecord{DeviceID: activeID, Voltage: v.Volts, Timestamp: ts}, nil
	default:
		return "", nil, fmt.Errorf("unsupported reading %T", r)
	}
}

// Forwarder posts readings fire-and-forget, at most once each.
//
// Forward never blocks: each reading gets its own goroutine, bounded by
// MaxInFlight. When the bound is reached the reading is dropped and logged.
type Forwarder struct {
	client   *Client
	resolver ActiveDeviceResolver
	logger   *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc
	slots  chan struct{}
	wg     sync.WaitGroup

	sent    atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// ForwarderOptions bounds the forwarder.
type ForwarderOptions struct {
	MaxInFlight int `default:"64"`
}

func NewForwarder(client *Client, resolver ActiveDeviceResolver, opts ForwarderOptions, logger *logrus.Logger) *Forwarder {
	if logger == nil {
		logger = logrus.New()
	}
	defaults.SetDefaults(&opts)
	ctx, cancel := context.WithCancel(context.Background())
	return &Forwarder{
		client:   client,
		resolver: resolver,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		slots:    make(chan struct{}, opts.MaxInFlight),
	}
}

// Forward dispatches one post for r and returns immediately.
func (f *Forwarder) Forward(deviceID string, r telemetry.Reading) {
	select {
	case f.slots <- struct{}{}:
	default:
		f.dropped.Add(1)
		f.logger.WithFields(logrus.Fields{
			"device_id": deviceID,
			"kind":      r.Kind().String(),
		}).Warn("Ingestion saturated, reading dropped")
		return
	}

	groutine.GoTracked(f.ctx, &f.wg, "ingest-"+deviceID, func(ctx context.Context) {
		defer func() { <-f.slots }()

		if err := f.post(ctx, r); err != nil {
			f.failed.Add(1)
			f.logger.WithFields(logrus.Fields{
				"device_id": deviceID,
				"kind":      r.Kind().String(),
				"error":     err,
			}).Warn("Ingestion post failed")
			return
		}
		f.sent.Add(1)
	})
}

func (f *Forwarder) post(ctx context.Context, r telemetry.Reading) error {
	activeID, err := f.resolver.ActiveDeviceID(ctx)
	if err != nil {
		return &IngestionError{Kind: r.Kind(), Err: fmt.Errorf("resolve active device: %w", err)}
	}

	path, body, err := record(activeID, r)
	if err != nil {
		return &IngestionError{Kind: r.Kind(), Err: err}
	}

	if err := f.client.do(ctx, http.MethodPost, path, body, nil); err != nil {
		ierr := &IngestionError{Kind: r.Kind(), Err: err}
		var rerr *RequestError
		if errors.As(err, &rerr) {
			ierr.StatusCode = rerr.StatusCode
		}
		return ierr
	}
	return nil
}

// Wait blocks until every dispatched post has finished.
func (f *Forwarder) Wait() {
	f.wg.Wait()
}

// Close aborts in-flight posts and waits for them.
func (f *Forwarder) Close() {
	f.cancel()
	f.wg.Wait()
}

// Stats returns sent, failed and dropped counters.
func (f *Forwarder) Stats() (sent, failed, dropped uint64) {
	return f.sent.Load(), f.failed.Load(), f.dropped.Load()
}
