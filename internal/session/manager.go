// Package session supervises the connection lifecycle of sensor peripherals.
//
// One Manager owns every device session. Each session walks
// idle → negotiating → bound → streaming → disconnecting → idle, with failed
// reachable from negotiating and bound. Frames pushed by the transport are
// queued per device and drained by a single pipeline goroutine, so readings
// of one device are decoded and forwarded in arrival order while different
// devices run in parallel.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/sensorlink/internal/device"
	"github.com/srg/sensorlink/internal/heartbeat"
	"github.com/srg/sensorlink/internal/negotiator"
	"github.com/srg/sensorlink/internal/registry"
	"github.com/srg/sensorlink/internal/ringchan"
	"github.com/srg/sensorlink/internal/telemetry"
)

var (
	ErrNoDeviceSelected = errors.New("no device selected")
	ErrSubscribeFailed  = errors.New("subscribe failed")
	ErrClosed           = errors.New("session manager is closed")
)

// BindingSink receives the descriptor frozen after a successful negotiation.
// Errors are logged; they never fail the session.
type BindingSink func(ctx context.Context, desc device.Descriptor) error

// Forwarder receives every decoded reading. Forward must not block.
type Forwarder interface {
	Forward(deviceID string, r telemetry.Reading)
}

// Event is one decoded reading on the manager's event stream.
type Event struct {
	DeviceID   string
	Reading    telemetry.Reading
	ReceivedAt time.Time
}

// Options holds the tunables of a Manager. Zero fields take their defaults.
type Options struct {
	ConnectTimeout     time.Duration `default:"30s"`
	UnsubscribeTimeout time.Duration `default:"5s"`
	FrameQueueSize     int           `default:"128"`
	EventQueueSize     int           `default:"256"`
}

// Option wires a collaborator into the Manager.
type Option func(*Manager)

func WithNegotiator(n *negotiator.Negotiator) Option {
	return func(m *Manager) { m.negotiator = n }
}

func WithHeartbeat(s *heartbeat.Scheduler) Option {
	return func(m *Manager) { m.heartbeat = s }
}

func WithForwarder(f Forwarder) Option {
	return func(m *Manager) { m.forwarder = f }
}

func WithRegistry(r *registry.Registry) Option {
	return func(m *Manager) { m.registry = r }
}

func WithBindingSink(sink BindingSink) Option {
	return func(m *Manager) { m.onBound = sink }
}

// Manager is the only component that touches the transport.
type Manager struct {
	adapter    device.Adapter
	opts       Options
	logger     *logrus.Logger
	negotiator *negotiator.Negotiator
	heartbeat  *heartbeat.Scheduler
	forwarder  Forwarder
	registry   *registry.Registry
	onBound    BindingSink
	now        func() time.Time

	sessions *hashmap.Map[string, *session]
	events   *ringchan.RingChannel[Event]
	closed   atomic.Bool
}

func New(adapter device.Adapter, opts Options, logger *logrus.Logger, with ...Option) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	defaults.SetDefaults(&opts)

	m := &Manager{
		adapter:  adapter,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		sessions: hashmap.New[string, *session](),
	}
	for _, opt := range with {
		opt(m)
	}

	if m.negotiator == nil {
		m.negotiator = negotiator.New(negotiator.Options{}, logger)
	}
	if m.heartbeat == nil {
		m.heartbeat = heartbeat.New(heartbeat.Options{}, logger)
	}
	if m.registry == nil {
		m.registry = registry.New()
	}
	m.events = ringchan.New[Event](opts.EventQueueSize)
	return m
}

// session serializes transitions of one device id.
type session struct {
	id string

	mu      sync.Mutex
	attempt *attempt
	link    *link
}

// attempt is an in-flight Connect; concurrent callers wait on done.
type attempt struct {
	cancel  context.CancelFunc
	done    chan struct{}
	binding device.Binding
	err     error
}

func (m *Manager) sessionFor(id string) *session {
	s, _ := m.sessions.GetOrInsert(id, &session{id: id})
	return s
}

// SessionID returns the id a descriptor is tracked under: its own id, else one
// synthesized from a known binding, else its dial address.
func SessionID(desc device.Descriptor) string {
	switch {
	case desc.ID != "":
		return desc.ID
	case desc.HasBinding():
		return desc.EnsureID()
	default:
		return desc.DialAddress()
	}
}

// Connect binds the device and starts streaming. Without a known binding the
// characteristic pair is negotiated first. A second Connect for the same id
// while the first is in flight joins it; Connect on a live session fails with
// device.ErrAlreadyConnected.
func (m *Manager) Connect(ctx context.Context, desc *device.Descriptor) (device.Binding, error) {
	if m.closed.Load() {
		return device.Binding{}, ErrClosed
	}
	if desc == nil {
		return device.Binding{}, ErrNoDeviceSelected
	}

	d := *desc
	if d.Address == "" {
		d.Address = d.ID
	}
	if d.Address == "" {
		return device.Binding{}, fmt.Errorf("%w: descriptor has neither id nor address", ErrNoDeviceSelected)
	}
	d.ID = SessionID(d)
	if err := d.Validate(); err != nil {
		return device.Binding{}, err
	}

	s := m.sessionFor(d.ID)

	s.mu.Lock()
	if a := s.attempt; a != nil {
		s.mu.Unlock()
		m.logger.WithField("device_id", d.ID).Debug("Joining in-flight connect")
		select {
		case <-a.done:
			return a.binding, a.err
		case <-ctx.Done():
			return device.Binding{}, ctx.Err()
		}
	}
	if s.link != nil {
		s.mu.Unlock()
		return device.Binding{}, fmt.Errorf("device %s: %w", d.ID, device.ErrAlreadyConnected)
	}
	attemptCtx, cancel := context.WithCancel(ctx)
	a := &attempt{cancel: cancel, done: make(chan struct{})}
	s.attempt = a
	s.mu.Unlock()

	l, binding, err := m.establish(attemptCtx, d)

	s.mu.Lock()
	s.attempt = nil
	if err == nil {
		s.link = l
		l.watch(m, s)
	}
	s.mu.Unlock()

	cancel()
	a.binding, a.err = binding, err
	close(a.done)
	return binding, err
}

// establish runs dial, negotiation, lookup and subscribe for one attempt.
// On success the returned link is streaming but not yet watched.
func (m *Manager) establish(ctx context.Context, d device.Descriptor) (*link, device.Binding, error) {
	id := d.ID
	log := m.logger.WithFields(logrus.Fields{
		"device_id": id,
		"address":   d.Address,
	})

	m.registry.Upsert(d)
	negotiate := !d.HasBinding()
	if negotiate {
		m.setPhase(id, registry.PhaseNegotiating)
	} else {
		m.setPhase(id, registry.PhaseBound)
	}

	log.Info("Connecting")
	conn, err := m.adapter.Connect(ctx, d.Address, &device.ConnectOptions{ConnectTimeout: m.opts.ConnectTimeout})
	if err != nil {
		return nil, device.Binding{}, m.fail(id, nil, fmt.Errorf("connect %s: %w", d.Address, err))
	}

	if negotiate {
		binding, err := m.negotiator.Negotiate(ctx, conn)
		if err != nil {
			return nil, device.Binding{}, m.fail(id, conn, err)
		}
		d = binding.Apply(d)
		m.registry.Upsert(d)
		m.setPhase(id, registry.PhaseBound)
		log.WithField("binding", binding.String()).Info("Negotiation succeeded")

		if m.onBound != nil {
			if err := m.onBound(ctx, d); err != nil {
				log.WithError(err).Warn("Failed to hand off negotiated binding")
			}
		}
	}

	binding := d.Binding()
	notify, err := conn.GetCharacteristic(binding.ServiceID, binding.NotifyCharacteristicID)
	if err != nil {
		return nil, device.Binding{}, m.fail(id, conn, fmt.Errorf("notify characteristic lookup: %w", err))
	}
	write, err := conn.GetCharacteristic(binding.WriteServiceID, binding.WriteCharacteristicID)
	if err != nil {
		return nil, device.Binding{}, m.fail(id, conn, fmt.Errorf("write characteristic lookup: %w", err))
	}

	l := newLink(id, conn, notify, m.opts.FrameQueueSize)
	if err := notify.Subscribe(ctx, l.push); err != nil {
		l.frames.Close()
		return nil, device.Binding{}, m.fail(id, conn, fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, notify.UUID(), err))
	}

	l.startPipeline(m)
	m.heartbeat.Start(id, write)
	m.setPhase(id, registry.PhaseStreaming)
	log.WithFields(logrus.Fields{
		"service_uuid": binding.ServiceID,
		"char_uuid":    binding.NotifyCharacteristicID,
	}).Info("Streaming")
	return l, binding, nil
}

// fail records err, drops conn and moves the session to failed.
func (m *Manager) fail(id string, conn device.Connection, err error) error {
	if conn != nil {
		if derr := conn.Disconnect(); derr != nil {
			m.logger.WithFields(logrus.Fields{
				"device_id": id,
				"error":     derr,
			}).Debug("Disconnect after failure returned an error")
		}
	}
	prev, _ := m.registry.Get(id)
	m.registry.SetError(id, err)
	m.logger.WithFields(logrus.Fields{
		"device_id": id,
		"from":      prev.Phase,
		"error":     err,
	}).Warn("Session failed")
	return err
}

func (m *Manager) setPhase(id string, phase registry.Phase) {
	prev, ok := m.registry.SetPhase(id, phase)
	if !ok || prev == phase {
		return
	}
	m.logger.WithFields(logrus.Fields{
		"device_id": id,
		"from":      prev,
		"phase":     phase,
	}).Debug("Session phase changed")
}

// Disconnect tears down the session of id. It is a no-op for unknown or idle
// devices. An in-flight Connect is cancelled first.
func (m *Manager) Disconnect(id string) error {
	s, ok := m.sessions.Get(id)
	if !ok {
		return nil
	}

	s.mu.Lock()
	a := s.attempt
	s.mu.Unlock()
	if a != nil {
		a.cancel()
		<-a.done
		if a.err != nil {
			// The attempt failed because it was cancelled here; a requested
			// teardown leaves the device idle rather than failed.
			m.setPhase(id, registry.PhaseIdle)
			m.logger.WithField("device_id", id).Info("Connect cancelled")
			return nil
		}
	}

	s.mu.Lock()
	l := s.link
	s.link = nil
	s.mu.Unlock()
	if l == nil {
		return nil
	}

	m.setPhase(id, registry.PhaseDisconnecting)
	m.heartbeat.Stop(id)

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.UnsubscribeTimeout)
	if err := l.notify.Unsubscribe(ctx); err != nil {
		m.logger.WithFields(logrus.Fields{
			"device_id": id,
			"char_uuid": l.notify.UUID(),
			"error":     err,
		}).Warn("Unsubscribe failed")
	}
	cancel()

	l.stopPipeline()
	err := l.close()
	m.setPhase(id, registry.PhaseIdle)
	m.logger.WithField("device_id", id).Info("Disconnected")
	if err != nil {
		m.logger.WithFields(logrus.Fields{
			"device_id": id,
			"error":     err,
		}).Debug("Connection close returned an error")
	}
	return nil
}

// linkLost handles a transport-reported disconnect: no unsubscribe, no failed state.
func (m *Manager) linkLost(s *session, l *link) {
	s.mu.Lock()
	if s.link != l {
		s.mu.Unlock()
		return
	}
	s.link = nil
	s.mu.Unlock()

	m.heartbeat.Stop(s.id)
	l.stopPipeline()
	_ = l.conn.Disconnect()
	m.setPhase(s.id, registry.PhaseIdle)
	m.logger.WithField("device_id", s.id).Warn("Link lost")
}

// Remove disconnects id and forgets its state.
func (m *Manager) Remove(id string) error {
	if err := m.Disconnect(id); err != nil {
		return err
	}
	m.sessions.Del(id)
	m.registry.Remove(id)
	return nil
}

// State returns a copy of the session state of id.
func (m *Manager) State(id string) (registry.SessionState, bool) {
	return m.registry.Get(id)
}

func (m *Manager) Registry() *registry.Registry {
	return m.registry
}

// Readings is the decoded reading stream of every device. When nobody drains
// it, the oldest events are overwritten.
func (m *Manager) Readings() <-chan Event {
	return m.events.C()
}

// Close disconnects every session and closes the event stream.
func (m *Manager) Close() {
	if m.closed.Swap(true) {
		return
	}
	// Removed ids may still be visited; Disconnect treats them as no-ops.
	var ids []string
	m.sessions.Range(func(id string, _ *session) bool {
		ids = append(ids, id)
		return true
	})
	for _, id := range ids {
		_ = m.Disconnect(id)
	}
	m.heartbeat.StopAll()
	m.events.Close()
	m.logger.WithFields(logrus.Fields{
		"sessions": len(ids),
		"devices":  m.registry.Len(),
	}).Debug("Session manager closed")
}

// process runs one frame through decode, registry, forwarder and event stream.
func (m *Manager) process(id string, frame []byte) {
	at := m.now()
	m.registry.Touch(id, at)

	readings := telemetry.Decode(frame)
	if len(readings) == 0 {
		m.logger.WithFields(logrus.Fields{
			"device_id": id,
			"bytes":     len(frame),
		}).Debug("Frame carried no readings")
		return
	}

	for _, r := range readings {
		m.registry.RecordReading(id, r)
		if m.forwarder != nil {
			m.forwarder.Forward(id, r)
		}
		m.events.ForceSend(Event{DeviceID: id, Reading: r, ReceivedAt: at})
	}
}
