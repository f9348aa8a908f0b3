// Package heartbeat keeps sensor links alive with a periodic timestamp write.
package heartbeat

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/sensorlink/internal/device"
	"github.com/srg/sensorlink/internal/groutine"
)

// ErrWriteFailed wraps a failed heartbeat write. It is only ever logged.
var ErrWriteFailed = errors.New("heartbeat write failed")

type Options struct {
	Interval     time.Duration `default:"60s"`
	WriteTimeout time.Duration `default:"10s"`

	// Now supplies the timestamp written on each beat. Defaults to time.Now.
	Now func() time.Time
}

type timer struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler runs at most one heartbeat timer per device id.
type Scheduler struct {
	opts   Options
	logger *logrus.Logger

	mu     sync.Mutex
	timers map[string]*timer
}

func New(opts Options, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
	}
	defaults.SetDefaults(&opts)
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		opts:   opts,
		logger: logger,
		timers: make(map[string]*timer),
	}
}

// Payload encodes t as big-endian uint32 seconds since epoch.
func Payload(t time.Time) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(t.Unix()))
	return buf
}

// Start writes one heartbeat immediately and then every Interval.
// It returns false, doing nothing, when a timer for id is already running.
func (s *Scheduler) Start(id string, target device.Characteristic) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.timers[id]; ok {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &timer{cancel: cancel, done: make(chan struct{})}
	s.timers[id] = t

	groutine.Go(ctx, "heartbeat-"+id, func(ctx context.Context) {
		defer close(t.done)
		s.run(ctx, id, target)
	})

	s.logger.WithFields(logrus.Fields{
		"device_id": id,
		"interval":  s.opts.Interval,
	}).Debug("Heartbeat started")
	return true
}

// Stop cancels the timer for id and waits for an in-flight write to return.
// It is safe to call when no timer is running.
func (s *Scheduler) Stop(id string) bool {
	s.mu.Lock()
	t, ok := s.timers[id]
	delete(s.timers, id)
	s.mu.Unlock()

	if !ok {
		return false
	}
	t.cancel()
	<-t.done
	s.logger.WithField("device_id", id).Debug("Heartbeat stopped")
	return true
}

// StopAll stops every running timer.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.timers))
	for id := range s.timers {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Stop(id)
	}
}

func (s *Scheduler) Running(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[id]
	return ok
}

func (s *Scheduler) run(ctx context.Context, id string, target device.Characteristic) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.beat(ctx, id, target)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.beat(ctx, id, target)
		}
	}
}

func (s *Scheduler) beat(ctx context.Context, id string, target device.Characteristic) {
	writeCtx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()

	withResponse := target.Properties().Has(device.PropWrite)
	err := target.Write(writeCtx, Payload(s.opts.Now()), withResponse)
	if err == nil || ctx.Err() != nil {
		return
	}

	s.logger.WithFields(logrus.Fields{
		"device_id": id,
		"char_uuid": target.UUID(),
		"error":     fmt.Errorf("%w: %w", ErrWriteFailed, err),
	}).Warn("Heartbeat write failed")
}
