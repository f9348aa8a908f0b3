// Package negotiator discovers the notify/write characteristic pair of a sensor.
//
// A characteristic that merely advertises notify is not enough: every notify
// candidate is probed in discovery order and the first one that answers wins.
package negotiator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/sensorlink/internal/device"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var (
	// ErrNegotiationFailed matches every *NegotiationError.
	ErrNegotiationFailed = errors.New("negotiation failed")

	ErrNoUsableNotifyCharacteristic = errors.New("no usable notify characteristic")
	ErrNoWriteCharacteristic        = errors.New("no write characteristic")
)

// NegotiationError reports why no binding was produced.
type NegotiationError struct {
	Reason error    // ErrNoUsableNotifyCharacteristic or ErrNoWriteCharacteristic
	Probed []string // notify candidates that failed their probe, as service/char
}

func (e *NegotiationError) Error() string {
	if len(e.Probed) == 0 {
		return fmt.Sprintf("%s: %s", ErrNegotiationFailed, e.Reason)
	}
	return fmt.Sprintf("%s: %s (probed %d candidates)", ErrNegotiationFailed, e.Reason, len(e.Probed))
}

func (e *NegotiationError) Unwrap() error {
	return e.Reason
}

func (e *NegotiationError) Is(target error) bool {
	return target == ErrNegotiationFailed
}

// Options configures probing.
type Options struct {
	ProbeTimeout time.Duration `default:"5s"`
}

// Negotiator produces a device.Binding from a connected peripheral.
type Negotiator struct {
	opts   Options
	logger *logrus.Logger
}

func New(opts Options, logger *logrus.Logger) *Negotiator {
	if logger == nil {
		logger = logrus.New()
	}
	defaults.SetDefaults(&opts)
	return &Negotiator{opts: opts, logger: logger}
}

// Negotiate classifies every characteristic of conn, then probes notify candidates
// in discovery order and stops at the first one that responds.
func (n *Negotiator) Negotiate(ctx context.Context, conn device.Connection) (device.Binding, error) {
	var write device.Characteristic
	candidates := orderedmap.New[string, device.Characteristic]()

	for _, svc := range conn.Services() {
		for _, ch := range svc.Characteristics() {
			props := ch.Properties()
			if write == nil && props.CanWrite() {
				write = ch
			}
			if props.CanNotify() {
				candidates.Set(svc.UUID()+"/"+ch.UUID(), ch)
			}
		}
	}

	log := n.logger.WithFields(logrus.Fields{
		"address":    conn.Address(),
		"candidates": candidates.Len(),
	})

	if write == nil {
		log.Warn("No write-capable characteristic found")
		return device.Binding{}, &NegotiationError{Reason: ErrNoWriteCharacteristic}
	}

	var probed []string
	for pair := candidates.Oldest(); pair != nil; pair = pair.Next() {
		if err := ctx.Err(); err != nil {
			return device.Binding{}, err
		}

		ch := pair.Value
		err := n.probe(ctx, ch)
		fields := logrus.Fields{
			"service_uuid": ch.ServiceUUID(),
			"char_uuid":    ch.UUID(),
		}
		if err != nil {
			log.WithFields(fields).WithField("error", err).Debug("Notify candidate failed probe")
			probed = append(probed, pair.Key)
			continue
		}

		binding := device.Binding{
			ServiceID:              ch.ServiceUUID(),
			NotifyCharacteristicID: ch.UUID(),
			WriteServiceID:         write.ServiceUUID(),
			WriteCharacteristicID:  write.UUID(),
		}
		log.WithFields(fields).WithField("binding", binding.String()).Info("Characteristic pair negotiated")
		return binding, nil
	}

	log.Warn("No notify candidate responded")
	return device.Binding{}, &NegotiationError{Reason: ErrNoUsableNotifyCharacteristic, Probed: probed}
}

// probe tries a single read, then a subscribe/unsubscribe round trip.
func (n *Negotiator) probe(ctx context.Context, ch device.Characteristic) error {
	var readErr error
	if ch.Properties().CanRead() {
		readCtx, cancel := context.WithTimeout(ctx, n.opts.ProbeTimeout)
		_, readErr = ch.Read(readCtx)
		cancel()
		if readErr == nil {
			return nil
		}
	} else {
		readErr = device.ErrUnsupported
	}

	subCtx, cancel := context.WithTimeout(ctx, n.opts.ProbeTimeout)
	defer cancel()

	if err := ch.Subscribe(subCtx, func([]byte) {}); err != nil {
		return fmt.Errorf("read: %v; subscribe: %w", readErr, err)
	}
	if err := ch.Unsubscribe(subCtx); err != nil {
		return fmt.Errorf("read: %v; unsubscribe: %w", readErr, err)
	}
	return nil
}
