package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/sensorlink/internal/backend"
	"github.com/srg/sensorlink/internal/device"
	"github.com/srg/sensorlink/internal/registry"
	"github.com/srg/sensorlink/internal/session"
	"github.com/srg/sensorlink/internal/state"
)

const linkCheckInterval = 250 * time.Millisecond

var (
	streamServiceUUID      string
	streamNotifyUUID       string
	streamWriteUUID        string
	streamWriteServiceUUID string
	streamName             string
	streamDiscover         bool
	streamJSON             bool
	streamCount            int
	streamDuration         time.Duration
)

var streamCmd = &cobra.Command{
	Use:   "stream [address]",
	Short: "Stream readings from a sensor",
	Long: `Connects to a sensor and prints every decoded reading until interrupted.

The characteristic pair comes from --service/--notify/--write, else from the
last used device, else it is negotiated. Readings are forwarded to the
ingestion API when api.base_url is configured.`,
	Example: `  sensorlink stream AA:BB:CC:DD:EE:FF
  sensorlink stream AA:BB:CC:DD:EE:FF --service fff0 --notify fff1 --write fff2
  sensorlink stream --json --count 30`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStream,
}

func init() {
	streamCmd.Flags().StringVar(&streamServiceUUID, "service", "", "Service UUID of the notify characteristic")
	streamCmd.Flags().StringVar(&streamNotifyUUID, "notify", "", "Notify characteristic UUID")
	streamCmd.Flags().StringVar(&streamWriteUUID, "write", "", "Write characteristic UUID for the heartbeat")
	streamCmd.Flags().StringVar(&streamWriteServiceUUID, "write-service", "", "Service UUID of the write characteristic (defaults to --service)")
	streamCmd.Flags().StringVar(&streamName, "name", "", "Device name used for the synthesized id and registration")
	streamCmd.Flags().BoolVar(&streamDiscover, "discover", false, "Ignore any known binding and negotiate")
	streamCmd.Flags().BoolVar(&streamJSON, "json", false, "Print one JSON object per reading")
	streamCmd.Flags().IntVar(&streamCount, "count", 0, "Stop after this many readings (0 = unlimited)")
	streamCmd.Flags().DurationVar(&streamDuration, "duration", 0, "Stop after this long (0 = until Ctrl+C)")
}

// streamDescriptor picks the device to stream from, or nil when nothing is selected.
func streamDescriptor(address string, last *device.Descriptor) (*device.Descriptor, error) {
	flagged := []string{streamServiceUUID, streamNotifyUUID, streamWriteUUID}
	set := 0
	for _, v := range flagged {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != len(flagged) {
		return nil, ErrPartialBinding
	}

	var desc *device.Descriptor
	switch {
	case address == "" && last == nil:
		return nil, nil
	case address == "":
		d := *last
		desc = &d
	case last != nil && strings.EqualFold(last.DialAddress(), address):
		d := *last
		d.Address = address
		desc = &d
	default:
		desc = &device.Descriptor{Address: address}
	}

	if set != 0 {
		desc.ServiceID = streamServiceUUID
		desc.NotifyCharacteristicID = streamNotifyUUID
		desc.WriteCharacteristicID = streamWriteUUID
		desc.WriteServiceID = streamWriteServiceUUID
		desc.ID = ""
	}
	if streamDiscover {
		desc.ServiceID, desc.NotifyCharacteristicID = "", ""
		desc.WriteServiceID, desc.WriteCharacteristicID = "", ""
		desc.ID = ""
	}
	if streamName != "" && streamName != desc.Name {
		desc.Name = streamName
		if desc.HasBinding() {
			desc.ID = ""
		}
	}
	return desc, nil
}

func runStream(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	store, err := state.NewLastDeviceStore(cfg.StatePath)
	if err != nil {
		return err
	}
	last, err := store.Load()
	if err != nil {
		logger.WithField("error", err).Warn("Ignoring unreadable last device file")
		last = nil
	}

	var address string
	if len(args) == 1 {
		address = args[0]
	}
	desc, err := streamDescriptor(address, last)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	client, err := newAPIClient(cfg, logger)
	if err != nil {
		return err
	}
	var forwarder *backend.Forwarder
	var with []session.Option
	if client != nil {
		forwarder = backend.NewForwarder(client, newResolver(cfg, client), backend.ForwarderOptions{MaxInFlight: cfg.API.MaxInFlight}, logger)
		with = append(with, session.WithForwarder(forwarder))
	}

	adapter := newAdapter(logger)
	defer closeAdapter(adapter, logger)

	manager := newManager(cfg, adapter, logger, with...)
	defer func() {
		manager.Close()
		if forwarder != nil {
			forwarder.Wait()
			sent, failed, dropped := forwarder.Stats()
			logger.WithFields(logrus.Fields{
				"sent":    sent,
				"failed":  failed,
				"dropped": dropped,
			}).Info("Ingestion finished")
		}
	}()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	binding, err := manager.Connect(ctx, desc)
	if err != nil {
		return err
	}

	bound := binding.Apply(*desc)
	bound.ID = session.SessionID(*desc)
	if err := store.Save(bound); err != nil {
		logger.WithField("error", err).Warn("Failed to save last device")
	}

	errOut := cmd.ErrOrStderr()
	fmt.Fprintf(errOut, "Streaming from %s (%s); press Ctrl+C to stop\n",
		labelColor.Sprint(bound.DialAddress()), binding)

	return streamReadings(cmd, manager, bound.ID, ctx.Done())
}

// streamReadings prints events until done closes, a limit is hit or the link drops.
func streamReadings(cmd *cobra.Command, manager *session.Manager, id string, done <-chan struct{}) error {
	out := cmd.OutOrStdout()

	var deadline <-chan time.Time
	if streamDuration > 0 {
		timer := time.NewTimer(streamDuration)
		defer timer.Stop()
		deadline = timer.C
	}
	linkCheck := time.NewTicker(linkCheckInterval)
	defer linkCheck.Stop()

	printed := 0
	for {
		select {
		case <-done:
			return nil
		case <-deadline:
			return nil
		case <-linkCheck.C:
			st, ok := manager.State(id)
			if !ok || st.Phase != registry.PhaseStreaming {
				if ok && st.LastError != "" {
					return fmt.Errorf("%w: %s", ErrConnectionLost, st.LastError)
				}
				return ErrConnectionLost
			}
		case ev, ok := <-manager.Readings():
			if !ok {
				return nil
			}
			if ev.DeviceID != id {
				continue
			}
			if streamJSON {
				if err := printJSONLine(out, newReadingRecord(ev.DeviceID, ev.Reading)); err != nil {
					return err
				}
			} else {
				printReading(out, ev.Reading)
			}
			printed++
			if streamCount > 0 && printed >= streamCount {
				return nil
			}
		}
	}
}
