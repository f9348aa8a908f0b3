package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/srg/sensorlink/internal/device"
	"github.com/srg/sensorlink/internal/session"
	"github.com/srg/sensorlink/internal/state"
)

var (
	negotiateName     string
	negotiateRegister bool
	negotiateJSON     bool
)

var negotiateCmd = &cobra.Command{
	Use:   "negotiate <address>",
	Short: "Find the notify/write characteristic pair of a sensor",
	Long: `Connects to the sensor, probes its notify characteristics and picks the
first one that answers together with a writable characteristic.

The result is saved as the last used device so 'sensorlink stream' can
reconnect without negotiating. With --register it is also recorded with the API.`,
	Example: `  sensorlink negotiate AA:BB:CC:DD:EE:FF
  sensorlink negotiate AA:BB:CC:DD:EE:FF --register --name greenhouse`,
	Args: cobra.ExactArgs(1),
	RunE: runNegotiate,
}

func init() {
	negotiateCmd.Flags().StringVar(&negotiateName, "name", "", "Device name to save and register")
	negotiateCmd.Flags().BoolVar(&negotiateRegister, "register", false, "Register the binding with the API")
	negotiateCmd.Flags().BoolVar(&negotiateJSON, "json", false, "Print the bound descriptor as JSON")
}

func runNegotiate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	if negotiateRegister && !cfg.IngestionEnabled() {
		return errors.New("--register needs api.base_url")
	}

	store, err := state.NewLastDeviceStore(cfg.StatePath)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	var with []session.Option
	var registerErr error
	if negotiateRegister {
		client, err := newAPIClient(cfg, logger)
		if err != nil {
			return err
		}
		with = append(with, session.WithBindingSink(func(ctx context.Context, desc device.Descriptor) error {
			registerErr = client.RegisterDescriptor(ctx, desc)
			return registerErr
		}))
	}

	adapter := newAdapter(logger)
	defer closeAdapter(adapter, logger)
	manager := newManager(cfg, adapter, logger, with...)
	defer manager.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	desc := &device.Descriptor{Address: args[0], Name: negotiateName}
	binding, err := manager.Connect(ctx, desc)
	if err != nil {
		return err
	}

	bound := binding.Apply(*desc)
	bound.ID = session.SessionID(*desc)
	if err := store.Save(bound); err != nil {
		return fmt.Errorf("save last device: %w", err)
	}

	out := cmd.OutOrStdout()
	if negotiateJSON {
		if err := printJSONLine(out, bound); err != nil {
			return err
		}
	} else {
		printBinding(out, bound.DialAddress(), binding)
		fmt.Fprintf(out, "Saved to %s\n", store.Path())
	}

	if registerErr != nil {
		return registerErr
	}
	if negotiateRegister {
		fmt.Fprintln(cmd.ErrOrStderr(), "Registered with the API")
	}
	return nil
}
