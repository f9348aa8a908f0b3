package main

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/sensorlink/internal/device"
	"github.com/srg/sensorlink/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setStreamFlags(t *testing.T, service, notify, write, name string, discover bool) {
	t.Helper()
	streamServiceUUID, streamNotifyUUID, streamWriteUUID = service, notify, write
	streamName, streamDiscover = name, discover
	t.Cleanup(func() {
		streamServiceUUID, streamNotifyUUID, streamWriteUUID = "", "", ""
		streamName, streamDiscover = "", false
	})
}

func TestStreamDescriptor(t *testing.T) {
	last := &device.Descriptor{
		ID:                     "thermo",
		Name:                   "greenhouse",
		Address:                "AA:BB:CC:DD:EE:FF",
		ServiceID:              "fff0",
		NotifyCharacteristicID: "fff1",
		WriteCharacteristicID:  "fff2",
	}

	t.Run("nothing selected", func(t *testing.T) {
		desc, err := streamDescriptor("", nil)
		require.NoError(t, err)
		assert.Nil(t, desc, "no address and no last device MUST leave the selection empty")
	})

	t.Run("last device", func(t *testing.T) {
		desc, err := streamDescriptor("", last)
		require.NoError(t, err)
		assert.Equal(t, *last, *desc)
		assert.NotSame(t, last, desc, "last device MUST be copied")
	})

	t.Run("same address reuses binding", func(t *testing.T) {
		desc, err := streamDescriptor("aa:bb:cc:dd:ee:ff", last)
		require.NoError(t, err)
		assert.Equal(t, "thermo", desc.ID)
		assert.Equal(t, "aa:bb:cc:dd:ee:ff", desc.Address)
		assert.True(t, desc.HasBinding())
	})

	t.Run("other address starts fresh", func(t *testing.T) {
		desc, err := streamDescriptor("11:22:33:44:55:66", last)
		require.NoError(t, err)
		assert.Equal(t, device.Descriptor{Address: "11:22:33:44:55:66"}, *desc)
	})

	t.Run("flags replace binding", func(t *testing.T) {
		setStreamFlags(t, "180f", "2a19", "2a1a", "", false)
		desc, err := streamDescriptor("", last)
		require.NoError(t, err)
		assert.Equal(t, "180f", desc.ServiceID)
		assert.Equal(t, "2a19", desc.NotifyCharacteristicID)
		assert.Equal(t, "2a1a", desc.WriteCharacteristicID)
		assert.Empty(t, desc.ID, "a new binding MUST get a new id")
	})

	t.Run("partial flags", func(t *testing.T) {
		setStreamFlags(t, "180f", "", "2a1a", "", false)
		_, err := streamDescriptor("AA:BB:CC:DD:EE:FF", nil)
		assert.ErrorIs(t, err, ErrPartialBinding)
	})

	t.Run("discover drops binding", func(t *testing.T) {
		setStreamFlags(t, "", "", "", "", true)
		desc, err := streamDescriptor("", last)
		require.NoError(t, err)
		assert.False(t, desc.HasBinding())
		assert.Empty(t, desc.ID)
		assert.Equal(t, last.Address, desc.Address)
	})

	t.Run("rename re-derives id", func(t *testing.T) {
		setStreamFlags(t, "", "", "", "attic", false)
		desc, err := streamDescriptor("", last)
		require.NoError(t, err)
		assert.Equal(t, "attic", desc.Name)
		assert.Empty(t, desc.ID)
	})
}

func TestConfigureLogger(t *testing.T) {
	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{Use: "x"}
		cmd.Flags().String("log-level", "", "")
		cmd.Flags().Bool("verbose", false, "")
		return cmd
	}
	cfg := config.DefaultConfig()
	cfg.LogLevel = "warn"

	tests := []struct {
		name    string
		args    []string
		want    logrus.Level
		wantErr bool
	}{
		{name: "config level", want: logrus.WarnLevel},
		{name: "verbose", args: []string{"--verbose"}, want: logrus.DebugLevel},
		{name: "flag wins", args: []string{"--verbose", "--log-level", "error"}, want: logrus.ErrorLevel},
		{name: "invalid flag", args: []string{"--log-level", "loud"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newCmd()
			require.NoError(t, cmd.ParseFlags(tt.args))

			logger, err := configureLogger(cmd, cfg)
			if tt.wantErr {
				assert.ErrorContains(t, err, "invalid log level")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, logger.GetLevel())
			assert.Same(t, cmd.ErrOrStderr(), logger.Out, "logs MUST go to the command's stderr")
		})
	}
}
