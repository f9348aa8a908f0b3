//go:build test

package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"sync"

	"github.com/99designs/keyring"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/srg/sensorlink/internal/device"
	"github.com/srg/sensorlink/internal/state"
	"github.com/srg/sensorlink/internal/testutils"
)

// syncBuffer is written by the command and by session goroutines logging to stderr.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// CommandTestSuite extends MockPeripheralSuite with command testing utilities.
// Every command talks to the suite's FakeAdapter, an in-memory keyring and a
// last device file inside the test's temp dir.
type CommandTestSuite struct {
	testutils.MockPeripheralSuite

	Keyring   keyring.Keyring
	StatePath string

	origAdapter   func(*logrus.Logger) device.Adapter
	origTokenOpen func(state.KeyringOptions) (*state.TokenStore, error)
}

func (s *CommandTestSuite) SetupSuite() {
	s.MockPeripheralSuite.SetupSuite()
	color.NoColor = true
	s.origAdapter = newAdapter
	s.origTokenOpen = openTokenStore
}

func (s *CommandTestSuite) TearDownSuite() {
	newAdapter = s.origAdapter
	openTokenStore = s.origTokenOpen
}

func (s *CommandTestSuite) SetupTest() {
	s.MockPeripheralSuite.SetupTest()

	adapter := s.Adapter
	newAdapter = func(*logrus.Logger) device.Adapter { return adapter }

	s.Keyring = keyring.NewArrayKeyring(nil)
	kr := s.Keyring
	openTokenStore = func(state.KeyringOptions) (*state.TokenStore, error) {
		return state.NewTokenStore(kr), nil
	}

	s.StatePath = filepath.Join(s.T().TempDir(), "last_device.yaml")
	s.T().Setenv("SENSORLINK_STATE_PATH", s.StatePath)
	s.T().Setenv("SENSORLINK_API_BASE_URL", "")
	s.T().Setenv("SENSORLINK_API_TOKEN", "")
	s.T().Setenv("SENSORLINK_LOG_LEVEL", "info")

	resetFlags(rootCmd)
}

// LastDevice loads the descriptor the commands saved, nil when none.
func (s *CommandTestSuite) LastDevice() *device.Descriptor {
	store, err := state.NewLastDeviceStore(s.StatePath)
	s.Require().NoError(err, "store MUST open")
	desc, err := store.Load()
	s.Require().NoError(err, "last device file MUST parse")
	return desc
}

// SaveLastDevice seeds the last device file.
func (s *CommandTestSuite) SaveLastDevice(desc device.Descriptor) {
	store, err := state.NewLastDeviceStore(s.StatePath)
	s.Require().NoError(err, "store MUST open")
	s.Require().NoError(store.Save(desc), "seeding last device MUST succeed")
}

// ExecuteCommand runs the root command with args and returns stdout, stderr and the error.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, string, error) {
	return s.ExecuteCommandWithInput("", args...)
}

func (s *CommandTestSuite) ExecuteCommandWithInput(stdin string, args ...string) (string, string, error) {
	stdout, stderr := &syncBuffer{}, &syncBuffer{}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// resetFlags restores every flag of cmd and its children to its default.
// Cobra keeps flag values between Execute calls on the same command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
