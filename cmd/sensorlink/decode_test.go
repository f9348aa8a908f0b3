//go:build test

package main

import (
	"encoding/hex"
	"testing"

	"github.com/srg/sensorlink/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type DecodeCommandTestSuite struct {
	CommandTestSuite
}

func (s *DecodeCommandTestSuite) TestDecodeText() {
	// GOAL: Verify frames are decoded and printed in frame order
	//
	// TEST SCENARIO: One full frame and one 6-byte frame → all readings, then temperature only

	full := hex.EncodeToString(sampleFrame())
	stdout, _, err := s.ExecuteCommand("decode", full, "0x65f1a2b0 00d7")
	s.Require().NoError(err)

	expected := `frame 1
  2024-03-13T12:57:20Z  temperature    21.5°C
  2024-03-13T12:57:20Z  accelerometer  x=1 y=-2 z=3
  2024-03-13T12:57:20Z  voltage        3.300V
frame 2
  2024-03-13T12:57:20Z  temperature    21.5°C`
	testutils.NewTextAsserter(s.T()).Assert(stdout, expected)
}

func (s *DecodeCommandTestSuite) TestDecodeTooShort() {
	// GOAL: Verify a frame without a full timestamp yields no readings and no error
	//
	// TEST SCENARIO: Decode 3 bytes → "no readings" note

	stdout, _, err := s.ExecuteCommand("decode", "65f1a2")
	s.Require().NoError(err)
	s.Assert().Contains(stdout, "no readings")
}

func (s *DecodeCommandTestSuite) TestDecodeJSON() {
	// GOAL: Verify --json prints every frame with its readings
	//
	// TEST SCENARIO: Decode --json full frame → array with one frame of three readings

	stdout, _, err := s.ExecuteCommand("decode", "--json", hex.EncodeToString(sampleFrame()))
	s.Require().NoError(err)

	testutils.NewJSONAsserter(s.T()).Assert(stdout, `[
		{"frame": 1, "readings": [
			{"kind": "temperature", "timestamp": 1710334640, "temperature": 21.5},
			{"kind": "accelerometer", "timestamp": 1710334640, "x": 1, "y": -2, "z": 3},
			{"kind": "voltage", "timestamp": 1710334640, "voltage": 3.3}
		]}
	]`)
}

func (s *DecodeCommandTestSuite) TestDecodeMalformedHex() {
	// GOAL: Verify malformed hex names the offending frame
	//
	// TEST SCENARIO: Second argument is not hex → error mentions frame 2, no readings printed

	stdout, _, err := s.ExecuteCommand("decode", "65f1a2b0", "zz")
	s.Require().ErrorContains(err, "frame 2")
	s.Assert().NotContains(stdout, "temperature")
}

func TestDecodeCommandTestSuite(t *testing.T) {
	suite.Run(t, new(DecodeCommandTestSuite))
}
