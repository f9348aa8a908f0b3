//go:build test

package main

import (
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/srg/sensorlink/internal/state"
	"github.com/stretchr/testify/suite"
)

type TokenCommandTestSuite struct {
	CommandTestSuite
}

func (s *TokenCommandTestSuite) storedToken() string {
	token, err := state.NewTokenStore(s.Keyring).Get()
	s.Require().NoError(err)
	return token
}

func signedToken(exp time.Time) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).
		SignedString([]byte("test-key"))
	if err != nil {
		panic(fmt.Sprintf("sign token: %v", err))
	}
	return token
}

func (s *TokenCommandTestSuite) TestSetFromArgument() {
	// GOAL: Verify token set stores its argument
	//
	// TEST SCENARIO: token set abc → keyring holds abc

	stdout, _, err := s.ExecuteCommand("token", "set", "abc")
	s.Require().NoError(err)
	s.Assert().Equal("Token stored\n", stdout)
	s.Assert().Equal("abc", s.storedToken())
}

func (s *TokenCommandTestSuite) TestSetFromStdin() {
	// GOAL: Verify token set reads one line from a non-terminal stdin
	//
	// TEST SCENARIO: Pipe "  piped  \n" → keyring holds the trimmed token

	_, _, err := s.ExecuteCommandWithInput("  piped  \nignored\n", "token", "set")
	s.Require().NoError(err)
	s.Assert().Equal("piped", s.storedToken())
}

func (s *TokenCommandTestSuite) TestSetRejectsEmptyToken() {
	// GOAL: Verify an empty token is refused
	//
	// TEST SCENARIO: Empty stdin → error, keyring stays empty

	_, _, err := s.ExecuteCommandWithInput("", "token", "set")
	s.Require().ErrorContains(err, "token is empty")
	s.Assert().Empty(s.storedToken())
}

func (s *TokenCommandTestSuite) TestSetWarnsOnExpiredToken() {
	// GOAL: Verify storing an expired JWT warns but still stores it
	//
	// TEST SCENARIO: token set <expired jwt> → stored, warning on stderr

	expired := signedToken(time.Now().Add(-time.Hour))
	_, stderr, err := s.ExecuteCommand("token", "set", expired)
	s.Require().NoError(err)
	s.Assert().Contains(stderr, "token expired")
	s.Assert().Equal(expired, s.storedToken())
}

func (s *TokenCommandTestSuite) TestClear() {
	// GOAL: Verify token clear removes the token and is idempotent
	//
	// TEST SCENARIO: Store → clear → clear again → no token, no error

	s.Require().NoError(state.NewTokenStore(s.Keyring).Set("abc"))

	stdout, _, err := s.ExecuteCommand("token", "clear")
	s.Require().NoError(err)
	s.Assert().Equal("Token removed\n", stdout)
	s.Assert().Empty(s.storedToken())

	_, _, err = s.ExecuteCommand("token", "clear")
	s.Require().NoError(err, "clearing an empty keyring MUST succeed")
}

func (s *TokenCommandTestSuite) TestStatus() {
	// GOAL: Verify token status reports the source and expiry
	//
	// TEST SCENARIO: Empty keyring → not set; keyring jwt → expiry printed; env token → env source

	stdout, _, err := s.ExecuteCommand("token", "status")
	s.Require().NoError(err)
	s.Assert().Equal("Token: not set\n", stdout)

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	s.Require().NoError(state.NewTokenStore(s.Keyring).Set(signedToken(exp)))
	stdout, _, err = s.ExecuteCommand("token", "status")
	s.Require().NoError(err)
	s.Assert().Equal(fmt.Sprintf("Token: stored in keyring\nExpires: %s\n", exp.UTC().Format(time.RFC3339)), stdout)

	s.T().Setenv("SENSORLINK_API_TOKEN", "opaque")
	stdout, _, err = s.ExecuteCommand("token", "status")
	s.Require().NoError(err)
	s.Assert().Equal("Token: from config or environment\nExpires: unknown\n", stdout)
}

func TestTokenCommandTestSuite(t *testing.T) {
	suite.Run(t, new(TokenCommandTestSuite))
}
