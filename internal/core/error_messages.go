package core

// # Error Codes Reference
//
// This file maps technical errors to user-friendly messages with codes for
// support reference. Codes are grouped by category:
//
// # Source Errors (SRC001-SRC099)
//
//	SRC001 - Upstream unreachable: the country list could not be downloaded
//	         Action: Check your connection and reload the page
//	SRC002 - Upstream error: the country service returned an error
//	         Action: The service may be down; reload the page later
//	SRC003 - Bad upstream data: the country list could not be read
//	         Action: Reload the page later
//	SRC004 - Busy: too many directories are loading at once
//	         Action: Wait a moment and reload the page
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Session expired: the directory session is gone
//	         Action: Reload the page to start a new session
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Unknown region: the region is not one of the selectable values
//	REQ002 - Malformed request: the request body could not be read
//
// # Other
//
//	RATE001 - Too many requests
//	ERR000  - Fallback for anything unrecognised; check server logs
//
// Sentinel errors are matched with errors.Is first. Errors that only carry a
// message (context cancellation surfacing through net/http, for example) are
// matched by case-insensitive substring, in order.

import (
	"fmt"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/JonMunkholm/worldview/internal/directory"
	"github.com/JonMunkholm/worldview/internal/restcountries"
)

// ErrInvalidRequest marks a request the web layer could not parse.
var ErrInvalidRequest = errors.New("invalid request")

// ErrRateLimited marks a request rejected by the rate limiter.
var ErrRateLimited = errors.New("rate limit exceeded")

// UserMessage is what a user sees for an error.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorMatch struct {
	target error
	msg    UserMessage
}

// Order matters: the first matching sentinel wins, so kinds come before the
// generic ErrFetchFailed.
var errorMatches = []errorMatch{
	{restcountries.ErrTransport, UserMessage{
		Message: "The country list could not be downloaded",
		Action:  "Check your connection and reload the page",
		Code:    "SRC001",
	}},
	{restcountries.ErrUpstreamStatus, UserMessage{
		Message: "The country service returned an error",
		Action:  "The service may be down; reload the page later",
		Code:    "SRC002",
	}},
	{restcountries.ErrDecode, UserMessage{
		Message: "The country list could not be read",
		Action:  "Reload the page later",
		Code:    "SRC003",
	}},
	{ErrTooManyFetches, UserMessage{
		Message: "Too many directories are loading at once",
		Action:  "Wait a moment and reload the page",
		Code:    "SRC004",
	}},
	{restcountries.ErrFetchFailed, UserMessage{
		Message: "The country list could not be downloaded",
		Action:  "Check your connection and reload the page",
		Code:    "SRC001",
	}},
	{ErrSessionNotFound, UserMessage{
		Message: "Your directory session has expired",
		Action:  "Reload the page to start a new session",
		Code:    "SES001",
	}},
	{directory.ErrUnknownRegion, UserMessage{
		Message: "Unknown region",
		Action:  "Choose one of the listed regions",
		Code:    "REQ001",
	}},
	{ErrInvalidRequest, UserMessage{
		Message: "The request could not be read",
		Action:  "Check the request format and try again",
		Code:    "REQ002",
	}},
	{ErrRateLimited, rateLimitMessage},
}

var rateLimitMessage = UserMessage{
	Message: "Too many requests",
	Action:  "Please wait a moment before trying again",
	Code:    "RATE001",
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again",
			Code:    "REQ004",
		},
	},
	{
		pattern: "rate limit",
		msg:     rateLimitMessage,
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// A nil error maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, m := range errorMatches {
		if errors.Is(err, m.target) {
			return m.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something other than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
