package core

// error_messages.go maps technical errors to user-facing messages with codes
// for support reference. Users quote the code; support looks it up here.
//
// # Store Errors (DB001-DB099)
//
//	DB001 - Connection refused: Unable to connect to database
//	DB002 - Connection reset: Database connection was interrupted
//	DB003 - Busy: Database is locked by another writer (sqlite)
//	DB004 - Deadlock: Database was busy with conflicting operations
//	DB005 - Missing schema: Storage tables have not been created
//	DB006 - Timeout: Operation timed out
//
// # Ingestion Errors (ING001-ING099)
//
//	ING001 - Missing column: The sheet lacks a required column
//	ING002 - No data: Nothing left after removing blank rows
//	ING003 - No recognized sheet: No sheet name carries a product and a month
//	ING004 - Workbook required: Multi-sheet upload received a CSV
//	ING005 - Unknown record type: Product is not pulp or extract
//	ING006 - Invalid period: Month or year out of range
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - Unreadable file: Decoder could not read the content
//	FILE003 - Invalid extension: Only .xlsx, .xls, .csv are accepted
//	FILE004 - Empty file or missing file name
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Request cancelled
//	REQ002 - Request timeout
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches; check the logs for the technical error.
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Store
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB002",
		},
	},
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "Database is busy with another upload",
			Action:  "Please try again",
			Code:    "DB003",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},
	{
		pattern: "no such table",
		msg: UserMessage{
			Message: "Storage is not initialized",
			Action:  "Contact support to run the schema setup",
			Code:    "DB005",
		},
	},
	{
		pattern: "does not exist",
		msg: UserMessage{
			Message: "Storage is not initialized",
			Action:  "Contact support to run the schema setup",
			Code:    "DB005",
		},
	},

	// Request lifecycle; ahead of "timeout" so deadlines map to REQ002.
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "REQ002",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "DB006",
		},
	},

	// Ingestion
	{
		pattern: "missing required column",
		msg: UserMessage{
			Message: "A required column is missing from the sheet",
			Action:  "Check the column headers against the template for this product",
			Code:    "ING001",
		},
	},
	{
		pattern: "no valid data after cleaning",
		msg: UserMessage{
			Message: "The sheet has no data rows after removing blank lines",
			Action:  "Fill in the data rows and upload again",
			Code:    "ING002",
		},
	},
	{
		pattern: "no recognized sheet",
		msg: UserMessage{
			Message: "No sheet could be matched to a product and month",
			Action:  "Name each sheet with the product (Polpa, Extrato) and month (Jan..Dez)",
			Code:    "ING003",
		},
	},
	{
		pattern: "requires a workbook",
		msg: UserMessage{
			Message: "Multi-sheet upload needs an Excel workbook",
			Action:  "Upload an .xlsx file or use the single-sheet upload",
			Code:    "ING004",
		},
	},
	{
		pattern: "unknown record type",
		msg: UserMessage{
			Message: "Unknown product type",
			Action:  "Choose pulp (polpa) or extract (extrato)",
			Code:    "ING005",
		},
	},
	{
		pattern: "must be between",
		msg: UserMessage{
			Message: "Invalid reporting period",
			Action:  "Use a month from 1 to 12 and a year from 2000 to 2100",
			Code:    "ING006",
		},
	},

	// File
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the workbook into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "failed to read file",
		msg: UserMessage{
			Message: "The file could not be read",
			Action:  "Save it as .xlsx or UTF-8 .csv and upload again",
			Code:    "FILE002",
		},
	},
	{
		pattern: "invalid file extension",
		msg: UserMessage{
			Message: "File type not accepted",
			Action:  "Upload an .xlsx, .xls or .csv file",
			Code:    "FILE003",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please select a spreadsheet with data rows",
			Code:    "FILE004",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, the ERR000 fallback is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
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

// IsUserFacing reports whether err matches a known pattern (not the ERR000 fallback).
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
