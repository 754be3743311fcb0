// Package errors defines the recoverable failure taxonomy of the console and
// turns failures into messages that are safe to show to an operator.
package errors

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for presentation and metrics.
type ErrorKind string

const (
	KindNone       ErrorKind = ""
	KindValidation ErrorKind = "validation"
	KindConversion ErrorKind = "conversion"
	KindNetwork    ErrorKind = "network"
	KindServer     ErrorKind = "server"
	KindInternal   ErrorKind = "internal"
)

// ValidationError reports a bad or missing input detected before any I/O.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConversionError reports a spreadsheet that could not be turned into CSV.
type ConversionError struct {
	File string
	Err  error
}

func (e *ConversionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("failed to convert %s", e.File)
	}
	return fmt.Sprintf("failed to convert %s: %v", e.File, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// NetworkError reports a transport failure or a non-success HTTP status.
// StatusCode is zero when no response was received.
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s: HTTP error! status: %d: %v", e.Op, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: HTTP error! status: %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": network error"
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerReportedError is a success:false envelope returned by the classifier.
type ServerReportedError struct {
	Op      string
	Message string
}

func (e *ServerReportedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// NewValidation creates a ValidationError.
func NewValidation(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Kind classifies err. Wrapped errors are unwrapped with errors.As.
func Kind(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var (
		validation *ValidationError
		conversion *ConversionError
		network    *NetworkError
		server     *ServerReportedError
	)
	switch {
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &conversion):
		return KindConversion
	case errors.As(err, &network):
		return KindNetwork
	case errors.As(err, &server):
		return KindServer
	default:
		return KindInternal
	}
}

// UserMessage renders err as an operator-facing message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		validation *ValidationError
		conversion *ConversionError
		network    *NetworkError
		server     *ServerReportedError
	)
	switch {
	case errors.As(err, &validation):
		return validation.Message
	case errors.As(err, &conversion):
		return "Failed to convert Excel file. Please ensure it's a valid XLSX file."
	case errors.As(err, &network):
		return "Failed to connect to the prediction server. Error: " + SanitizeString(network.Error())
	case errors.As(err, &server):
		return SanitizeString(server.Message)
	default:
		return SafeErrorMessage(err)
	}
}
