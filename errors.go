package padkit

import (
	"fmt"
	"log"
)

// ErrorHandler defines the interface for handling voice manager errors.
// The manager absorbs every internal failure and routes it here; nothing
// above the manager ever receives a propagated error.
type ErrorHandler interface {
	HandleError(error)
}

// DefaultErrorHandler provides a basic error handling implementation
type DefaultErrorHandler struct{}

// HandleError implements ErrorHandler interface with basic logging
func (h *DefaultErrorHandler) HandleError(err error) {
	log.Printf("voice manager error: %v", err)
}

// LoggingErrorHandler wraps another handler and logs errors
type LoggingErrorHandler struct {
	underlying ErrorHandler
	logger     func(error)
}

// NewLoggingErrorHandler creates a new logging error handler
func NewLoggingErrorHandler(underlying ErrorHandler, logger func(error)) *LoggingErrorHandler {
	return &LoggingErrorHandler{
		underlying: underlying,
		logger:     logger,
	}
}

// HandleError implements ErrorHandler interface with logging
func (h *LoggingErrorHandler) HandleError(err error) {
	if h.logger != nil {
		h.logger(err)
	}
	if h.underlying != nil {
		h.underlying.HandleError(err)
	}
}

// PanicErrorHandler panics on any error (useful for development)
type PanicErrorHandler struct{}

// HandleError implements ErrorHandler interface by panicking
func (h *PanicErrorHandler) HandleError(err error) {
	panic(fmt.Sprintf("voice manager error: %v", err))
}
