package padkit

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/beatfold/padkit/internal/testutil"
)

func TestLoggingErrorHandlerForwardsToBoth(t *testing.T) {
	underlying := &testutil.CollectingHandler{}
	var logged []error

	handler := NewLoggingErrorHandler(underlying, func(err error) {
		logged = append(logged, err)
	})

	err := errors.New("voice gone missing")
	handler.HandleError(err)

	assert.Equal(t, 1, underlying.Count())
	assert.Equal(t, err, underlying.Last())
	assert.Equal(t, []error{err}, logged)
}

func TestLoggingErrorHandlerToleratesNilParts(t *testing.T) {
	handler := NewLoggingErrorHandler(nil, nil)
	handler.HandleError(errors.New("nobody listening"))
}

func TestPanicErrorHandlerPanics(t *testing.T) {
	handler := &PanicErrorHandler{}
	assert.Panics(t, func() {
		handler.HandleError(errors.New("boom"))
	})
}

func TestDefaultErrorHandlerLogsQuietly(t *testing.T) {
	handler := &DefaultErrorHandler{}
	handler.HandleError(errors.New("just a log line"))
}
