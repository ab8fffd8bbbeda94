package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionErrorWrapping(t *testing.T) {
	cause := errors.New("spawn failed")
	err := NewConnectionError("weather", cause)

	assert.Contains(t, err.Error(), "weather")
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsConnection(err))
	assert.True(t, IsConnection(fmt.Errorf("start: %w", err)))
	assert.False(t, IsConnection(cause))
}

func TestModelProviderErrorStatus(t *testing.T) {
	err := NewModelProviderError(401, errors.New("invalid api key"))
	assert.Contains(t, err.Error(), "401")
	assert.True(t, IsModelProvider(err))

	bare := NewModelProviderError(0, errors.New("timeout"))
	assert.NotContains(t, bare.Error(), "status")
}

func TestProtocolErrorClassification(t *testing.T) {
	err := &ProtocolError{Server: "files", Detail: "unknown correlation id 42"}
	assert.True(t, IsProtocol(err))
	assert.False(t, IsProtocol(errors.New("other")))
	assert.Contains(t, err.Error(), "files")
}
