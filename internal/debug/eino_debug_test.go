package debug

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/MarketPulse/config"
)

func TestInitializeDisabledIsNoop(t *testing.T) {
	d := NewEinoDebugger(config.Config{}, zerolog.Nop())
	d.init = func(context.Context) error {
		t.Fatal("init must not run when disabled")
		return nil
	}

	require.NoError(t, d.Initialize(context.Background()))
	assert.False(t, d.IsEnabled())
	assert.Empty(t, d.GetDebugURL())
}

func TestInitializeEnabled(t *testing.T) {
	cfg := config.Config{EinoDebugEnabled: true, EinoDebugPort: 52538}
	d := NewEinoDebugger(cfg, zerolog.Nop())

	calls := 0
	d.init = func(context.Context) error {
		calls++
		return nil
	}

	require.NoError(t, d.Initialize(context.Background()))
	assert.Equal(t, 1, calls)
	assert.Equal(t, "http://localhost:52538", d.GetDebugURL())
}

func TestInitializeWrapsError(t *testing.T) {
	d := NewEinoDebugger(config.Config{EinoDebugEnabled: true}, zerolog.Nop())
	boom := errors.New("port in use")
	d.init = func(context.Context) error { return boom }

	err := d.Initialize(context.Background())
	assert.ErrorIs(t, err, boom)
}
