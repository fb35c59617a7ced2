package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("ValidLevels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error"} {
			l, err := NewLogger(level)
			require.NoError(t, err)
			assert.NotNil(t, l.WithComponent("test"))

			c, err := NewConsoleLogger(level)
			require.NoError(t, err)
			assert.NotNil(t, c.WithComponent("test"))
		}
	})

	t.Run("InvalidLevel", func(t *testing.T) {
		_, err := NewLogger("shouting")
		assert.Error(t, err)

		_, err = NewConsoleLogger("shouting")
		assert.Error(t, err)
	})
}
