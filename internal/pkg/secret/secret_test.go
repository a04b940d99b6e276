package secret

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecret_Redacted(t *testing.T) {
	s := New("hunter2")

	assert.Equal(t, "hunter2", s.Expose())
	assert.Equal(t, "[REDACTED]", s.String())
	assert.NotContains(t, fmt.Sprintf("%v %+v %#v %s", s, s, s, s), "hunter2")

	type wrapper struct {
		Token Secret `json:"token"`
	}
	data, err := json.Marshal(wrapper{Token: s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"[REDACTED]"}`, string(data))
}

func TestSecret_LogValue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logger.Info("configured", "token", New("hunter2"))

	assert.NotContains(t, buf.String(), "hunter2")
	assert.Contains(t, buf.String(), "[REDACTED]")
}

func TestSecret_UnmarshalText(t *testing.T) {
	var s Secret
	require.NoError(t, s.UnmarshalText([]byte("hunter2")))
	assert.Equal(t, "hunter2", s.Expose())
	assert.False(t, s.IsZero())
	assert.True(t, Secret{}.IsZero())
}
