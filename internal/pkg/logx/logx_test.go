package logx

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOddFieldsAreDropped(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })

	Info("room created", "room_id")

	out := buf.String()
	assert.Contains(t, out, "odd number of fields")
	assert.Contains(t, out, "room created")
	assert.NotContains(t, out, `"room_id":`)
}

func TestComponentTagsEntries(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })

	logger := Component("matchmaking")
	logger.Info().Msg("paired")

	assert.Contains(t, buf.String(), `"component":"matchmaking"`)
}
