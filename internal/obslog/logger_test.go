package obslog

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_StepRecordsSuccessEntry(t *testing.T) {
	var buf bytes.Buffer
	l := New("main.script")
	l.SetOutput(&buf)

	l.Step(PhaseInvoke, "invoke", "add", 5*time.Millisecond, nil)

	entries := l.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, StatusSuccess, entries[0].Status)
	assert.Equal(t, "add", entries[0].Procedure)
	assert.Equal(t, "main.script", entries[0].Script)

	var decoded Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "invoke", decoded.Function)
}

func TestLogger_StepRecordsFailureEntry(t *testing.T) {
	l := New("main.script")
	l.SetOutput(&bytes.Buffer{})

	l.Step(PhaseInvoke, "invoke", "div", time.Millisecond, errors.New("divide by zero"))

	entries := l.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, StatusFailure, entries[0].Status)
	assert.Equal(t, "divide by zero", entries[0].Details)
}

func TestLogger_DisabledRecordsNothing(t *testing.T) {
	l := NewDisabled()
	l.Step(PhaseParse, "parse", "", time.Millisecond, nil)
	assert.Empty(t, l.Entries())
}

func TestLogger_TimedLogsElapsedDuration(t *testing.T) {
	l := New("main.script")
	l.SetOutput(&bytes.Buffer{})

	done := l.Timed(PhaseLoad, "load", "")
	time.Sleep(time.Millisecond)
	done(nil)

	entries := l.Entries()
	require.Len(t, entries, 1)
	assert.Greater(t, entries[0].DurationNs, int64(0))
}
