package mealrecal

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestFileRecalibrationLogger_Flush(t *testing.T) {
	var buf bytes.Buffer
	l := NewFileRecalibrationLogger(&buf)

	require.NoError(t, l.LogStage(StageLog{Stage: "LOAD_BASELINE", UserID: "u1", Timestamp: time.Now()}))
	require.NoError(t, l.LogStage(StageLog{Stage: "PERSIST", UserID: "u1", Error: "boom"}))
	require.NoError(t, l.Flush())

	var out struct {
		Session struct {
			Stages []StageLog `json:"stages"`
		} `json:"recalibration_session"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out.Session.Stages, 2)
	assert.Equal(t, "LOAD_BASELINE", out.Session.Stages[0].Stage)
	assert.Equal(t, "boom", out.Session.Stages[1].Error)

	// buffer is cleared after a successful flush
	buf.Reset()
	require.NoError(t, l.Flush())
	assert.Contains(t, buf.String(), `"stages": []`)
}

func TestFileRecalibrationLogger_FlushErrors(t *testing.T) {
	assert.NoError(t, NewFileRecalibrationLogger(nil).Flush())

	l := NewFileRecalibrationLogger(failingWriter{})
	require.NoError(t, l.LogStage(StageLog{Stage: "AGGREGATE_TODAY"}))
	assert.ErrorContains(t, l.Flush(), "disk full")
}

func TestStdoutRecalibrationLogger(t *testing.T) {
	var buf bytes.Buffer
	l := &StdoutRecalibrationLogger{out: &buf}
	require.NoError(t, l.LogStage(StageLog{Stage: "SANITIZE", UserID: "u1", Detail: map[string]int{"replaced": 2}}))
	require.NoError(t, l.LogStage(StageLog{Stage: "VALIDATE", UserID: "u1"}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"replaced":2`)
	assert.Contains(t, lines[1], `"stage":"VALIDATE"`)
}

func TestNewRecalibrationLogFilePath(t *testing.T) {
	p := NewRecalibrationLogFilePath("Team:Alice Smith")
	assert.True(t, strings.HasPrefix(p, "./logs/"))
	assert.True(t, strings.HasSuffix(p, ".team_alice_smith.json"))
}

func TestGenerateResult(t *testing.T) {
	assert.True(t, Success("{}").OK())
	f := Failure(ReasonNone, errors.New("x"))
	assert.False(t, f.OK())
	assert.Equal(t, ReasonOther, f.Reason)
	assert.Equal(t, ReasonRateLimited, Failure(ReasonRateLimited, nil).Reason)
}
