package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(WARNING, &buf)

	l.Debugf("debug %d", 1)
	l.Infof("info %d", 2)
	require.Empty(t, buf.String())

	l.Warnf("payout %s stuck", "abc")
	require.Contains(t, buf.String(), "[WARN] payout abc stuck")

	l.Errorf("boom")
	require.Contains(t, buf.String(), "[ERROR] boom")
}

func TestLogger_Silence(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(SILENCE, &buf)

	l.Errorf("nothing")
	require.Empty(t, buf.String())
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, DEBUG, ParseLevel("Debug"))
	require.Equal(t, WARNING, ParseLevel("warn"))
	require.Equal(t, ERROR, ParseLevel(" error "))
	require.Equal(t, SILENCE, ParseLevel("none"))
	require.Equal(t, INFO, ParseLevel("verbose"))
}
