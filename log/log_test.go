package log_test

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/cycle/log"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	l, err := log.New("warn", "json", &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, l.Level)

	l.Info("skipped")
	assert.Zero(t, buf.Len())
	l.WithField("cycle", 1).Warn("written")
	assert.Contains(t, buf.String(), `"cycle":1`)

	_, err = log.New("loud", "text", nil)
	assert.Error(t, err)
	_, err = log.New("info", "xml", nil)
	assert.Error(t, err)
}
