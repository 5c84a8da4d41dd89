package ulogger_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/bsv-blockchain/chainstate/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()

	var lines []map[string]interface{}

	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))

		lines = append(lines, m)
	}

	return lines
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level    string
		expected []string
	}{
		{"DEBUG", []string{"debug", "info", "warn", "error"}},
		{"INFO", []string{"info", "warn", "error"}},
		{"WARN", []string{"warn", "error"}},
		{"ERROR", []string{"error"}},
		{"nonsense", []string{"info", "warn", "error"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer

			logger := ulogger.New("test", ulogger.WithWriter(&buf), ulogger.WithLevel(tt.level), ulogger.WithPretty(false))

			logger.Debugf("debug %d", 1)
			logger.Infof("info %d", 2)
			logger.Warnf("warn %d", 3)
			logger.Errorf("error %d", 4)

			lines := jsonLines(t, &buf)
			require.Len(t, lines, len(tt.expected))

			for i, l := range lines {
				assert.Equal(t, tt.expected[i], l["level"])
				assert.Equal(t, "test", l["service"])
			}
		})
	}
}

func TestNewKeepsParentSettings(t *testing.T) {
	var buf bytes.Buffer

	parent := ulogger.New("parent", ulogger.WithWriter(&buf), ulogger.WithLevel("WARN"), ulogger.WithPretty(false))
	child := parent.New("child")

	child.Infof("dropped")
	child.Warnf("kept")

	lines := jsonLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "child", lines[0]["service"])
	assert.Equal(t, "kept", lines[0]["message"])
	assert.Equal(t, parent.LogLevel(), child.LogLevel())
}

func TestPrettyOutput(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var buf bytes.Buffer

	logger := ulogger.New("pretty", ulogger.WithWriter(&buf))
	logger.Infof("hello %s", "world")

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "pretty")
	assert.Contains(t, out, "hello world")
}

func TestErrorTestLoggerRecords(t *testing.T) {
	logger := ulogger.NewErrorTestLogger(t)

	logger.Infof("not recorded")
	logger.Errorf("[Registry] failed for %s", "abcd:0")

	require.Equal(t, []string{"[Registry] failed for abcd:0"}, logger.Messages())
	assert.Same(t, logger, logger.New("other"))
}

func TestVerboseTestLogger(t *testing.T) {
	logger := ulogger.NewVerboseTestLogger(t)
	child := logger.New("child")

	child.Debugf("debug %d", 1)
	child.Infof("info %d", 2)
	assert.Equal(t, 0, child.LogLevel())
}
