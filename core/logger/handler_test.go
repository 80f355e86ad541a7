package logger

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, format logFormat, level slog.Level) (*slog.Logger, func() string) {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	h := newStructuredHandler(handlerConfig{
		level:    level,
		writer:   aw,
		format:   format,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	return slog.New(h), func() string {
		require.NoError(t, aw.Flush())
		require.NoError(t, aw.Close())
		return strings.TrimSpace(buf.String())
	}
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	log, read := newTestLogger(t, formatKV, slog.LevelInfo)
	ctx := WithRID(nil, "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	LogEvent(ctx, log.With("component", CompConversation), slog.LevelInfo, "fsm.transition",
		slog.String("status", "OK"),
		slog.String("from_state", "idle"),
		slog.String("to_state", "awaiting_technology"),
	)

	tokens := strings.Split(read(), " ")
	expected := []string{"ts=", "level=INFO", "component=conversation", "event=fsm.transition", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9"}
	require.GreaterOrEqual(t, len(tokens), len(expected))
	for i, prefix := range expected {
		assert.Truef(t, strings.HasPrefix(tokens[i], prefix), "token %d = %s, expected prefix %s", i, tokens[i], prefix)
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	log, read := newTestLogger(t, formatJSON, slog.LevelInfo)
	ctx := WithRID(nil, "rid-json")

	LogEvent(ctx, log.With("component", CompProcessing), slog.LevelError, "dispatch.fail",
		slog.String("status", "fail"),
		slog.String("model", "mosaic_suffix"),
		Err(errors.New("boom")),
	)

	line := read()
	require.True(t, strings.HasPrefix(line, "{"), line)
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"processing"`, `"event":"dispatch.fail"`, `"status":"fail"`, `"rid":"rid-json"`, `"model":"mosaic_suffix"`, `"err":"boom"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		require.Truef(t, idx > pos, "prefix %s not found in order within %s", pref, line)
		pos = idx
	}
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	log, read := newTestLogger(t, formatKV, slog.LevelInfo)
	rawRID := "123:456:789"
	LogEvent(WithRID(nil, rawRID), log, slog.LevelInfo, "rid.test")

	line := read()
	assert.Contains(t, line, "rid="+CompactRID(rawRID))
	assert.NotContains(t, line, "rid_full=")
	assert.Contains(t, line, "component=app")
}

func TestStructuredHandlerCompactRIDJSON(t *testing.T) {
	log, read := newTestLogger(t, formatJSON, slog.LevelInfo)
	rawRID := "12:34:56"
	LogEvent(WithRID(nil, rawRID), log, slog.LevelInfo, "rid.test")

	line := read()
	assert.Contains(t, line, `"rid":"`+CompactRID(rawRID)+`"`)
	assert.Contains(t, line, `"rid_full":"`+rawRID+`"`)
	assert.Contains(t, line, `"ts_unix_nano"`)
}

func TestStructuredHandlerDurationsAndLevels(t *testing.T) {
	log, read := newTestLogger(t, formatKV, slog.LevelInfo)
	LogEvent(nil, log, slog.LevelDebug, "hidden")
	LogEvent(nil, log, slog.LevelInfo, "dispatch.done",
		slog.Duration("duration", 1499*time.Microsecond),
		slog.Duration("backoff", 2*time.Second),
		slog.String("payload", "two words"),
	)

	line := read()
	assert.NotContains(t, line, "hidden")
	assert.Contains(t, line, "duration_ms=1")
	assert.Contains(t, line, "backoff_ms=2000")
	assert.Contains(t, line, `payload="two words"`)
}

func TestCompactRID(t *testing.T) {
	assert.Equal(t, "3f.co.lx", CompactRID("123:456:789"))
	assert.Equal(t, "not-a-rid", CompactRID("not-a-rid"))
	assert.Equal(t, "1:x:3", CompactRID("1:x:3"))
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	got := []bool{s.Allow(), s.Allow(), s.Allow(), s.Allow()}
	assert.Equal(t, []bool{true, false, false, true}, got)

	s.Set(0, 0)
	assert.True(t, s.Allow())

	num, den := parseRatioSpec("2/10")
	assert.Equal(t, 2, num)
	assert.Equal(t, 10, den)
	num, den = parseRatioSpec("25")
	assert.Equal(t, 1, num)
	assert.Equal(t, 25, den)
}

func TestHelpersTolerateUninitializedLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		Info(nil, CompSession, "sweep", slog.Int("evicted", 1))
		Error(WithUser(nil, 5), CompProcessing, "dispatch.fail")
	})
}

func TestSanitizeLimit(t *testing.T) {
	assert.Equal(t, "ab\tc", Sanitize("a\x00b\tc\x7f"))
	assert.Equal(t, "при", SanitizeLimit("привет", 3))
	assert.Equal(t, "", SanitizeLimit("x", 0))
}
