package tool

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	SetObserver(NewLogObserver(logger))
	t.Cleanup(func() { SetObserver(nil) })

	_, err := Build([]Declaration{decl("bing_connection", "Bing", nil)}, nil)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "code=TL-002")
	assert.Contains(t, out, "tool_id=Bing")
	assert.Contains(t, out, `msg="tool build finished"`)
	assert.Contains(t, out, "skipped=1")
}

func TestLogObserver_FailedBuildLogsError(t *testing.T) {
	var buf bytes.Buffer
	SetObserver(NewLogObserver(slog.New(slog.NewTextHandler(&buf, nil))))
	t.Cleanup(func() { SetObserver(nil) })

	_, err := Build([]Declaration{decl("mcp", "Docs", nil)}, nil)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "error_code=TL-011")
}

func TestMultiObserver_FansOutAndSkipsNil(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}
	SetObserver(NewMultiObserver(a, nil, b))
	t.Cleanup(func() { SetObserver(nil) })

	_, err := Build([]Declaration{{ID: "x"}}, nil)
	require.NoError(t, err)
	assert.Len(t, a.warnings, 1)
	assert.Len(t, b.warnings, 1)
	assert.Len(t, a.builds, 1)
	assert.Len(t, b.builds, 1)
}
