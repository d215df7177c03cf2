package log

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/inconshreveable/log15"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("")
	require.NoError(t, err)
	require.Equal(t, DefaultLevel, lvl)

	lvl, err = ParseLevel("debug")
	require.NoError(t, err)
	require.Equal(t, log15.LvlDebug, lvl)

	_, err = ParseLevel("loud")
	require.Error(t, err)
}

func TestNewLog_FiltersAndTagsModule(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, log15.LvlInfo)
	t.Cleanup(func() { SetLevel(DefaultLevel) })

	l := NewLog("jsonrpc")
	l.Debug("hidden")
	l.Info("shown", "k", 1)

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "msg=shown")
	require.Contains(t, out, "module=jsonrpc")
	require.Contains(t, out, "k=1")
	require.Same(t, rootLog, NewLog(""))
}

func TestWithRequestID(t *testing.T) {
	ctx := context.Background()
	_, ok := RequestID(ctx)
	require.False(t, ok)
	require.Equal(t, []interface{}{"a", 1, RequestIDKey, ""}, WithRequestID(ctx, "a", 1))

	ctx = ContextWithRequestID(ctx, "r-1")
	id, ok := RequestID(ctx)
	require.True(t, ok)
	require.Equal(t, "r-1", id)
	require.Equal(t, []interface{}{RequestIDKey, "r-1"}, WithRequestID(ctx))
}

func TestDiscard(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, log15.LvlDebug)
	t.Cleanup(func() { SetOutput(os.Stderr, DefaultLevel) })

	Discard().Error("dropped")
	require.Empty(t, buf.String())
}
