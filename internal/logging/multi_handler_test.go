package logging

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkHandler struct {
	min      slog.Level
	fail     bool
	messages []string
}

func (s *sinkHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= s.min
}

func (s *sinkHandler) Handle(_ context.Context, record slog.Record) error {
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.messages = append(s.messages, record.Message)
	return nil
}

func (s *sinkHandler) WithAttrs([]slog.Attr) slog.Handler { return s }
func (s *sinkHandler) WithGroup(string) slog.Handler      { return s }

func TestMultiHandlerFansOut(t *testing.T) {
	first := &sinkHandler{min: slog.LevelInfo}
	second := &sinkHandler{min: slog.LevelInfo}
	logger := slog.New(NewMultiHandler(first, second))

	logger.Info("order placed")

	require.Len(t, first.messages, 1)
	require.Len(t, second.messages, 1)
	assert.Equal(t, "order placed", second.messages[0])
}

func TestMultiHandlerFailingSinkDoesNotStarveOthers(t *testing.T) {
	broken := &sinkHandler{min: slog.LevelInfo, fail: true}
	healthy := &sinkHandler{min: slog.LevelInfo}
	handler := NewMultiHandler(broken, healthy)

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "checkout failed", 0)
	err := handler.Handle(context.Background(), record)

	assert.Error(t, err)
	require.Len(t, healthy.messages, 1)
}

func TestMultiHandlerRespectsSinkLevels(t *testing.T) {
	quiet := &sinkHandler{min: slog.LevelError}
	chatty := &sinkHandler{min: slog.LevelDebug}
	handler := NewMultiHandler(quiet, chatty)

	assert.True(t, handler.Enabled(context.Background(), slog.LevelInfo))

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "cache miss", 0)
	require.NoError(t, handler.Handle(context.Background(), record))
	assert.Empty(t, quiet.messages)
	require.Len(t, chatty.messages, 1)
}
