package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every handler is nil")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newFanoutHandler(nil, inner); h != inner {
		t.Fatal("expected single non-nil handler to be returned unwrapped")
	}
}

func TestFanoutHandlerRespectsPerHandlerLevels(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	infoHandler := slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	debugHandler := slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})

	logger := slog.New(newFanoutHandler(infoHandler, debugHandler))
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug to be enabled through the debug handler")
	}

	logger.Debug("debug only")
	logger.Info("both")

	if strings.Contains(infoBuf.String(), "debug only") {
		t.Fatalf("info handler received debug record: %s", infoBuf.String())
	}
	if !strings.Contains(infoBuf.String(), "both") {
		t.Fatalf("info handler missing info record: %s", infoBuf.String())
	}
	if !strings.Contains(debugBuf.String(), "debug only") || !strings.Contains(debugBuf.String(), "both") {
		t.Fatalf("debug handler missing records: %s", debugBuf.String())
	}
}

func TestFanoutHandlerWithAttrsPropagates(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := newFanoutHandler(
		slog.NewJSONHandler(&buf1, nil),
		slog.NewJSONHandler(&buf2, nil),
	)
	logger := slog.New(h).With("entry_id", "leaf.mp4").WithGroup("req")
	logger.Info("sent", "status", 200)

	for i, out := range []string{buf1.String(), buf2.String()} {
		if !strings.Contains(out, `"entry_id":"leaf.mp4"`) {
			t.Fatalf("handler %d missing attr: %s", i, out)
		}
		if !strings.Contains(out, `"req":{"status":200}`) {
			t.Fatalf("handler %d missing group: %s", i, out)
		}
	}
}
