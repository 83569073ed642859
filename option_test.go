package meshsandbox

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/rbaliyan/meshsandbox/auth"
	"github.com/rbaliyan/meshsandbox/content"
)

func TestNewOptions(t *testing.T) {
	t.Run("returns defaults without options", func(t *testing.T) {
		opts := newOptions()

		if opts.inboxRetention != DefaultInboxRetention {
			t.Errorf("expected inboxRetention %v, got %v", DefaultInboxRetention, opts.inboxRetention)
		}
		if opts.maxConcurrentHooks != DefaultMaxConcurrentHooks {
			t.Errorf("expected maxConcurrentHooks %v, got %v", DefaultMaxConcurrentHooks, opts.maxConcurrentHooks)
		}
		if opts.shutdownTimeout != DefaultShutdownTimeout {
			t.Errorf("expected shutdownTimeout %v, got %v", DefaultShutdownTimeout, opts.shutdownTimeout)
		}
		if opts.statsRefreshInterval != DefaultStatsRefreshInterval {
			t.Errorf("expected statsRefreshInterval %v, got %v", DefaultStatsRefreshInterval, opts.statsRefreshInterval)
		}
		if opts.authMode != auth.ModeNone {
			t.Errorf("expected auth mode none, got %v", opts.authMode)
		}
		if opts.sharedKey != auth.DefaultSharedKey {
			t.Errorf("expected default shared key, got %q", opts.sharedKey)
		}
		if opts.serviceName != DefaultServiceName {
			t.Errorf("expected service name %q, got %q", DefaultServiceName, opts.serviceName)
		}
		if opts.codecs == nil {
			t.Error("expected default codec registry")
		}
		if opts.onEventPublishFailure == nil {
			t.Error("expected default publish failure handler")
		}
	})
}

func TestWithLogger(t *testing.T) {
	t.Run("sets custom logger", func(t *testing.T) {
		customLogger := slog.Default()
		opts := newOptions(WithLogger(customLogger))
		if opts.logger != customLogger {
			t.Error("expected custom logger to be set")
		}
	})

	t.Run("ignores nil logger", func(t *testing.T) {
		opts := newOptions(WithLogger(nil))
		if opts.logger == nil {
			t.Error("expected default logger when nil passed")
		}
	})
}

func TestDurationOptions(t *testing.T) {
	t.Run("inbox retention", func(t *testing.T) {
		if got := newOptions(WithInboxRetention(time.Hour)).inboxRetention; got != time.Hour {
			t.Errorf("expected 1h, got %v", got)
		}
		if got := newOptions(WithInboxRetention(-time.Hour)).inboxRetention; got != DefaultInboxRetention {
			t.Errorf("expected default for negative, got %v", got)
		}
	})

	t.Run("shutdown timeout below minimum", func(t *testing.T) {
		if got := newOptions(WithShutdownTimeout(time.Millisecond)).shutdownTimeout; got != DefaultShutdownTimeout {
			t.Errorf("expected default, got %v", got)
		}
		if got := newOptions(WithShutdownTimeout(5 * time.Second)).shutdownTimeout; got != 5*time.Second {
			t.Errorf("expected 5s, got %v", got)
		}
	})

	t.Run("stats refresh interval", func(t *testing.T) {
		if got := newOptions(WithStatsRefreshInterval(0)).statsRefreshInterval; got != DefaultStatsRefreshInterval {
			t.Errorf("expected default, got %v", got)
		}
	})
}

func TestWithMaxConcurrentHooks(t *testing.T) {
	if got := newOptions(WithMaxConcurrentHooks(4)).maxConcurrentHooks; got != 4 {
		t.Errorf("expected 4, got %d", got)
	}
	if got := newOptions(WithMaxConcurrentHooks(0)).maxConcurrentHooks; got != DefaultMaxConcurrentHooks {
		t.Errorf("expected default, got %d", got)
	}
}

func TestAuthOptions(t *testing.T) {
	opts := newOptions(WithAuthMode(auth.ModeFull), WithSharedKey("secret"))
	if opts.authMode != auth.ModeFull || opts.sharedKey != "secret" {
		t.Errorf("unexpected auth options %v %q", opts.authMode, opts.sharedKey)
	}

	opts = newOptions(WithSharedKey(""))
	if opts.sharedKey != auth.DefaultSharedKey {
		t.Errorf("expected default key for empty, got %q", opts.sharedKey)
	}
}

func TestWithCodecs(t *testing.T) {
	r := content.NewRegistry()
	if opts := newOptions(WithCodecs(r)); opts.codecs != r {
		t.Error("expected custom registry")
	}
}

func TestWithPlugin(t *testing.T) {
	factory := func() (Plugin, error) { return &recordingPlugin{}, nil }
	opts := newOptions(
		WithPlugin("a", factory, AfterSendMessage),
		WithPluginInstance(&recordingPlugin{triggers: []Trigger{AfterSaveChunk}}),
	)
	if len(opts.plugins) != 1 || opts.plugins[0].name != "a" {
		t.Errorf("unexpected plugin specs %+v", opts.plugins)
	}
	if len(opts.pluginInstances) != 1 {
		t.Errorf("expected 1 plugin instance, got %d", len(opts.pluginInstances))
	}
}

func TestOTelOptions(t *testing.T) {
	opts := newOptions(WithOTel(true))
	if !opts.tracingEnabled || !opts.metricsEnabled {
		t.Error("expected tracing and metrics enabled")
	}
	opts = newOptions(WithTracing(true), WithServiceName("sandbox-test"))
	if !opts.tracingEnabled || opts.metricsEnabled {
		t.Error("expected only tracing enabled")
	}
	if opts.serviceName != "sandbox-test" {
		t.Errorf("expected service name, got %q", opts.serviceName)
	}
}

func TestEventPublishFailureHandler(t *testing.T) {
	t.Run("custom handler", func(t *testing.T) {
		var gotName string
		var gotErr error
		opts := newOptions(WithEventPublishFailureHandler(func(name string, err error) {
			gotName, gotErr = name, err
		}))
		boom := errors.New("boom")
		opts.safeEventPublishFailure("MessageSent", boom)
		if gotName != "MessageSent" || !errors.Is(gotErr, boom) {
			t.Errorf("handler not called correctly: %q %v", gotName, gotErr)
		}
	})

	t.Run("panicking handler is recovered", func(t *testing.T) {
		opts := newOptions(WithEventPublishFailureHandler(func(string, error) { panic("handler") }))
		opts.safeEventPublishFailure("MessageSent", errors.New("boom"))
	})
}
