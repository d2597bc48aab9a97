package cli

import (
	"context"
	"io"
	"os"
	"syscall"
	"testing"
	"time"

	applog "fintrack/internal/log"
)

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Output: io.Discard})
}

func TestShutdownRunsCleanup(t *testing.T) {
	sig := make(chan os.Signal, 1)
	cleaned := make(chan struct{})
	ctx, done := shutdownOn(sig, quietLogger(), time.Second, func(ctx context.Context) {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("cleanup context has no deadline")
		}
		close(cleaned)
	})

	sig <- syscall.SIGTERM
	WaitForShutdown(ctx, done)

	select {
	case <-cleaned:
	default:
		t.Fatal("cleanup did not run")
	}
}

func TestShutdownTimeout(t *testing.T) {
	sig := make(chan os.Signal, 1)
	release := make(chan struct{})
	defer close(release)
	ctx, done := shutdownOn(sig, quietLogger(), 20*time.Millisecond, func(context.Context) {
		<-release
	})

	sig <- syscall.SIGINT
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("shutdown did not honor the timeout")
	}
	if ctx.Err() == nil {
		t.Fatal("context not cancelled")
	}
}

func TestShutdownWithoutCleanup(t *testing.T) {
	sig := make(chan os.Signal, 1)
	ctx, done := shutdownOn(sig, quietLogger(), time.Second, nil)
	sig <- syscall.SIGINT
	WaitForShutdown(ctx, done)
}
