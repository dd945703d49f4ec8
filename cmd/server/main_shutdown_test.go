package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	osSignal "os/signal"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func fakeSignal(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		signalNotify = osSignal.Notify
	})

	signalNotify = func(ch chan<- os.Signal, sig ...os.Signal) {
		go func() {
			ch <- syscall.SIGTERM
		}()
	}
}

func TestShutdownSignals(t *testing.T) {
	fakeSignal(t)

	server := &http.Server{}
	called := make(chan struct{}, 1)
	server.RegisterOnShutdown(func() {
		called <- struct{}{}
	})

	shutdown(server, time.Millisecond, zaptest.NewLogger(t))

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatalf("expected server shutdown callback to execute")
	}
}

type stubbornServer struct {
	closed bool
}

func (s *stubbornServer) Shutdown(context.Context) error {
	return errors.New("connections still open")
}

func (s *stubbornServer) Close() error {
	s.closed = true
	return nil
}

func TestShutdownFallsBackToClose(t *testing.T) {
	fakeSignal(t)

	srv := &stubbornServer{}
	shutdown(srv, time.Millisecond, zaptest.NewLogger(t))

	if !srv.closed {
		t.Fatalf("expected Close after failed graceful shutdown")
	}
}
