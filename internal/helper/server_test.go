package helper

import (
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"
)

// startTestServer wires a Server to a real listening socket the way
// the helper binary does from its inherited fd, returning the socket
// path and a channel carrying Serve's return.
func startTestServer(t *testing.T) (string, chan error) {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "helper.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f, err := ln.(*net.UnixListener).File()
	if err != nil {
		t.Fatalf("listener File(): %v", err)
	}
	srv, err := NewServerFromFD(int(f.Fd()))
	if err != nil {
		t.Fatalf("NewServerFromFD: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()
	// The cleanup closure also keeps f referenced so its finalizer
	// cannot close the fd out from under the serving goroutine.
	t.Cleanup(func() {
		ln.Close()
		f.Close()
	})
	return sockPath, done
}

func awaitServe(t *testing.T, done chan error) {
	t.Helper()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestServerHelloPingAndUnknownType(t *testing.T) {
	sockPath, done := startTestServer(t)

	client, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	version, err := client.Hello()
	if err != nil {
		t.Fatalf("Hello: %v", err)
	}
	if version != ProtocolVersion {
		t.Errorf("got protocol version %d, want %d", version, ProtocolVersion)
	}

	if err := client.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	// An unknown frame type gets ERROR and the connection keeps working.
	if err := WriteFrame(client.conn, Message{Type: MessageType("BOGUS"), ID: 9}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	reply, err := ReadFrame(client.conn)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if reply.Type != TypeError || reply.ID != 9 {
		t.Errorf("got %+v, want ERROR with id 9", reply)
	}
	if err := client.Ping(); err != nil {
		t.Fatalf("Ping after ERROR: %v", err)
	}

	if err := client.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	awaitServe(t, done)
}

func TestServerRunWaitReturnsResult(t *testing.T) {
	sockPath, done := startTestServer(t)

	client, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()
	if _, err := client.Hello(); err != nil {
		t.Fatalf("Hello: %v", err)
	}

	msg, err := client.Run(42, []string{"/bin/sh", "-c", "echo hi; exit 3"}, nil, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if msg.ID != 42 {
		t.Errorf("RESULT id = %d, want 42", msg.ID)
	}
	if msg.ExitCode != 3 {
		t.Errorf("RESULT exit code = %d, want 3", msg.ExitCode)
	}
	if string(msg.Stdout) != "hi\n" {
		t.Errorf("RESULT stdout = %q, want %q", msg.Stdout, "hi\n")
	}

	// The first RUN is the sandboxed program; its exit ends the helper.
	awaitServe(t, done)
}

func TestServerRunEnvOverlay(t *testing.T) {
	sockPath, done := startTestServer(t)

	client, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	msg, err := client.Run(1, []string{"/bin/sh", "-c", "printf %s \"$GREETING\""}, map[string]string{"GREETING": "hello"}, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(msg.Stdout) != "hello" {
		t.Errorf("env overlay not applied, stdout = %q", msg.Stdout)
	}
	awaitServe(t, done)
}

func TestServerRunAcknowledgesWithReadyBeforeResult(t *testing.T) {
	sockPath, done := startTestServer(t)

	client, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	// Raw frames, so the READY/RESULT ordering is observable.
	if err := WriteFrame(client.conn, Message{Type: TypeRun, ID: 11, Argv: []string{"/bin/true"}, Wait: true}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	first, err := ReadFrame(client.conn)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if first.Type != TypeReady || first.ID != 11 {
		t.Fatalf("first reply = %+v, want READY with id 11", first)
	}
	second, err := ReadFrame(client.conn)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if second.Type != TypeResult || second.ID != 11 {
		t.Fatalf("second reply = %+v, want RESULT with id 11", second)
	}
	awaitServe(t, done)
}

func TestServerAnswersPingWhileRunInFlight(t *testing.T) {
	sockPath, done := startTestServer(t)

	runner, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer runner.Close()
	if err := WriteFrame(runner.conn, Message{Type: TypeRun, ID: 1, Argv: []string{"/bin/sleep", "2"}, Wait: true}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if ready, err := ReadFrame(runner.conn); err != nil || ready.Type != TypeReady {
		t.Fatalf("got (%+v, %v), want READY", ready, err)
	}

	// A second connection stays responsive while the RUN is in flight.
	other, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer other.Close()
	start := time.Now()
	if err := other.Ping(); err != nil {
		t.Fatalf("Ping during RUN: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("PONG took %v; the in-flight RUN blocked the loop", elapsed)
	}

	result, err := ReadFrame(runner.conn)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if result.Type != TypeResult || result.ID != 1 {
		t.Fatalf("got %+v, want RESULT with id 1", result)
	}
	awaitServe(t, done)
}

func TestClientRunCancelledOnLocalClose(t *testing.T) {
	sockPath, done := startTestServer(t)

	client, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	res := make(chan error, 1)
	go func() {
		_, err := client.Run(1, []string{"/bin/sleep", "30"}, nil, true)
		res <- err
	}()
	time.Sleep(200 * time.Millisecond)
	client.Close()

	select {
	case err := <-res:
		if !errors.Is(err, ErrCancelled) {
			t.Fatalf("got %v, want ErrCancelled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not unblock after local Close")
	}

	// The helper is still alive with its child; shut it down so Serve
	// can SIGTERM the sleep and return.
	other, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer other.Close()
	if err := other.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	awaitServe(t, done)
}

func TestServerRunEmptyArgvRejected(t *testing.T) {
	sockPath, done := startTestServer(t)

	client, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	if err := WriteFrame(client.conn, Message{Type: TypeRun, ID: 2, Wait: true}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	reply, err := ReadFrame(client.conn)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if reply.Type != TypeError || reply.ID != 2 {
		t.Errorf("got %+v, want ERROR with id 2", reply)
	}

	if err := client.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	awaitServe(t, done)
}
