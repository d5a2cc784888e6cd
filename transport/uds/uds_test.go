package uds

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redhat-performance/rusty-comms-sub000/api"
)

func testSocketPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), fmt.Sprintf("uds_test_%d.sock", time.Now().UnixNano()))
}

func TestStartServerStartClientSendReceive(t *testing.T) {
	path := testSocketPath(t)
	cfg := &api.TransportConfig{SocketPath: path}

	server := New()
	ctx := context.Background()
	if err := server.StartServer(ctx, cfg); err != nil {
		t.Fatalf("StartServer: %v", err)
	}
	defer server.Close()

	client := New()
	if err := client.StartClient(ctx, cfg); err != nil {
		t.Fatalf("StartClient: %v", err)
	}
	defer client.Close()

	msg := api.NewMessage(1, api.MessageOneWay, []byte("ping"))
	sendCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Send(sendCtx, msg); err != nil {
		t.Fatalf("client.Send: %v", err)
	}

	recvCtx, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	got, err := server.Receive(recvCtx)
	if err != nil {
		t.Fatalf("server.Receive: %v", err)
	}
	if got.ID != msg.ID || string(got.Payload) != "ping" {
		t.Fatalf("got %+v, want id=%d payload=ping", got, msg.ID)
	}
}

func TestCloseUnlinksOwnedSocket(t *testing.T) {
	path := testSocketPath(t)
	cfg := &api.TransportConfig{SocketPath: path}

	server := New()
	if err := server.StartServer(context.Background(), cfg); err != nil {
		t.Fatalf("StartServer: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("socket file missing after StartServer: %v", err)
	}
	if err := server.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("socket file still present after Close: %v", err)
	}
}

func TestSendBeforeConnectedFails(t *testing.T) {
	tr := New()
	err := tr.Send(context.Background(), api.NewMessage(1, api.MessageOneWay, nil))
	if err == nil {
		t.Fatal("Send on uninitialized transport: expected error")
	}
}

func TestDoubleCloseIsIdempotent(t *testing.T) {
	path := testSocketPath(t)
	server := New()
	if err := server.StartServer(context.Background(), &api.TransportConfig{SocketPath: path}); err != nil {
		t.Fatalf("StartServer: %v", err)
	}
	if err := server.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := server.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
