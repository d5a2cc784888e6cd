//go:build linux

package pmq

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redhat-performance/rusty-comms-sub000/api"
)

func uniqueQueueName(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("pmqtest_%d_%d", time.Now().UnixNano(), testingCounter())
}

var counter int

func testingCounter() int {
	counter++
	return counter
}

func TestStartServerStartClientSendReceive(t *testing.T) {
	cfg := &api.TransportConfig{QueueName: uniqueQueueName(t), QueueDepth: 10, BufferSize: 2048}

	server := New()
	ctx := context.Background()
	if err := server.StartServer(ctx, cfg); err != nil {
		t.Skipf("pmq unavailable in this sandbox: %v", err)
	}
	defer server.Close()

	client := New()
	if err := client.StartClient(ctx, cfg); err != nil {
		t.Fatalf("StartClient: %v", err)
	}
	defer client.Close()

	msg := api.NewMessage(3, api.MessageOneWay, []byte("mq hello"))
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
	if got.ID != msg.ID || string(got.Payload) != "mq hello" {
		t.Fatalf("got %+v, want id=%d payload='mq hello'", got, msg.ID)
	}
}

func TestClientRetriesUntilServerCreatesQueue(t *testing.T) {
	name := uniqueQueueName(t)
	cfg := &api.TransportConfig{QueueName: name, QueueDepth: 10, BufferSize: 2048}

	client := New()
	go func() {
		time.Sleep(30 * time.Millisecond)
		server := New()
		if err := server.StartServer(context.Background(), cfg); err == nil {
			defer server.Close()
			time.Sleep(2 * time.Second)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.StartClient(ctx, cfg); err != nil {
		t.Skipf("pmq unavailable in this sandbox: %v", err)
	}
	client.Close()
}

func TestSendBeforeConnectedFails(t *testing.T) {
	tr := New()
	if err := tr.Send(context.Background(), api.NewMessage(1, api.MessageOneWay, nil)); err == nil {
		t.Fatal("Send on uninitialized transport: expected error")
	}
}
