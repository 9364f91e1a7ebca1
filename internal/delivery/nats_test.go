package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/kalambet/triage/internal/resolution"
)

func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		NoLog:     true,
		NoSigs:    true,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}
	server, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting NATS: %v", err)
	}
	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server
}

func testNATSConfig() NATSConfig {
	return NATSConfig{
		Stream:    "COMPLAINTS",
		Subject:   "complaints.incoming",
		Durable:   "triage-test",
		FetchWait: 200 * time.Millisecond,
	}
}

func connectTest(t *testing.T) *nats.Conn {
	t.Helper()
	server := startTestNATSServer(t)
	nc, err := ConnectNATS(server.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(nc.Close)
	return nc
}

func TestNATS_PublishFetchAck(t *testing.T) {
	nc := connectTest(t)
	ctx := context.Background()

	pub, err := NewNATSPublisher(nc, testNATSConfig())
	if err != nil {
		t.Fatal(err)
	}
	src, err := NewNATSSource(nc, testNATSConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	if err := Submit(ctx, pub, resolution.Complaint{CustomerEmail: "a@x.com", Text: "I was overcharged"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	msgs, err := src.Fetch(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("fetched %d, want 1", len(msgs))
	}
	got, err := DecodeComplaint(msgs[0].Payload())
	if err != nil || got.Text != "I was overcharged" {
		t.Fatalf("payload = %+v, %v", got, err)
	}
	if err := msgs[0].Ack(ctx); err != nil {
		t.Fatal(err)
	}

	again, err := src.Fetch(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 {
		t.Errorf("acked message delivered again")
	}
}

func TestNATS_RetryRedelivers(t *testing.T) {
	nc := connectTest(t)
	ctx := context.Background()

	pub, err := NewNATSPublisher(nc, testNATSConfig())
	if err != nil {
		t.Fatal(err)
	}
	src, err := NewNATSSource(nc, testNATSConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	if err := Submit(ctx, pub, resolution.Complaint{CustomerEmail: "a@x.com", Text: "retry me"}); err != nil {
		t.Fatal(err)
	}
	msgs, err := src.Fetch(ctx, 1)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("Fetch = %d, %v", len(msgs), err)
	}
	if err := msgs[0].Retry(ctx, errors.New("transient")); err != nil {
		t.Fatal(err)
	}

	redelivered, err := src.Fetch(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(redelivered) != 1 {
		t.Fatalf("fetched %d after retry, want 1", len(redelivered))
	}
	got, _ := DecodeComplaint(redelivered[0].Payload())
	if got.Text != "retry me" {
		t.Errorf("redelivered %+v", got)
	}
}

func TestNATS_ConsumerEndToEnd(t *testing.T) {
	nc := connectTest(t)
	ctx := context.Background()

	pub, err := NewNATSPublisher(nc, testNATSConfig())
	if err != nil {
		t.Fatal(err)
	}
	src, err := NewNATSSource(nc, testNATSConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	for _, text := range []string{"one", "two"} {
		if err := Submit(ctx, pub, resolution.Complaint{CustomerEmail: "a@x.com", Text: text}); err != nil {
			t.Fatal(err)
		}
	}

	processor := &fakeProcessor{}
	c := NewConsumer(src, processor, ConsumerOptions{BatchSize: 10})
	processed := 0
	for deadline := time.Now().Add(5 * time.Second); processed < 2 && time.Now().Before(deadline); {
		n, err := c.RunOnce(ctx)
		if err != nil {
			t.Fatal(err)
		}
		processed += n
	}
	if len(processor.seen) != 2 {
		t.Errorf("processed %d complaints, want 2", len(processor.seen))
	}
}
