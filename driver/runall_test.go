package driver

import (
	"context"
	"testing"
	"time"

	"github.com/redhat-performance/rusty-comms-sub000/api"
	"github.com/redhat-performance/rusty-comms-sub000/internal/obslog"
)

func TestRunAllRunsEveryMechanism(t *testing.T) {
	d := New(obslog.Noop(), 4)
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	configs := []Config{
		baseConfig(api.MechanismUnixSocket),
		baseConfig(api.MechanismTCP),
	}
	configs[1].PortBase = 22000

	results, err := RunAll(ctx, d, configs, false)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, r := range results {
		if r.OneWay == nil || r.OneWay.Throughput.TotalMessages != 50 {
			t.Fatalf("result %d: unexpected %+v", i, r)
		}
	}
}

func TestRunAllStopsOnFirstFailureWithoutContinueOnError(t *testing.T) {
	d := New(obslog.Noop(), 4)
	defer d.Close()

	bad := baseConfig(api.MechanismUnixSocket)
	bad.MessageSize = 0 // invalid, fails Validate

	configs := []Config{bad, baseConfig(api.MechanismTCP)}

	_, err := RunAll(context.Background(), d, configs, false)
	if err == nil {
		t.Fatal("expected an error from the invalid mechanism config")
	}
}

func TestRunAllContinuesPastFailuresWhenRequested(t *testing.T) {
	d := New(obslog.Noop(), 4)
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	bad := baseConfig(api.MechanismUnixSocket)
	bad.MessageSize = 0

	good := baseConfig(api.MechanismTCP)
	good.PortBase = 22100

	configs := []Config{bad, good}

	results, err := RunAll(ctx, d, configs, true)
	if err == nil {
		t.Fatal("expected an aggregated error describing the failed mechanism")
	}
	if len(results) != 2 {
		t.Fatalf("expected a result slot per config, got %d", len(results))
	}
	if results[1].OneWay == nil || results[1].OneWay.Throughput.TotalMessages != 50 {
		t.Fatalf("expected the good mechanism to still run: %+v", results[1])
	}
}
