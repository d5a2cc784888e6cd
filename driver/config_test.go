package driver

import (
	"testing"

	"github.com/redhat-performance/rusty-comms-sub000/api"
)

func TestValidateRejectsBadMessageSize(t *testing.T) {
	cfg := Config{MessageSize: 0, BufferSizeHint: 4096, Concurrency: 1, Iterations: 10}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero message size")
	}
}

func TestValidateRequiresTerminationTarget(t *testing.T) {
	cfg := Config{MessageSize: 64, BufferSizeHint: 4096, Concurrency: 1}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when neither iterations nor duration set")
	}
}

func TestNewRunNamesAreUnique(t *testing.T) {
	a := NewRunNames(20000)
	b := NewRunNames(20000)
	if a.SocketPath == b.SocketPath {
		t.Fatal("expected distinct socket paths across runs")
	}
	if a.Port < 20000 || a.Port >= 21000 {
		t.Fatalf("port %d out of expected [20000,21000) range", a.Port)
	}
}

func TestResolveShmSizingBelowThresholdLeavesHintAlone(t *testing.T) {
	out := resolveSizing(api.MechanismSharedMemory, 256, 1000, 64*1024)
	if out.BufferSize != 64*1024 {
		t.Fatalf("buffer size = %d, want unchanged 65536", out.BufferSize)
	}
	if out.Warning != "" {
		t.Fatalf("expected no warning below 8k iterations, got %q", out.Warning)
	}
}

func TestResolveShmSizingScalesAtThresholds(t *testing.T) {
	out := resolveSizing(api.MechanismSharedMemory, 256, 8000, 1024)
	want := 256*150 + 2*1024
	if out.BufferSize != want {
		t.Fatalf("buffer size = %d, want %d", out.BufferSize, want)
	}

	out = resolveSizing(api.MechanismSharedMemory, 256, 20000, 1024)
	want = 256*200 + 2*1024
	if out.BufferSize != want {
		t.Fatalf("buffer size at 20k = %d, want %d", out.BufferSize, want)
	}

	out = resolveSizing(api.MechanismSharedMemory, 256, 50000, 1024)
	want = 256*300 + 2*1024
	if out.BufferSize != want {
		t.Fatalf("buffer size at 50k = %d, want %d", out.BufferSize, want)
	}
}

func TestResolveShmSizingClampsToMax(t *testing.T) {
	out := resolveSizing(api.MechanismSharedMemory, 1024*1024, 50000, 0)
	if out.BufferSize != shmMaxAdaptiveBuffer {
		t.Fatalf("buffer size = %d, want clamp to %d", out.BufferSize, shmMaxAdaptiveBuffer)
	}
}

func TestResolveShmSizingKeepsLargerUserHint(t *testing.T) {
	userHint := 1024 * 1024 // 1 MiB, larger than the computed value at small message sizes
	out := resolveSizing(api.MechanismSharedMemory, 64, 8000, userHint)
	if out.BufferSize != userHint {
		t.Fatalf("buffer size = %d, want user hint %d preserved", out.BufferSize, userHint)
	}
}

func TestResolvePMQSizingPinsQueueDepthAndWarns(t *testing.T) {
	out := resolveSizing(api.MechanismPOSIXQueue, 512, 20000, 4096)
	if out.QueueDepth != pmqQueueDepth {
		t.Fatalf("queue depth = %d, want %d", out.QueueDepth, pmqQueueDepth)
	}
	if out.Warning == "" {
		t.Fatal("expected warning above 10000 iterations")
	}
}

func TestResolvePMQSizingNoWarningBelowThreshold(t *testing.T) {
	out := resolveSizing(api.MechanismPOSIXQueue, 512, 100, 4096)
	if out.Warning != "" {
		t.Fatalf("expected no warning below 10000 iterations, got %q", out.Warning)
	}
}
