package control

import "testing"

func TestMetricsRegistrySetAndSnapshot(t *testing.T) {
	mr := NewMetricsRegistry()
	mr.Set("mechanism.uds.messages_per_second", 12345.0)

	snap := mr.GetSnapshot()
	if snap["mechanism.uds.messages_per_second"] != 12345.0 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if _, ok := mr.LastUpdated("mechanism.uds.messages_per_second"); !ok {
		t.Fatal("expected LastUpdated to report the key as set")
	}
	if _, ok := mr.LastUpdated("never.set"); ok {
		t.Fatal("expected LastUpdated to report an unset key as absent")
	}
}

func TestMetricsRegistrySnapshotIsACopy(t *testing.T) {
	mr := NewMetricsRegistry()
	mr.Set("k", 1)
	snap := mr.GetSnapshot()
	snap["k"] = 2
	if mr.GetSnapshot()["k"] != 1 {
		t.Fatal("mutating a snapshot must not affect the registry")
	}
}

func TestDebugProbesDumpState(t *testing.T) {
	dp := NewDebugProbes()
	dp.RegisterProbe("answer", func() any { return 42 })
	state := dp.DumpState()
	if state["answer"] != 42 {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestDebugProbesLaterRegistrationReplaces(t *testing.T) {
	dp := NewDebugProbes()
	dp.RegisterProbe("x", func() any { return 1 })
	dp.RegisterProbe("x", func() any { return 2 })
	if dp.DumpState()["x"] != 2 {
		t.Fatal("expected the second registration to replace the first")
	}
}

func TestDebugProbesDeregister(t *testing.T) {
	dp := NewDebugProbes()
	dp.RegisterProbe("x", func() any { return 1 })
	dp.Deregister("x")
	if _, ok := dp.DumpState()["x"]; ok {
		t.Fatal("expected deregistered probe to be absent from DumpState")
	}
	dp.Deregister("never-registered")
}

func TestRegisterPlatformProbesAddsCPUCount(t *testing.T) {
	dp := NewDebugProbes()
	RegisterPlatformProbes(dp)
	state := dp.DumpState()
	cpus, ok := state["platform.cpus"].(int)
	if !ok || cpus <= 0 {
		t.Fatalf("expected a positive platform.cpus probe value, got %v", state["platform.cpus"])
	}
	if _, ok := state["platform.gomaxprocs"].(int); !ok {
		t.Fatalf("expected a platform.gomaxprocs probe value, got %v", state["platform.gomaxprocs"])
	}
}
