package emit

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogEmitterTextOutput(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, false)

	emitter.Emit(Event{
		SpawnID: "act-001",
		Mode:    "local",
		Msg:     "branch_start",
		Meta:    map[string]interface{}{"attempt": 1},
	})

	out := buf.String()
	for _, want := range []string{"act-001", "local", "branch_start", "attempt"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestLogEmitterJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, true)

	emitter.Emit(Event{SpawnID: "act-002", Mode: "remote", Msg: "branch_done"})

	out := buf.String()
	if !strings.HasPrefix(out, "{") {
		t.Errorf("expected JSON object, got %q", out)
	}
	if !strings.Contains(out, "\"spawnID\":\"act-002\"") {
		t.Errorf("missing spawnID field in %q", out)
	}
}

func TestLogEmitterEmitBatchPreservesOrder(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, false)

	events := []Event{
		{SpawnID: "act-003", Mode: "local", Msg: "branch_start"},
		{SpawnID: "act-003", Mode: "local", Msg: "branch_done"},
	}
	if err := emitter.EmitBatch(nil, events); err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}

	out := buf.String()
	startIdx := strings.Index(out, "branch_start")
	doneIdx := strings.Index(out, "branch_done")
	if startIdx == -1 || doneIdx == -1 || startIdx > doneIdx {
		t.Errorf("events out of order in output: %q", out)
	}
}

func TestNullEmitterDiscardsEverything(t *testing.T) {
	e := NewNullEmitter()
	e.Emit(Event{Msg: "branch_start"})
	if err := e.EmitBatch(nil, []Event{{Msg: "branch_done"}}); err != nil {
		t.Errorf("EmitBatch: %v", err)
	}
	if err := e.Flush(nil); err != nil {
		t.Errorf("Flush: %v", err)
	}
}
