package schemavalidation

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"inputviz/internal/aggregator"
	"inputviz/internal/capture"
	"inputviz/internal/dispatch"
	"inputviz/internal/event"
	"inputviz/internal/pipeline"
)

func TestSnapshotSchema(t *testing.T) {
	schema := compileSchema(t, filepath.Join(repoRoot(t), "docs", "schema", "snapshot-v1.schema.json"))

	cases := []struct {
		name string
		snap func(t *testing.T) *aggregator.Snapshot
	}{
		{"empty", func(t *testing.T) *aggregator.Snapshot { return runScript(t, nil) }},
		{"every event kind", func(t *testing.T) *aggregator.Snapshot { return runScript(t, everyKind) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			validateInstance(t, schema, encode(t, tc.snap(t)))
		})
	}
}

func TestSnapshotSchemaRejectsUnknownType(t *testing.T) {
	schema := compileSchema(t, filepath.Join(repoRoot(t), "docs", "schema", "snapshot-v1.schema.json"))

	var instance map[string]any
	if err := json.Unmarshal(encode(t, runScript(t, everyKind)), &instance); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	instance["active_types"] = []any{"joystick"}
	if err := schema.Validate(instance); err == nil {
		t.Fatal("expected validation failure for unknown input type")
	}
}

func everyKind(p *capture.Synthetic, s *dispatch.Manual, t0 time.Time) {
	at := func(ms int) time.Time {
		ts := t0.Add(time.Duration(ms) * time.Millisecond)
		s.AdvanceTo(ts)
		return ts
	}
	p.KeyDown(at(0), 0, event.ModifierSet(0).With(event.ModShift))
	p.Click(at(10), 0, event.Point{X: 100, Y: 200})
	p.Click(at(100), 0, event.Point{X: 100, Y: 200})
	p.Scroll(capture.ScrollEvent{Timestamp: at(120), DeltaY: -3})
	p.Scroll(capture.ScrollEvent{Timestamp: at(130), DeltaY: 4, Phase: capture.ScrollPhaseMomentum, Continuous: true})

	touch := func(id int, phase capture.TouchPhase, x, y float64) capture.RawTouch {
		return capture.RawTouch{ID: id, Phase: phase, X: x, Y: y, Pressure: 0.4}
	}
	p.Touches(capture.TouchFrame{Timestamp: at(200), Touches: []capture.RawTouch{
		touch(1, capture.TouchBegan, 0.4, 0.5), touch(2, capture.TouchBegan, 0.6, 0.5),
	}})
	p.Touches(capture.TouchFrame{Timestamp: at(220), Touches: []capture.RawTouch{
		touch(1, capture.TouchMoved, 0.35, 0.5), touch(2, capture.TouchMoved, 0.65, 0.5),
	}})
	p.Touches(capture.TouchFrame{Timestamp: at(240), Touches: []capture.RawTouch{
		touch(1, capture.TouchMoved, 0.35, 0.57), touch(2, capture.TouchMoved, 0.65, 0.57),
	}})
}

func runScript(t *testing.T, script func(*capture.Synthetic, *dispatch.Manual, time.Time)) *aggregator.Snapshot {
	t.Helper()
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	provider := capture.NewSynthetic()
	sched := dispatch.NewManual(t0)
	p := pipeline.New(pipeline.Options{Provider: provider, Scheduler: sched})
	t.Cleanup(p.Stop)
	if err := p.Start(t.Context()); err != nil {
		t.Fatalf("start pipeline: %v", err)
	}
	if script != nil {
		script(provider, sched, t0)
	}
	return p.Snapshot()
}

func encode(t *testing.T, snap *aggregator.Snapshot) []byte {
	t.Helper()
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	return data
}

func compileSchema(t *testing.T, schemaPath string) *jsonschema.Schema {
	t.Helper()
	schemaData, err := os.ReadFile(schemaPath)
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaPath, bytes.NewReader(schemaData)); err != nil {
		t.Fatalf("add schema resource: %v", err)
	}
	schema, err := compiler.Compile(schemaPath)
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}
	return schema
}

func validateInstance(t *testing.T, schema *jsonschema.Schema, data []byte) {
	t.Helper()
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		t.Fatalf("unmarshal instance: %v", err)
	}
	if err := schema.Validate(instance); err != nil {
		t.Fatalf("schema validation failed: %v\n%s", err, data)
	}
}

func repoRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("unable to resolve caller path")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}
