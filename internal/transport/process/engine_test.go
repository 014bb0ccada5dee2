package process

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/dockapi/internal/domain"
	"github.com/kailas-cloud/dockapi/internal/transport/wire"
)

// mockExecutor decodes the bridge request and answers with a canned handler.
type mockExecutor struct {
	mu      sync.Mutex
	handler func(req wire.Request) (result, error)
	calls   []wire.Request
	name    string
	args    []string
	dir     string
}

func (m *mockExecutor) Run(ctx context.Context, name string, args []string, dir string, stdin []byte) (result, error) {
	var req wire.Request
	if err := json.Unmarshal(stdin, &req); err != nil {
		return result{}, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.name, m.args, m.dir = name, args, dir
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return result{}, err
	}
	return m.handler(req)
}

func (m *mockExecutor) opCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

func reply(v any) result {
	data, _ := json.Marshal(v)
	return result{Stdout: append(data, '\n')}
}

func dockstringBridge(req wire.Request) (result, error) {
	switch req.Op {
	case wire.OpTargets:
		return reply(map[string]any{"ok": true, "targets": []string{"DRD2", "ABL1"}}), nil
	case wire.OpPing:
		return reply(map[string]any{"ok": true}), nil
	case wire.OpLoad:
		if req.Target != "ABL1" && req.Target != "DRD2" {
			return reply(map[string]any{"ok": false, "error": `Target "` + req.Target + `" is not available in dockstring`}), nil
		}
		return reply(map[string]any{"ok": true}), nil
	case wire.OpDock:
		if req.SMILES == "C1CC" {
			return reply(map[string]any{"ok": false, "error": "Could not parse SMILES string"}), nil
		}
		return reply(map[string]any{
			"ok":      true,
			"score":   -4.7,
			"details": map[string]any{"affinities": []float64{-4.7, -4.5}},
			"ligand":  "\n     RDKit          3D\n\nM  END\n",
		}), nil
	}
	return result{}, errors.New("unexpected op " + req.Op)
}

func newTestEngine(t *testing.T, handler func(req wire.Request) (result, error)) (*Engine, *mockExecutor) {
	t.Helper()
	m := &mockExecutor{handler: handler}
	e, err := newEngine(Config{
		Command: []string{"python3", "scripts/dockstring_bridge.py"},
		WorkDir: "/srv",
		Params:  wire.DockParams{PH: 7.4, Seed: 974528263},
	}, m)
	if err != nil {
		t.Fatalf("newEngine: %v", err)
	}
	return e, m
}

func TestNewEngine_RequiresCommand(t *testing.T) {
	if _, err := NewEngine(Config{}); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestDock_Success(t *testing.T) {
	e, m := newTestEngine(t, dockstringBridge)

	tgt, err := e.LoadTarget(context.Background(), "ABL1")
	if err != nil {
		t.Fatalf("LoadTarget: %v", err)
	}
	out, err := tgt.Dock(context.Background(), "CCO")
	if err != nil {
		t.Fatalf("Dock: %v", err)
	}

	if out.Score != -4.7 {
		t.Errorf("expected score -4.7, got %v", out.Score)
	}
	if !strings.Contains(out.Pose.Data, "M  END") {
		t.Errorf("expected molblock pose, got %q", out.Pose.Data)
	}
	if m.name != "python3" || len(m.args) != 1 || m.args[0] != "scripts/dockstring_bridge.py" || m.dir != "/srv" {
		t.Errorf("unexpected invocation: %s %v in %s", m.name, m.args, m.dir)
	}

	last := m.calls[len(m.calls)-1]
	if last.Op != wire.OpDock || last.Target != "ABL1" || last.SMILES != "CCO" || last.PH != 7.4 || last.Seed != 974528263 {
		t.Errorf("unexpected dock request: %+v", last)
	}
}

func TestLoadTarget_UnknownRejectedFromCatalogue(t *testing.T) {
	e, m := newTestEngine(t, dockstringBridge)

	_, err := e.LoadTarget(context.Background(), "not-a-real-target")
	if !errors.Is(err, domain.ErrDockingFailed) {
		t.Fatalf("expected ErrDockingFailed, got %v", err)
	}
	if msg, _ := domain.DockingFailureMessage(err); msg != `Target "not-a-real-target" is not available in dockstring` {
		t.Errorf("expected the engine's own message, got %q", msg)
	}
	if m.opCount(wire.OpLoad) != 1 {
		t.Errorf("expected one load op, got %d", m.opCount(wire.OpLoad))
	}
	if m.opCount(wire.OpDock) != 0 {
		t.Error("unknown target must not run a dock")
	}
}

func TestLoadTarget_StaleCatalogueAcceptsEngineTarget(t *testing.T) {
	e, m := newTestEngine(t, func(req wire.Request) (result, error) {
		if req.Op == wire.OpTargets {
			return reply(map[string]any{"ok": true, "targets": []string{"ABL1"}}), nil
		}
		return dockstringBridge(req)
	})

	tgt, err := e.LoadTarget(context.Background(), "DRD2")
	if err != nil {
		t.Fatalf("expected engine to accept DRD2, got %v", err)
	}
	if tgt.Name() != "DRD2" || m.opCount(wire.OpLoad) != 1 {
		t.Errorf("unexpected target %q after %d load ops", tgt.Name(), m.opCount(wire.OpLoad))
	}
}

func TestLoadTarget_CatalogueLoadDetachedFromCaller(t *testing.T) {
	release := make(chan struct{})
	e, m := newTestEngine(t, func(req wire.Request) (result, error) {
		if req.Op == wire.OpTargets {
			<-release
		}
		return dockstringBridge(req)
	})

	// The first caller gives up waiting for the listing and defers to the engine.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := e.LoadTarget(ctx, "ABL1"); err != nil {
		t.Fatalf("expected deferral while the catalogue loads, got %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := e.LoadTarget(context.Background(), "not-a-real-target")
		done <- err
	}()
	close(release)

	// The listing outlived the first caller's context, so the second caller sees a loaded catalogue.
	if err := <-done; !errors.Is(err, domain.ErrDockingFailed) {
		t.Fatalf("expected rejection from the loaded catalogue, got %v", err)
	}
	if n := m.opCount(wire.OpTargets); n != 1 {
		t.Errorf("expected one shared listing, got %d", n)
	}
}

func TestLoadTarget_CatalogueCached(t *testing.T) {
	e, m := newTestEngine(t, dockstringBridge)

	for range 3 {
		if _, err := e.LoadTarget(context.Background(), "abl1"); err != nil {
			t.Fatalf("LoadTarget: %v", err)
		}
	}
	if n := m.opCount(wire.OpTargets); n != 1 {
		t.Errorf("expected catalogue to be listed once, got %d", n)
	}
}

func TestLoadTarget_CatalogueUnavailableDefersToEngine(t *testing.T) {
	e, m := newTestEngine(t, func(req wire.Request) (result, error) {
		if req.Op == wire.OpTargets {
			return result{Stderr: []byte("ImportError: no module named dockstring"), ExitCode: 1}, nil
		}
		return reply(map[string]any{"ok": false, "error": "Target XYZ not found"}), nil
	})

	tgt, err := e.LoadTarget(context.Background(), "XYZ")
	if err != nil {
		t.Fatalf("expected deferral to engine, got %v", err)
	}
	_, err = tgt.Dock(context.Background(), "CCO")
	if msg, ok := domain.DockingFailureMessage(err); !ok || msg != "Target XYZ not found" {
		t.Fatalf("expected engine failure, got %v", err)
	}

	// A failed listing is not retried immediately.
	if _, err := e.LoadTarget(context.Background(), "XYZ"); err != nil {
		t.Fatalf("LoadTarget: %v", err)
	}
	if n := m.opCount(wire.OpTargets); n != 1 {
		t.Errorf("expected one listing attempt, got %d", n)
	}
}

func TestDock_EngineFailure(t *testing.T) {
	e, _ := newTestEngine(t, dockstringBridge)

	tgt, _ := e.LoadTarget(context.Background(), "ABL1")
	_, err := tgt.Dock(context.Background(), "C1CC")
	msg, ok := domain.DockingFailureMessage(err)
	if !ok || msg != "Could not parse SMILES string" {
		t.Fatalf("expected docking failure, got %v", err)
	}
}

func TestDock_CrashUsesStderrTail(t *testing.T) {
	e, _ := newTestEngine(t, func(req wire.Request) (result, error) {
		if req.Op == wire.OpTargets {
			return reply(map[string]any{"ok": true, "targets": []string{"ABL1"}}), nil
		}
		return result{
			Stderr:   []byte("Traceback (most recent call last):\n  File \"x\", line 1\nRuntimeError: vina crashed\n"),
			ExitCode: 1,
		}, nil
	})

	tgt, _ := e.LoadTarget(context.Background(), "ABL1")
	_, err := tgt.Dock(context.Background(), "CCO")
	msg, ok := domain.DockingFailureMessage(err)
	if !ok || msg != "RuntimeError: vina crashed" {
		t.Fatalf("expected stderr tail as failure, got %v", err)
	}
}

func TestDock_CrashWithoutStderr(t *testing.T) {
	e, _ := newTestEngine(t, func(req wire.Request) (result, error) {
		if req.Op == wire.OpTargets {
			return reply(map[string]any{"ok": true, "targets": []string{"ABL1"}}), nil
		}
		return result{ExitCode: 137}, nil
	})

	tgt, _ := e.LoadTarget(context.Background(), "ABL1")
	_, err := tgt.Dock(context.Background(), "CCO")
	msg, ok := domain.DockingFailureMessage(err)
	if !ok || msg != "docking engine exited with status 137" {
		t.Fatalf("expected exit status failure, got %v", err)
	}
}

func TestDock_StartFailureIsNotDockingFailure(t *testing.T) {
	e, _ := newTestEngine(t, func(req wire.Request) (result, error) {
		if req.Op == wire.OpTargets {
			return reply(map[string]any{"ok": true, "targets": []string{"ABL1"}}), nil
		}
		return result{}, errors.New("run python3: executable file not found in $PATH")
	})

	tgt, _ := e.LoadTarget(context.Background(), "ABL1")
	_, err := tgt.Dock(context.Background(), "CCO")
	if err == nil || errors.Is(err, domain.ErrDockingFailed) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}
}

func TestDock_LogNoiseBeforeReply(t *testing.T) {
	e, _ := newTestEngine(t, func(req wire.Request) (result, error) {
		if req.Op == wire.OpTargets {
			return reply(map[string]any{"ok": true, "targets": []string{"ABL1"}}), nil
		}
		r := reply(map[string]any{"ok": true, "score": -6.1})
		r.Stdout = append([]byte("Computing Vina grid ... done.\n"), r.Stdout...)
		return r, nil
	})

	tgt, _ := e.LoadTarget(context.Background(), "ABL1")
	out, err := tgt.Dock(context.Background(), "CCO")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Score != -6.1 {
		t.Errorf("expected score -6.1, got %v", out.Score)
	}
}

func TestDock_ContextCancelled(t *testing.T) {
	e, _ := newTestEngine(t, dockstringBridge)
	tgt, _ := e.LoadTarget(context.Background(), "ABL1")

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := tgt.Dock(ctx, "CCO")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestListTargets_Sorted(t *testing.T) {
	e, _ := newTestEngine(t, dockstringBridge)

	targets, err := e.ListTargets(context.Background())
	if err != nil {
		t.Fatalf("ListTargets: %v", err)
	}
	if len(targets) != 2 || targets[0] != "ABL1" || targets[1] != "DRD2" {
		t.Errorf("unexpected targets %v", targets)
	}
}

func TestHealthCheck(t *testing.T) {
	e, _ := newTestEngine(t, dockstringBridge)
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	broken, _ := newTestEngine(t, func(_ wire.Request) (result, error) {
		return result{ExitCode: 2, Stderr: []byte("python3: can't open file")}, nil
	})
	if err := broken.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health error")
	}
}
