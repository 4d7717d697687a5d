// Package dispatcher implements C4: a task-string-keyed worker registry
// with two execution modes, in-process and isolated subprocess (spec.md
// §4.4). Adding a worker is a registry insertion — no runtime type
// introspection (spec.md §9, "dynamic worker dispatch").
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"nostrdvm.backend/internal/domain/entities"
	domainerrors "nostrdvm.backend/internal/domain/errors"
)

// Dispatcher routes a resolved task string to its registered Worker and
// executes it in-process or as an isolated subprocess.
type Dispatcher struct {
	workers map[string]entities.Worker
	pool    *errgroup.Group
	useVenv bool
}

// New builds a dispatcher. maxConcurrent bounds in-process worker
// execution (spec.md §5: "in-process mode should be offloaded to a
// worker pool when the runtime permits"). useOwnVenv selects subprocess
// dispatch for every registered worker (spec.md §6 USE_OWN_VENV).
func New(maxConcurrent int, useOwnVenv bool) *Dispatcher {
	pool := &errgroup.Group{}
	pool.SetLimit(maxConcurrent)
	return &Dispatcher{
		workers: make(map[string]entities.Worker),
		pool:    pool,
		useVenv: useOwnVenv,
	}
}

// Register adds a worker to the catalogue, keyed by its task string.
func (d *Dispatcher) Register(w entities.Worker) {
	d.workers[w.Task()] = w
}

// Lookup resolves a task string to its worker, reporting Unsupported if absent.
func (d *Dispatcher) Lookup(task string) (entities.Worker, error) {
	w, ok := d.workers[task]
	if !ok {
		return nil, domainerrors.Unsupported(task)
	}
	return w, nil
}

// LookupByKind resolves a request event kind to the worker registered for
// it — spec.md §3's "task identifier resolved from kind+tags" collapses to
// a kind lookup, since each worker answers exactly one request kind.
func (d *Dispatcher) LookupByKind(kind int) (entities.Worker, error) {
	for _, w := range d.workers {
		if w.Kind() == kind {
			return w, nil
		}
	}
	return nil, domainerrors.Unsupported(fmt.Sprintf("kind %d", kind))
}

// Workers returns a snapshot of the registered catalogue, used to build
// NIP-89 handler announcements.
func (d *Dispatcher) Workers() []entities.Worker {
	out := make([]entities.Worker, 0, len(d.workers))
	for _, w := range d.workers {
		out = append(out, w)
	}
	return out
}

// Dispatch runs the worker for req.Task and reports the result via onDone,
// bounded by the dispatcher's concurrency limit. onDone is always invoked
// exactly once: synchronously on the caller's goroutine when the task is
// unsupported or the request form cannot be built, otherwise on a pool
// goroutine once execution completes.
func (d *Dispatcher) Dispatch(ctx context.Context, req entities.JobRequest, scriptPath, identifier string, onDone func(result []byte, err error)) {
	worker, err := d.Lookup(req.Task)
	if err != nil {
		onDone(nil, err)
		return
	}

	form, err := worker.BuildRequestForm(req)
	if err != nil {
		onDone(nil, domainerrors.WorkerError(err))
		return
	}

	d.pool.Go(func() error {
		var result []byte
		var runErr error
		if d.useVenv {
			result, runErr = runSubprocess(ctx, scriptPath, identifier, req.ID(), form)
		} else {
			result, runErr = worker.Run(ctx, form)
		}
		if runErr != nil {
			onDone(nil, domainerrors.WorkerError(runErr))
			return nil
		}

		processed, err := worker.PostProcess(ctx, result, req)
		if err != nil {
			onDone(nil, domainerrors.PostProcessError(err))
			return nil
		}
		onDone(processed, nil)
		return nil
	})
}

// runSubprocess spawns a child interpreter binding for a worker, per
// spec.md §4.4's isolated-subprocess contract: `--request <json>
// --identifier <id> --output <path>`. A result whose first line begins
// with "Error:" is treated as worker failure.
func runSubprocess(ctx context.Context, scriptPath, identifier, invocationID string, form entities.RequestForm) ([]byte, error) {
	requestJSON, err := json.Marshal(form)
	if err != nil {
		return nil, err
	}

	outputPath, err := scratchFilePath(identifier, invocationID)
	if err != nil {
		return nil, err
	}
	defer os.Remove(outputPath)

	interpreter := interpreterPath(scriptPath)
	cmd := exec.CommandContext(ctx, interpreter, scriptPath,
		"--request", string(requestJSON),
		"--identifier", identifier,
		"--output", outputPath,
	)

	// Exit code is ignored per spec.md §6; failure is signaled by the
	// "Error:"-prefixed first line of the output file.
	_ = cmd.Run()

	raw, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("reading subprocess output: %w", err)
	}

	firstLine := raw
	if idx := bytes.IndexByte(raw, '\n'); idx >= 0 {
		firstLine = raw[:idx]
	}
	if bytes.HasPrefix(bytes.TrimSpace(firstLine), []byte("Error:")) {
		return nil, fmt.Errorf("%s", strings.TrimSpace(string(firstLine)))
	}

	return raw, nil
}

// interpreterPath resolves the venv-local interpreter binding for a
// script, per spec.md §6's directory convention. An implementer may
// replace this with a different isolation strategy.
func interpreterPath(scriptPath string) string {
	base := strings.TrimSuffix(filepath.Base(scriptPath), filepath.Ext(scriptPath))
	if os.PathSeparator == '\\' {
		return filepath.Join("cache", "venvs", base, "Scripts", "python.exe")
	}
	return filepath.Join("cache", "venvs", base, "bin", "python")
}

// scratchFilePath returns a unique per-invocation output path so
// concurrent subprocess workers of the same identifier don't collide
// (spec.md §5).
func scratchFilePath(identifier, invocationID string) (string, error) {
	dir := filepath.Join("cache", "output")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, identifier+"-"+invocationID+".output.txt"), nil
}
