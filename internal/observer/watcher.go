// Package observer watches a run directory and reports trajectory
// lifecycle events as instances start and finish.
package observer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hochfrequenz/swebatch/internal/domain"
)

// EventKind classifies a trajectory file change.
type EventKind string

const (
	// TrajectoryStarted fires when a trajectory file first appears.
	TrajectoryStarted EventKind = "started"
	// TrajectoryCompleted fires when a trajectory reaches a terminal
	// exit status.
	TrajectoryCompleted EventKind = "completed"
	// TrajectoryRemoved fires when an incomplete trajectory is deleted
	// for reprocessing.
	TrajectoryRemoved EventKind = "removed"
)

// Event is one observed trajectory change.
type Event struct {
	Kind       EventKind
	InstanceID string
	ExitStatus domain.ExitStatus
}

// Watcher emits Events for a single run directory.
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher
	events  chan Event

	// completed tracks instances already reported as complete so rapid
	// successive writes emit one completion each.
	completed map[string]bool
	mu        sync.Mutex
}

// New starts watching the run directory. Events are delivered on Events()
// until the context is cancelled or Close is called.
func New(ctx context.Context, dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		dir:       dir,
		watcher:   fsw,
		events:    make(chan Event, 16),
		completed: make(map[string]bool),
	}
	go w.loop(ctx)
	return w, nil
}

// Events returns the event stream. The channel closes when the watcher
// stops.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			w.watcher.Close()
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ctx, ev)
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if !strings.HasSuffix(ev.Name, ".traj") {
		return
	}
	instanceID := strings.TrimSuffix(filepath.Base(ev.Name), ".traj")

	switch {
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.emit(ctx, Event{Kind: TrajectoryRemoved, InstanceID: instanceID})
	case ev.Op.Has(fsnotify.Create):
		w.emit(ctx, Event{Kind: TrajectoryStarted, InstanceID: instanceID})
		w.checkComplete(ctx, ev.Name, instanceID)
	case ev.Op.Has(fsnotify.Write):
		w.checkComplete(ctx, ev.Name, instanceID)
	}
}

// checkComplete parses the trajectory and emits a completion once its
// outcome is terminal. Partial writes parse as garbage and are ignored;
// the next write event retries.
func (w *Watcher) checkComplete(ctx context.Context, path, instanceID string) {
	w.mu.Lock()
	done := w.completed[instanceID]
	w.mu.Unlock()
	if done {
		return
	}

	// Writers finish quickly; a short settle avoids reading mid-write.
	time.Sleep(10 * time.Millisecond)

	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var tf domain.TrajectoryFile
	if err := json.Unmarshal(data, &tf); err != nil || !tf.Complete() {
		return
	}

	w.mu.Lock()
	w.completed[instanceID] = true
	w.mu.Unlock()
	w.emit(ctx, Event{Kind: TrajectoryCompleted, InstanceID: instanceID, ExitStatus: tf.Info.ExitStatus})
}

func (w *Watcher) emit(ctx context.Context, ev Event) {
	select {
	case w.events <- ev:
	case <-ctx.Done():
	}
}
