package resilience

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yungbote/batchflow-backend/internal/platform/logger"
)

// PolicyWatcher reloads a policy file into an executor whenever it changes.
// The directory is watched rather than the file so editor saves and
// ConfigMap symlink swaps are seen. A document that fails to parse is logged
// and the previous overrides stay in effect.
type PolicyWatcher struct {
	log      *logger.Logger
	exec     *Executor
	path     string
	debounce time.Duration
}

func NewPolicyWatcher(log *logger.Logger, exec *Executor, path string) *PolicyWatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &PolicyWatcher{
		log:      log.With("component", "resilience.PolicyWatcher", "path", path),
		exec:     exec,
		path:     filepath.Clean(path),
		debounce: 250 * time.Millisecond,
	}
}

// Run blocks until ctx is done.
func (w *PolicyWatcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("policy watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("policy watcher: watch %s: %w", filepath.Dir(w.path), err)
	}

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("policy watch error", "error", err)
		case <-pending:
			pending = nil
			w.reload()
		}
	}
}

func (w *PolicyWatcher) reload() {
	f, err := LoadPolicyFile(w.path)
	if err != nil {
		w.log.Error("retry policy reload rejected, keeping previous overrides", "error", err)
		return
	}
	w.exec.SetPolicyFile(f)
	w.log.Info("retry policy reloaded", "operations", len(f.Operations))
}
