// Package watch re-reads the engine config file when it changes on disk and
// pushes the runtime-tunable subset (gravity, step time, solver scalars)
// into the live engine through its physics message hook. Invalid files are
// logged and skipped; the engine keeps its previous parameters.
package watch

import (
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/san-kum/physkit/internal/engine"
)

const debounce = 100 * time.Millisecond

// Watcher follows one config file. Writes are debounced because editors
// tend to fire several events per save.
type Watcher struct {
	path    string
	engine  engine.Engine
	logger  *log.Logger
	watcher *fsnotify.Watcher
	closeCh chan struct{}
	once    sync.Once
}

// New starts watching path and applying changes to e. The file's directory
// is watched rather than the file itself so rename-based saves keep working.
func New(path string, e engine.Engine, logger *log.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, err
	}
	w := &Watcher{
		path:    path,
		engine:  e,
		logger:  logger,
		watcher: fw,
		closeCh: make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) run() {
	var last time.Time
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			now := time.Now()
			if now.Sub(last) < debounce {
				continue
			}
			last = now
			w.apply()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("watch: %v", err)
		case <-w.closeCh:
			return
		}
	}
}

func (w *Watcher) apply() {
	cfg, err := engine.LoadConfig(w.path)
	if err != nil {
		w.logger.Printf("watch: %s rejected: %v", w.path, err)
		return
	}
	w.engine.OnPhysicsMsg(MsgFromConfig(cfg))
	w.logger.Printf("watch: %s applied", w.path)
}

// MsgFromConfig lifts the runtime-tunable fields of a full config into a
// physics message.
func MsgFromConfig(cfg *engine.Config) *engine.PhysicsMsg {
	gravity := cfg.Gravity
	step := cfg.StepTime
	solver := cfg.Solver
	return &engine.PhysicsMsg{
		Gravity:  &gravity,
		StepTime: &step,
		Solver:   &solver,
	}
}
