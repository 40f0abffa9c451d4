// Package devwatch signals when serial device nodes appear.
package devwatch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/clockbridge/internal/ports"
)

// DefaultPatterns match the device nodes USB serial adapters create.
var DefaultPatterns = []string{"ttyUSB*", "ttyACM*", "cu.usbserial*", "tty.usbserial*"}

// Config holds configuration for the device watcher.
type Config struct {
	// Dir is the directory holding device nodes.
	// Default: /dev
	Dir string

	// Patterns are filepath.Match globs for node names.
	// Default: DefaultPatterns
	Patterns []string

	// DebounceDelay coalesces bursts of node events into one signal.
	// Default: 250 milliseconds
	DebounceDelay time.Duration
}

// Watcher watches Dir and signals on C after matching nodes are created.
type Watcher struct {
	cfg    Config
	logger ports.Logger
	c      chan struct{}

	mu       sync.Mutex
	debounce *time.Timer
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a watcher. Call Start to begin watching.
func New(cfg Config, logger ports.Logger) *Watcher {
	if cfg.Dir == "" {
		cfg.Dir = "/dev"
	}
	if len(cfg.Patterns) == 0 {
		cfg.Patterns = DefaultPatterns
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 250 * time.Millisecond
	}
	return &Watcher{cfg: cfg, logger: logger, c: make(chan struct{}, 1)}
}

// C delivers one value per burst of matching create events. Signals that
// are not consumed are coalesced.
func (w *Watcher) C() <-chan struct{} { return w.c }

// Start begins watching until ctx is done or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(w.cfg.Dir); err != nil {
		fw.Close()
		return fmt.Errorf("watch %s: %w", w.cfg.Dir, err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop(watchCtx, fw)
	return nil
}

// Close stops the watcher and waits for it to exit.
func (w *Watcher) Close() error {
	w.mu.Lock()
	cancel := w.cancel
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
	return nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	defer w.wg.Done()
	defer fw.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) || !w.matches(filepath.Base(event.Name)) {
				continue
			}
			w.logger.Debug("serial device node created", ports.String("path", event.Name))
			w.schedule()

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("device watcher error", ports.Err(err))
		}
	}
}

func (w *Watcher) matches(name string) bool {
	for _, p := range w.cfg.Patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.cfg.DebounceDelay, w.signal)
}

func (w *Watcher) signal() {
	select {
	case w.c <- struct{}{}:
	default:
	}
}
