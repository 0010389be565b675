package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/regsift/regsift/internal/logger"
)

// debounceDelay batches the rapid write events editors and downloads
// produce for one file into a single notification.
const debounceDelay = 500 * time.Millisecond

// Watcher reports SVD files created or modified under a root
// directory. New subdirectories are added to the watch as they appear.
type Watcher struct {
	root    string
	fsw     *fsnotify.Watcher
	changes chan File
}

// NewWatcher watches root and all its current subdirectories.
func NewWatcher(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{root: root, fsw: fsw, changes: make(chan File, 16)}
	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Changes returns the channel of changed SVD files. It is closed when
// Run returns.
func (w *Watcher) Changes() <-chan File {
	return w.changes
}

// Run processes filesystem events until ctx is cancelled. Write bursts
// for one file are debounced into a single change.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.changes)

	pending := make(map[string]*time.Timer)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	// done releases debounce timers that fire after the loop has
	// stopped consuming; otherwise their send would block forever.
	done := make(chan struct{})
	defer close(done)

	fired := make(chan string, 16)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case path := <-fired:
			delete(pending, path)
			select {
			case w.changes <- File{Path: path, Vendor: VendorOf(w.root, path)}:
			case <-ctx.Done():
				return ctx.Err()
			}

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev, pending, fired, done)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) handleEvent(ev fsnotify.Event, pending map[string]*time.Timer, fired chan<- string, done <-chan struct{}) {
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) {
		return
	}

	// New directories join the watch so files landing in them are seen.
	if ev.Op.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if err := w.addRecursive(ev.Name); err != nil {
				logger.Warn("watch %s: %v", ev.Name, err)
			}
			return
		}
	}

	if !IsSVD(filepath.Base(ev.Name)) {
		return
	}

	path := ev.Name
	if t, ok := pending[path]; ok {
		t.Reset(debounceDelay)
		return
	}
	pending[path] = time.AfterFunc(debounceDelay, func() {
		notify(fired, done, path)
	})
}

// notify forwards a debounced path to the watch loop, giving up once
// the loop has stopped.
func notify(fired chan<- string, done <-chan struct{}, path string) {
	select {
	case fired <- path:
	case <-done:
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}
