package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/54b3r/raglab-go/internal/logging"
)

// DefaultDebounce is how long a file must stay quiet before it is re-ingested.
const DefaultDebounce = 500 * time.Millisecond

// Watch re-ingests supported files under dirs into collection whenever they
// are created or written, and drops their chunks when they are removed or
// renamed away, until ctx is done. Editors write files in bursts, so each
// path is handled once it has been quiet for debounce. Results are reported
// through progress; a failed file does not stop the watch.
func (p *Pipeline) Watch(ctx context.Context, collection string, dirs []string, debounce time.Duration, progress Progress) error {
	if progress == nil {
		progress = func(Event) {}
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	log := logging.FromContext(ctx).With(slog.String("collection", collection))

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ingestion: create watcher: %w", err)
	}
	defer w.Close()

	for _, dir := range dirs {
		if err := addTree(w, dir); err != nil {
			return err
		}
		log.Info("ingestion: watching", slog.String("dir", dir))
	}

	var (
		mu      sync.Mutex
		pending = map[string]*time.Timer{}
		wg      sync.WaitGroup
	)
	defer func() {
		mu.Lock()
		for _, t := range pending {
			if t.Stop() {
				wg.Done()
			}
		}
		mu.Unlock()
		wg.Wait()
	}()

	ingest := func(path string, self **time.Timer) {
		defer wg.Done()
		mu.Lock()
		if pending[path] == *self {
			delete(pending, path)
		}
		mu.Unlock()

		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			if err := p.RemoveSource(ctx, collection, path); err != nil {
				progress(Event{Source: path, Stage: StageSkipped, Err: err})
				log.Error("ingestion: watch remove failed", slog.String("source", path), slog.Any("error", err))
				return
			}
			progress(Event{Source: path, Stage: StageRemoved})
			return
		}

		doc, err := ReadFile(path)
		if err != nil {
			progress(Event{Source: path, Stage: StageSkipped, Err: err})
			log.Warn("ingestion: watch read failed", slog.String("source", path), slog.Any("error", err))
			return
		}
		n, err := p.IngestDocument(ctx, collection, doc)
		if err != nil {
			progress(Event{Source: path, Stage: StageSkipped, Err: err})
			log.Error("ingestion: watch ingest failed", slog.String("source", path), slog.Any("error", err))
			return
		}
		progress(Event{Source: path, Stage: StageStored, Chunks: n})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("ingestion: watcher error", slog.Any("error", err))
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
					if err := addTree(w, ev.Name); err != nil {
						log.Warn("ingestion: cannot watch new dir", slog.String("dir", ev.Name), slog.Any("error", err))
					}
					continue
				}
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) &&
				!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if !InferSource(ev.Name).Supported() {
				continue
			}
			mu.Lock()
			if t, ok := pending[ev.Name]; ok && t.Stop() {
				t.Reset(debounce)
			} else {
				wg.Add(1)
				path := ev.Name
				var t *time.Timer
				t = time.AfterFunc(debounce, func() { ingest(path, &t) })
				pending[path] = t
			}
			mu.Unlock()
		}
	}
}

// addTree watches dir and every non-hidden directory beneath it.
func addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("ingestion: watch %s: %w", path, err)
		}
		return nil
	})
}
