package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

var (
	ErrSnapshotPathRequired = errors.New("ui: snapshot file path is required")
	ErrWatcherClosed        = errors.New("ui: snapshot watcher closed")
)

// DefaultDebounce coalesces the burst of events an editor or atomic rename
// produces into one reload.
const DefaultDebounce = 100 * time.Millisecond

// DefaultWatchRetry is the wait before re-establishing a failed watch.
const DefaultWatchRetry = 5 * time.Second

// FileSource publishes the snapshot stored in a TOML file each time the file
// changes. The host UI writes the file; the link loop reads the mailbox.
type FileSource struct {
	path     string
	mailbox  *Mailbox
	debounce time.Duration
	retry    time.Duration
}

func NewFileSource(path string, mailbox *Mailbox) (*FileSource, error) {
	if path == "" {
		return nil, ErrSnapshotPathRequired
	}
	if mailbox == nil {
		return nil, errors.New("ui: mailbox is required")
	}
	return &FileSource{path: filepath.Clean(path), mailbox: mailbox, debounce: DefaultDebounce, retry: DefaultWatchRetry}, nil
}

// LoadSnapshotFile decodes one snapshot file. Unknown keys are rejected so a
// typo does not silently blank a field.
func LoadSnapshotFile(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("ui: open snapshot %q: %w", path, err)
	}
	defer f.Close()

	var snap Snapshot
	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("ui: decode snapshot %q: %w", path, err)
	}
	return snap, nil
}

// Load reads the file once and publishes it.
func (s *FileSource) Load() error {
	snap, err := LoadSnapshotFile(s.path)
	if err != nil {
		return err
	}
	s.mailbox.Publish(snap)
	log.Debug().
		Str("path", s.path).
		Uint64("version", s.mailbox.Version()).
		Msg("ui.FileSource.Load published")
	return nil
}

// Run loads the file, then watches its directory until ctx ends. The
// directory is watched rather than the file so atomic replace-by-rename is
// seen. A missing or malformed file is logged and skipped. A missing
// directory, or one removed while watched, is retried every retry interval.
// Run returns only when ctx ends.
func (s *FileSource) Run(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		err := s.watch(ctx)
		if ctx.Err() != nil {
			return nil
		}
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("retry", s.retry).
			Msg("ui.FileSource.Run watch failed")

		timer := time.NewTimer(s.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// watch runs one watcher lifetime. It returns nil when ctx ends and an error
// when the watch cannot be set up or is lost.
func (s *FileSource) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ui: create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("ui: watch %q: %w", dir, err)
	}

	if err := s.Load(); err != nil {
		log.Warn().Err(err).Msg("ui.FileSource.watch initial load failed")
	}

	debounce := time.NewTimer(s.debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return ErrWatcherClosed
			}
			name := filepath.Clean(event.Name)
			if name == dir && (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
				return fmt.Errorf("ui: snapshot directory %q removed", dir)
			}
			if name != s.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			resetTimer(debounce, s.debounce)
		case <-debounce.C:
			if err := s.Load(); err != nil {
				log.Warn().Err(err).Str("path", s.path).Msg("ui.FileSource.watch reload failed")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return ErrWatcherClosed
			}
			log.Warn().Err(err).Msg("ui.FileSource.watch watcher error")
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
