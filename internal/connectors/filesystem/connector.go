package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/Polymer/polymer-build/internal/core/domain"
	"github.com/Polymer/polymer-build/internal/core/ports/driven"
	"github.com/Polymer/polymer-build/internal/logger"
)

// Ensure Connector implements the interface.
var _ driven.SourceConnector = (*Connector)(nil)

// Connector walks and watches a local directory tree.
type Connector struct {
	root    string
	matcher *Matcher
	buffer  int

	mu       sync.Mutex
	watchers []*fsnotify.Watcher
	closed   bool
}

// New creates a connector for root using cfg's source globs.
func New(root string, cfg domain.BuildConfig) (*Connector, error) {
	cfg = cfg.WithDefaults()
	matcher, err := NewMatcher(cfg.Sources)
	if err != nil {
		return nil, err
	}
	buffer := cfg.HighWaterMark
	if buffer <= 0 {
		buffer = domain.DefaultHighWaterMark
	}
	return &Connector{root: root, matcher: matcher, buffer: buffer}, nil
}

// NewFactory returns a factory producing filesystem connectors.
func NewFactory() driven.ConnectorFactory {
	return driven.ConnectorFactoryFunc(func(root string, cfg domain.BuildConfig) (driven.SourceConnector, error) {
		return New(root, cfg)
	})
}

// Root returns the directory the connector walks.
func (c *Connector) Root() string {
	return c.root
}

// Enumerate walks the root and streams every declared source.
// At most HighWaterMark files are buffered ahead of the consumer.
func (c *Connector) Enumerate(ctx context.Context) (<-chan domain.RawFile, <-chan error) {
	files := make(chan domain.RawFile, c.buffer)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(files)

		if err := c.checkRoot(); err != nil {
			errs <- err
			return
		}

		err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			if d.IsDir() {
				if path != c.root && isHidden(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if isHidden(d.Name()) || !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
				return nil
			}

			rel, relErr := filepath.Rel(c.root, path)
			if relErr != nil || !c.matcher.Match(filepath.ToSlash(rel)) {
				return nil
			}

			content, readErr := os.ReadFile(path)
			if readErr != nil {
				// Dangling symlinks and racing deletes are skipped.
				logger.Debug("skipping unreadable source %s: %v", path, readErr)
				return nil
			}

			select {
			case files <- domain.RawFile{Path: path, Contents: content}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			errs <- fmt.Errorf("enumerate %s: %w", c.root, err)
		}
	}()

	return files, errs
}

// ReadFile reads a single file.
func (c *Connector) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// IsSource reports whether id matches the declared source globs.
func (c *Connector) IsSource(id domain.CanonicalID) bool {
	rel := id.Path()
	if isHidden(rel) {
		return false
	}
	return c.matcher.Match(rel)
}

// Validate checks that the root exists, is a directory and is readable.
func (c *Connector) Validate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.checkRoot(); err != nil {
		return err
	}
	dir, err := os.Open(c.root)
	if err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("permission denied: %s", c.root)
		}
		return fmt.Errorf("cannot open directory: %w", err)
	}
	return dir.Close()
}

// Watch streams changes beneath the root until ctx is cancelled.
func (c *Connector) Watch(ctx context.Context) (<-chan domain.FileChange, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, errors.New("connector closed")
	}

	if _, err := os.Stat(c.root); err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := addRecursive(watcher, c.root); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", c.root, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = watcher.Close()
		return nil, errors.New("connector closed")
	}
	c.watchers = append(c.watchers, watcher)
	c.mu.Unlock()

	changes := make(chan domain.FileChange, c.buffer)
	go func() {
		defer close(changes)
		defer c.release(watcher)

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !isHidden(info.Name()) {
						if err := addRecursive(watcher, event.Name); err != nil {
							logger.Warn("watch %s: %v", event.Name, err)
						}
						continue
					}
				}
				change := c.handleFsEvent(event)
				if change == nil {
					continue
				}
				select {
				case changes <- *change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("watcher error: %v", err)
			}
		}
	}()

	return changes, nil
}

// Close stops any active watchers. Calling it more than once is safe.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	var errs []error
	for _, w := range c.watchers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.watchers = nil
	return errors.Join(errs...)
}

func (c *Connector) release(w *fsnotify.Watcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.watchers {
		if existing == w {
			c.watchers = append(c.watchers[:i], c.watchers[i+1:]...)
			_ = w.Close()
			return
		}
	}
}

func (c *Connector) checkRoot() error {
	info, err := os.Stat(c.root)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("path does not exist: %s", c.root)
		}
		return fmt.Errorf("cannot access path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", c.root)
	}
	return nil
}

// handleFsEvent converts an fsnotify event into a file change.
// Hidden paths and permission changes are ignored.
func (c *Connector) handleFsEvent(event fsnotify.Event) *domain.FileChange {
	rel, err := filepath.Rel(c.root, event.Name)
	if err != nil || isHidden(filepath.ToSlash(rel)) {
		return nil
	}

	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil || info.IsDir() {
			return nil
		}
		return &domain.FileChange{Type: domain.ChangeCreated, Path: event.Name}
	case event.Has(fsnotify.Write):
		return &domain.FileChange{Type: domain.ChangeUpdated, Path: event.Name}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return &domain.FileChange{Type: domain.ChangeDeleted, Path: event.Name}
	default:
		return nil
	}
}

func addRecursive(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.FieldsFunc(path, isSeparator) {
		if part[0] == '.' && part != "." && part != ".." {
			return true
		}
	}
	return false
}

func isSeparator(r rune) bool {
	return r == '/' || r == filepath.Separator
}
