package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bnema/catq/internal/domain"
	"github.com/bnema/catq/internal/ports"
	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	identityFileMode     = 0o600
	identityDirMode      = 0o700
	tempFilePattern      = ".identity-*.toml.tmp"
	currentSchemaVersion = 1
)

type identitySchema struct {
	Version   int       `toml:"version"`
	Identity  string    `toml:"identity"`
	UpdatedAt time.Time `toml:"updated_at"`
}

func (s identitySchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported identity schema version %d (current %d)", s.Version, currentSchemaVersion)
	}
	return nil
}

// Record is the persisted login.
type Record struct {
	Identity  domain.Identity
	UpdatedAt time.Time
}

// Store keeps the logged-in identity in a TOML file and reports changes made
// to it by any process.
type Store struct {
	path   string
	mu     *sync.RWMutex
	clock  ports.Clock
	logger logr.Logger
}

var _ ports.IdentitySource = (*Store)(nil)

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

type Option func(*Store)

func WithLogger(logger logr.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithClock(clock ports.Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewStore(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("identity path is empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve identity path: %w", err)
	}
	absPath = filepath.Clean(absPath)

	s := &Store{
		path:   absPath,
		mu:     lockForPath(absPath),
		clock:  ports.SystemClock{},
		logger: logr.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithName("identity-file-source")

	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

// Load returns the stored login, or domain.ErrIdentityNotFound when nobody is
// logged in.
func (s *Store) Load(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.read()
}

func (s *Store) Save(ctx context.Context, identity domain.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if identity.IsZero() {
		return errors.New("identity is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.write(identitySchema{
		Version:   currentSchemaVersion,
		Identity:  strings.TrimSpace(string(identity)),
		UpdatedAt: s.clock.Now().UTC(),
	})
}

// Clear logs out. Clearing an absent identity is not an error.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove identity file: %w", err)
	}
	return nil
}

// Subscribe emits the current identity, then every change to the file until
// cancel is called or ctx ends. A missing file emits the zero Identity.
func (s *Store) Subscribe(ctx context.Context, fn func(domain.Identity)) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.path), identityDirMode); err != nil {
		return nil, fmt.Errorf("create identity directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create identity watcher: %w", err)
	}
	// Watch the directory: saves replace the file by rename.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch identity directory: %w", err)
	}

	current, err := s.current(ctx)
	if err != nil {
		_ = watcher.Close()
		return nil, err
	}
	fn(current)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.watch(ctx, watcher, stop, current, fn)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			_ = watcher.Close()
		})
	}, nil
}

func (s *Store) watch(ctx context.Context, watcher *fsnotify.Watcher, stop <-chan struct{}, last domain.Identity, fn func(domain.Identity)) {
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}

			identity, err := s.current(ctx)
			if err != nil {
				s.logger.Error(err, "Failed to reload identity file.", "path", s.path, "op", event.Op.String())
				continue
			}
			if identity == last {
				continue
			}
			last = identity

			s.logger.Info("Identity changed.", "path", s.path, "logged_in", !identity.IsZero())
			fn(identity)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error(err, "Identity watcher error.", "path", s.path)
		}
	}
}

func (s *Store) current(ctx context.Context) (domain.Identity, error) {
	record, err := s.Load(ctx)
	if errors.Is(err, domain.ErrIdentityNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return record.Identity, nil
}

func (s *Store) read() (Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, domain.ErrIdentityNotFound
		}
		return Record{}, fmt.Errorf("read identity file: %w", err)
	}

	var file identitySchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return Record{}, fmt.Errorf("decode identity file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return Record{}, err
	}

	identity := domain.Identity(strings.TrimSpace(file.Identity))
	if identity.IsZero() {
		return Record{}, domain.ErrIdentityNotFound
	}

	return Record{Identity: identity, UpdatedAt: file.UpdatedAt}, nil
}

func (s *Store) write(file identitySchema) error {
	if err := os.MkdirAll(filepath.Dir(s.path), identityDirMode); err != nil {
		return fmt.Errorf("create identity directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode identity file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(s.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp identity file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp identity file: %w", err)
	}
	if err := tempFile.Chmod(identityFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp identity file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp identity file: %w", err)
	}

	if err := os.Rename(tempName, s.path); err != nil {
		return fmt.Errorf("replace identity file: %w", err)
	}
	cleanup = false

	return nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}
