package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forPelevin/vid2gif/internal/logging"
	"github.com/forPelevin/vid2gif/internal/types"
)

var (
	ErrNotFound = errors.New("workspace not found")
	ErrBusy     = errors.New("workspace is busy with another conversion")
)

const DefaultTTL = 30 * time.Minute

// workspace is one uploaded video plus the last GIF made from it. Its files
// live under Dir and are removed when the workspace is released.
type workspace struct {
	ID        string
	Dir       string
	VideoPath string
	Ext       string
	Size      int64
	CreatedAt time.Time

	lastUsed time.Time
	busy     bool
	released bool

	artifact *types.ClipArtifact
	stats    types.Stats
}

func (w *workspace) snapshot() View {
	v := View{ID: w.ID, Ext: w.Ext, Size: w.Size, CreatedAt: w.CreatedAt, Busy: w.busy}
	if w.artifact != nil {
		a := *w.artifact
		v.Artifact = &a
		v.Stats = w.stats
	}
	return v
}

// View is a read-only copy of a workspace's state.
type View struct {
	ID        string
	Ext       string
	Size      int64
	CreatedAt time.Time
	Busy      bool
	Artifact  *types.ClipArtifact
	Stats     types.Stats
}

type Config struct {
	// Root is the parent of the per-manager temp directory. Empty means os.TempDir().
	Root   string
	TTL    time.Duration
	Logger logging.Logger
}

type Manager struct {
	dir    string
	ttl    time.Duration
	logger logging.Logger
	now    func() time.Time

	mu         sync.Mutex
	workspaces map[string]*workspace
	closed     bool
}

func NewManager(cfg Config) (*Manager, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	root := cfg.Root
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("create session root: %w", err)
	}
	dir, err := os.MkdirTemp(root, "vid2gif-sessions-")
	if err != nil {
		return nil, fmt.Errorf("create session root: %w", err)
	}
	return &Manager{
		dir:        dir,
		ttl:        ttl,
		logger:     logger,
		now:        time.Now,
		workspaces: make(map[string]*workspace),
	}, nil
}

// Dir is the directory holding every workspace of this manager.
func (m *Manager) Dir() string { return m.dir }

// Create stores video in a fresh workspace keyed by a random id.
func (m *Manager) Create(video []byte, ext string) (View, error) {
	if len(video) == 0 {
		return View{}, errors.New("empty video")
	}
	ext = normalizeExt(ext)
	id := uuid.NewString()
	dir := filepath.Join(m.dir, id)

	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return View{}, errors.New("session manager is closed")
	}

	if err := os.Mkdir(dir, 0o700); err != nil {
		return View{}, fmt.Errorf("create workspace: %w", err)
	}
	videoPath := filepath.Join(dir, "input"+ext)
	if err := os.WriteFile(videoPath, video, 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return View{}, fmt.Errorf("store upload: %w", err)
	}

	now := m.now()
	w := &workspace{
		ID:        id,
		Dir:       dir,
		VideoPath: videoPath,
		Ext:       ext,
		Size:      int64(len(video)),
		CreatedAt: now,
		lastUsed:  now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		_ = os.RemoveAll(dir)
		return View{}, errors.New("session manager is closed")
	}
	m.workspaces[id] = w
	m.logger.Info("workspace created", "workspace", id, "bytes", w.Size, "ext", ext)
	return w.snapshot(), nil
}

// Get returns the workspace state and refreshes its idle timer.
func (m *Manager) Get(id string) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workspaces[id]
	if !ok {
		return View{}, ErrNotFound
	}
	w.lastUsed = m.now()
	return w.snapshot(), nil
}

// VideoPath returns the stored upload of a workspace.
func (m *Manager) VideoPath(id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workspaces[id]
	if !ok {
		return "", ErrNotFound
	}
	w.lastUsed = m.now()
	return w.VideoPath, nil
}

// Acquire marks the workspace busy for one conversion. The returned done
// func must be called exactly once; it stores the artifact when non-nil.
func (m *Manager) Acquire(id string) (videoPath string, done func(*types.ClipArtifact, types.Stats), err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workspaces[id]
	if !ok {
		return "", nil, ErrNotFound
	}
	if w.busy {
		return "", nil, ErrBusy
	}
	w.busy = true
	w.lastUsed = m.now()

	var once sync.Once
	done = func(a *types.ClipArtifact, st types.Stats) {
		once.Do(func() { m.finish(w, a, st) })
	}
	return w.VideoPath, done, nil
}

func (m *Manager) finish(w *workspace, a *types.ClipArtifact, st types.Stats) {
	m.mu.Lock()
	w.busy = false
	w.lastUsed = m.now()
	if a != nil {
		w.artifact = a
		w.stats = st
	}
	released := w.released
	m.mu.Unlock()

	if released {
		m.remove(w)
	}
}

// Release drops the workspace and its files. A conversion still running on
// it finishes first; its files are removed when it completes.
func (m *Manager) Release(id string) error {
	m.mu.Lock()
	w, ok := m.workspaces[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.workspaces, id)
	w.released = true
	busy := w.busy
	m.mu.Unlock()

	if !busy {
		m.remove(w)
	}
	return nil
}

// SweepExpired releases idle workspaces whose last use is older than the TTL.
func (m *Manager) SweepExpired(now time.Time) int {
	m.mu.Lock()
	var expired []*workspace
	for id, w := range m.workspaces {
		if w.busy || now.Sub(w.lastUsed) < m.ttl {
			continue
		}
		delete(m.workspaces, id)
		w.released = true
		expired = append(expired, w)
	}
	m.mu.Unlock()

	for _, w := range expired {
		m.remove(w)
		m.logger.Info("workspace expired", "workspace", w.ID)
	}
	return len(expired)
}

// Run sweeps expired workspaces every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = m.ttl / 2
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			m.SweepExpired(now)
		}
	}
}

// Len is the number of live workspaces.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workspaces)
}

// Close releases every workspace and removes the manager directory.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	m.workspaces = make(map[string]*workspace)
	m.mu.Unlock()
	return os.RemoveAll(m.dir)
}

func (m *Manager) remove(w *workspace) {
	if err := os.RemoveAll(w.Dir); err != nil {
		m.logger.Warn("failed to remove workspace files", "workspace", w.ID, "error", err)
	}
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	var b strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ".video"
	}
	return "." + b.String()
}
