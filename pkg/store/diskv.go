package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/peterbourgon/diskv/v3"

	"tableflip.dev/todosync/pkg/todo"
)

// ErrNotFound is returned for an id the store does not hold.
var ErrNotFound = errors.New("store: item not found")

// Config locates the store on disk.
type Config interface {
	BasePath() string
}

// Persistence defines the persistence contract for todo items.
type Persistence interface {
	// List returns the items owned by userID in creation order. A zero
	// userID lists every item.
	List(ctx context.Context, userID int) ([]todo.Item, error)
	Get(id int) (todo.Item, error)
	Create(d todo.Draft) (todo.Item, error)
	Patch(id int, p todo.Patch) (todo.Item, error)
	Delete(id int) error
	Watch(ctx context.Context) (<-chan Event, error)
}

// Option configures Load.
type Option func(*persistence)

// WithLogger sets the logger for unreadable items and watcher trouble.
func WithLogger(l *slog.Logger) Option {
	return func(p *persistence) { p.logger = l }
}

// Load creates a Persistence backed by diskv using the provided config.
func Load(cfg Config, opts ...Option) (Persistence, error) {
	if cfg == nil {
		return nil, errors.New("store: config required")
	}
	basePath := cfg.BasePath()
	if basePath == "" {
		return nil, errors.New("store: base path unknown")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("store: ensure base path: %w", err)
	}
	p := &persistence{d: diskv.New(diskv.Options{
		BasePath:          basePath,
		AdvancedTransform: keyToPathTransform,
		InverseTransform:  pathToKeyTransform,
		CacheSizeMax:      1024 * 1024, // 1MB
	}), basePath: basePath}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p, nil
}

type persistence struct {
	// mu serialises writers so id allocation and the owner index stay
	// consistent with the item files.
	mu       sync.Mutex
	d        *diskv.Diskv
	basePath string
	logger   *slog.Logger
}

// index is the on-disk bookkeeping next to the item files.
type index struct {
	Next   int         `json:"next"`
	Owners map[int]int `json:"owners"`
}

const indexFile = ".index.json"

func (p *persistence) read(key string) (todo.Item, error) {
	val, err := p.d.Read(key)
	if err != nil {
		return todo.Item{}, err
	}
	var it todo.Item
	if err := json.Unmarshal(val, &it); err != nil {
		return todo.Item{}, fmt.Errorf("store: decode %s: %w", key, err)
	}
	return it, nil
}

func (p *persistence) write(it todo.Item) error {
	data, err := json.Marshal(it)
	if err != nil {
		return err
	}
	return p.d.Write(toKey(it.UserID, it.ID), data)
}

func (p *persistence) List(ctx context.Context, userID int) ([]todo.Item, error) {
	all := make([]todo.Item, 0)
	for key := range p.d.Keys(ctx.Done()) {
		owner, _, ok := parseKey(key)
		if !ok || (userID != 0 && owner != userID) {
			continue
		}
		it, err := p.read(key)
		if err != nil {
			p.logger.Warn("skipping unreadable item", "key", key, "err", err)
			continue
		}
		all = append(all, it)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

func (p *persistence) Get(id int) (todo.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.getLocked(id)
}

func (p *persistence) getLocked(id int) (todo.Item, error) {
	idx, err := p.loadIndex()
	if err != nil {
		return todo.Item{}, fmt.Errorf("store: load index: %w", err)
	}
	owner, ok := idx.Owners[id]
	if !ok {
		return todo.Item{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return p.read(toKey(owner, id))
}

func (p *persistence) Create(d todo.Draft) (todo.Item, error) {
	if strings.TrimSpace(d.Title) == "" {
		return todo.Item{}, errors.New("store: title required")
	}
	if d.UserID < 0 {
		return todo.Item{}, fmt.Errorf("store: invalid user %d", d.UserID)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, err := p.loadIndex()
	if err != nil {
		return todo.Item{}, fmt.Errorf("store: load index: %w", err)
	}
	it := todo.Item{ID: idx.Next, UserID: d.UserID, Title: d.Title, Completed: d.Completed}
	if err := p.write(it); err != nil {
		return todo.Item{}, fmt.Errorf("store: write %d: %w", it.ID, err)
	}
	idx.Next++
	idx.Owners[it.ID] = it.UserID
	if err := p.saveIndex(idx); err != nil {
		return todo.Item{}, fmt.Errorf("store: save index: %w", err)
	}
	return it, nil
}

func (p *persistence) Patch(id int, patch todo.Patch) (todo.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	it, err := p.getLocked(id)
	if err != nil {
		return todo.Item{}, err
	}
	if patch.Empty() {
		return it, nil
	}
	it = patch.Apply(it)
	if err := p.write(it); err != nil {
		return todo.Item{}, fmt.Errorf("store: write %d: %w", id, err)
	}
	return it, nil
}

func (p *persistence) Delete(id int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, err := p.loadIndex()
	if err != nil {
		return fmt.Errorf("store: load index: %w", err)
	}
	owner, ok := idx.Owners[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err := p.d.Erase(toKey(owner, id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("store: erase %d: %w", id, err)
	}
	delete(idx.Owners, id)
	if err := p.saveIndex(idx); err != nil {
		return fmt.Errorf("store: save index: %w", err)
	}
	return nil
}

func (p *persistence) indexPath() string {
	return filepath.Join(p.basePath, indexFile)
}

func (p *persistence) loadIndex() (*index, error) {
	data, err := os.ReadFile(p.indexPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &index{Next: 1, Owners: make(map[int]int)}, nil
		}
		return nil, err
	}
	idx := &index{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, idx); err != nil {
			return nil, err
		}
	}
	if idx.Owners == nil {
		idx.Owners = make(map[int]int)
	}
	if idx.Next < 1 {
		idx.Next = 1
	}
	return idx, nil
}

func (p *persistence) saveIndex(idx *index) error {
	if err := os.MkdirAll(p.basePath, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	path := p.indexPath()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Keys look like `u<user>-<id>`: one directory per user, one file per item.
func keyToPathTransform(s string) *diskv.PathKey {
	parts := strings.Split(s, "-")
	return &diskv.PathKey{
		Path:     parts[:len(parts)-1],
		FileName: parts[len(parts)-1],
	}
}

func pathToKeyTransform(pathKey *diskv.PathKey) string {
	return fmt.Sprintf("%s-%s", strings.Join(pathKey.Path, "-"), pathKey.FileName)
}

func toKey(userID, id int) string {
	return fmt.Sprintf("u%d-%d", userID, id)
}

// parseKey reverses toKey. Anything else under the base path, such as the
// index file, is reported as not an item.
func parseKey(key string) (userID, id int, ok bool) {
	user, file, found := strings.Cut(key, "-")
	if !found || !strings.HasPrefix(user, "u") {
		return 0, 0, false
	}
	userID, err := strconv.Atoi(strings.TrimPrefix(user, "u"))
	if err != nil {
		return 0, 0, false
	}
	id, err = strconv.Atoi(file)
	if err != nil {
		return 0, 0, false
	}
	return userID, id, true
}
