package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	offerr "github.com/Aman-CERP/offsearch/internal/errors"
)

// Options configures an engine.
type Options struct {
	// Root is the directory holding one subdirectory per index.
	Root string

	// Backend selects the on-disk format. Empty means BackendSQLite.
	Backend Backend

	// DefaultLimit is used when a query does not set one.
	DefaultLimit int

	// StopWords overrides DefaultStopWords when non-nil.
	StopWords []string

	// LockWait bounds how long a build waits for another process holding
	// the same index's build lock.
	LockWait time.Duration

	// Verify checks a license credential during Init. Nil accepts any
	// non-empty credential.
	Verify func(credential string) error

	Logger *slog.Logger
}

// DefaultLockWait is used when Options.LockWait is zero.
const DefaultLockWait = 10 * time.Second

// core holds what every backend shares: activation, paths and tokenization.
type core struct {
	opts      Options
	logger    *slog.Logger
	stopList  []string
	stopWords map[string]struct{}

	mu        sync.RWMutex
	activated bool
}

func (c *core) setup(opts Options) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.LockWait <= 0 {
		opts.LockWait = DefaultLockWait
	}
	stop := opts.StopWords
	if stop == nil {
		stop = DefaultStopWords
	}
	c.opts = opts
	c.logger = opts.Logger
	c.stopList = stop
	c.stopWords = BuildStopWordMap(stop)
}

// Init implements Engine.
func (c *core) Init(ctx context.Context, credential string) error {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return offerr.New(offerr.ErrCodeCredentialEmpty, "license credential is empty", nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.opts.Verify != nil {
		if err := c.opts.Verify(credential); err != nil {
			return offerr.ActivationError("license rejected", err)
		}
	}
	if c.opts.Root == "" {
		return offerr.New(offerr.ErrCodeDataDir, "engine root directory is not set", nil)
	}
	if err := os.MkdirAll(c.opts.Root, 0755); err != nil {
		return offerr.New(offerr.ErrCodeDataDir, "cannot create engine root directory", err).
			WithDetail("path", c.opts.Root)
	}

	c.mu.Lock()
	c.activated = true
	c.mu.Unlock()
	return nil
}

func (c *core) requireInit(operation string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.activated {
		return offerr.NotActivated(operation)
	}
	return nil
}

// indexDir validates name and returns its data directory.
func (c *core) indexDir(name string) (string, error) {
	if err := ValidateIndexName(name); err != nil {
		return "", err
	}
	return filepath.Join(c.opts.Root, name), nil
}

func (c *core) analyze(text string) []string {
	return FilterStopWords(Tokenize(text), c.stopWords)
}

// ValidateIndexName rejects names that cannot be used as a directory name.
func ValidateIndexName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return offerr.ValidationError("index name is empty", nil)
	case len(name) > 200:
		return offerr.ValidationError("index name is too long", nil).WithDetail("index", name)
	case name == "." || name == "..":
		return offerr.ValidationError("index name is reserved", nil).WithDetail("index", name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return offerr.ValidationError("index name must not contain path separators", nil).WithDetail("index", name)
	}
	return nil
}
