package database

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kozaktomas/fusion-batch/internal/config"
)

// ErrDisabled is returned by Open when DATABASE_URL is not set.
var ErrDisabled = errors.New("history disabled: DATABASE_URL is not set")

// OpenFunc connects to a backend and prepares its schema.
type OpenFunc func(cfg *config.DatabaseConfig) (Store, error)

var (
	backends   = make(map[string]OpenFunc)
	backendsMu sync.RWMutex
)

// RegisterBackend makes a backend available for the given URL schemes.
// This is called by the backend packages to avoid import cycles.
func RegisterBackend(open OpenFunc, schemes ...string) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	for _, s := range schemes {
		backends[strings.ToLower(s)] = open
	}
}

// Schemes returns the registered URL schemes.
func Schemes() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	list := make([]string, 0, len(backends))
	for s := range backends {
		list = append(list, s)
	}
	sort.Strings(list)
	return list
}

// Scheme returns the lower-cased scheme of a database URL. The rest of the URL
// is not parsed since go-sql-driver DSNs such as user@tcp(host:3306)/db are not
// valid URLs.
func Scheme(rawURL string) (string, error) {
	scheme, _, ok := strings.Cut(rawURL, "://")
	if !ok || scheme == "" {
		return "", errors.New("database URL has no scheme (want postgres:// or mysql://)")
	}
	return strings.ToLower(scheme), nil
}

// Open picks the backend by the URL scheme of cfg.URL.
func Open(cfg *config.DatabaseConfig) (Store, error) {
	if cfg == nil || !cfg.Enabled() {
		return nil, ErrDisabled
	}
	scheme, err := Scheme(cfg.URL)
	if err != nil {
		return nil, err
	}

	backendsMu.RLock()
	open, ok := backends[scheme]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported database scheme %q (registered: %s)", scheme, strings.Join(Schemes(), ", "))
	}
	return open(cfg)
}
