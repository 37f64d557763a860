/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/acronis/go-appkit/log"
)

// Asset roles stored in the disk tier.
const (
	AssetRoleAvatar = "avatar"
	AssetRoleBanner = "banner"
)

// Asset describes a file in the disk tier. Staleness is derived from the file
// modification time; there is no separate timestamp record.
type Asset struct {
	Path    string
	ModTime time.Time
}

// DiskStore maps (handle, role) to one file on durable storage.
// The file extension reflects the stored content type.
type DiskStore struct {
	dir    string
	logger log.FieldLogger
}

// NewDiskStore creates the asset directory if needed.
func NewDiskStore(dir string, logger log.FieldLogger) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset directory: %w", err)
	}
	return &DiskStore{dir: dir, logger: logger}, nil
}

// Get returns the asset stored for (handle, role), or nil if none exists.
func (d *DiskStore) Get(handle, role string) (*Asset, error) {
	matches, err := filepath.Glob(filepath.Join(d.dir, assetBaseName(handle, role)+".*"))
	if err != nil {
		return nil, fmt.Errorf("list assets for %q/%s: %w", handle, role, err)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	info, err := os.Stat(matches[0])
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat asset %q: %w", matches[0], err)
	}
	return &Asset{Path: matches[0], ModTime: info.ModTime()}, nil
}

// Set stores the asset bytes for (handle, role), replacing any previous file
// regardless of its extension. The write is atomic (temp file + rename).
func (d *DiskStore) Set(handle, role string, data []byte, ext string) (string, error) {
	base := assetBaseName(handle, role)

	// Drop a stale file with a different extension before writing the new one.
	if matches, err := filepath.Glob(filepath.Join(d.dir, base+".*")); err == nil {
		for _, m := range matches {
			if filepath.Ext(m) != ext {
				if rmErr := os.Remove(m); rmErr != nil {
					d.logger.Warn("removing superseded asset", log.String("path", m), log.Error(rmErr))
				}
			}
		}
	}

	// The temp name must stay invisible to the Get glob so a concurrent read
	// cannot observe a half-written asset.
	path := filepath.Join(d.dir, base+ext)
	tmp, err := os.CreateTemp(d.dir, ".tmp-"+base+"-*")
	if err != nil {
		return "", fmt.Errorf("create temp asset file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write asset %q: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close asset %q: %w", path, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("rename asset %q: %w", path, err)
	}
	return path, nil
}

// PruneOlderThan removes asset files whose modification time is older than ttl
// and returns the removed count. Abandoned temp files age out the same way.
func (d *DiskStore) PruneOlderThan(ttl time.Duration) (int, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return 0, fmt.Errorf("list asset directory: %w", err)
	}
	cutoff := time.Now().Add(-ttl)

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(d.dir, entry.Name())
		if err = os.Remove(path); err != nil {
			d.logger.Warn("removing stale asset", log.String("path", path), log.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

func assetBaseName(handle, role string) string {
	// Handles are validated at the HTTP boundary, this is a second line of defense.
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '_'
	}, handle)
	return safe + "_" + role
}
