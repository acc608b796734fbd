package database

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
)

// Migration is one numbered pair of SQL scripts under migrations/.
// Checksum covers the up script so drift in an applied file is visible.
type Migration struct {
	Version    int
	Name       string
	UpScript   string
	DownScript string
	Checksum   string
}

func (m Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

//go:embed migrations/*.sql
var migrationFS embed.FS

var upFile = regexp.MustCompile(`^(\d{6})_([a-z0-9_]+)\.up\.sql$`)

var migrations = mustLoadMigrations(migrationFS, "migrations")

func mustLoadMigrations(fsys fs.FS, dir string) []Migration {
	ms, err := loadMigrations(fsys, dir)
	if err != nil {
		panic(fmt.Sprintf("embedded migrations: %v", err))
	}
	return ms
}

// loadMigrations reads every NNNNNN_name.up.sql in dir with its matching
// down script. Versions must be unique.
func loadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	seen := make(map[int]string)
	var out []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := upFile.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		version, err := strconv.Atoi(match[1])
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", entry.Name(), err)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migration version %06d used by %s and %s", version, prev, entry.Name())
		}
		seen[version] = entry.Name()

		up, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		downName := fmt.Sprintf("%s_%s.down.sql", match[1], match[2])
		down, err := fs.ReadFile(fsys, path.Join(dir, downName))
		if err != nil {
			return nil, fmt.Errorf("migration %s has no down script: %w", entry.Name(), err)
		}

		sum := sha256.Sum256(up)
		out = append(out, Migration{
			Version:    version,
			Name:       match[2],
			UpScript:   string(up),
			DownScript: string(down),
			Checksum:   hex.EncodeToString(sum[:]),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// GetMigrations returns the embedded migrations in version order.
func GetMigrations() []Migration {
	return migrations
}

func GetMigrationByVersion(version int) *Migration {
	return findMigration(migrations, version)
}

func findMigration(ms []Migration, version int) *Migration {
	for i := range ms {
		if ms[i].Version == version {
			m := ms[i]
			return &m
		}
	}
	return nil
}
