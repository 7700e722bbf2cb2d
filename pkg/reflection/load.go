package reflection

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

//go:embed database.yaml
var embeddedTable []byte

var (
	defaultOnce sync.Once
	defaultDB   *Database
)

// Default returns the database embedded in this package. It is parsed on first
// use and shared afterwards.
func Default() *Database {
	defaultOnce.Do(func() {
		db, err := LoadYAML(bytes.NewReader(embeddedTable))
		if err != nil {
			panic(fmt.Sprintf("reflection: embedded table is invalid: %v", err))
		}
		defaultDB = db
	})
	return defaultDB
}

// Load reads a database from path. Files ending in .json are treated as API
// dumps, anything else as a YAML table.
func Load(path string) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reflection database: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return LoadDump(f)
	}
	return LoadYAML(f)
}
