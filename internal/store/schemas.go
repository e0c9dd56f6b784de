package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SchemaDir maps users to their schema directories under a shared root.
type SchemaDir struct {
	root string
}

func NewSchemaDir(root string) *SchemaDir {
	return &SchemaDir{root: root}
}

// UserDir returns the schema directory of user. It is not created.
func (s *SchemaDir) UserDir(user string) string {
	return filepath.Join(s.root, filepath.Base(filepath.Clean("/"+user)))
}

// Save writes data into the schema directory of user. Only the base name of
// filename is used. The written path is returned.
func (s *SchemaDir) Save(user, filename string, data []byte) (string, error) {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid schema file name %q", filename)
	}
	if user == "" {
		return "", errors.New("schema owner is required")
	}

	dir := s.UserDir(user)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create schema dir: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write schema %s: %w", name, err)
	}
	return path, nil
}
