// Package identity persists the device's stable identifier: a plain
// text file whose first line is a printable ASCII string at most
// IDMax bytes. The file is created with a freshly generated id on
// first run and its value is returned unchanged on every later run.
package identity

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	iotagent "github.com/oriys/iotagent"
)

// IDMax is the maximum byte length of a persisted device identifier.
const IDMax = 255

// ErrInvalidID is returned when a persisted identifier fails the
// printable-ASCII/length constraint this package enforces.
var ErrInvalidID = iotagent.New(iotagent.ParseError, "identity: invalid device id")

// Load reads the device identifier from path, creating path (and its
// parent directory) with a freshly generated uuid.New() value if it
// does not exist yet.
func Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("identity: read %s: %w", path, err)
		}
		return generate(path)
	}

	id := firstLine(data)
	if !valid(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return id, nil
}

func generate(path string) (string, error) {
	id := uuid.New().String()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("identity: create dir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0644); err != nil {
		return "", fmt.Errorf("identity: write %s: %w", path, err)
	}
	return id, nil
}

func firstLine(data []byte) string {
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text())
	}
	return ""
}

func valid(id string) bool {
	if id == "" || len(id) > IDMax {
		return false
	}
	for _, r := range id {
		if r < 0x20 || r > 0x7e {
			return false
		}
	}
	return true
}
