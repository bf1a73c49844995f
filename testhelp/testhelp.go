package testhelp

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Tempfile returns a path that does not exist yet and a cleanup that
// removes whatever ends up there.
func Tempfile(tb testing.TB) (string, func()) {
	tmpdir := os.Getenv("TMPDIR")
	if tmpdir == "" {
		tmpdir = "/tmp"
	}
	name := filepath.Join(tmpdir, fmt.Sprint(time.Now().UnixNano()))

	return name, func() {
		_ = os.Remove(name)
	}
}

// Value makes a recognizable payload for slot n so tests can tell slots
// apart and catch a read that landed on the wrong tenancy.
func Value(n uint64) uint64 { return n*0x9e3779b97f4a7c15 + 1 }
