package diagnostics

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"peepsolve/internal/solvererr"
)

// Dump's TTY branch is detected via isatty on the *os.File's fd; a
// regular file is never a terminal, so writing through one exercises
// the deterministic non-TTY path. The TTY-formatted branch can't be
// driven deterministically without a real pty, so it is left to
// manual/CLI testing, same as original_source's terminal-dependent
// diagnostics.
func TestDumpNonTTYIsASingleCompactLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("unexpected error creating temp file: %v", err)
	}
	defer f.Close()

	err2 := solvererr.New(solvererr.Fatal, "big/small query mismatch").WithFingerprint("fp123")
	Dump(f, err2, map[string]int{"candidates": 2})

	data, rerr := os.ReadFile(path)
	if rerr != nil {
		t.Fatalf("unexpected error reading back temp file: %v", rerr)
	}
	out := string(data)
	if strings.Count(out, "\n") != 1 {
		t.Fatalf("expected exactly one trailing newline for the non-TTY path, got %q", out)
	}
	if !strings.Contains(out, "fingerprint=\"fp123\"") {
		t.Fatalf("expected the fingerprint to be embedded in the compact line, got %q", out)
	}
	if !strings.Contains(out, "big/small query mismatch") {
		t.Fatalf("expected the error message in the compact line, got %q", out)
	}
}

func TestDumpNonTTYHandlesNilPayload(t *testing.T) {
	var buf bytes.Buffer
	// bytes.Buffer is never an *os.File, so this always takes the
	// non-TTY branch regardless of the test runner's own stdio.
	dummy := &nonFileWriter{buf: &buf}
	err := solvererr.New(solvererr.OracleFailure, "timed out")
	Dump(dummy, err, nil)
	if !strings.Contains(buf.String(), "timed out") {
		t.Fatalf("expected the message to appear even with a nil payload, got %q", buf.String())
	}
}

type nonFileWriter struct{ buf *bytes.Buffer }

func (w *nonFileWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }
