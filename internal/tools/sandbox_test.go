package tools

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSandboxResolveWithinRoot(t *testing.T) {
	root := t.TempDir()
	sb, err := NewSandbox(root)
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}

	resolved, err := sb.Resolve("sub/file.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.Join(root, "sub", "file.txt")
	if resolved != want {
		t.Errorf("Resolve = %q, want %q", resolved, want)
	}
}

func TestSandboxResolveRejectsEscape(t *testing.T) {
	root := t.TempDir()
	sb, err := NewSandbox(root)
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}

	if _, err := sb.Resolve("../escaped.txt"); err == nil {
		t.Error("expected error resolving path above root")
	}
	if _, err := sb.Resolve("a/../../escaped.txt"); err == nil {
		t.Error("expected error resolving path that climbs above root via nested ..")
	}
}

func TestSandboxResolveExistingFileThroughSymlink(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	outsideFile := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(outsideFile, []byte("shh"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	link := filepath.Join(root, "link.txt")
	if err := os.Symlink(outsideFile, link); err != nil {
		t.Skipf("symlinks unsupported in this environment: %v", err)
	}

	sb, err := NewSandbox(root)
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	if _, err := sb.Resolve("link.txt"); err == nil {
		t.Error("expected error resolving symlink that escapes root")
	}
}

func TestSandboxResolveNonExistentNestedPath(t *testing.T) {
	root := t.TempDir()
	sb, err := NewSandbox(root)
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}

	resolved, err := sb.Resolve("a/b/../c/new.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.Join(root, "a", "c", "new.txt")
	if resolved != want {
		t.Errorf("Resolve = %q, want %q", resolved, want)
	}
}
