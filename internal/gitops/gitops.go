// Package gitops records changes to a project directory as git commits, so
// every import leaves an auditable trail next to the payments it created.
package gitops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNoGit is returned when the git binary cannot be found.
var ErrNoGit = errors.New("git not found in PATH")

// Author identifies who a commit is attributed to.
type Author struct {
	Name  string
	Email string
}

// DefaultAuthor is used when a project does not configure one.
var DefaultAuthor = Author{Name: "dues", Email: "dues@localhost"}

func (a Author) String() string {
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

// Available reports whether git is installed.
func Available() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// IsRepo reports whether dir is the root of a git repository.
func IsRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// Init creates a repository at dir.
func Init(ctx context.Context, dir string) error {
	if _, err := git(ctx, dir, "init", "--quiet"); err != nil {
		return fmt.Errorf("git init: %w", err)
	}
	return nil
}

// Commit stages paths (everything when none are given) and commits them as
// author. It returns the short hash, or "" when there was nothing to commit.
func Commit(ctx context.Context, dir, message string, author Author, paths ...string) (string, error) {
	args := []string{"add", "-A"}
	if len(paths) > 0 {
		args = append(append(args, "--"), paths...)
	}
	if _, err := git(ctx, dir, args...); err != nil {
		return "", fmt.Errorf("git add: %w", err)
	}

	staged, err := git(ctx, dir, "diff", "--cached", "--name-only")
	if err != nil {
		return "", fmt.Errorf("git diff: %w", err)
	}
	if len(bytes.TrimSpace(staged)) == 0 {
		return "", nil
	}

	if _, err := git(ctx, dir,
		"-c", "user.name="+author.Name,
		"-c", "user.email="+author.Email,
		"commit", "--quiet", "-m", message, "--author", author.String(),
	); err != nil {
		return "", fmt.Errorf("git commit: %w", err)
	}

	out, err := git(ctx, dir, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func git(ctx context.Context, dir string, args ...string) ([]byte, error) {
	if !Available() {
		return nil, ErrNoGit
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", strings.TrimSpace(stderr.String()), err)
	}
	return out, nil
}
