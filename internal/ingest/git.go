package ingest

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// Revision identifies the commit a sodaCat checkout is at.
type Revision struct {
	SHA     string
	Date    string
	Subject string
	// Dirty is set when the working tree has uncommitted changes.
	Dirty bool
}

// Short returns the abbreviated commit hash, with a +dirty suffix when needed.
func (r Revision) Short() string {
	sha := r.SHA
	if len(sha) > 12 {
		sha = sha[:12]
	}
	if r.Dirty {
		sha += "+dirty"
	}
	return sha
}

// SourceRevision reads the HEAD commit of the git checkout at repoPath.
func SourceRevision(repoPath string) (Revision, error) {
	out, err := git(repoPath, "log", "-1", "--pretty=format:%H%n%aI%n%s")
	if err != nil {
		return Revision{}, err
	}
	lines := strings.SplitN(strings.TrimSpace(out), "\n", 3)
	if len(lines) < 2 {
		return Revision{}, fmt.Errorf("unexpected git log output %q", out)
	}
	rev := Revision{SHA: lines[0], Date: lines[1]}
	if len(lines) == 3 {
		rev.Subject = lines[2]
	}

	status, err := git(repoPath, "status", "--porcelain")
	if err != nil {
		return Revision{}, err
	}
	rev.Dirty = strings.TrimSpace(status) != ""
	return rev, nil
}

func git(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s failed: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return out.String(), nil
}
