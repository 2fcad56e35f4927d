package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Requirement describes an external program arkimedes can call.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// Beside names another program. When it resolves, a Command binary in
	// the same directory is preferred over the PATH lookup, so tools that
	// ship together are taken from one installation.
	Beside string
}

// Status reports whether a requirement is available. Path is the resolved
// executable when Available; Detail explains why it is not.
type Status struct {
	Name        string
	Command     string
	Path        string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Check resolves each requirement.
func Check(reqs ...Requirement) []Status {
	out := make([]Status, len(reqs))
	for i, r := range reqs {
		out[i] = check(r)
	}
	return out
}

func check(r Requirement) Status {
	s := Status{
		Name:        r.Name,
		Command:     strings.TrimSpace(r.Command),
		Description: r.Description,
		Optional:    r.Optional,
	}
	if s.Command == "" {
		s.Detail = "command not configured"
		return s
	}
	if path, ok := sibling(r.Beside, s.Command); ok {
		s.Path, s.Available = path, true
		return s
	}
	path, err := exec.LookPath(s.Command)
	if err != nil {
		s.Detail = fmt.Sprintf("binary %q not found", s.Command)
		return s
	}
	s.Path, s.Available = path, true
	return s
}

func sibling(anchor, command string) (string, bool) {
	if anchor == "" || strings.ContainsRune(command, filepath.Separator) {
		return "", false
	}
	resolved, err := exec.LookPath(anchor)
	if err != nil {
		return "", false
	}
	candidate := filepath.Join(filepath.Dir(resolved), command)
	if path, err := exec.LookPath(candidate); err == nil {
		return path, true
	}
	if info, err := os.Stat(candidate + ".exe"); err == nil && !info.IsDir() {
		return candidate + ".exe", true
	}
	return "", false
}

// MissingRequired returns the unavailable statuses that are not optional.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}

// Poppler lists the text extraction tools behind conservation report
// ingestion. Both are optional: only the report source needs them.
func Poppler(pdftotext string) []Requirement {
	return []Requirement{
		{
			Name:        "pdftotext",
			Command:     pdftotext,
			Description: "Extracts text from conservation reports",
			Optional:    true,
		},
		{
			Name:        "pdfinfo",
			Command:     "pdfinfo",
			Description: "Reads title, author and date properties of conservation reports",
			Optional:    true,
			Beside:      pdftotext,
		},
	}
}
