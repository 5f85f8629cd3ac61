package tbl2asn

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Workspace is a private scratch directory for one submission attempt
type Workspace struct {
	ID  string
	Dir string

	logger *logrus.Logger
	once   sync.Once
}

// AcquireWorkspace creates a uniquely named directory under root, or under
// the OS temp directory when root is empty.
func AcquireWorkspace(root string, logger *logrus.Logger) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace root %s: %w", root, err)
	}

	id := uuid.NewString()
	dir, err := os.MkdirTemp(root, "submission-"+id+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"workspace": id,
		"dir":       dir,
	}).Debug("Acquired workspace")

	return &Workspace{ID: id, Dir: dir, logger: logger}, nil
}

// Path joins name onto the workspace directory
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Release removes the workspace and everything in it. Safe to call more
// than once; removal failures are logged, never returned.
func (w *Workspace) Release() {
	w.once.Do(func() {
		if err := os.RemoveAll(w.Dir); err != nil {
			w.logger.WithError(err).WithField("workspace", w.ID).Warn("Failed to remove workspace")
			return
		}
		w.logger.WithField("workspace", w.ID).Debug("Released workspace")
	})
}
