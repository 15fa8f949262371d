package client

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/B-Step62/mlflow-sub000/internal/chartgen"
)

const (
	stateDirName    = ".chartgen"
	lastRequestFile = "last_request"
)

// stateFilePath returns the path to the last-request state file under
// baseDir (normally the user's home directory), creating the state
// directory if it doesn't exist.
func stateFilePath(baseDir string) (string, error) {
	dir := filepath.Join(baseDir, stateDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create state directory: %w", err)
	}
	return filepath.Join(dir, lastRequestFile), nil
}

// stateLock returns the advisory lock guarding the state file. The
// lock file itself is never removed, so every process locks the same
// inode.
func stateLock(path string) *flock.Flock {
	return flock.New(path + ".lock")
}

// SaveLastRequest records the most recently submitted request id so a
// later `status` invocation can default to it. One writer at a time.
func SaveLastRequest(baseDir, requestID string) error {
	path, err := stateFilePath(baseDir)
	if err != nil {
		return err
	}

	lock := stateLock(path)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock state file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	if err := os.WriteFile(path, []byte(requestID+"\n"), 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// LoadLastRequest returns the recorded request id. A missing or empty
// state file returns "", nil; malformed content is an error.
func LoadLastRequest(baseDir string) (string, error) {
	path, err := stateFilePath(baseDir)
	if err != nil {
		return "", err
	}

	lock := stateLock(path)
	if err := lock.RLock(); err != nil {
		return "", fmt.Errorf("lock state file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read state file: %w", err)
	}

	requestID := strings.TrimSpace(string(data))
	if requestID == "" {
		return "", nil
	}

	if !chartgen.ValidRequestID(requestID) {
		return "", fmt.Errorf("invalid request id in state file: %q", requestID)
	}

	return requestID, nil
}

// ClearLastRequest removes the recorded request id. Clearing when
// nothing is recorded is not an error.
func ClearLastRequest(baseDir string) error {
	path, err := stateFilePath(baseDir)
	if err != nil {
		return err
	}

	lock := stateLock(path)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock state file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove state file: %w", err)
	}
	return nil
}
