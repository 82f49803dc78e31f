// Package mail is the message store: it reads a Maildir inbox and writes
// outgoing mail and invitations into an outbox Maildir for delivery by an
// external agent.
package mail

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var maildirSubdirs = []string{"tmp", "new", "cur"}

// ErrNotFound is returned for unknown message ids.
var ErrNotFound = errors.New("message not found")

type maildirFile struct {
	id     string
	path   string
	unread bool
}

// ensureMaildir creates the tmp/new/cur layout under dir.
func ensureMaildir(dir string) error {
	for _, sub := range maildirSubdirs {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o700); err != nil {
			return err
		}
	}
	return nil
}

// scanMaildir lists the messages in new/ and cur/. A missing Maildir is empty.
func scanMaildir(dir string) ([]maildirFile, error) {
	var out []maildirFile
	for _, sub := range []string{"new", "cur"} {
		entries, err := os.ReadDir(filepath.Join(dir, sub))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			id, flags := splitName(e.Name())
			out = append(out, maildirFile{
				id:     id,
				path:   filepath.Join(dir, sub, e.Name()),
				unread: sub == "new" || !strings.Contains(flags, "S"),
			})
		}
	}
	return out, nil
}

// splitName separates the unique part of a Maildir filename from its
// ":2,FLAGS" info suffix.
func splitName(name string) (id, flags string) {
	if i := strings.Index(name, ":2,"); i >= 0 {
		return name[:i], name[i+3:]
	}
	return name, ""
}

// deliver writes data to tmp/ and moves it into new/, returning the id.
func deliver(dir string, data []byte) (string, error) {
	if err := ensureMaildir(dir); err != nil {
		return "", err
	}
	host, _ := os.Hostname()
	host = strings.NewReplacer("/", "_", ":", "_").Replace(host)
	id := fmt.Sprintf("%s.%s", uuid.NewString(), host)

	tmp := filepath.Join(dir, "tmp", id)
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, filepath.Join(dir, "new", id)); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return id, nil
}
