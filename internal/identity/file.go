package identity

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// reloadDebounce coalesces the burst of events editors emit on save.
const reloadDebounce = 200 * time.Millisecond

type directoryFile struct {
	Employees []Identity `yaml:"employees"`
}

// FileDirectory serves identities from a YAML file and reloads it when
// the file changes.
//
//	employees:
//	  - sender_id: "27820000001"
//	    tenant_id: meditest
//	    role: Pharmacist
//	    name: Jake Zondagh
//	    email: jake@example.com
type FileDirectory struct {
	*Static
	path string
}

// LoadFile reads the directory file once.
func LoadFile(path string) (*FileDirectory, error) {
	d := &FileDirectory{Static: NewStatic(), path: path}
	if err := d.reload(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *FileDirectory) reload() error {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return fmt.Errorf("read directory file: %w", err)
	}
	var f directoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse directory file: %w", err)
	}
	ids := make([]Identity, 0, len(f.Employees))
	for i, e := range f.Employees {
		e.SenderID = strings.TrimSpace(e.SenderID)
		if e.SenderID == "" || e.TenantID == "" {
			return fmt.Errorf("directory entry %d: sender_id and tenant_id are required", i)
		}
		ids = append(ids, e)
	}
	d.Replace(ids)
	return nil
}

// Watch reloads the file on change until ctx is done. A file that fails
// to parse keeps the previous identities in place.
func (d *FileDirectory) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// Watch the parent dir: editors often replace the file via rename.
	if err := w.Add(filepath.Dir(d.path)); err != nil {
		return fmt.Errorf("watch %s: %w", d.path, err)
	}

	reload := func() {
		if err := d.reload(); err != nil {
			slog.Warn("directory reload failed, keeping previous entries", "path", d.path, "error", err)
			return
		}
		slog.Info("directory reloaded", "path", d.path, "employees", d.Len())
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(e.Name) != filepath.Clean(d.path) {
				continue
			}
			if e.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, reload)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("directory watcher error", "error", err)
		}
	}
}
