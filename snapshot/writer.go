package snapshot

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

const defaultName = "report.bin"

type Writer struct {
	Dir  string
	Name string // defaults to report.bin
}

// Path is where Write puts the report.
func (w *Writer) Path() string {
	name := w.Name
	if name == "" {
		name = defaultName
	}
	return filepath.Join(w.Dir, name)
}

// Write replaces the previous report atomically.
func (w *Writer) Write(r Report) error {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return errors.Wrapf(err, "snapshot: mkdir %s", w.Dir)
	}

	tmp, err := os.CreateTemp(w.Dir, filepath.Base(w.Path())+".*")
	if err != nil {
		return errors.Wrap(err, "snapshot: create temp")
	}
	defer os.Remove(tmp.Name())

	r.Sort()
	if err := gob.NewEncoder(tmp).Encode(&r); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "snapshot: encode")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "snapshot: sync")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "snapshot: close")
	}
	return errors.Wrap(os.Rename(tmp.Name(), w.Path()), "snapshot: rename")
}
