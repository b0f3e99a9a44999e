package snapshot

import (
	"encoding/gob"
	"os"

	"github.com/cockroachdb/errors"
)

// Load reads a report written by Writer. A missing file yields an error
// matching fs.ErrNotExist.
func Load(path string) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, errors.Wrapf(err, "snapshot: open %s", path)
	}
	defer f.Close()

	var r Report
	if err := gob.NewDecoder(f).Decode(&r); err != nil {
		return Report{}, errors.Wrapf(err, "snapshot: decode %s", path)
	}
	return r, nil
}
