package sbf

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"
)

// DefaultFileFactory is a BitmapFactory that places each layer in its own
// file under Dir, named with a random UUID so concurrent writers (or
// repeated runs against the same directory) never collide.
type DefaultFileFactory struct {
	Dir string
}

// Next returns the path for a new layer file. It atomically stages an
// empty placeholder at that path before returning, so a reader scanning
// Dir never observes a half-written filename; bitmap.New's zero-extend
// step is what actually grows the file to size.
func (f DefaultFileFactory) Next() (string, error) {
	name := fmt.Sprintf("layer-%s.bm", uuid.NewString())
	path := filepath.Join(f.Dir, name)

	if err := atomic.WriteFile(path, strings.NewReader("")); err != nil {
		return "", fmt.Errorf("sbf: stage layer file %s: %w", path, err)
	}
	return path, nil
}
