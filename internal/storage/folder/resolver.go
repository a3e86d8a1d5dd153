package folder

import (
	"errors"
	"fmt"
	"os"

	"github.com/jgivc/quickdrop/internal/util"
	"github.com/spf13/afero"
)

// candidate returns the n-th name tried for base and ext. n == 0 is the desired name itself.
func candidate(base, ext string, n int) string {
	if n == 0 {
		return base + ext
	}

	return fmt.Sprintf("%s (%d)%s", base, n, ext)
}

// desiredName makes a client supplied name usable as an entry name.
func desiredName(desired string) string {
	name := util.SafeName(desired)
	if IsTemp(name) {
		name = "_" + name
	}

	return name
}

// Resolve returns the first free name in the sequence "name", "base (1).ext", "base (2).ext"...
// The answer may be stale by the time it is used, writers go through CreateExclusive.
func (s *folderStorage) Resolve(desired string) (string, error) {
	base, ext := util.SplitName(desiredName(desired))

	for n := 0; ; n++ {
		name := candidate(base, ext, n)

		_, err := s.fs.Stat(s.path(name))
		if errors.Is(err, os.ErrNotExist) {
			return name, nil
		}

		if err != nil {
			return "", fmt.Errorf("cannot check name %s: %w", name, err)
		}
	}
}

// CreateExclusive walks the same sequence as Resolve but claims the name
// with an exclusive create, so two writers never get the same name.
func (s *folderStorage) CreateExclusive(desired string) (afero.File, string, error) {
	base, ext := util.SplitName(desiredName(desired))

	for n := 0; ; n++ {
		name := candidate(base, ext, n)

		f, err := s.fs.OpenFile(s.path(name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
		if err == nil {
			return f, name, nil
		}

		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("cannot create %s: %w", name, err)
		}
	}
}
