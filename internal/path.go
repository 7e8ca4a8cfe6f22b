package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// CleanPath normalises a local relative path into an archive path.
//
// Separators become "/", "./" components and duplicate slashes are removed, and leading and trailing slashes are
// stripped. Directories get a single trailing slash. An empty string is returned if nothing remains.
func CleanPath(name string, dir bool) string {
	p := strings.Trim(path.Clean("/"+filepath.ToSlash(name)), "/")
	if p == "" || !dir {
		return p
	}

	return p + "/"
}

// SafeJoin joins the archive path p onto the local directory dst.
//
// An error is returned if p is absolute or would escape dst via "..".
func SafeJoin(dst, p string) (string, error) {
	rel := filepath.FromSlash(strings.TrimSuffix(p, "/"))
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf(`"%s" escapes the destination directory`, p)
	}

	return filepath.Join(dst, rel), nil
}

// CheckNoSymlinks returns an error if any existing parent directory of the archive path p under dst is a symlink.
//
// Components are checked from dst downwards with os.Lstat, stopping at the first one that does not exist yet. p itself
// is not checked. Together with SafeJoin, this keeps writes to p inside dst even if earlier entries created symlinks.
func CheckNoSymlinks(dst, p string) error {
	dir := path.Dir(strings.TrimSuffix(p, "/"))
	if dir == "." || dir == "/" {
		return nil
	}

	cur := dst
	for _, c := range strings.Split(dir, "/") {
		cur = filepath.Join(cur, c)

		fi, err := os.Lstat(cur)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil
		case err != nil:
			return err
		case fi.Mode()&fs.ModeSymlink != 0:
			return fmt.Errorf(`"%s" traverses symlink "%s"`, p, cur)
		case !fi.IsDir():
			return nil
		}
	}

	return nil
}
