package internal

import (
	"strings"
)

// FindRootDir returns the common top-level directory of the given archive paths.
//
// Given these three paths (archive paths always use `/` as separator):
//
//	test/a.txt
//	test/path/b.txt
//	test/another/path/c.txt
//
// The common root directory of those paths is `test`. The returned value is empty if the given paths have no common
// root directory.
func FindRootDir(paths []string) (rootDir string) {
	fn := NewRootDirFinder()

	var ok bool
	for _, p := range paths {
		rootDir, ok = fn(p)
		if !ok {
			break
		}
	}

	return
}

// NewRootDirFinder returns a function that can be passed the archive paths to compute the common root.
//
// NewRootDirFinder is a functional variant of FindRootDir. It returns the current root dir and a boolean indicating
// whether there is a common root so far. As soon as the returned boolean value is false, the search can stop since
// there is no common root and subsequent calls will keep returning `"", false`.
//
// A directory entry for the root itself ("test/") does not break the common root.
func NewRootDirFinder() func(string) (rootDir string, hasRoot bool) {
	noRoot, root := false, ""

	return func(p string) (string, bool) {
		if noRoot {
			return "", false
		}

		first, _, ok := strings.Cut(p, "/")
		if !ok || first == "" {
			// this is a file at top level so there is no root for sure.
			noRoot = true
			return "", false
		}

		switch root {
		case first:
		case "":
			root = first
		default:
			noRoot = true
			return "", false
		}

		return root, true
	}
}
