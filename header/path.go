package header

import (
	"fmt"
	"strings"
)

// SplitPath splits path into the USTAR prefix and name fields.
//
// A path of at most NameSize bytes is returned whole as name with an empty prefix. A longer path is split at the last
// "/" that keeps prefix within PrefixSize bytes; everything after that slash becomes name. For most paths this is the
// last slash, but a long trailing directory may move into name when the prefix would otherwise overflow. A single
// trailing slash marking a directory stays with name.
// ErrFieldTooLong is returned if no slash yields a non-empty name of at most NameSize bytes.
//
// The path is expected to be clean already (no "./", duplicate, or leading slashes).
func SplitPath(path string) (prefix, name string, err error) {
	if len(path) <= NameSize {
		return "", path, nil
	}

	n := min(len(path), PrefixSize+1)
	if n == len(path) && path[n-1] == '/' {
		n--
	}

	i := strings.LastIndexByte(path[:n], '/')
	if i == -1 {
		return "", "", fmt.Errorf("%w: path is %d bytes without a directory within the first %d bytes", ErrFieldTooLong, len(path), PrefixSize+1)
	}

	switch prefix, name = path[:i], path[i+1:]; {
	case name == "":
		return "", "", fmt.Errorf("%w: path ends with an empty component", ErrFieldTooLong)
	case len(name) > NameSize:
		return "", "", fmt.Errorf("%w: name is %d bytes after splitting, limit is %d", ErrFieldTooLong, len(name), NameSize)
	}

	return prefix, name, nil
}
