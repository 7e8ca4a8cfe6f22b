//go:build unix

package pack

import (
	"io/fs"
	"syscall"

	"github.com/nguyengg/ustar/header"
)

// owner copies the numeric owner of fi into h.
func owner(h *header.Header, fi fs.FileInfo) {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		h.Uid = int(st.Uid)
		h.Gid = int(st.Gid)
	}
}
