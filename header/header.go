// Package header converts between the in-memory Header and its 512-byte USTAR wire encoding.
//
// See https://pubs.opengroup.org/onlinepubs/9699919799/utilities/pax.html#tag_20_92_13_06 for the layout.
package header

import (
	"errors"
	"fmt"
	"io/fs"
	"time"
)

// BlockSize is the size of a header block and the alignment unit of every data region.
const BlockSize = 512

// Field widths of the USTAR header.
const (
	NameSize     = 100
	LinknameSize = 100
	PrefixSize   = 155

	// UnameSize and GnameSize include the mandatory NUL terminator, so names are at most 31 bytes.
	UnameSize = 32
	GnameSize = 32
)

var (
	// ErrNullRecord is returned by Decode if the checksum field starts with a NUL byte.
	//
	// This is the first block of the end-of-archive marker, or unused space.
	ErrNullRecord = errors.New("record is null")

	// ErrBadChecksum is returned by Decode if the stored checksum does not match the header bytes.
	ErrBadChecksum = errors.New("bad header checksum")

	// ErrFieldTooLong is returned by Encode and SplitPath if a string does not fit its field.
	ErrFieldTooLong = errors.New("field too long")

	// ErrFieldOverflow is returned by Encode if a number cannot be written as octal in its field.
	ErrFieldOverflow = errors.New("numeric field overflow")
)

// Typeflag is the single-byte entry type.
type Typeflag byte

const (
	TypeReg     Typeflag = '0'
	TypeRegA    Typeflag = '\x00' // legacy alias of TypeReg.
	TypeLink    Typeflag = '1'
	TypeSymlink Typeflag = '2'
	TypeChar    Typeflag = '3'
	TypeBlock   Typeflag = '4'
	TypeDir     Typeflag = '5'
	TypeFifo    Typeflag = '6'
	TypeCont    Typeflag = '7'
)

// IsRegular returns true for TypeReg, TypeRegA, and TypeCont.
func (t Typeflag) IsRegular() bool {
	return t == TypeReg || t == TypeRegA || t == TypeCont
}

func (t Typeflag) String() string {
	switch t {
	case TypeReg, TypeRegA:
		return "file"
	case TypeLink:
		return "hardlink"
	case TypeSymlink:
		return "symlink"
	case TypeChar:
		return "chardev"
	case TypeBlock:
		return "blockdev"
	case TypeDir:
		return "dir"
	case TypeFifo:
		return "fifo"
	case TypeCont:
		return "contiguous"
	default:
		return "unknown"
	}
}

// Header is the decoded form of a USTAR header.
//
// Name and Prefix together make up the entry's path; use Path and SetPath instead of assigning them directly unless
// the split is already known.
type Header struct {
	Name     string    // trailing path component, or the whole path if it fits in NameSize.
	Mode     int64     // permission bits.
	Uid      int       // user id of owner.
	Gid      int       // group id of owner.
	Size     int64     // length of the data region in bytes; 0 for directories.
	ModTime  time.Time // modification time, with one-second precision.
	Typeflag Typeflag  // entry type.
	Linkname string    // target of a link entry.
	Uname    string    // user name of owner.
	Gname    string    // group name of owner.
	Devmajor int64     // major number of a device entry.
	Devminor int64     // minor number of a device entry.
	Prefix   string    // leading path components when the path exceeds NameSize.
}

// Path returns the full path reconstructed from Prefix and Name.
func (h *Header) Path() string {
	if h.Prefix == "" {
		return h.Name
	}

	return h.Prefix + "/" + h.Name
}

// SetPath splits path into Prefix and Name.
//
// See SplitPath for the rules; Header is left unchanged on error.
func (h *Header) SetPath(path string) error {
	prefix, name, err := SplitPath(path)
	if err != nil {
		return err
	}

	h.Prefix, h.Name = prefix, name
	return nil
}

// FileMode returns the permission bits combined with the fs.FileMode type bits of Typeflag.
func (h *Header) FileMode() fs.FileMode {
	mode := fs.FileMode(h.Mode).Perm()

	switch h.Typeflag {
	case TypeDir:
		mode |= fs.ModeDir
	case TypeSymlink:
		mode |= fs.ModeSymlink
	case TypeChar:
		mode |= fs.ModeDevice | fs.ModeCharDevice
	case TypeBlock:
		mode |= fs.ModeDevice
	case TypeFifo:
		mode |= fs.ModeNamedPipe
	}

	return mode
}

// FileInfoHeader creates a partially-populated Header from fi.
//
// The path is split with SetPath. If fi describes a symlink, link is recorded as Linkname. Ownership fields are left
// for the caller to fill.
func FileInfoHeader(fi fs.FileInfo, path, link string) (*Header, error) {
	h := &Header{
		Mode:    int64(fi.Mode().Perm()),
		ModTime: fi.ModTime(),
	}

	switch m := fi.Mode(); {
	case m.IsRegular():
		h.Typeflag = TypeReg
		h.Size = fi.Size()
	case m.IsDir():
		h.Typeflag = TypeDir
	case m&fs.ModeSymlink != 0:
		h.Typeflag = TypeSymlink
		h.Linkname = link
	case m&fs.ModeCharDevice != 0:
		h.Typeflag = TypeChar
	case m&fs.ModeDevice != 0:
		h.Typeflag = TypeBlock
	case m&fs.ModeNamedPipe != 0:
		h.Typeflag = TypeFifo
	default:
		return nil, fmt.Errorf(`unsupported file mode %v for "%s"`, m, path)
	}

	if err := h.SetPath(path); err != nil {
		return nil, err
	}

	return h, nil
}
