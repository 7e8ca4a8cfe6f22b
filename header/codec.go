package header

import (
	"fmt"
	"strconv"
	"time"
)

// Byte offsets of the USTAR fields.
const (
	offName     = 0
	offMode     = 100
	offUid      = 108
	offGid      = 116
	offSize     = 124
	offModTime  = 136
	offChecksum = 148
	offTypeflag = 156
	offLinkname = 157
	offMagic    = 257
	offVersion  = 263
	offUname    = 265
	offGname    = 297
	offDevmajor = 329
	offDevminor = 337
	offPrefix   = 345
	offPadding  = 500
)

const (
	checksumSize = 8
	magic        = "ustar\x00"
	version      = "00"
)

// Block is one 512-byte unit of an archive, holding either a header or data.
type Block [BlockSize]byte

func (b *Block) field(off, size int) []byte {
	return b[off : off+size]
}

// Checksum returns the unsigned sum of all bytes of b, counting the checksum field as eight ASCII spaces.
func Checksum(b *Block) int64 {
	var sum int64
	for i, c := range b {
		if i >= offChecksum && i < offChecksum+checksumSize {
			sum += ' '
			continue
		}

		sum += int64(c)
	}

	return sum
}

// Encode returns the wire encoding of h.
//
// Numeric fields are written as minimal octal ASCII, string fields are copied and NUL-padded, and the checksum is
// written last as "%06o\x00 ". Strings that do not fit their field fail with ErrFieldTooLong; numbers that are
// negative or too large for their field fail with ErrFieldOverflow.
func Encode(h *Header) (b Block, err error) {
	var mtime int64
	if !h.ModTime.IsZero() {
		mtime = h.ModTime.Unix()
	}

	for _, f := range []struct {
		name string
		off  int
		size int
		s    string
	}{
		{"name", offName, NameSize, h.Name},
		{"linkname", offLinkname, LinknameSize, h.Linkname},
		{"uname", offUname, UnameSize - 1, h.Uname},
		{"gname", offGname, GnameSize - 1, h.Gname},
		{"prefix", offPrefix, PrefixSize, h.Prefix},
	} {
		if len(f.s) > f.size {
			return b, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrFieldTooLong, f.name, len(f.s), f.size)
		}

		copy(b.field(f.off, f.size), f.s)
	}

	for _, f := range []struct {
		name string
		off  int
		size int
		v    int64
	}{
		{"mode", offMode, 8, h.Mode},
		{"uid", offUid, 8, int64(h.Uid)},
		{"gid", offGid, 8, int64(h.Gid)},
		{"size", offSize, 12, h.Size},
		{"mtime", offModTime, 12, mtime},
		{"devmajor", offDevmajor, 8, h.Devmajor},
		{"devminor", offDevminor, 8, h.Devminor},
	} {
		if err = formatOctal(b.field(f.off, f.size), f.v); err != nil {
			return b, fmt.Errorf("%w: %s", err, f.name)
		}
	}

	b[offTypeflag] = byte(h.Typeflag)
	copy(b.field(offMagic, len(magic)), magic)
	copy(b.field(offVersion, len(version)), version)

	copy(b.field(offChecksum, checksumSize), fmt.Sprintf("%06o\x00 ", Checksum(&b)))
	return b, nil
}

// Decode parses the wire encoding b.
//
// A checksum field starting with NUL yields ErrNullRecord. Otherwise the stored checksum is compared against Checksum
// and a mismatch yields ErrBadChecksum.
func Decode(b *Block) (*Header, error) {
	if b[offChecksum] == 0 {
		return nil, ErrNullRecord
	}

	if stored, computed := parseOctal(b.field(offChecksum, checksumSize)), Checksum(b); stored != computed {
		return nil, fmt.Errorf("%w: stored %06o, computed %06o", ErrBadChecksum, stored, computed)
	}

	h := &Header{
		Name:     cString(b.field(offName, NameSize)),
		Mode:     parseOctal(b.field(offMode, 8)),
		Uid:      int(parseOctal(b.field(offUid, 8))),
		Gid:      int(parseOctal(b.field(offGid, 8))),
		Size:     parseOctal(b.field(offSize, 12)),
		Typeflag: Typeflag(b[offTypeflag]),
		Linkname: cString(b.field(offLinkname, LinknameSize)),
		Uname:    cString(b.field(offUname, UnameSize)),
		Gname:    cString(b.field(offGname, GnameSize)),
		Devmajor: parseOctal(b.field(offDevmajor, 8)),
		Devminor: parseOctal(b.field(offDevminor, 8)),
		Prefix:   cString(b.field(offPrefix, PrefixSize)),
	}

	if mtime := parseOctal(b.field(offModTime, 12)); mtime != 0 {
		h.ModTime = time.Unix(mtime, 0)
	}

	return h, nil
}

// MarshalBinary implements encoding.BinaryMarshaler using Encode.
func (h *Header) MarshalBinary() ([]byte, error) {
	b, err := Encode(h)
	if err != nil {
		return nil, err
	}

	return b[:], nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler using Decode.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) != BlockSize {
		return fmt.Errorf("invalid header length: need %d bytes, got %d", BlockSize, len(data))
	}

	d, err := Decode((*Block)(data))
	if err != nil {
		return err
	}

	*h = *d
	return nil
}

// formatOctal writes v as octal ASCII into dst, which is left NUL-padded. The digits may fill dst entirely.
func formatOctal(dst []byte, v int64) error {
	if v < 0 {
		return fmt.Errorf("%w: negative value %d", ErrFieldOverflow, v)
	}

	s := strconv.FormatInt(v, 8)
	if len(s) > len(dst) {
		return fmt.Errorf("%w: %o needs %d digits, field has %d", ErrFieldOverflow, v, len(s), len(dst))
	}

	copy(dst, s)
	return nil
}

// parseOctal reads the leading octal number of b the way scanf's %o does: leading blanks are skipped and parsing
// stops at the first non-octal byte. A field without digits is 0.
func parseOctal(b []byte) (v int64) {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t') {
		i++
	}

	for ; i < len(b) && b[i] >= '0' && b[i] <= '7'; i++ {
		v = v<<3 | int64(b[i]-'0')
	}

	return v
}

// cString returns b up to its first NUL, or all of b if it has none.
func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}

	return string(b)
}
