package ustar

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mholt/archives"
	"github.com/nguyengg/ustar/header"
	"github.com/nguyengg/ustar/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mtime = time.Unix(1_700_000_000, 0)

func fileHeader(path string, size int) *header.Header {
	h := &header.Header{
		Mode:     0644,
		Uid:      1000,
		Gid:      1000,
		Size:     int64(size),
		ModTime:  mtime,
		Typeflag: header.TypeReg,
		Uname:    "ustar",
		Gname:    "ustar",
	}
	if err := h.SetPath(path); err != nil {
		panic(err)
	}

	return h
}

func dirHeader(path string) *header.Header {
	return &header.Header{Name: path, Mode: 0755, ModTime: mtime, Typeflag: header.TypeDir}
}

// writeEntries writes each (path, content) pair as a regular file; paths ending in "/" become directories.
func writeEntries(t *testing.T, a *Archive, entries ...string) {
	t.Helper()

	for i := 0; i < len(entries); i += 2 {
		path, content := entries[i], entries[i+1]
		if strings.HasSuffix(path, "/") {
			require.NoError(t, a.WriteHeader(dirHeader(path)))
			continue
		}

		require.NoError(t, a.WriteHeader(fileHeader(path, len(content))))
		n, err := a.WriteData([]byte(content))
		require.NoError(t, err)
		require.Equal(t, len(content), n)
	}
}

func newMemory(t *testing.T, mode Mode, mem *stream.Memory) *Archive {
	t.Helper()

	a, err := OpenStream(stream.New(mem), mode)
	require.NoErrorf(t, err, "OpenStream(%v) error = %v", mode, err)
	return a
}

func TestArchive_HelloWorld(t *testing.T) {
	name := filepath.Join(t.TempDir(), "hello.tar")

	a, err := Open(name, ModeWrite)
	require.NoError(t, err)
	require.NoError(t, a.WriteHeader(&header.Header{Name: "hello.txt", Size: 5, Typeflag: header.TypeReg}))
	n, err := a.WriteData([]byte("world"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.NoError(t, a.Close())

	fi, err := os.Stat(name)
	require.NoError(t, err)
	assert.Equal(t, int64(512+512+1024), fi.Size())

	a, err = Open(name, ModeRead)
	require.NoError(t, err)
	defer a.Close()

	h, err := a.ReadHeader()
	require.NoError(t, err)
	assert.Equal(t, "hello.txt", h.Name)
	assert.Equal(t, int64(5), h.Size)

	p := make([]byte, 5)
	n, err = a.ReadData(p)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "world", string(p))

	// the cursor is back at the header after the data is consumed.
	h, err = a.ReadHeader()
	require.NoError(t, err)
	assert.Equal(t, "hello.txt", h.Name)

	require.NoError(t, a.Next())
	_, err = a.ReadHeader()
	assert.ErrorIs(t, err, ErrNullRecord)
}

func TestArchive_ReadHeaderIsIdempotent(t *testing.T) {
	mem := &stream.Memory{}
	a := newMemory(t, ModeWrite, mem)
	writeEntries(t, a, "a.txt", "aaa", "b.txt", "bbb")
	require.NoError(t, a.Close())

	a = newMemory(t, ModeRead, stream.NewMemory(mem.Bytes()))
	defer a.Close()

	for range 3 {
		h, err := a.ReadHeader()
		require.NoError(t, err)
		assert.Equal(t, "a.txt", h.Name)
	}
}

func TestArchive_BlockAlignment(t *testing.T) {
	for _, size := range []int{0, 1, 511, 512, 513, 1023, 1024, 5000} {
		t.Run(fmt.Sprintf("size=%d", size), func(t *testing.T) {
			mem := &stream.Memory{}
			a := newMemory(t, ModeWrite, mem)

			require.NoError(t, a.WriteHeader(fileHeader("f", size)))
			_, err := a.WriteData(bytes.Repeat([]byte{'x'}, size))
			require.NoError(t, err)

			off, err := a.s.Tell()
			require.NoError(t, err)
			assert.Equal(t, int64(0), off%header.BlockSize)
			assert.Equal(t, int64(header.BlockSize)+roundUp(int64(size)), off)

			require.NoError(t, a.Close())
			assert.Equal(t, 0, mem.Len()%header.BlockSize)
		})
	}
}

func TestArchive_ChunkedWriteAndRead(t *testing.T) {
	content := make([]byte, 3000)
	for i := range content {
		content[i] = byte('a' + i%26)
	}

	mem := &stream.Memory{}
	a := newMemory(t, ModeWrite, mem)
	require.NoError(t, a.WriteHeader(fileHeader("chunked.bin", len(content))))

	// uneven chunks must not introduce padding in the middle of the data.
	for rest := content; len(rest) > 0; {
		n, err := a.WriteData(rest[:min(len(rest), 700)])
		require.NoError(t, err)
		rest = rest[n:]
	}
	writeEntries(t, a, "after.txt", "after")
	require.NoError(t, a.Close())

	a = newMemory(t, ModeRead, stream.NewMemory(mem.Bytes()))
	defer a.Close()

	got := &bytes.Buffer{}
	p := make([]byte, 333)
	for {
		n, err := a.ReadData(p)
		require.NoError(t, err)
		got.Write(p[:n])
		if a.bytesLeft == 0 {
			break
		}
	}
	assert.Equal(t, content, got.Bytes())

	require.NoError(t, a.Next())
	h, err := a.ReadHeader()
	require.NoError(t, err)
	assert.Equal(t, "after.txt", h.Name)
}

func TestArchive_WriteDataClampsToSize(t *testing.T) {
	mem := &stream.Memory{}
	a := newMemory(t, ModeWrite, mem)

	require.NoError(t, a.WriteHeader(fileHeader("short.txt", 3)))
	n, err := a.WriteData([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = a.WriteData([]byte("more"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, a.WriteHeader(fileHeader("long.txt", 3)))
	n, err = a.EntryWriter().Write([]byte("abcdef"))
	assert.ErrorIs(t, err, ErrWriteTooLong)
	assert.Equal(t, 3, n)

	require.NoError(t, a.Close())
}

func TestArchive_Find(t *testing.T) {
	mem := &stream.Memory{}
	a := newMemory(t, ModeWrite, mem)
	writeEntries(t, a, "a.txt", "hello a", "dir/", "", "dir/b.txt", "hello b")
	require.NoError(t, a.Close())

	a = newMemory(t, ModeRead, stream.NewMemory(mem.Bytes()))
	defer a.Close()

	h, err := a.Find("dir/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "dir/b.txt", h.Name)
	assert.Equal(t, int64(7), h.Size)

	data, err := io.ReadAll(a.EntryReader())
	require.NoError(t, err)
	assert.Equal(t, "hello b", string(data))

	h, err = a.Find("dir/")
	require.NoError(t, err)
	assert.Equal(t, header.TypeDir, h.Typeflag)

	_, err = a.Find("missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	// finding again after a miss works because Find always starts over.
	h, err = a.Find("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", h.Name)

	_, err = a.Find(strings.Repeat("x", 300))
	assert.ErrorIs(t, err, ErrNullRecord)
}

func TestArchive_FindWithoutEndMarker(t *testing.T) {
	mem := &stream.Memory{}
	a := newMemory(t, ModeWrite, mem)
	writeEntries(t, a, "a.txt", "a")
	require.NoError(t, a.Close())

	// strip the end-of-archive marker.
	unfinalized := mem.Bytes()[:mem.Len()-closingRecordSize]

	a = newMemory(t, ModeRead, stream.NewMemory(unfinalized))
	defer a.Close()

	_, err := a.Find("b.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchive_LongPath(t *testing.T) {
	path := strings.Repeat("d", 100) + "/" + strings.Repeat("e", 58) + "/" + strings.Repeat("f", 40)
	require.Len(t, path, 200)

	mem := &stream.Memory{}
	a := newMemory(t, ModeWrite, mem)
	writeEntries(t, a, "short.txt", "s", path, "long")
	require.NoError(t, a.Close())

	a = newMemory(t, ModeRead, stream.NewMemory(mem.Bytes()))
	defer a.Close()

	h, err := a.Find(path)
	require.NoError(t, err)
	assert.Equal(t, path, h.Path())
	assert.NotEmpty(t, h.Prefix)
	assert.LessOrEqual(t, len(h.Name), header.NameSize)

	data, err := io.ReadAll(a.EntryReader())
	require.NoError(t, err)
	assert.Equal(t, "long", string(data))
}

func TestArchive_Append(t *testing.T) {
	name := filepath.Join(t.TempDir(), "append.tar")

	a, err := Open(name, ModeWrite)
	require.NoError(t, err)
	writeEntries(t, a, "first.txt", "one", "second.txt", "two")
	require.NoError(t, a.Close())

	a, err = Open(name, ModeAppend)
	require.NoError(t, err)
	writeEntries(t, a, "third.txt", "three")
	require.NoError(t, a.Close())

	data, err := os.ReadFile(name)
	require.NoError(t, err)

	// exactly one end marker: 3 entries of 1 header + 1 data block each, then 2 zero blocks.
	assert.Len(t, data, 3*2*header.BlockSize+closingRecordSize)
	assert.Equal(t, zeroBlocks[:], data[len(data)-closingRecordSize:])

	a, err = Open(name, ModeRead)
	require.NoError(t, err)
	defer a.Close()

	var names []string
	for h, err := range a.Entries() {
		require.NoError(t, err)
		names = append(names, h.Name)
	}
	assert.Equal(t, []string{"first.txt", "second.txt", "third.txt"}, names)
}

func TestArchive_AppendWithoutWritesLeavesArchiveAlone(t *testing.T) {
	mem := &stream.Memory{}
	a := newMemory(t, ModeWrite, mem)
	writeEntries(t, a, "a.txt", "a")
	require.NoError(t, a.Close())
	before := bytes.Clone(mem.Bytes())

	a = newMemory(t, ModeAppend, mem)

	// reading in append mode starts from the beginning.
	h, err := a.ReadHeader()
	require.NoError(t, err)
	assert.Equal(t, "a.txt", h.Name)

	require.NoError(t, a.Close())
	assert.Equal(t, before, mem.Bytes())
}

func TestArchive_AppendAfterReading(t *testing.T) {
	mem := &stream.Memory{}
	a := newMemory(t, ModeWrite, mem)
	writeEntries(t, a, "a.txt", "a")
	require.NoError(t, a.Close())

	a = newMemory(t, ModeAppend, mem)
	_, err := a.Find("a.txt")
	require.NoError(t, err)
	writeEntries(t, a, "b.txt", "b")

	// reading between writes must not move where the next header goes.
	_, err = a.Find("a.txt")
	require.NoError(t, err)
	writeEntries(t, a, "c.txt", "c")
	require.NoError(t, a.Close())

	a = newMemory(t, ModeRead, stream.NewMemory(mem.Bytes()))
	defer a.Close()

	var names []string
	for h, err := range a.Entries() {
		require.NoError(t, err)
		names = append(names, h.Name)
	}
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, names)
	assert.Equal(t, 3*2*header.BlockSize+closingRecordSize, mem.Len())
}

func TestArchive_AppendToNonArchive(t *testing.T) {
	tests := []struct {
		name    string
		initial []byte
	}{
		{name: "empty", initial: nil},
		{name: "short garbage", initial: []byte("not a tar")},
		{name: "long garbage", initial: bytes.Repeat([]byte("garbage!"), 1000)},
		{name: "only end marker", initial: make([]byte, closingRecordSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := stream.NewMemory(bytes.Clone(tt.initial))
			a := newMemory(t, ModeAppend, mem)
			writeEntries(t, a, "new.txt", "new")
			require.NoError(t, a.Close())

			assert.Equal(t, 2*header.BlockSize+closingRecordSize, mem.Len())

			a = newMemory(t, ModeRead, stream.NewMemory(mem.Bytes()))
			defer a.Close()

			h, err := a.ReadHeader()
			require.NoError(t, err)
			assert.Equal(t, "new.txt", h.Name)
		})
	}
}

func TestArchive_AppendToMissingFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "new.tar")

	a, err := Open(name, ModeAppend)
	require.NoError(t, err)
	writeEntries(t, a, "x.txt", "x")
	require.NoError(t, a.Close())

	a, err = Open(name, ModeRead)
	require.NoError(t, err)
	defer a.Close()

	h, err := a.Find("x.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(1), h.Size)
}

func TestArchive_AppendToUnfinalized(t *testing.T) {
	mem := &stream.Memory{}
	a := newMemory(t, ModeWrite, mem)
	writeEntries(t, a, "a.txt", "a", "b.txt", "b")
	require.NoError(t, a.Close())

	unfinalized := bytes.Clone(mem.Bytes()[:mem.Len()-closingRecordSize])
	mem = stream.NewMemory(unfinalized)

	a = newMemory(t, ModeAppend, mem)
	writeEntries(t, a, "c.txt", "c")
	require.NoError(t, a.Close())

	assert.Equal(t, 3*2*header.BlockSize+closingRecordSize, mem.Len())
}

func TestArchive_AppendToPaddedRecord(t *testing.T) {
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "first.txt", Mode: 0644, Size: 3, Typeflag: tar.TypeReg, Format: tar.FormatUSTAR}))
	_, err := tw.Write([]byte("one"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	// pad to a 10240-byte record the way GNU tar does by default.
	const recordSize = 20 * header.BlockSize
	padded := make([]byte, recordSize)
	copy(padded, buf.Bytes())

	mem := stream.NewMemory(padded)
	a := newMemory(t, ModeAppend, mem)
	writeEntries(t, a, "second.txt", "two")
	require.NoError(t, a.Close())

	// the new entry replaces the marker right after first.txt, and the trailing padding is cut.
	assert.Equal(t, 2*2*header.BlockSize+closingRecordSize, mem.Len())

	a = newMemory(t, ModeRead, stream.NewMemory(mem.Bytes()))
	defer a.Close()

	var names []string
	for h, err := range a.Entries() {
		require.NoError(t, err)
		names = append(names, h.Name)
	}
	assert.Equal(t, []string{"first.txt", "second.txt"}, names)
}

func TestOpen_AppliesOptionsOnce(t *testing.T) {
	var calls int
	a, err := Open(filepath.Join(t.TempDir(), "a.tar"), ModeWrite, func(opts *Options) {
		calls++
		opts.Perm = 0600
	})
	require.NoError(t, err)
	require.NoError(t, a.Close())
	assert.Equal(t, 1, calls)
}

func TestArchive_OpenReadErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "empty", data: nil, want: ErrReadFail},
		{name: "only end marker", data: make([]byte, closingRecordSize), want: ErrNullRecord},
		{name: "garbage", data: bytes.Repeat([]byte("garbage!"), 128), want: ErrBadChecksum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OpenStream(stream.New(stream.NewMemory(tt.data)), ModeRead)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Open(filepath.Join(t.TempDir(), "missing.tar"), ModeRead)
	assert.ErrorIs(t, err, ErrOpenFail)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestArchive_InvalidUsage(t *testing.T) {
	_, err := OpenStream(nil, ModeRead)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = OpenStream(stream.New(&stream.Memory{}), Mode(42))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	mem := &stream.Memory{}
	a := newMemory(t, ModeWrite, mem)
	writeEntries(t, a, "a.txt", "a")
	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Close(), ErrClosed)
	assert.ErrorIs(t, a.WriteHeader(fileHeader("b", 0)), ErrClosed)

	rmem := stream.NewMemory(bytes.Clone(mem.Bytes()))
	a = newMemory(t, ModeRead, rmem)
	assert.ErrorIs(t, a.WriteHeader(fileHeader("b", 0)), ErrInvalidArgument)
	_, err = a.WriteData([]byte("x"))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	require.NoError(t, a.Close())

	// read-mode close never writes.
	assert.Equal(t, mem.Bytes(), rmem.Bytes())

	var nilArchive *Archive
	_, err = nilArchive.ReadHeader()
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestArchive_IncompleteEntry(t *testing.T) {
	mem := &stream.Memory{}
	a := newMemory(t, ModeWrite, mem)

	require.NoError(t, a.WriteHeader(fileHeader("a.txt", 10)))
	_, err := a.WriteData([]byte("12345"))
	require.NoError(t, err)

	assert.ErrorIs(t, a.WriteHeader(fileHeader("b.txt", 1)), ErrIncompleteEntry)
	_, err = a.Find("a.txt")
	assert.ErrorIs(t, err, ErrIncompleteEntry)

	assert.ErrorIs(t, a.Close(), ErrIncompleteEntry)
}

func TestArchive_WriteHeaderRejectsUnencodable(t *testing.T) {
	a := newMemory(t, ModeWrite, &stream.Memory{})
	defer a.Close()

	err := a.WriteHeader(&header.Header{Name: strings.Repeat("n", header.NameSize+1)})
	assert.ErrorIs(t, err, header.ErrFieldTooLong)

	err = a.WriteHeader(&header.Header{Name: "neg", Size: -1})
	assert.ErrorIs(t, err, header.ErrFieldOverflow)

	assert.ErrorIs(t, a.WriteHeader(nil), ErrInvalidArgument)
}

func TestArchive_WriteEmptyArchive(t *testing.T) {
	mem := &stream.Memory{}
	a := newMemory(t, ModeWrite, mem)
	require.NoError(t, a.Close())
	assert.Equal(t, 0, mem.Len())
}

func TestArchive_WriteTruncatesExisting(t *testing.T) {
	mem := stream.NewMemory(bytes.Repeat([]byte{0xff}, 10_000))
	a := newMemory(t, ModeWrite, mem)
	writeEntries(t, a, "a.txt", "a")
	require.NoError(t, a.Close())
	assert.Equal(t, 2*header.BlockSize+closingRecordSize, mem.Len())
}

func TestArchive_NextSkipsPartiallyReadEntry(t *testing.T) {
	mem := &stream.Memory{}
	a := newMemory(t, ModeWrite, mem)
	writeEntries(t, a, "big.bin", strings.Repeat("b", 2000), "small.txt", "s")
	require.NoError(t, a.Close())

	a = newMemory(t, ModeRead, stream.NewMemory(mem.Bytes()))
	defer a.Close()

	p := make([]byte, 100)
	n, err := a.ReadData(p)
	require.NoError(t, err)
	assert.Equal(t, 100, n)

	require.NoError(t, a.Next())
	h, err := a.ReadHeader()
	require.NoError(t, err)
	assert.Equal(t, "small.txt", h.Name)
}

func TestArchive_ReadDataOfDirectory(t *testing.T) {
	mem := &stream.Memory{}
	a := newMemory(t, ModeWrite, mem)
	writeEntries(t, a, "dir/", "")
	require.NoError(t, a.Close())

	a = newMemory(t, ModeRead, stream.NewMemory(mem.Bytes()))
	defer a.Close()

	n, err := a.ReadData(make([]byte, 10))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	data, err := io.ReadAll(a.EntryReader())
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestArchive_EntriesStopsEarly(t *testing.T) {
	mem := &stream.Memory{}
	a := newMemory(t, ModeWrite, mem)
	writeEntries(t, a, "1", "1", "2", "2", "3", "3")
	require.NoError(t, a.Close())

	a = newMemory(t, ModeRead, stream.NewMemory(mem.Bytes()))
	defer a.Close()

	var contents []string
	for _, err := range a.Entries() {
		require.NoError(t, err)

		data, err := io.ReadAll(a.EntryReader())
		require.NoError(t, err)
		contents = append(contents, string(data))

		if len(contents) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"1", "2"}, contents)
}

// failingStream fails the named operation once the given number of calls to it have succeeded.
type failingStream struct {
	stream.Stream
	op    string
	after int
	calls int
}

var errInjected = errors.New("injected")

func (s *failingStream) fail(op string) error {
	if op != s.op {
		return nil
	}
	if s.calls++; s.calls > s.after {
		return errInjected
	}

	return nil
}

func (s *failingStream) Seek(offset int64, origin stream.Origin) error {
	if err := s.fail("seek"); err != nil {
		return err
	}

	return s.Stream.Seek(offset, origin)
}

func (s *failingStream) WriteExact(p []byte) error {
	if err := s.fail("write"); err != nil {
		return err
	}

	return s.Stream.WriteExact(p)
}

func (s *failingStream) Close() error {
	if err := s.fail("close"); err != nil {
		return err
	}

	return s.Stream.Close()
}

func TestArchive_IOErrors(t *testing.T) {
	t.Run("write", func(t *testing.T) {
		a, err := OpenStream(&failingStream{Stream: stream.New(&stream.Memory{}), op: "write", after: 1}, ModeWrite)
		require.NoError(t, err)

		require.NoError(t, a.WriteHeader(fileHeader("a.txt", 1)))
		_, err = a.WriteData([]byte("a"))
		assert.ErrorIs(t, err, ErrWriteFail)
		assert.ErrorIs(t, err, errInjected)

		var ioErr *IOError
		require.ErrorAs(t, err, &ioErr)
		assert.Equal(t, "write", ioErr.Op)
		assert.Equal(t, int64(header.BlockSize), ioErr.Offset)
	})

	t.Run("seek", func(t *testing.T) {
		mem := &stream.Memory{}
		a := newMemory(t, ModeWrite, mem)
		writeEntries(t, a, "a.txt", "a")
		require.NoError(t, a.Close())

		_, err := OpenStream(&failingStream{Stream: stream.New(stream.NewMemory(mem.Bytes())), op: "seek"}, ModeRead)
		assert.ErrorIs(t, err, ErrSeekFail)
	})

	t.Run("close", func(t *testing.T) {
		a, err := OpenStream(&failingStream{Stream: stream.New(&stream.Memory{}), op: "close"}, ModeWrite)
		require.NoError(t, err)
		assert.ErrorIs(t, a.Close(), ErrCloseFail)
	})
}

func TestParseMode(t *testing.T) {
	for s, want := range map[string]Mode{"r": ModeRead, "read": ModeRead, "w": ModeWrite, "a": ModeAppend, "append": ModeAppend} {
		got, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseMode("rb+")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, "append", ModeAppend.String())
}

func TestArchive_ReadableByArchiveTar(t *testing.T) {
	mem := &stream.Memory{}
	a := newMemory(t, ModeWrite, mem)
	writeEntries(t, a, "a.txt", "hello a", "dir/", "", "dir/b.txt", strings.Repeat("b", 1000))
	require.NoError(t, a.Close())

	tr := tar.NewReader(bytes.NewReader(mem.Bytes()))
	got := map[string]string{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		got[hdr.Name] = string(data)
	}

	assert.Equal(t, map[string]string{
		"a.txt":     "hello a",
		"dir/":      "",
		"dir/b.txt": strings.Repeat("b", 1000),
	}, got)
}

func TestArchive_ReadableByArchives(t *testing.T) {
	mem := &stream.Memory{}
	a := newMemory(t, ModeWrite, mem)
	writeEntries(t, a, "x.txt", "x marks the spot", "y.txt", "why")
	require.NoError(t, a.Close())

	got := map[string]string{}
	err := archives.Tar{}.Extract(context.Background(), bytes.NewReader(mem.Bytes()), func(ctx context.Context, f archives.FileInfo) error {
		rc, err := f.Open()
		if err != nil {
			return err
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return err
		}

		got[f.NameInArchive] = string(data)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"x.txt": "x marks the spot", "y.txt": "why"}, got)
}

func TestArchive_ReadsArchiveTarOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	for _, name := range []string{"one.txt", "two.txt"} {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0600,
			Size:     int64(len(name)),
			Typeflag: tar.TypeReg,
			Format:   tar.FormatUSTAR,
		}))
		_, err := tw.Write([]byte(name))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())

	a := newMemory(t, ModeRead, stream.NewMemory(buf.Bytes()))
	defer a.Close()

	_, err := a.Find("two.txt")
	require.NoError(t, err)

	data, err := io.ReadAll(a.EntryReader())
	require.NoError(t, err)
	assert.Equal(t, "two.txt", string(data))
}
