package unpack

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nguyengg/ustar"
	"github.com/nguyengg/ustar/header"
	"github.com/nguyengg/ustar/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mtime = time.Unix(1_600_000_000, 0)

// newArchive writes the given headers into memory, with data for regular files, then reopens it for reading.
func newArchive(t *testing.T, entries ...any) *ustar.Archive {
	t.Helper()

	mem := &stream.Memory{}
	a, err := ustar.OpenStream(stream.New(mem), ustar.ModeWrite)
	require.NoError(t, err)

	for _, e := range entries {
		switch e := e.(type) {
		case *header.Header:
			require.NoError(t, a.WriteHeader(e))
		case string:
			_, err = a.WriteData([]byte(e))
			require.NoError(t, err)
		}
	}
	require.NoError(t, a.Close())

	a, err = ustar.OpenStream(stream.New(stream.NewMemory(mem.Bytes())), ustar.ModeRead)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func dir(path string) *header.Header {
	return &header.Header{Name: path, Mode: 0755, Typeflag: header.TypeDir, ModTime: mtime}
}

func file(path string, size int) *header.Header {
	h := &header.Header{Mode: 0640, Size: int64(size), Typeflag: header.TypeReg, ModTime: mtime}
	if err := h.SetPath(path); err != nil {
		panic(err)
	}

	return h
}

func TestUnpack(t *testing.T) {
	long := "top/" + strings.Repeat("d", 120) + "/leaf.txt"
	a := newArchive(t,
		dir("top/"),
		file("top/a.txt", 5), "hello",
		file("top/nested/deeper/b.txt", 3), "bbb",
		file(long, 4), "long",
		&header.Header{Name: "top/fifo", Typeflag: header.TypeFifo},
	)

	dst := t.TempDir()
	stats, err := Unpack(context.Background(), a, dst)
	require.NoError(t, err)
	assert.Equal(t, Stats{Files: 3, Dirs: 1, Skipped: 1, Bytes: 12}, stats)

	data, err := os.ReadFile(filepath.Join(dst, "top", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// parents without headers are created.
	data, err = os.ReadFile(filepath.Join(dst, "top", "nested", "deeper", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "bbb", string(data))

	data, err = os.ReadFile(filepath.Join(dst, filepath.FromSlash(long)))
	require.NoError(t, err)
	assert.Equal(t, "long", string(data))

	fi, err := os.Stat(filepath.Join(dst, "top", "a.txt"))
	require.NoError(t, err)
	assert.True(t, fi.ModTime().Equal(mtime))

	_, err = os.Lstat(filepath.Join(dst, "top", "fifo"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUnpack_StripRoot(t *testing.T) {
	a := newArchive(t,
		dir("top/"),
		file("top/a.txt", 1), "a",
		dir("top/sub/"),
		file("top/sub/b.txt", 1), "b",
	)

	dst := t.TempDir()
	_, err := Unpack(context.Background(), a, dst, func(opts *Options) {
		opts.StripRoot = "top"
	})
	require.NoError(t, err)

	for _, p := range []string{"a.txt", "sub/b.txt"} {
		_, err = os.Stat(filepath.Join(dst, filepath.FromSlash(p)))
		assert.NoErrorf(t, err, "%s should exist", p)
	}

	_, err = os.Stat(filepath.Join(dst, "top"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUnpack_RefusesEscape(t *testing.T) {
	tests := []struct {
		name    string
		entries []any
	}{
		{name: "parent", entries: []any{file("../evil.txt", 1), "x"}},
		{name: "nested parent", entries: []any{file("a/../../evil.txt", 1), "x"}},
		{name: "absolute", entries: []any{file("/tmp/evil.txt", 1), "x"}},
		{name: "symlink out", entries: []any{&header.Header{Name: "link", Typeflag: header.TypeSymlink, Linkname: "../../etc"}}},
		{name: "hardlink out", entries: []any{&header.Header{Name: "link", Typeflag: header.TypeLink, Linkname: "../secret"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent := t.TempDir()
			dst := filepath.Join(parent, "out")
			require.NoError(t, os.Mkdir(dst, 0755))

			_, err := Unpack(context.Background(), newArchive(t, tt.entries...), dst)
			assert.Error(t, err)

			entries, err := os.ReadDir(parent)
			require.NoError(t, err)
			assert.Len(t, entries, 1)

			entries, err = os.ReadDir(dst)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func symlink(path, target string) *header.Header {
	return &header.Header{Name: path, Mode: 0777, Typeflag: header.TypeSymlink, Linkname: target}
}

func TestUnpack_RefusesSymlinkTraversal(t *testing.T) {
	tests := []struct {
		name    string
		entries []any
	}{
		{
			name:    "file through symlink chain",
			entries: []any{symlink("a", "."), symlink("a/s", ".."), file("a/s/evil.txt", 4), "pwnd"},
		},
		{
			name:    "file under symlinked dir",
			entries: []any{symlink("a", "."), symlink("up", "a/.."), file("up/evil.txt", 4), "pwnd"},
		},
		{
			name:    "dir under symlinked dir",
			entries: []any{symlink("a", "."), symlink("up", "a/.."), dir("up/evil.txt/")},
		},
		{
			name: "hardlink through symlinked dir",
			entries: []any{
				symlink("a", "."), symlink("up", "a/.."),
				&header.Header{Name: "evil.txt", Typeflag: header.TypeLink, Linkname: "up/outside.txt"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent := t.TempDir()
			dst := filepath.Join(parent, "out")
			require.NoError(t, os.Mkdir(dst, 0755))
			require.NoError(t, os.WriteFile(filepath.Join(parent, "outside.txt"), []byte("keep"), 0644))

			_, err := Unpack(context.Background(), newArchive(t, tt.entries...), dst)
			assert.ErrorContains(t, err, "traverses symlink")

			_, err = os.Lstat(filepath.Join(parent, "evil.txt"))
			assert.ErrorIs(t, err, os.ErrNotExist)

			_, err = os.Lstat(filepath.Join(dst, "evil.txt"))
			assert.ErrorIs(t, err, os.ErrNotExist)
		})
	}
}

func TestUnpack_ReplacesSymlinkWithFile(t *testing.T) {
	parent := t.TempDir()
	dst := filepath.Join(parent, "out")
	require.NoError(t, os.Mkdir(dst, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "outside.txt"), []byte("keep"), 0644))

	// "a/../outside.txt" looks local but a resolves to dst, so the link points outside.
	a := newArchive(t, symlink("a", "."), symlink("u", "a/../outside.txt"), file("u", 4), "pwnd")
	_, err := Unpack(context.Background(), a, dst)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(parent, "outside.txt"))
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))

	fi, err := os.Lstat(filepath.Join(dst, "u"))
	require.NoError(t, err)
	assert.True(t, fi.Mode().IsRegular())

	data, err = os.ReadFile(filepath.Join(dst, "u"))
	require.NoError(t, err)
	assert.Equal(t, "pwnd", string(data))
}

func TestUnpack_Links(t *testing.T) {
	a := newArchive(t,
		file("target.txt", 6), "target",
		&header.Header{Name: "sym.txt", Typeflag: header.TypeSymlink, Linkname: "target.txt"},
		&header.Header{Name: "hard.txt", Typeflag: header.TypeLink, Linkname: "target.txt"},
	)

	dst := t.TempDir()
	stats, err := Unpack(context.Background(), a, dst)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Links)

	link, err := os.Readlink(filepath.Join(dst, "sym.txt"))
	require.NoError(t, err)
	assert.Equal(t, "target.txt", link)

	data, err := os.ReadFile(filepath.Join(dst, "hard.txt"))
	require.NoError(t, err)
	assert.Equal(t, "target", string(data))
}

func TestUnpack_Cancelled(t *testing.T) {
	a := newArchive(t, file("a.txt", 1), "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Unpack(ctx, a, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRootDir(t *testing.T) {
	a := newArchive(t, dir("top/"), file("top/a.txt", 1), "a")
	root, err := rootDir(a)
	require.NoError(t, err)
	assert.Equal(t, "top", root)

	a = newArchive(t, file("a.txt", 1), "a", file("top/b.txt", 1), "b")
	root, err = rootDir(a)
	require.NoError(t, err)
	assert.Empty(t, root)
}
