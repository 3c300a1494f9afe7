package segment

import (
	"io"
	"os"

	perr "modwatch/internal/platform/errors"

	"github.com/klauspost/compress/zstd"
)

// Compress streams src into a zstd file at dst
// Output goes to dst.part first and is renamed only after a clean close
func Compress(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return perr.Classified(err, "open "+src)
	}
	defer func() { _ = in.Close() }()

	tmp := dst + partExt
	out, err := os.Create(tmp)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "create %s", tmp)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = out.Close()
		return perr.Wrap(err, perr.ErrorCodeIO, "zstd writer")
	}
	if _, err = io.Copy(enc, in); err != nil {
		_ = enc.Close()
		_ = out.Close()
		return perr.Wrapf(err, perr.ErrorCodeIO, "compress %s", src)
	}
	if err = enc.Close(); err != nil {
		_ = out.Close()
		return perr.Wrapf(err, perr.ErrorCodeIO, "flush %s", tmp)
	}
	if err = out.Sync(); err != nil {
		_ = out.Close()
		return perr.Wrapf(err, perr.ErrorCodeIO, "sync %s", tmp)
	}
	if err = out.Close(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "close %s", tmp)
	}
	if err = os.Rename(tmp, dst); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "rename %s", tmp)
	}
	return nil
}

// Decompress opens a zstd archive for reading; used by tooling and tests
func Decompress(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, perr.Classified(err, "open "+path)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, perr.Wrap(err, perr.ErrorCodeIO, "zstd reader")
	}
	return &zstdFile{dec: dec, f: f}, nil
}

type zstdFile struct {
	dec *zstd.Decoder
	f   *os.File
}

func (z *zstdFile) Read(p []byte) (int, error) { return z.dec.Read(p) }

func (z *zstdFile) Close() error {
	z.dec.Close()
	return z.f.Close()
}

// removeFile is swapped in tests to interrupt ArchiveAll between deletes
var removeFile = os.Remove

// ArchiveAll compresses the segment and its removed log independently and
// deletes the originals only after both archives exist
// The removed log goes first so an interrupted run still leaves the segment,
// which Scan finds again. A missing removed log is fine
func ArchiveAll(p Paths) error {
	if Exists(p.Segment) {
		if err := Compress(p.Segment, p.Archive); err != nil {
			return err
		}
	}
	if Exists(p.Removed) {
		if err := Compress(p.Removed, p.RemovedArchive); err != nil {
			return err
		}
	}
	for _, f := range []string{p.Removed, p.Segment} {
		if err := removeFile(f); err != nil && !os.IsNotExist(err) {
			return perr.Wrapf(err, perr.ErrorCodeIO, "remove %s", f)
		}
	}
	return nil
}
