package gziputil

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/gzip"
)

var GzipWriterPool = sync.Pool{
	New: func() any { return gzip.NewWriter(nil) },
}

// Compress streams src into dst as gzip using a pooled writer.
// Returns the number of uncompressed bytes read from src.
func Compress(dst io.Writer, src io.Reader) (int64, error) {
	gw := GzipWriterPool.Get().(*gzip.Writer)
	gw.Reset(dst)
	defer func() {
		gw.Reset(nil)
		GzipWriterPool.Put(gw)
	}()

	n, err := io.Copy(gw, src)
	if err != nil {
		return n, err
	}
	return n, gw.Close()
}

// CompressFile writes a gzip copy of srcPath to dstPath.
func CompressFile(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", srcPath, err)
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", dstPath, err)
	}

	bw := bufio.NewWriterSize(dst, 256*1024)
	if _, err := Compress(bw, src); err != nil {
		dst.Close()
		os.Remove(dstPath)
		return fmt.Errorf("compress %s: %w", srcPath, err)
	}
	if err := bw.Flush(); err != nil {
		dst.Close()
		os.Remove(dstPath)
		return err
	}
	return dst.Close()
}

// IsGzipped returns true if data starts with gzip magic bytes.
func IsGzipped(data []byte) bool {
	return len(data) > 2 && data[0] == 0x1f && data[1] == 0x8b
}
