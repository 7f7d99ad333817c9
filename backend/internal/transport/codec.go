package transport

import (
	"io"

	"github.com/golang/snappy"
	"google.golang.org/grpc/encoding"
)

// CompressorName имя компрессора snappy для gRPC
const CompressorName = "snappy"

// snappyCompressor потоковое сжатие snappy для gRPC
type snappyCompressor struct{}

func (snappyCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return snappy.NewBufferedWriter(w), nil
}

func (snappyCompressor) Decompress(r io.Reader) (io.Reader, error) {
	return snappy.NewReader(r), nil
}

func (snappyCompressor) Name() string {
	return CompressorName
}

func init() {
	encoding.RegisterCompressor(snappyCompressor{})
}
