package binary

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
)

// zstdEncoder returns a shared encoder. EncodeAll is safe for concurrent use.
func zstdEncoder() *zstd.Encoder {
	zstdOnce.Do(func() {
		// NewWriter only fails on invalid options.
		zstdEnc, _ = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	})
	return zstdEnc
}
