package file

import (
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// zstdDec is a package-level decoder, concurrent-safe, always available
// for reads.
var zstdDec *zstd.Decoder

func init() {
	var err error
	zstdDec, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		panic("zstd: init decoder: " + err.Error())
	}
}

// compressibleTypes lists the content types worth spending zstd cycles
// on. Already-compressed media (images, video, most fonts) would only
// grow under zstd, so Put skips them entirely.
var compressibleTypes = []string{
	"text/",
	"application/json",
	"application/javascript",
	"application/xml",
	"image/svg+xml",
}

func isCompressible(contentType string) bool {
	ct, _, _ := strings.Cut(contentType, ";")
	ct = strings.TrimSpace(ct)
	for _, prefix := range compressibleTypes {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}

// compressBytes zstd-compresses data at the default level. Each call
// gets its own encoder: Put is not on a hot enough path in this store
// to justify sharing one across goroutines and reasoning about its
// internal buffering.
func compressBytes(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

// decompressBytes uses the shared package-level decoder: DecodeAll is
// documented as safe for concurrent use, so no per-call decoder is
// needed on the read path.
func decompressBytes(data []byte) ([]byte, error) {
	out, err := zstdDec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}
