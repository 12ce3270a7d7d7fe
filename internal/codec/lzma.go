// Package codec decodes the Dukascopy bi5 wire format: an LZMA-compressed
// stream of fixed-width big-endian records, either 20-byte ticks or
// 24-byte candles.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"log"

	"github.com/ulikunitz/xz/lzma"
)

// Decompress decodes one or more concatenated LZMA streams.
// The archive occasionally glues several streams into one file, and is also
// known to append trailing garbage: anything that fails to parse after at
// least one successful stream is silently truncated. A failure on the first
// stream is fatal for the blob.
func Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var out []byte
	rest := data
	streams := 0

	for len(rest) > 0 {
		br := bytes.NewReader(rest)
		zr, err := lzma.NewReader(br)
		if err != nil {
			if streams > 0 {
				break // trailing garbage
			}
			return nil, fmt.Errorf("lzma header: %w", err)
		}

		chunk, err := io.ReadAll(zr)
		if err != nil {
			if streams > 0 {
				break
			}
			return nil, fmt.Errorf("lzma stream: %w", err)
		}

		out = append(out, chunk...)
		streams++

		// bytes.Reader implements io.ByteReader, so the decoder consumes
		// input exactly and br.Len() is the true remainder.
		rest = rest[len(rest)-br.Len():]
	}

	if streams > 1 {
		log.Printf("[codec] decoded %d concatenated lzma streams", streams)
	}
	return out, nil
}
