package strictform

import (
	"context"
	"errors"
	"io"
	"net/http"
)

const readChunkSize = 4 * 1024

// ReadBody reads at most maxBytes+1 bytes from r. A body longer than
// maxBytes is rejected with PayloadTooLarge as soon as the extra byte is
// seen; the remainder is never read. The context is checked before every
// read and its error is reported as a ReadBody rejection, never retried.
func ReadBody(ctx context.Context, r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	if r == nil {
		return []byte{}, nil
	}

	buf := make([]byte, 0, min(maxBytes, readChunkSize))
	chunk := make([]byte, readChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, reject(KindReadBody, err, "body read cancelled")
		}

		want := min(int64(len(chunk)), maxBytes-int64(len(buf))+1)
		n, err := r.Read(chunk[:want])
		if n > 0 {
			if int64(len(buf)+n) > maxBytes {
				return nil, reject(KindPayloadTooLarge, nil, "body exceeds %d bytes", maxBytes)
			}
			buf = append(buf, chunk[:n]...)
		}
		if errors.Is(err, io.EOF) {
			return buf, nil
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, reject(KindPayloadTooLarge, err, "body exceeds %d bytes", tooLarge.Limit)
			}
			return nil, reject(KindReadBody, err, "failed to read body")
		}
	}
}
