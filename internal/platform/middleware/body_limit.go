package middleware

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// BodyLimit returns middleware that limits the maximum request body size.
// The limit is a human-readable string: "1M" for 1 megabyte, "512K", "1G".
// A bare number is treated as bytes. Oversized requests get HTTP 413.
func BodyLimit(limit string) echo.MiddlewareFunc {
	limitBytes := parseLimit(limit)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}

			// Declared length lets us reject before reading anything.
			if req.ContentLength > limitBytes {
				return errBodyTooLarge
			}

			// Chunked or lying clients are caught while the handler reads.
			req.Body = &cappedBody{src: req.Body, left: limitBytes}

			return next(c)
		}
	}
}

var errBodyTooLarge = echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")

// cappedBody fails the stream once more than left bytes have been read.
type cappedBody struct {
	src  io.ReadCloser
	left int64
}

func (b *cappedBody) Read(p []byte) (int, error) {
	if b.left < 0 {
		return 0, errBodyTooLarge
	}

	// Allow one byte past the limit so overflow is observable.
	if allow := b.left + 1; int64(len(p)) > allow {
		p = p[:allow]
	}

	n, err := b.src.Read(p)
	b.left -= int64(n)
	if b.left < 0 {
		return 0, errBodyTooLarge
	}
	return n, err
}

func (b *cappedBody) Close() error {
	return b.src.Close()
}

var sizeSuffixes = []struct {
	suffix string
	factor int64
}{
	{"GB", 1 << 30},
	{"G", 1 << 30},
	{"MB", 1 << 20},
	{"M", 1 << 20},
	{"KB", 1 << 10},
	{"K", 1 << 10},
}

// parseLimit converts a size string such as "1M", "512K" or "10G" to bytes.
// Unparseable input falls back to 1 MB.
func parseLimit(s string) int64 {
	const fallback = 1 << 20

	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return fallback
	}

	factor := int64(1)
	for _, sz := range sizeSuffixes {
		if strings.HasSuffix(s, sz.suffix) {
			factor = sz.factor
			s = strings.TrimSuffix(s, sz.suffix)
			break
		}
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return fallback
	}
	return n * factor
}
