// Package chunk parses and validates the "N:T" chunk-range header sent with
// each chunk of a multi-part message.
package chunk

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidRange is matched by every parse failure.
var ErrInvalidRange = errors.New("chunk: invalid chunk range")

// Range is a validated chunk position: chunk Number of Total, 1-based.
type Range struct {
	Number int
	Total  int
}

// Single is the implicit range of a message sent without a chunk-range header.
var Single = Range{Number: 1, Total: 1}

// String formats the range as "N:T".
func (r Range) String() string {
	return strconv.Itoa(r.Number) + ":" + strconv.Itoa(r.Total)
}

// Last reports whether r is the final chunk.
func (r Range) Last() bool {
	return r.Number >= r.Total
}

// RangeError describes why a chunk-range header was rejected.
type RangeError struct {
	Header string
	Reason string
}

func (e *RangeError) Error() string {
	return e.Reason
}

// Unwrap returns ErrInvalidRange.
func (e *RangeError) Unwrap() error {
	return ErrInvalidRange
}

// Parse validates header against the chunk number taken from the request
// path. Checks run in order:
//
//  1. an empty header is only valid for chunk 1 and yields Single
//  2. the header must split on ":" into exactly two parts
//  3. both parts must be integers
//  4. 0 < N <= T
//  5. N must equal requested
func Parse(header string, requested int) (Range, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		if requested != 1 {
			return Range{}, invalid(header, "header does not match url")
		}
		return Single, nil
	}

	parts := strings.Split(header, ":")
	if len(parts) != 2 {
		return Range{}, invalid(header, "bad headers")
	}

	n, errN := strconv.Atoi(strings.TrimSpace(parts[0]))
	t, errT := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errN != nil || errT != nil {
		return Range{}, invalid(header, "bad header value - chunk values should be numeric")
	}

	if n <= 0 || n > t {
		return Range{}, invalid(header, "bad header value - chunk range")
	}

	if n != requested {
		return Range{}, invalid(header, fmt.Sprintf("bad header - chunk %d does not match requested chunk %d", n, requested))
	}

	return Range{Number: n, Total: t}, nil
}

func invalid(header, reason string) error {
	return &RangeError{Header: header, Reason: reason}
}
