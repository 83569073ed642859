package chunk

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		requested int
		want      Range
		reason    string
	}{
		{"empty first chunk", "", 1, Single, ""},
		{"blank first chunk", "  ", 1, Single, ""},
		{"empty later chunk", "", 2, Range{}, "header does not match url"},
		{"first of two", "1:2", 1, Range{1, 2}, ""},
		{"spaces", " 2 : 3 ", 2, Range{2, 3}, ""},
		{"last", "3:3", 3, Range{3, 3}, ""},
		{"three parts", "1:2:3", 1, Range{}, "bad headers"},
		{"no separator", "12", 1, Range{}, "bad headers"},
		{"non numeric", "a:2", 1, Range{}, "bad header value - chunk values should be numeric"},
		{"zero", "0:2", 0, Range{}, "bad header value - chunk range"},
		{"beyond total", "2:1", 2, Range{}, "bad header value - chunk range"},
		{"negative total", "1:-1", 1, Range{}, "bad header value - chunk range"},
		{"path mismatch", "1:2", 2, Range{}, "bad header - chunk 1 does not match requested chunk 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.header, tt.requested)
			if tt.reason == "" {
				if err != nil {
					t.Fatalf("Parse(%q, %d) error: %v", tt.header, tt.requested, err)
				}
				if got != tt.want {
					t.Errorf("Parse(%q, %d) = %v, want %v", tt.header, tt.requested, got, tt.want)
				}
				return
			}

			if !errors.Is(err, ErrInvalidRange) {
				t.Fatalf("Parse(%q, %d) err = %v, want ErrInvalidRange", tt.header, tt.requested, err)
			}
			var rerr *RangeError
			if !errors.As(err, &rerr) || rerr.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", err.Error(), tt.reason)
			}
		})
	}
}

func TestRange(t *testing.T) {
	r := Range{Number: 1, Total: 2}
	if r.String() != "1:2" {
		t.Errorf("String() = %q", r.String())
	}
	if r.Last() {
		t.Error("1:2 should not be last")
	}
	if !Single.Last() {
		t.Error("Single should be last")
	}
}
