package pagination

import (
	"bytes"
	"errors"
	"slices"
	"testing"
)

func TestV1(t *testing.T) {
	c := V1()
	tok, err := c.Encode(Cursor{MessageID: "ABC"})
	if err != nil || tok != "ABC" {
		t.Fatalf("Encode = %q, %v", tok, err)
	}
	got, err := c.Decode("ABC")
	if err != nil || got.MessageID != "ABC" {
		t.Errorf("Decode = %+v, %v", got, err)
	}
	if _, err := c.Decode(""); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Decode(\"\") err = %v", err)
	}
}

func TestV2RoundTrip(t *testing.T) {
	c, err := NewV2()
	if err != nil {
		t.Fatalf("NewV2: %v", err)
	}

	for _, id := range []string{"ABC", "", "20240101_WITH-ÜNICODE"} {
		tok, err := c.Encode(Cursor{MessageID: id})
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if id != "" && bytes.Contains([]byte(tok), []byte(id)) {
			t.Errorf("token leaks cursor: %q", tok)
		}
		got, err := c.Decode(tok)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got.MessageID != id {
			t.Errorf("round trip = %q, want %q", got.MessageID, id)
		}
	}
}

func TestV2NonceVaries(t *testing.T) {
	c, _ := NewV2()
	a, _ := c.Encode(Cursor{MessageID: "X"})
	b, _ := c.Encode(Cursor{MessageID: "X"})
	if a == b {
		t.Error("tokens for the same cursor should differ")
	}
}

func TestV2RejectsForeignAndTampered(t *testing.T) {
	a, _ := NewV2WithKey(bytes.Repeat([]byte{1}, 32))
	b, _ := NewV2WithKey(bytes.Repeat([]byte{2}, 32))

	tok, err := a.Encode(Cursor{MessageID: "ABC"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := b.Decode(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign key err = %v", err)
	}

	for _, bad := range []string{"", "!!!", "AAAA", tok[:len(tok)-2]} {
		if _, err := a.Decode(bad); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Decode(%q) err = %v", bad, err)
		}
	}
}

func TestNewV2WithKeyBadLength(t *testing.T) {
	if _, err := NewV2WithKey([]byte("short")); err == nil {
		t.Error("expected error for short key")
	}
}

func TestPage(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	id := func(s string) string { return s }

	tests := []struct {
		name  string
		after string
		limit int
		want  []string
		next  string
	}{
		{"first page", "", 2, []string{"a", "b"}, "b"},
		{"second page", "b", 2, []string{"c", "d"}, "d"},
		{"last page", "d", 2, []string{"e"}, ""},
		{"exact fit", "", 5, items, ""},
		{"unknown after", "zz", 3, []string{"a", "b", "c"}, "c"},
		{"zero", "", 0, []string{}, ""},
		{"negative", "", -1, []string{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, next := Page(items, id, tt.after, tt.limit)
			if !slices.Equal(page, tt.want) {
				t.Errorf("page = %v, want %v", page, tt.want)
			}
			if next != tt.next {
				t.Errorf("next = %q, want %q", next, tt.next)
			}
		})
	}
}
