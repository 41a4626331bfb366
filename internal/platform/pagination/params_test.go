package pagination

import (
	"errors"
	"net/http/httptest"
	"testing"
)

func TestFromRequestDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/products", nil)

	params := FromRequest(r, Options{DefaultPageSize: 20})
	if params.PageSize != 20 {
		t.Fatalf("expected default page size 20, got %d", params.PageSize)
	}
	if params.PageToken != "" {
		t.Fatalf("expected empty page token, got %q", params.PageToken)
	}
}

func TestFromRequestClampsAndIgnoresGarbage(t *testing.T) {
	cases := map[string]struct {
		rawSize  string
		expected int
	}{
		"valid":        {rawSize: "25", expected: 25},
		"oversized":    {rawSize: "5000", expected: 100},
		"zero":         {rawSize: "0", expected: 10},
		"negative":     {rawSize: "-3", expected: 10},
		"not a number": {rawSize: "lots", expected: 10},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/products?pageSize="+tc.rawSize, nil)
			params := FromRequest(r, Options{DefaultPageSize: 10, MaxPageSize: 100})
			if params.PageSize != tc.expected {
				t.Fatalf("expected page size %d, got %d", tc.expected, params.PageSize)
			}
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := EncodeToken(Cursor{StartAfter: []any{"2025-06-01T00:00:00Z", "prod_42"}})
	if err != nil {
		t.Fatalf("encode token: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	cursor, err := DecodeToken(token)
	if err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if len(cursor.StartAfter) != 2 {
		t.Fatalf("expected 2 cursor values, got %d", len(cursor.StartAfter))
	}
	if cursor.StartAfter[1] != "prod_42" {
		t.Fatalf("expected doc id prod_42, got %v", cursor.StartAfter[1])
	}
}

func TestEncodeTokenEmptyCursor(t *testing.T) {
	token, err := EncodeToken(Cursor{})
	if err != nil {
		t.Fatalf("encode token: %v", err)
	}
	if token != "" {
		t.Fatalf("expected empty token, got %q", token)
	}
}

func TestDecodeTokenRejectsGarbage(t *testing.T) {
	for _, token := range []string{"!!!not-base64!!!", "bm90LWpzb24"} {
		if _, err := DecodeToken(token); !errors.Is(err, ErrInvalidPageToken) {
			t.Fatalf("expected ErrInvalidPageToken for %q, got %v", token, err)
		}
	}
}
