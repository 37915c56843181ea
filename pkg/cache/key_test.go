package cache

import (
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "simple GET no params",
			key:  Key{Method: "GET", URL: "https://api.example.com/v1/items"},
			want: "GET https://api.example.com/v1/items",
		},
		{
			name: "empty method defaults to GET",
			key:  Key{URL: "https://api.example.com/v1/items"},
			want: "GET https://api.example.com/v1/items",
		},
		{
			name: "method is upper-cased",
			key:  Key{Method: "post", URL: "https://api.example.com/v1/items"},
			want: "POST https://api.example.com/v1/items",
		},
		{
			name: "query params sorted",
			key:  Key{URL: "https://api.example.com/v1/items?page=1&order=all"},
			want: "GET https://api.example.com/v1/items?order=all&page=1",
		},
		{
			name: "scheme and host lower-cased, fragment dropped",
			key:  Key{URL: "HTTPS://API.Example.com/V1/Items#top"},
			want: "GET https://api.example.com/V1/Items",
		},
		{
			name: "body digest appended",
			key:  Key{Method: "POST", URL: "https://api.example.com/search", Body: []byte(`{"q":"x"}`)},
			want: "POST https://api.example.com/search #" + digest(`{"q":"x"}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.key.String()
			if got != tt.want {
				t.Errorf("Key.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestKey_Determinism ensures equivalent input always produces the same key
func TestKey_Determinism(t *testing.T) {
	a := Key{URL: "https://api.example.com/v1/items?b=2&a=1&a=0"}
	b := Key{URL: "https://api.example.com/v1/items?a=1&b=2&a=0"}

	first := a.String()
	for i := 0; i < 10; i++ {
		if got := a.String(); got != first {
			t.Errorf("run %d = %v, want %v (not deterministic)", i, got, first)
		}
	}
	if b.String() != first {
		t.Errorf("equivalent URLs produced different keys: %v vs %v", b.String(), first)
	}
}

func TestNormalizeURL_RepeatedValuesKeepOrder(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"http://x/?a=2&a=1", "http://x/?a=2&a=1"},
		{"http://x/?a=1&a=2", "http://x/?a=1&a=2"},
		{"http://x/?b=1&a=2&b=0", "http://x/?a=2&b=1&b=0"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := NormalizeURL(tt.raw); got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}

	if NormalizeURL("http://x/?a=2&a=1") == NormalizeURL("http://x/?a=1&a=2") {
		t.Error("reordered repeated values must produce different keys")
	}
}

func TestKey_BodyDistinguishes(t *testing.T) {
	a := Key{Method: "POST", URL: "https://api.example.com/search", Body: []byte("a")}
	b := Key{Method: "POST", URL: "https://api.example.com/search", Body: []byte("b")}
	if a.String() == b.String() {
		t.Error("different bodies must produce different keys")
	}
}

func TestNormalizeURL_Unparseable(t *testing.T) {
	raw := " http://[::1 "
	if got := NormalizeURL(raw); got != "http://[::1" {
		t.Errorf("NormalizeURL(%q) = %q", raw, got)
	}
}
