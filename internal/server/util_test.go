package server

import "testing"

func TestSanitizeBase(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{"api", "/api"},
		{"/api", "/api"},
		{"/api/", "/api"},
		{" api ", "/api"},
	}
	for _, c := range cases {
		if got := sanitizeBase(c.in); got != c.want {
			t.Fatalf("sanitizeBase(%q)=%q want %q", c.in, got, c.want)
		}
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:3900": true,
		"localhost:3900": true,
		"[::1]:3900":     true,
		"127.1.2.3:80":   true,
		"0.0.0.0:3900":   false,
		":3900":          false,
		"10.0.0.5:3900":  false,
		"example.com:80": false,
		"127.0.0.1":      false,
	}
	for in, want := range cases {
		if got := isLoopbackAddr(in); got != want {
			t.Fatalf("isLoopbackAddr(%q)=%v want %v", in, got, want)
		}
	}
}
