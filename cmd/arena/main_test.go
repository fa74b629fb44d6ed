package main

import (
	"testing"
	"unicode/utf8"
)

func TestCheckIterations(t *testing.T) {
	for n, wantErr := range map[int]bool{-2: true, 0: true, 1: false, 3: false} {
		if err := checkIterations(n); (err != nil) != wantErr {
			t.Errorf("checkIterations(%d) = %v, wantErr %v", n, err, wantErr)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"plain ascii output", 100, "plain ascii output"},
		{"plain ascii output", 8, "plain..."},
		{"résumé für Zoë ✓", 10, "résumé ..."},
		{"✓✓✓✓✓✓✓✓", 4, "✓..."},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.max)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) produced invalid UTF-8", tt.in, tt.max)
		}
	}
}
