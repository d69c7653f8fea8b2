package sampler

import (
	"errors"
	"testing"
)

func TestNew_RejectsInvalidSkip(t *testing.T) {
	for _, n := range []int{0, -1, -10} {
		if _, err := New(n); !errors.Is(err, ErrInvalidSkip) {
			t.Errorf("New(%d): expected ErrInvalidSkip, got %v", n, err)
		}
	}
}

func TestNext_ForwardsEveryNth(t *testing.T) {
	tests := []struct {
		every int
		total int
	}{
		{1, 10},
		{2, 9},
		{3, 10},
		{10, 1000},
		{10, 9},
		{7, 50},
	}

	for _, tt := range tests {
		s, err := New(tt.every)
		if err != nil {
			t.Fatalf("New(%d) failed: %v", tt.every, err)
		}

		forwarded := 0
		for i := 1; i <= tt.total; i++ {
			seq, ok := s.Next()
			if seq != i {
				t.Fatalf("Expected sequence %d, got %d", i, seq)
			}
			if ok {
				forwarded++
				if seq%tt.every != 0 {
					t.Errorf("every=%d: forwarded non-multiple sequence %d", tt.every, seq)
				}
			}
		}

		if want := tt.total / tt.every; forwarded != want {
			t.Errorf("every=%d total=%d: forwarded %d, expected %d", tt.every, tt.total, forwarded, want)
		}
		if s.Seq() != tt.total {
			t.Errorf("Expected Seq()=%d, got %d", tt.total, s.Seq())
		}
	}
}
