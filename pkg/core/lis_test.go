package core

import (
	"slices"
	"testing"
)

func TestLongestIncreasingSubsequence(t *testing.T) {
	tests := []struct {
		seq  []int
		want []bool
	}{
		{nil, []bool{}},
		{[]int{0, 1, 2}, []bool{true, true, true}},
		{[]int{2, 0, 1}, []bool{false, true, true}},
		{[]int{3, 2, 1}, []bool{false, false, true}},
		{[]int{-1, 0, -1, 1}, []bool{false, true, false, true}},
		{[]int{-1, -1}, []bool{false, false}},
		{[]int{3, 1, 2, 0}, []bool{false, true, true, false}},
	}
	for _, tt := range tests {
		got := longestIncreasingSubsequence(tt.seq)
		if !slices.Equal(got, tt.want) {
			t.Errorf("lis(%v) = %v, want %v", tt.seq, got, tt.want)
		}
	}
}

func TestLongestIncreasingSubsequenceIsMaximal(t *testing.T) {
	perm := []int{0, 1, 2, 3, 4, 5}
	for {
		in := longestIncreasingSubsequence(perm)
		last, n := -1, 0
		for i, ok := range in {
			if !ok {
				continue
			}
			if perm[i] <= last {
				t.Fatalf("lis(%v) = %v is not increasing", perm, in)
			}
			last = perm[i]
			n++
		}
		if want := bruteForceLIS(perm); n != want {
			t.Fatalf("lis(%v) has length %d, want %d", perm, n, want)
		}
		if !nextPermutation(perm) {
			break
		}
	}
}

func bruteForceLIS(seq []int) int {
	best := make([]int, len(seq))
	longest := 0
	for i := range seq {
		best[i] = 1
		for j := 0; j < i; j++ {
			if seq[j] < seq[i] && best[j]+1 > best[i] {
				best[i] = best[j] + 1
			}
		}
		longest = max(longest, best[i])
	}
	return longest
}

func nextPermutation(p []int) bool {
	i := len(p) - 2
	for i >= 0 && p[i] >= p[i+1] {
		i--
	}
	if i < 0 {
		return false
	}
	j := len(p) - 1
	for p[j] <= p[i] {
		j--
	}
	p[i], p[j] = p[j], p[i]
	slices.Reverse(p[i+1:])
	return true
}
