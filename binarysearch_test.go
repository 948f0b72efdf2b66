package zekta

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func cmpInts(items []int, key int) func(i int) int {
	return func(i int) int {
		switch {
		case items[i] < key:
			return -1
		case items[i] > key:
			return 1
		default:
			return 0
		}
	}
}

func Test_LowerBound_Returns_Zero_When_Empty(t *testing.T) {
	require.Equal(t, 0, lowerBound(0, cmpInts(nil, 5)))
}

func Test_LowerBound_Returns_Length_When_Key_Greater_Than_All(t *testing.T) {
	items := []int{1, 2, 3}
	got := lowerBound(len(items), cmpInts(items, 10))

	require.Equal(t, len(items), got)
}

func Test_LowerBound_Returns_Zero_When_Key_Less_Than_All(t *testing.T) {
	items := []int{10, 20, 30}
	got := lowerBound(len(items), cmpInts(items, 1))

	require.Equal(t, 0, got)
}

func Test_LowerBound_Returns_Insertion_Point_When_No_Exact_Match(t *testing.T) {
	items := []int{10, 20, 30, 40}
	got := lowerBound(len(items), cmpInts(items, 25))

	require.Equal(t, 2, got)
}

func Test_LowerBound_Returns_Some_Matching_Index_On_Exact_Match(t *testing.T) {
	items := []int{10, 20, 30, 40, 50}
	got := lowerBound(len(items), cmpInts(items, 30))

	require.Equal(t, 30, items[got])
}

func Test_LowerBound_Returns_Some_Matching_Index_Within_A_Tie_Run(t *testing.T) {
	items := []int{1, 2, 5, 5, 5, 5, 9}
	got := lowerBound(len(items), cmpInts(items, 5))

	require.Equal(t, 5, items[got])
}

func FuzzLowerBound_Preserves_Order_When_Inserted(f *testing.F) {
	f.Add([]byte{1, 3, 3, 7, 9}, byte(5))
	f.Add([]byte{}, byte(0))
	f.Add([]byte{5}, byte(5))

	f.Fuzz(func(t *testing.T, raw []byte, key byte) {
		if len(raw) > 4096 {
			t.Skip()
		}

		items := make([]int, len(raw))
		for i, b := range raw {
			items[i] = int(b)
		}

		sortedInts(items)

		k := lowerBound(len(items), cmpInts(items, int(key)))

		if k < 0 || k > len(items) {
			t.Fatalf("k=%d out of [0,%d]", k, len(items))
		}

		for i := 0; i < k; i++ {
			if items[i] > int(key) {
				t.Fatalf("items[%d]=%d > key=%d before insertion point %d", i, items[i], key, k)
			}
		}

		for i := k; i < len(items); i++ {
			if items[i] < int(key) {
				t.Fatalf("items[%d]=%d < key=%d at/after insertion point %d", i, items[i], key, k)
			}
		}
	})
}

func sortedInts(items []int) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j-1] > items[j]; j-- {
			items[j-1], items[j] = items[j], items[j-1]
		}
	}
}
