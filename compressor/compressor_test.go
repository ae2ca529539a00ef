package compressor

import (
	"fmt"
	"testing"
)

func TestCompressor_Compress(t *testing.T) {
	x := 0 // an empty value

	allCompressors := func() []Compressor {
		return []Compressor{
			NewUniqueEntriesTable(),
			NewRowDisplacementTable(x),
		}
	}

	tests := []struct {
		original    []int
		rowCount    int
		colCount    int
		compressors []Compressor
	}{
		{
			original: []int{
				1, 1, 1, 1, 1,
				1, 1, 1, 1, 1,
				1, 1, 1, 1, 1,
			},
			rowCount:    3,
			colCount:    5,
			compressors: allCompressors(),
		},
		{
			original: []int{
				x, x, x, x, x,
				x, x, x, x, x,
				x, x, x, x, x,
			},
			rowCount:    3,
			colCount:    5,
			compressors: allCompressors(),
		},
		{
			original: []int{
				1, 1, 1, 1, 1,
				x, x, x, x, x,
				1, 1, 1, 1, 1,
			},
			rowCount:    3,
			colCount:    5,
			compressors: allCompressors(),
		},
		{
			original: []int{
				1, x, 1, 1, 1,
				1, 1, x, 1, 1,
				1, 1, 1, x, 1,
			},
			rowCount:    3,
			colCount:    5,
			compressors: allCompressors(),
		},
		{
			original: []int{
				x, x, x, 7, x, x,
				2, x, x, x, x, x,
				x, x, x, x, x, x,
				x, 3, x, x, 4, x,
				x, x, x, x, x, 9,
			},
			rowCount:    5,
			colCount:    6,
			compressors: allCompressors(),
		},
	}
	for i, tt := range tests {
		for _, comp := range tt.compressors {
			t.Run(fmt.Sprintf("%T #%v", comp, i), func(t *testing.T) {
				dup := make([]int, len(tt.original))
				copy(dup, tt.original)

				orig, err := NewOriginalTable(tt.original, tt.rowCount, tt.colCount)
				if err != nil {
					t.Fatal(err)
				}
				err = comp.Compress(orig)
				if err != nil {
					t.Fatal(err)
				}
				rowCount, colCount := comp.OriginalTableSize()
				if rowCount != tt.rowCount || colCount != tt.colCount {
					t.Fatalf("unexpected table size; want: %vx%v, got: %vx%v", tt.rowCount, tt.colCount, rowCount, colCount)
				}
				for i := 0; i < tt.rowCount; i++ {
					for j := 0; j < tt.colCount; j++ {
						v, err := comp.Lookup(i, j)
						if err != nil {
							t.Fatal(err)
						}
						expected := tt.original[i*tt.colCount+j]
						if v != expected {
							t.Fatalf("unexpected entry (%v, %v); want: %v, got: %v", i, j, expected, v)
						}
					}
				}

				if err := comp.Validate(); err != nil {
					t.Fatal(err)
				}
				expanded, err := Expand(comp)
				if err != nil {
					t.Fatal(err)
				}
				if len(expanded) != len(tt.original) {
					t.Fatalf("unexpected expanded length; want: %v, got: %v", len(tt.original), len(expanded))
				}
				for i, v := range tt.original {
					if expanded[i] != v {
						t.Fatalf("unexpected expanded entry #%v; want: %v, got: %v", i, v, expanded[i])
					}
				}

				// Calling with out-of-range indexes should be an error.
				if _, err := comp.Lookup(0, -1); err == nil {
					t.Fatalf("expected error didn't occur (0, -1)")
				}
				if _, err := comp.Lookup(-1, 0); err == nil {
					t.Fatalf("expected error didn't occur (-1, 0)")
				}
				if _, err := comp.Lookup(rowCount-1, colCount); err == nil {
					t.Fatalf("expected error didn't occur (%v, %v)", rowCount-1, colCount)
				}
				if _, err := comp.Lookup(rowCount, colCount-1); err == nil {
					t.Fatalf("expected error didn't occur (%v, %v)", rowCount, colCount-1)
				}

				// The compressor must not break the original table.
				for i := 0; i < tt.rowCount; i++ {
					for j := 0; j < tt.colCount; j++ {
						idx := i*tt.colCount + j
						if tt.original[idx] != dup[idx] {
							t.Fatalf("the original table is broken (%v, %v); want: %v, got: %v", i, j, dup[idx], tt.original[idx])
						}
					}
				}
			})
		}
	}
}

func TestCompressor_EmptyTable(t *testing.T) {
	tests := []struct {
		rowCount int
		colCount int
	}{
		{rowCount: 0, colCount: 0},
		{rowCount: 0, colCount: 4},
		{rowCount: 3, colCount: 0},
	}
	for _, tt := range tests {
		for _, comp := range []Compressor{NewUniqueEntriesTable(), NewRowDisplacementTable(0)} {
			t.Run(fmt.Sprintf("%T %vx%v", comp, tt.rowCount, tt.colCount), func(t *testing.T) {
				orig, err := NewOriginalTable(nil, tt.rowCount, tt.colCount)
				if err != nil {
					t.Fatal(err)
				}
				if err := comp.Compress(orig); err != nil {
					t.Fatal(err)
				}
				if err := comp.Validate(); err != nil {
					t.Fatal(err)
				}
				rowCount, colCount := comp.OriginalTableSize()
				if rowCount != tt.rowCount || colCount != tt.colCount {
					t.Fatalf("unexpected table size; want: %vx%v, got: %vx%v", tt.rowCount, tt.colCount, rowCount, colCount)
				}
				entries, err := Expand(comp)
				if err != nil {
					t.Fatal(err)
				}
				if len(entries) != 0 {
					t.Fatalf("an empty table must expand to no entries: %v", entries)
				}
			})
		}
	}
}

func TestNewOriginalTable_InvalidSize(t *testing.T) {
	if _, err := NewOriginalTable([]int{1, 2, 3}, 2, 2); err == nil {
		t.Fatal("expected error didn't occur")
	}
	if _, err := NewOriginalTable(nil, -1, 2); err == nil {
		t.Fatal("expected error didn't occur")
	}
}

func TestCompressor_Validate(t *testing.T) {
	tests := []struct {
		caption string
		comp    Compressor
	}{
		{
			caption: "a row displacement table with a missing displacement",
			comp: &RowDisplacementTable{
				OriginalRowCount: 2,
				OriginalColCount: 2,
				Entries:          []int{1, 2},
				Bounds:           []int{0, 0},
				RowDisplacement:  []int{0},
			},
		},
		{
			caption: "a row displacement table with an out-of-range displacement",
			comp: &RowDisplacementTable{
				OriginalRowCount: 1,
				OriginalColCount: 2,
				Entries:          []int{1, 2},
				Bounds:           []int{0, 0},
				RowDisplacement:  []int{1},
			},
		},
		{
			caption: "a row displacement table whose bounds are shorter than its entries",
			comp: &RowDisplacementTable{
				OriginalRowCount: 1,
				OriginalColCount: 2,
				Entries:          []int{1, 2},
				Bounds:           []int{0},
				RowDisplacement:  []int{0},
			},
		},
		{
			caption: "a unique entries table referring to an unknown row",
			comp: &UniqueEntriesTable{
				UniqueEntries:    []int{1, 2},
				RowNums:          []int{0, 1},
				OriginalRowCount: 2,
				OriginalColCount: 2,
			},
		},
		{
			caption: "a unique entries table with a broken row",
			comp: &UniqueEntriesTable{
				UniqueEntries:    []int{1, 2, 3},
				RowNums:          []int{0},
				OriginalRowCount: 1,
				OriginalColCount: 2,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			if err := tt.comp.Validate(); err == nil {
				t.Fatal("expected error didn't occur")
			}
		})
	}
}
