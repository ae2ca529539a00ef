package compressor

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// OriginalTable is a dense row-major table. A table may have no rows or no columns.
type OriginalTable struct {
	entries  []int
	rowCount int
	colCount int
}

func NewOriginalTable(entries []int, rowCount, colCount int) (*OriginalTable, error) {
	if rowCount < 0 || colCount < 0 {
		return nil, fmt.Errorf("table size must be >=0; row count: %v, column count: %v", rowCount, colCount)
	}
	if len(entries) != rowCount*colCount {
		return nil, fmt.Errorf("entries length or table size are incorrect; entries length: %v, table size: %vx%v", len(entries), rowCount, colCount)
	}

	return &OriginalTable{
		entries:  entries,
		rowCount: rowCount,
		colCount: colCount,
	}, nil
}

type Compressor interface {
	Compress(orig *OriginalTable) error
	Lookup(row, col int) (int, error)
	OriginalTableSize() (int, int)

	// Validate checks that a table restored from its fields is consistent enough to be looked up
	// without going out of range.
	Validate() error
}

var (
	_ Compressor = &UniqueEntriesTable{}
	_ Compressor = &RowDisplacementTable{}
)

// Expand restores the dense form of a compressed table.
func Expand(c Compressor) ([]int, error) {
	rowCount, colCount := c.OriginalTableSize()
	entries := make([]int, rowCount*colCount)
	for row := 0; row < rowCount; row++ {
		for col := 0; col < colCount; col++ {
			v, err := c.Lookup(row, col)
			if err != nil {
				return nil, err
			}
			entries[row*colCount+col] = v
		}
	}
	return entries, nil
}

// UniqueEntriesTable shares identical rows.
type UniqueEntriesTable struct {
	UniqueEntries    []int
	RowNums          []int
	OriginalRowCount int
	OriginalColCount int
}

func NewUniqueEntriesTable() *UniqueEntriesTable {
	return &UniqueEntriesTable{}
}

func (tab *UniqueEntriesTable) Lookup(row, col int) (int, error) {
	if row < 0 || row >= tab.OriginalRowCount || col < 0 || col >= tab.OriginalColCount {
		return 0, fmt.Errorf("indexes are out of range: [%v, %v]", row, col)
	}
	return tab.UniqueEntries[tab.RowNums[row]*tab.OriginalColCount+col], nil
}

func (tab *UniqueEntriesTable) OriginalTableSize() (int, int) {
	return tab.OriginalRowCount, tab.OriginalColCount
}

func (tab *UniqueEntriesTable) Validate() error {
	if tab.OriginalRowCount < 0 || tab.OriginalColCount < 0 {
		return fmt.Errorf("invalid table size: %vx%v", tab.OriginalRowCount, tab.OriginalColCount)
	}
	if len(tab.RowNums) != tab.OriginalRowCount {
		return fmt.Errorf("row number count mismatch; want: %v, got: %v", tab.OriginalRowCount, len(tab.RowNums))
	}
	if tab.OriginalColCount == 0 {
		return nil
	}
	if len(tab.UniqueEntries)%tab.OriginalColCount != 0 {
		return fmt.Errorf("unique entries are not a multiple of the column count: %v", len(tab.UniqueEntries))
	}
	uniqueRowCount := len(tab.UniqueEntries) / tab.OriginalColCount
	for row, num := range tab.RowNums {
		if num < 0 || num >= uniqueRowCount {
			return fmt.Errorf("row %v refers to an unknown unique row: %v", row, num)
		}
	}
	return nil
}

func (tab *UniqueEntriesTable) Compress(orig *OriginalTable) error {
	var uniqueEntries []int
	rowNums := make([]int, orig.rowCount)
	hash2RowNum := map[string]int{}
	nextRowNum := 0
	for row := 0; row < orig.rowCount; row++ {
		var rowHash string
		{
			buf := make([]byte, 0, orig.colCount*binary.MaxVarintLen64)
			for col := 0; col < orig.colCount; col++ {
				buf = binary.AppendVarint(buf, int64(orig.entries[row*orig.colCount+col]))
			}
			rowHash = string(buf)
		}
		rowNum, ok := hash2RowNum[rowHash]
		if !ok {
			rowNum = nextRowNum
			nextRowNum++
			hash2RowNum[rowHash] = rowNum
			start := row * orig.colCount
			uniqueEntries = append(uniqueEntries, orig.entries[start:start+orig.colCount]...)
		}
		rowNums[row] = rowNum
	}

	tab.UniqueEntries = uniqueEntries
	tab.RowNums = rowNums
	tab.OriginalRowCount = orig.rowCount
	tab.OriginalColCount = orig.colCount

	return nil
}

const ForbiddenValue = -1

// RowDisplacementTable overlays sparse rows into a single array. Bounds records which row owns each
// slot, so a slot owned by another row reads as EmptyValue.
type RowDisplacementTable struct {
	OriginalRowCount int
	OriginalColCount int
	EmptyValue       int
	Entries          []int
	Bounds           []int
	RowDisplacement  []int
}

func NewRowDisplacementTable(emptyValue int) *RowDisplacementTable {
	return &RowDisplacementTable{
		EmptyValue: emptyValue,
	}
}

func (tab *RowDisplacementTable) Lookup(row int, col int) (int, error) {
	if row < 0 || row >= tab.OriginalRowCount || col < 0 || col >= tab.OriginalColCount {
		return tab.EmptyValue, fmt.Errorf("indexes are out of range: [%v, %v]", row, col)
	}
	d := tab.RowDisplacement[row]
	if tab.Bounds[d+col] != row {
		return tab.EmptyValue, nil
	}
	return tab.Entries[d+col], nil
}

func (tab *RowDisplacementTable) OriginalTableSize() (int, int) {
	return tab.OriginalRowCount, tab.OriginalColCount
}

func (tab *RowDisplacementTable) Validate() error {
	if tab.OriginalRowCount < 0 || tab.OriginalColCount < 0 {
		return fmt.Errorf("invalid table size: %vx%v", tab.OriginalRowCount, tab.OriginalColCount)
	}
	if len(tab.RowDisplacement) != tab.OriginalRowCount {
		return fmt.Errorf("row displacement count mismatch; want: %v, got: %v", tab.OriginalRowCount, len(tab.RowDisplacement))
	}
	if len(tab.Entries) != len(tab.Bounds) {
		return fmt.Errorf("entries and bounds length mismatch: %v, %v", len(tab.Entries), len(tab.Bounds))
	}
	if tab.OriginalColCount == 0 {
		return nil
	}
	for row, d := range tab.RowDisplacement {
		if d < 0 || d+tab.OriginalColCount > len(tab.Entries) {
			return fmt.Errorf("row %v has an out-of-range displacement: %v", row, d)
		}
	}
	return nil
}

type rowInfo struct {
	rowNum        int
	nonEmptyCount int
	nonEmptyCol   []int
}

func (tab *RowDisplacementTable) Compress(orig *OriginalTable) error {
	rowInfo := make([]rowInfo, orig.rowCount)
	for row := 0; row < orig.rowCount; row++ {
		rowInfo[row].rowNum = row
		for col := 0; col < orig.colCount; col++ {
			if orig.entries[row*orig.colCount+col] == tab.EmptyValue {
				continue
			}
			rowInfo[row].nonEmptyCount++
			rowInfo[row].nonEmptyCol = append(rowInfo[row].nonEmptyCol, col)
		}
	}
	sort.SliceStable(rowInfo, func(i int, j int) bool {
		return rowInfo[i].nonEmptyCount > rowInfo[j].nonEmptyCount
	})

	origEntriesLen := len(orig.entries)
	entries := make([]int, origEntriesLen)
	bounds := make([]int, origEntriesLen)
	resultBottom := orig.colCount
	if resultBottom > origEntriesLen {
		resultBottom = origEntriesLen
	}
	rowDisplacement := make([]int, orig.rowCount)
	{
		for i := 0; i < origEntriesLen; i++ {
			entries[i] = tab.EmptyValue
			bounds[i] = ForbiddenValue
		}

		// Displacements only grow, so the last placed row determines the bottom of the result.
		nextRowDisplacement := 0
		for _, rInfo := range rowInfo {
			if rInfo.nonEmptyCount <= 0 {
				continue
			}

			for {
				isOverlapped := false
				for _, col := range rInfo.nonEmptyCol {
					if entries[nextRowDisplacement+col] == tab.EmptyValue {
						continue
					}
					nextRowDisplacement++
					isOverlapped = true
					break
				}
				if isOverlapped {
					continue
				}

				rowDisplacement[rInfo.rowNum] = nextRowDisplacement
				for _, col := range rInfo.nonEmptyCol {
					entries[nextRowDisplacement+col] = orig.entries[(rInfo.rowNum*orig.colCount)+col]
					bounds[nextRowDisplacement+col] = rInfo.rowNum
				}
				resultBottom = nextRowDisplacement + orig.colCount
				nextRowDisplacement++
				break
			}
		}
	}

	tab.OriginalRowCount = orig.rowCount
	tab.OriginalColCount = orig.colCount
	tab.Entries = entries[:resultBottom]
	tab.Bounds = bounds[:resultBottom]
	tab.RowDisplacement = rowDisplacement

	return nil
}
