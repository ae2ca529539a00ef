package grammar

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/nihei9/urchin/grammar/symbol"
)

// lrItemID identifies an LR(0) item by its production and dot position.
type lrItemID struct {
	prod productionNum
	dot  int
}

func (id lrItemID) String() string {
	return fmt.Sprintf("%v.%v", id.prod, id.dot)
}

func (id lrItemID) less(jd lrItemID) bool {
	if id.prod != jd.prod {
		return id.prod < jd.prod
	}
	return id.dot < jd.dot
}

type lookAhead struct {
	symbols map[symbol.Symbol]struct{}

	// When propagation is true, an item propagates look-ahead symbols to other items.
	propagation bool
}

type lrItem struct {
	id   lrItemID
	prod productionID

	// E → E + T
	//
	// Dot | Dotted Symbol | Item
	// ----+---------------+------------
	// 0   | E             | E →・E + T
	// 1   | +             | E → E・+ T
	// 2   | T             | E → E +・T
	// 3   | Nil           | E → E + T・
	dot          int
	dottedSymbol symbol.Symbol

	// When initial is true, the LHS of the production is the augmented start symbol and dot is 0.
	// It looks like S' →・S.
	initial bool

	// When reducible is true, the item looks like E → E + T・.
	reducible bool

	// When kernel is true, the item is kernel item.
	kernel bool

	// lookAhead stores look-ahead symbols, and they are terminal symbols.
	// The item is reducible only when the look-ahead symbols appear as the next input symbol.
	lookAhead lookAhead
}

func newLR0Item(prod *production, dot int) (*lrItem, error) {
	if prod == nil {
		return nil, fmt.Errorf("production must be non-nil")
	}

	if dot < 0 || dot > prod.rhsLen {
		return nil, fmt.Errorf("dot must be between 0 and %v", prod.rhsLen)
	}

	dottedSymbol := symbol.SymbolNil
	if dot < prod.rhsLen {
		dottedSymbol = prod.rhs[dot]
	}

	initial := false
	if prod.lhs.IsStart() && dot == 0 {
		initial = true
	}

	reducible := false
	if dot == prod.rhsLen {
		reducible = true
	}

	kernel := false
	if initial || dot > 0 {
		kernel = true
	}

	item := &lrItem{
		id: lrItemID{
			prod: prod.num,
			dot:  dot,
		},
		prod:         prod.id,
		dot:          dot,
		dottedSymbol: dottedSymbol,
		initial:      initial,
		reducible:    reducible,
		kernel:       kernel,
	}

	return item, nil
}

// kernelID is a digest of the items of a kernel. Kernels with the same ID are compared item by item
// before they are treated as the same state.
type kernelID uint64

func (id kernelID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

type kernel struct {
	id    kernelID
	items []*lrItem
}

func newKernel(items []*lrItem) (*kernel, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("a kernel need at least one item")
	}

	// Remove duplicates from items.
	var sortedItems []*lrItem
	{
		m := map[lrItemID]*lrItem{}
		for _, item := range items {
			if !item.kernel {
				return nil, fmt.Errorf("not a kernel item: %v", item.id)
			}
			m[item.id] = item
		}
		sortedItems = []*lrItem{}
		for _, item := range m {
			sortedItems = append(sortedItems, item)
		}
		sort.Slice(sortedItems, func(i, j int) bool {
			return sortedItems[i].id.less(sortedItems[j].id)
		})
	}

	var id kernelID
	{
		d := xxhash.New()
		b := make([]byte, 10)
		for _, item := range sortedItems {
			binary.LittleEndian.PutUint16(b[0:2], uint16(item.id.prod))
			binary.LittleEndian.PutUint64(b[2:10], uint64(item.id.dot))
			d.Write(b)
		}
		id = kernelID(d.Sum64())
	}

	return &kernel{
		id:    id,
		items: sortedItems,
	}, nil
}

func (k *kernel) equals(l *kernel) bool {
	if k.id != l.id || len(k.items) != len(l.items) {
		return false
	}
	for i, item := range k.items {
		if item.id != l.items[i].id {
			return false
		}
	}
	return true
}

func (k *kernel) findItem(id lrItemID) *lrItem {
	i := sort.Search(len(k.items), func(i int) bool {
		return !k.items[i].id.less(id)
	})
	if i < len(k.items) && k.items[i].id == id {
		return k.items[i]
	}
	return nil
}

type stateNum int

const stateNumInitial = stateNum(0)

func (n stateNum) Int() int {
	return int(n)
}

func (n stateNum) String() string {
	return strconv.Itoa(int(n))
}

func (n stateNum) next() stateNum {
	return stateNum(n + 1)
}

type lrState struct {
	*kernel
	num       stateNum
	next      map[symbol.Symbol]stateNum
	reducible map[productionID]struct{}

	// emptyProdItems stores items that have an empty production like `p → ε` and is reducible.
	// Thus the items emptyProdItems stores are like `p → ・ε`. emptyProdItems is needed to store
	// look-ahead symbols because the kernel items don't include these items.
	//
	// For instance, we have the following productions, and A is a terminal symbol.
	//
	// s' → s
	// s → A | ε
	//
	// CLOSURE({s' → ・s}) generates the following closure, but the kernel of this closure doesn't
	// include `s → ・ε`.
	//
	// s' → ・s
	// s → ・A
	// s → ・ε
	emptyProdItems []*lrItem
}

func (s *lrState) findEmptyProdItem(id lrItemID) *lrItem {
	for _, item := range s.emptyProdItems {
		if item.id == id {
			return item
		}
	}
	return nil
}
