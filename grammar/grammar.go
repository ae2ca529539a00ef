package grammar

import (
	"fmt"
	"strings"

	mlspec "github.com/nihei9/maleeni/spec"
	verr "github.com/nihei9/urchin/error"
	"github.com/nihei9/urchin/grammar/symbol"
	spec "github.com/nihei9/urchin/spec/grammar"
)

const (
	precNil = 0
	precMin = 1
)

// precAndAssoc represents precedence and associativities of terminal symbols and productions.
// We use the priority of the production to resolve shift/reduce conflicts.
type precAndAssoc struct {
	// termPrec and termAssoc represent the precedence of the terminal symbols.
	termPrec  map[symbol.SymbolNum]int
	termAssoc map[symbol.SymbolNum]Assoc

	// prodPrec and prodAssoc represent the precedence and the associativities of the production.
	// These values are inherited from the right-most terminal symbols in the RHS of the productions
	// unless the production has %prec.
	prodPrec  map[productionNum]int
	prodAssoc map[productionNum]Assoc
}

func (pa *precAndAssoc) terminalPrecedence(sym symbol.SymbolNum) int {
	prec, ok := pa.termPrec[sym]
	if !ok {
		return precNil
	}

	return prec
}

func (pa *precAndAssoc) terminalAssociativity(sym symbol.SymbolNum) Assoc {
	assoc, ok := pa.termAssoc[sym]
	if !ok {
		return AssocNil
	}

	return assoc
}

func (pa *precAndAssoc) productionPredence(prod productionNum) int {
	prec, ok := pa.prodPrec[prod]
	if !ok {
		return precNil
	}

	return prec
}

func (pa *precAndAssoc) productionAssociativity(prod productionNum) Assoc {
	assoc, ok := pa.prodAssoc[prod]
	if !ok {
		return AssocNil
	}

	return assoc
}

type mergeEntry struct {
	lhs symbol.Symbol

	// prodA and prodB are productionNumNil in a wildcard entry.
	prodA    productionNum
	prodB    productionNum
	actionID int
}

type Grammar struct {
	name                 string
	scanner              Scanner
	symbolTable          *symbol.SymbolTable
	productionSet        *productionSet
	augmentedStartSymbol symbol.Symbol
	startSymbol          symbol.Symbol
	precAndAssoc         *precAndAssoc
	actions              []string
	mergeActions         []string
	merges               []*mergeEntry

	// auxSymbols is the set of non-terminals generated by desugaring.
	auxSymbols map[symbol.Symbol]struct{}

	// term2Codes holds raw codes of terminals in rune and byte grammars.
	term2Codes map[symbol.Symbol][]codeRange

	// lexSpec, kindNames, and skipKinds are set in lexer grammars.
	lexSpec   *mlspec.LexSpec
	kindNames map[symbol.Symbol]mlspec.LexKindName
	skipKinds map[mlspec.LexKindName]struct{}
	term2Pat  map[symbol.Symbol]string
	anonTerms map[symbol.Symbol]struct{}
}

func (g *Grammar) Name() string {
	return g.name
}

type GrammarBuilder struct {
	Def *Definition

	errs verr.SpecErrors
}

func (b *GrammarBuilder) Build() (*Grammar, error) {
	def := b.Def
	if def == nil || len(def.Rules) == 0 {
		b.errs = append(b.errs, &verr.SpecError{
			Cause: semErrNoProduction,
		})
		return nil, b.errs
	}

	name := def.Name
	if name == "" {
		name = "grammar"
	}

	scanner := def.Scanner
	switch scanner {
	case "":
		scanner = ScannerRune
	case ScannerRune, ScannerByte, ScannerLexer:
	default:
		b.errs = append(b.errs, &verr.SpecError{
			Cause:  semErrInvalidScanner,
			Detail: string(scanner),
		})
		return nil, b.errs
	}

	symTab := symbol.NewSymbolTable()
	terms := b.genTerminalSymbols(def, scanner, symTab)
	if len(b.errs) > 0 {
		return nil, b.errs
	}

	startSym, augStartSym, err := b.genNonTerminalSymbols(def, symTab)
	if err != nil {
		return nil, err
	}
	if len(b.errs) > 0 {
		return nil, b.errs
	}

	pa := b.genTerminalPrecAndAssoc(def, symTab)

	d := &desugarer{
		b:        b,
		symTab:   symTab,
		terms:    terms,
		prods:    newProductionSet(),
		aux:      map[symbol.Symbol]struct{}{},
		auxCount: map[symbol.Symbol]int{},
		memo:     map[string]symbol.Symbol{},
		labels:   map[string][]*production{},
		precSyms: map[productionNum]symbol.Symbol{},
	}
	actions, err := d.genProductions(def, startSym, augStartSym)
	if err != nil {
		return nil, err
	}
	if len(b.errs) > 0 {
		return nil, b.errs
	}

	b.genProductionPrecAndAssoc(pa, d)
	merges, mergeActs := b.genMerges(def, symTab, d.labels)
	b.checkUnusedProductions(def, symTab, d.prods, startSym)
	if len(b.errs) > 0 {
		return nil, b.errs
	}

	gram := &Grammar{
		name:                 name,
		scanner:              scanner,
		symbolTable:          symTab,
		productionSet:        d.prods,
		augmentedStartSymbol: augStartSym,
		startSymbol:          startSym,
		precAndAssoc:         pa,
		actions:              actions,
		mergeActions:         mergeActs,
		merges:               merges,
		auxSymbols:           d.aux,
	}

	if scanner == ScannerLexer {
		b.genLexSpec(gram, def, terms, d.used)
	} else {
		b.genRawCodes(gram, def, scanner, terms)
	}
	if len(b.errs) > 0 {
		return nil, b.errs
	}

	return gram, nil
}

type terminalSet struct {
	// anonChars holds character literals in the order of appearance.
	anonChars []rune
	char2Sym  map[rune]symbol.Symbol
	char2Pos  map[rune]Pos
	defs      map[symbol.Symbol]*TerminalDef
	skip      map[symbol.Symbol]struct{}
}

func isReservedSymbolName(name string) bool {
	switch name {
	case symbol.SymbolNameEOF, symbol.SymbolNameScanError, symbol.SymbolNameException:
		return true
	}
	return false
}

// genTerminalSymbols registers character literals before named terminals. In lexer grammars this
// order gives literals priority over named patterns of the same length.
func (b *GrammarBuilder) genTerminalSymbols(def *Definition, scanner Scanner, symTab *symbol.SymbolTable) *terminalSet {
	w := symTab.Writer()
	r := symTab.Reader()
	terms := &terminalSet{
		char2Sym: map[rune]symbol.Symbol{},
		char2Pos: map[rune]Pos{},
		defs:     map[symbol.Symbol]*TerminalDef{},
		skip:     map[symbol.Symbol]struct{}{},
	}

	for _, rule := range def.Rules {
		if rule.RHS == nil {
			continue
		}
		walkExpr(rule.RHS, func(e Expr) bool {
			c, ok := e.(*CharRef)
			if !ok {
				return true
			}
			if _, known := terms.char2Sym[c.Char]; known {
				return true
			}
			if scanner == ScannerByte && (c.Char < 0 || c.Char > 0xff) {
				b.errs = append(b.errs, &verr.SpecError{
					Cause:  semErrCodeOutOfRange,
					Detail: c.String(),
					Row:    c.Position().Row,
					Col:    c.Position().Col,
				})
				return true
			}
			sym, err := w.RegisterTerminalSymbol(charTerminalName(c.Char))
			if err != nil {
				b.errs = append(b.errs, &verr.SpecError{
					Cause:  semErrDuplicateName,
					Detail: err.Error(),
					Row:    c.Position().Row,
					Col:    c.Position().Col,
				})
				return true
			}
			terms.anonChars = append(terms.anonChars, c.Char)
			terms.char2Sym[c.Char] = sym
			terms.char2Pos[c.Char] = c.Position()
			return true
		})
	}

	for _, t := range def.Terminals {
		if isReservedSymbolName(t.Name) {
			b.errs = append(b.errs, &verr.SpecError{
				Cause:  semErrReservedSymbol,
				Detail: t.Name,
				Row:    t.Pos.Row,
				Col:    t.Pos.Col,
			})
			continue
		}
		if _, exist := r.ToSymbol(t.Name); exist {
			b.errs = append(b.errs, &verr.SpecError{
				Cause:  semErrDuplicateTerminal,
				Detail: t.Name,
				Row:    t.Pos.Row,
				Col:    t.Pos.Col,
			})
			continue
		}
		sym, err := w.RegisterTerminalSymbol(t.Name)
		if err != nil {
			b.errs = append(b.errs, &verr.SpecError{
				Cause:  semErrDuplicateName,
				Detail: err.Error(),
				Row:    t.Pos.Row,
				Col:    t.Pos.Col,
			})
			continue
		}
		terms.defs[sym] = t
		if t.Skip {
			terms.skip[sym] = struct{}{}
		}
	}

	return terms
}

func (b *GrammarBuilder) genNonTerminalSymbols(def *Definition, symTab *symbol.SymbolTable) (symbol.Symbol, symbol.Symbol, error) {
	w := symTab.Writer()
	r := symTab.Reader()

	start := def.Start
	if start == "" {
		start = def.Rules[0].LHS
	}

	hasStartRule := false
	for _, rule := range def.Rules {
		if rule.LHS == start {
			hasStartRule = true
		}
		if sym, exist := r.ToSymbol(rule.LHS); exist {
			if sym.IsTerminal() {
				b.errs = append(b.errs, &verr.SpecError{
					Cause:  semErrDuplicateName,
					Detail: rule.LHS,
					Row:    rule.Pos.Row,
					Col:    rule.Pos.Col,
				})
			}
			continue
		}
		if isReservedSymbolName(rule.LHS) || strings.Contains(rule.LHS, "@") {
			b.errs = append(b.errs, &verr.SpecError{
				Cause:  semErrReservedSymbol,
				Detail: rule.LHS,
				Row:    rule.Pos.Row,
				Col:    rule.Pos.Col,
			})
			continue
		}
		if _, err := w.RegisterNonTerminalSymbol(rule.LHS); err != nil {
			return symbol.SymbolNil, symbol.SymbolNil, err
		}
	}
	if !hasStartRule {
		b.errs = append(b.errs, &verr.SpecError{
			Cause:  semErrNoStartRule,
			Detail: start,
		})
		return symbol.SymbolNil, symbol.SymbolNil, nil
	}

	startSym, _ := r.ToSymbol(start)
	augStartSym, err := w.RegisterStartSymbol(start + "'")
	if err != nil {
		return symbol.SymbolNil, symbol.SymbolNil, err
	}

	return startSym, augStartSym, nil
}

func (b *GrammarBuilder) genTerminalPrecAndAssoc(def *Definition, symTab *symbol.SymbolTable) *precAndAssoc {
	r := symTab.Reader()
	termPrec := map[symbol.SymbolNum]int{}
	termAssoc := map[symbol.SymbolNum]Assoc{}
	for i, lvl := range def.Precedence {
		switch lvl.Assoc {
		case AssocLeft, AssocRight, AssocNonAssoc:
		default:
			b.errs = append(b.errs, &verr.SpecError{
				Cause:  semErrInvalidAssoc,
				Detail: string(lvl.Assoc),
				Row:    lvl.Pos.Row,
				Col:    lvl.Pos.Col,
			})
			continue
		}

		for _, name := range lvl.Terminals {
			sym, ok := r.ToSymbol(name)
			if !ok || !sym.IsTerminal() {
				b.errs = append(b.errs, &verr.SpecError{
					Cause:  semErrUndefinedSym,
					Detail: name,
					Row:    lvl.Pos.Row,
					Col:    lvl.Pos.Col,
				})
				continue
			}
			if _, dup := termPrec[sym.Num()]; dup {
				b.errs = append(b.errs, &verr.SpecError{
					Cause:  semErrDuplicateAssoc,
					Detail: name,
					Row:    lvl.Pos.Row,
					Col:    lvl.Pos.Col,
				})
				continue
			}
			termPrec[sym.Num()] = precMin + i
			termAssoc[sym.Num()] = lvl.Assoc
		}
	}

	return &precAndAssoc{
		termPrec:  termPrec,
		termAssoc: termAssoc,
		prodPrec:  map[productionNum]int{},
		prodAssoc: map[productionNum]Assoc{},
	}
}

func (b *GrammarBuilder) genProductionPrecAndAssoc(pa *precAndAssoc, d *desugarer) {
	for _, prod := range d.prods.getAllProductions() {
		if precSym, ok := d.precSyms[prod.num]; ok {
			pa.prodPrec[prod.num] = pa.terminalPrecedence(precSym.Num())
			pa.prodAssoc[prod.num] = pa.terminalAssociativity(precSym.Num())
			continue
		}

		for i := len(prod.rhs) - 1; i >= 0; i-- {
			sym := prod.rhs[i]
			if !sym.IsTerminal() {
				continue
			}
			prec := pa.terminalPrecedence(sym.Num())
			if prec == precNil {
				continue
			}
			pa.prodPrec[prod.num] = prec
			pa.prodAssoc[prod.num] = pa.terminalAssociativity(sym.Num())
			break
		}
	}
}

func (b *GrammarBuilder) genMerges(def *Definition, symTab *symbol.SymbolTable, labels map[string][]*production) ([]*mergeEntry, []string) {
	r := symTab.Reader()
	mergeActs := []string{""}
	actIDs := map[string]int{}
	known := map[string]struct{}{}
	var merges []*mergeEntry
	for _, m := range def.Merges {
		sym, ok := r.ToSymbol(m.Symbol)
		if !ok || !sym.IsNonTerminal() || sym.IsStart() {
			b.errs = append(b.errs, &verr.SpecError{
				Cause:  semErrUndefinedSym,
				Detail: m.Symbol,
				Row:    m.Pos.Row,
				Col:    m.Pos.Col,
			})
			continue
		}
		if m.Action == "" {
			b.errs = append(b.errs, &verr.SpecError{
				Cause:  semErrNoMergeAction,
				Detail: m.Symbol,
				Row:    m.Pos.Row,
				Col:    m.Pos.Col,
			})
			continue
		}
		if len(m.Rules) != 0 && len(m.Rules) != 2 {
			b.errs = append(b.errs, &verr.SpecError{
				Cause:  semErrInvalidMergeRules,
				Detail: m.Symbol,
				Row:    m.Pos.Row,
				Col:    m.Pos.Col,
			})
			continue
		}

		key := m.Symbol
		if len(m.Rules) == 2 {
			a, z := m.Rules[0], m.Rules[1]
			if a > z {
				a, z = z, a
			}
			key = fmt.Sprintf("%v %v %v", m.Symbol, a, z)
		}
		if _, dup := known[key]; dup {
			b.errs = append(b.errs, &verr.SpecError{
				Cause:  semErrDuplicateMerge,
				Detail: key,
				Row:    m.Pos.Row,
				Col:    m.Pos.Col,
			})
			continue
		}
		known[key] = struct{}{}

		actID, ok := actIDs[m.Action]
		if !ok {
			actID = len(mergeActs)
			actIDs[m.Action] = actID
			mergeActs = append(mergeActs, m.Action)
		}

		if len(m.Rules) == 0 {
			merges = append(merges, &mergeEntry{
				lhs:      sym,
				prodA:    productionNumNil,
				prodB:    productionNumNil,
				actionID: actID,
			})
			continue
		}

		var pairs [2][]*production
		valid := true
		for i, label := range m.Rules {
			for _, p := range labels[label] {
				if p.lhs == sym {
					pairs[i] = append(pairs[i], p)
				}
			}
			if len(pairs[i]) == 0 {
				b.errs = append(b.errs, &verr.SpecError{
					Cause:  semErrUndefinedLabel,
					Detail: label,
					Row:    m.Pos.Row,
					Col:    m.Pos.Col,
				})
				valid = false
			}
		}
		if !valid {
			continue
		}
		for _, pa := range pairs[0] {
			for _, pb := range pairs[1] {
				merges = append(merges, &mergeEntry{
					lhs:      sym,
					prodA:    pa.num,
					prodB:    pb.num,
					actionID: actID,
				})
			}
		}
	}
	return merges, mergeActs
}

func (b *GrammarBuilder) checkUnusedProductions(def *Definition, symTab *symbol.SymbolTable, prods *productionSet, startSym symbol.Symbol) {
	used := map[symbol.Symbol]struct{}{
		startSym: {},
	}
	queue := []symbol.Symbol{startSym}
	for len(queue) > 0 {
		sym := queue[0]
		queue = queue[1:]
		ps, _ := prods.findByLHS(sym)
		for _, p := range ps {
			for _, s := range p.rhs {
				if !s.IsNonTerminal() {
					continue
				}
				if _, ok := used[s]; ok {
					continue
				}
				used[s] = struct{}{}
				queue = append(queue, s)
			}
		}
	}

	r := symTab.Reader()
	reported := map[string]struct{}{}
	for _, rule := range def.Rules {
		if _, done := reported[rule.LHS]; done {
			continue
		}
		sym, ok := r.ToSymbol(rule.LHS)
		if !ok {
			continue
		}
		if _, ok := used[sym]; ok {
			continue
		}
		reported[rule.LHS] = struct{}{}
		b.errs = append(b.errs, &verr.SpecError{
			Cause:  semErrUnusedProduction,
			Detail: rule.LHS,
			Row:    rule.Pos.Row,
			Col:    rule.Pos.Col,
		})
	}
}

func (b *GrammarBuilder) genRawCodes(gram *Grammar, def *Definition, scanner Scanner, terms *terminalSet) {
	term2Codes := map[symbol.Symbol][]codeRange{}
	owners := map[symbol.Symbol]Pos{}
	for _, c := range terms.anonChars {
		sym := terms.char2Sym[c]
		term2Codes[sym] = []codeRange{{from: c, to: c}}
		owners[sym] = terms.char2Pos[c]
	}

	for sym, t := range terms.defs {
		if t.Pattern != "" || t.Literal != "" || t.Skip {
			b.errs = append(b.errs, &verr.SpecError{
				Cause:  semErrInvalidTerminalDef,
				Detail: fmt.Sprintf("%v: patterns, literals, and skip are available only in lexer grammars", t.Name),
				Row:    t.Pos.Row,
				Col:    t.Pos.Col,
			})
			continue
		}
		ranges, err := parseCharClass(t.Chars)
		if err != nil {
			b.errs = append(b.errs, &verr.SpecError{
				Cause:  semErrInvalidCharClass,
				Detail: fmt.Sprintf("%v: %v", t.Name, err),
				Row:    t.Pos.Row,
				Col:    t.Pos.Col,
			})
			continue
		}
		if scanner == ScannerByte && ranges[len(ranges)-1].to > 0xff {
			b.errs = append(b.errs, &verr.SpecError{
				Cause:  semErrCodeOutOfRange,
				Detail: t.Name,
				Row:    t.Pos.Row,
				Col:    t.Pos.Col,
			})
			continue
		}
		term2Codes[sym] = ranges
		owners[sym] = t.Pos
	}

	// Every raw code must belong to one terminal at most.
	syms := symTabTerminalOrder(gram.symbolTable, term2Codes)
	for i, a := range syms {
		for _, z := range syms[i+1:] {
			if !codeRangesOverlap(term2Codes[a], term2Codes[z]) {
				continue
			}
			aText, _ := gram.symbolTable.Reader().ToText(a)
			zText, _ := gram.symbolTable.Reader().ToText(z)
			b.errs = append(b.errs, &verr.SpecError{
				Cause:  semErrCodeConflict,
				Detail: fmt.Sprintf("%v and %v", aText, zText),
				Row:    owners[z].Row,
				Col:    owners[z].Col,
			})
		}
	}

	gram.term2Codes = term2Codes
}

func symTabTerminalOrder(symTab *symbol.SymbolTable, term2Codes map[symbol.Symbol][]codeRange) []symbol.Symbol {
	var syms []symbol.Symbol
	for _, sym := range symTab.Reader().TerminalSymbols() {
		if _, ok := term2Codes[sym]; ok {
			syms = append(syms, sym)
		}
	}
	return syms
}

func codeRangesOverlap(a, z []codeRange) bool {
	i, j := 0, 0
	for i < len(a) && j < len(z) {
		if a[i].to < z[j].from {
			i++
			continue
		}
		if z[j].to < a[i].from {
			j++
			continue
		}
		return true
	}
	return false
}

// genLexSpec builds a maleeni lexical specification. Character literals become anonymous kinds named
// `x_<n>`, and named terminals keep their names as kind names.
func (b *GrammarBuilder) genLexSpec(gram *Grammar, def *Definition, terms *terminalSet, used map[symbol.Symbol]struct{}) {
	var entries []*mlspec.LexEntry
	kindNames := map[symbol.Symbol]mlspec.LexKindName{}
	term2Pat := map[symbol.Symbol]string{}
	anon := map[symbol.Symbol]struct{}{}
	for i, c := range terms.anonChars {
		sym := terms.char2Sym[c]
		kind := mlspec.LexKindName(fmt.Sprintf("x_%v", i+1))
		pat := mlspec.EscapePattern(string(c))
		entries = append(entries, &mlspec.LexEntry{
			Kind:    kind,
			Pattern: mlspec.LexPattern(pat),
		})
		kindNames[sym] = kind
		term2Pat[sym] = pat
		anon[sym] = struct{}{}
	}

	skipKinds := map[mlspec.LexKindName]struct{}{}
	for _, t := range def.Terminals {
		sym, ok := gram.symbolTable.Reader().ToSymbol(t.Name)
		if !ok {
			continue
		}

		var pat string
		n := 0
		if t.Pattern != "" {
			pat = t.Pattern
			n++
		}
		if t.Literal != "" {
			pat = mlspec.EscapePattern(t.Literal)
			n++
		}
		if t.Chars != "" {
			pat = "[" + t.Chars + "]"
			n++
		}
		if n != 1 {
			b.errs = append(b.errs, &verr.SpecError{
				Cause:  semErrInvalidTerminalDef,
				Detail: fmt.Sprintf("%v: a terminal of a lexer grammar needs exactly one of pattern, literal, or chars", t.Name),
				Row:    t.Pos.Row,
				Col:    t.Pos.Col,
			})
			continue
		}
		if t.Skip {
			if _, ok := used[sym]; ok {
				b.errs = append(b.errs, &verr.SpecError{
					Cause:  semErrTermCannotBeSkipped,
					Detail: t.Name,
					Row:    t.Pos.Row,
					Col:    t.Pos.Col,
				})
				continue
			}
			skipKinds[mlspec.LexKindName(t.Name)] = struct{}{}
		}

		entries = append(entries, &mlspec.LexEntry{
			Kind:    mlspec.LexKindName(t.Name),
			Pattern: mlspec.LexPattern(pat),
		})
		kindNames[sym] = mlspec.LexKindName(t.Name)
		term2Pat[sym] = pat
	}

	gram.lexSpec = &mlspec.LexSpec{
		Name:    gram.name,
		Entries: entries,
	}
	gram.kindNames = kindNames
	gram.skipKinds = skipKinds
	gram.term2Pat = term2Pat
	gram.anonTerms = anon
}

type desugarer struct {
	b        *GrammarBuilder
	symTab   *symbol.SymbolTable
	terms    *terminalSet
	prods    *productionSet
	aux      map[symbol.Symbol]struct{}
	auxCount map[symbol.Symbol]int
	memo     map[string]symbol.Symbol
	labels   map[string][]*production
	precSyms map[productionNum]symbol.Symbol

	// used is the set of terminals appearing in productions.
	used map[symbol.Symbol]struct{}
}

func (d *desugarer) errorf(cause error, pos Pos, detail string) {
	d.b.errs = append(d.b.errs, &verr.SpecError{
		Cause:  cause,
		Detail: detail,
		Row:    pos.Row,
		Col:    pos.Col,
	})
}

func (d *desugarer) genProductions(def *Definition, startSym, augStartSym symbol.Symbol) ([]string, error) {
	d.used = map[symbol.Symbol]struct{}{}

	startProd, err := newProduction(augStartSym, []symbol.Symbol{startSym})
	if err != nil {
		return nil, err
	}
	d.prods.append(startProd)

	r := d.symTab.Reader()
	actions := []string{""}
	actIDs := map[string]int{}
	for _, rule := range def.Rules {
		lhs, ok := r.ToSymbol(rule.LHS)
		if !ok || !lhs.IsNonTerminal() {
			continue
		}
		if rule.RHS == nil {
			d.errorf(semErrEmptyRHS, rule.Pos, rule.LHS)
			continue
		}

		actID := 0
		if rule.Action != "" {
			id, ok := actIDs[rule.Action]
			if !ok {
				id = len(actions)
				actIDs[rule.Action] = id
				actions = append(actions, rule.Action)
			}
			actID = id
		}

		precSym := symbol.SymbolNil
		if rule.Prec != "" {
			sym, ok := r.ToSymbol(rule.Prec)
			if !ok || !sym.IsTerminal() {
				d.errorf(semErrUndefinedPrecSym, rule.Pos, rule.Prec)
				continue
			}
			precSym = sym
		}

		alts := []Expr{rule.RHS}
		if alt, ok := rule.RHS.(*AltExpr); ok {
			alts = alt.Alts
		}
		for _, alt := range alts {
			rhs, ok := d.rhsSymbols(lhs, alt)
			if !ok {
				continue
			}
			prod, err := newProduction(lhs, rhs)
			if err != nil {
				return nil, err
			}
			prod.actionID = actID
			prod.label = rule.Label
			prod.pos = rule.Pos
			if !d.prods.append(prod) {
				d.errorf(semErrDuplicateProduction, alt.Position(), fmt.Sprintf("%v → %v", rule.LHS, alt))
				continue
			}
			if rule.Label != "" {
				d.labels[rule.Label] = append(d.labels[rule.Label], prod)
			}
			if !precSym.IsNil() {
				d.precSyms[prod.num] = precSym
			}
		}
	}

	return actions, nil
}

// rhsSymbols converts an alternative into the RHS of one production. Only the top level of a
// sequence is spliced; nested constructs become auxiliary non-terminals.
func (d *desugarer) rhsSymbols(lhs symbol.Symbol, e Expr) ([]symbol.Symbol, bool) {
	items := []Expr{e}
	if seq, ok := e.(*SeqExpr); ok {
		items = seq.Items
	}
	rhs := make([]symbol.Symbol, 0, len(items))
	ok := true
	for _, item := range items {
		sym, good := d.elemSymbol(lhs, item)
		if !good {
			ok = false
			continue
		}
		rhs = append(rhs, sym)
	}
	return rhs, ok
}

func (d *desugarer) elemSymbol(lhs symbol.Symbol, e Expr) (symbol.Symbol, bool) {
	r := d.symTab.Reader()
	switch x := e.(type) {
	case *TermRef:
		if x.Name == symbol.SymbolNameEOF || x.Name == symbol.SymbolNameException {
			d.errorf(semErrReservedSymbolRef, x.Position(), x.Name)
			return symbol.SymbolNil, false
		}
		sym, ok := r.ToSymbol(x.Name)
		if !ok || !sym.IsTerminal() {
			d.errorf(semErrUndefinedSym, x.Position(), x.Name)
			return symbol.SymbolNil, false
		}
		d.used[sym] = struct{}{}
		return sym, true
	case *CharRef:
		sym, ok := d.terms.char2Sym[x.Char]
		if !ok {
			// The character was rejected while registering terminals.
			return symbol.SymbolNil, false
		}
		d.used[sym] = struct{}{}
		return sym, true
	case *NonTermRef:
		sym, ok := r.ToSymbol(x.Name)
		if !ok || !sym.IsNonTerminal() || sym.IsStart() {
			d.errorf(semErrUndefinedSym, x.Position(), x.Name)
			return symbol.SymbolNil, false
		}
		return sym, true
	case *SeqExpr:
		if len(x.Items) == 1 {
			return d.elemSymbol(lhs, x.Items[0])
		}
		return d.genAux(lhs, x, func(aux symbol.Symbol) bool {
			rhs, ok := d.rhsSymbols(lhs, x)
			if !ok {
				return false
			}
			return d.appendAux(aux, rhs, spec.BuiltinTuple, x.Position())
		})
	case *AltExpr:
		if len(x.Alts) == 1 {
			return d.elemSymbol(lhs, x.Alts[0])
		}
		return d.genAux(lhs, x, func(aux symbol.Symbol) bool {
			ok := true
			for _, alt := range x.Alts {
				rhs, good := d.rhsSymbols(lhs, alt)
				if !good {
					ok = false
					continue
				}
				builtin := spec.BuiltinTuple
				switch len(rhs) {
				case 0:
					builtin = spec.BuiltinOptionalNone
				case 1:
					builtin = spec.BuiltinPassThrough
				}
				if !d.appendAux(aux, rhs, builtin, alt.Position()) {
					ok = false
				}
			}
			return ok
		})
	case *StarExpr:
		item, ok := d.elemSymbol(lhs, x.Item)
		if !ok {
			return symbol.SymbolNil, false
		}
		return d.genAux(lhs, x, func(aux symbol.Symbol) bool {
			return d.appendAux(aux, nil, spec.BuiltinListEmpty, x.Position()) &&
				d.appendAux(aux, []symbol.Symbol{aux, item}, spec.BuiltinListAppend, x.Position())
		})
	case *PlusExpr:
		item, ok := d.elemSymbol(lhs, x.Item)
		if !ok {
			return symbol.SymbolNil, false
		}
		return d.genAux(lhs, x, func(aux symbol.Symbol) bool {
			return d.appendAux(aux, []symbol.Symbol{item}, spec.BuiltinListSingle, x.Position()) &&
				d.appendAux(aux, []symbol.Symbol{aux, item}, spec.BuiltinListAppend, x.Position())
		})
	case *SepListExpr:
		item, ok := d.elemSymbol(lhs, x.Item)
		if !ok {
			return symbol.SymbolNil, false
		}
		sep, ok := d.elemSymbol(lhs, x.Sep)
		if !ok {
			return symbol.SymbolNil, false
		}
		return d.genAux(lhs, x, func(aux symbol.Symbol) bool {
			return d.appendAux(aux, []symbol.Symbol{item}, spec.BuiltinListSingle, x.Position()) &&
				d.appendAux(aux, []symbol.Symbol{aux, sep, item}, spec.BuiltinListAppendSkipSep, x.Position())
		})
	case *OptExpr:
		item, ok := d.elemSymbol(lhs, x.Item)
		if !ok {
			return symbol.SymbolNil, false
		}
		return d.genAux(lhs, x, func(aux symbol.Symbol) bool {
			return d.appendAux(aux, nil, spec.BuiltinOptionalNone, x.Position()) &&
				d.appendAux(aux, []symbol.Symbol{item}, spec.BuiltinPassThrough, x.Position())
		})
	}
	return symbol.SymbolNil, false
}

// genAux returns the auxiliary non-terminal for e. Structurally equal expressions under the same LHS
// share one auxiliary non-terminal.
func (d *desugarer) genAux(lhs symbol.Symbol, e Expr, genProds func(aux symbol.Symbol) bool) (symbol.Symbol, bool) {
	key := fmt.Sprintf("%v\x00%T\x00%v", lhs, e, e)
	if sym, ok := d.memo[key]; ok {
		return sym, true
	}

	r := d.symTab.Reader()
	lhsText, _ := r.ToText(lhs)
	d.auxCount[lhs]++
	sym, err := d.symTab.Writer().RegisterNonTerminalSymbol(fmt.Sprintf("%v@%v", lhsText, d.auxCount[lhs]))
	if err != nil {
		d.errorf(semErrDuplicateName, e.Position(), err.Error())
		return symbol.SymbolNil, false
	}
	d.aux[sym] = struct{}{}
	d.memo[key] = sym

	if !genProds(sym) {
		return symbol.SymbolNil, false
	}
	return sym, true
}

func (d *desugarer) appendAux(lhs symbol.Symbol, rhs []symbol.Symbol, builtin spec.BuiltinKind, pos Pos) bool {
	prod, err := newProduction(lhs, rhs)
	if err != nil {
		d.errorf(semErrDuplicateProduction, pos, err.Error())
		return false
	}
	prod.builtin = builtin
	prod.pos = pos
	if !d.prods.append(prod) {
		d.errorf(semErrDuplicateProduction, pos, "an alternative appears twice in a group")
		return false
	}
	return true
}
