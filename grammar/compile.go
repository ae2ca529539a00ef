package grammar

import (
	"fmt"
	"io"
	"sort"
	"strings"

	mlcompiler "github.com/nihei9/maleeni/compiler"
	mlspec "github.com/nihei9/maleeni/spec"
	"github.com/nihei9/urchin/codec"
	"github.com/nihei9/urchin/grammar/symbol"
	spec "github.com/nihei9/urchin/spec/grammar"
	"github.com/sirupsen/logrus"
)

// Class is the method computing look-ahead symbols of the automaton.
type Class string

const (
	ClassSLR  Class = "slr"
	ClassLALR Class = "lalr"
)

type compileConfig struct {
	isReportingEnabled bool
	logger             logrus.FieldLogger
	maxStates          int
	class              Class
}

type CompileOption func(config *compileConfig)

func EnableReporting() CompileOption {
	return func(config *compileConfig) {
		config.isReportingEnabled = true
	}
}

// Logger sets a logger receiving the progress of the compilation and the conflicts found in the
// parsing table.
func Logger(logger logrus.FieldLogger) CompileOption {
	return func(config *compileConfig) {
		config.logger = logger
	}
}

// MaxStates stops the compilation when the automaton has more states than n. n <= 0 means no limit.
func MaxStates(n int) CompileOption {
	return func(config *compileConfig) {
		config.maxStates = n
	}
}

// SpecifyClass selects the class of the parsing table. The default is ClassLALR.
func SpecifyClass(class Class) CompileOption {
	return func(config *compileConfig) {
		config.class = class
	}
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func Compile(gram *Grammar, opts ...CompileOption) (*spec.CompiledGrammar, *spec.Report, error) {
	config := &compileConfig{
		class: ClassLALR,
	}
	for _, opt := range opts {
		opt(config)
	}
	if config.logger == nil {
		config.logger = discardLogger()
	}
	logger := config.logger.WithField("grammar", gram.name)

	symTab := gram.symbolTable.Reader()
	terms := symTab.TerminalTexts()
	nonTerms, err := symTab.NonTerminalTexts()
	if err != nil {
		return nil, nil, err
	}

	var lexical *spec.LexicalSpecification
	var termTab spec.TerminalTable
	if gram.scanner == ScannerLexer {
		lexical, termTab, err = compileLexSpec(gram)
		if err != nil {
			return nil, nil, err
		}
	} else {
		termTab = genTerminalTable(gram)
	}

	firstSet, err := genFirstSet(gram.productionSet)
	if err != nil {
		return nil, nil, err
	}

	lr0, err := genLR0Automaton(gram.productionSet, gram.augmentedStartSymbol, config.maxStates)
	if err != nil {
		return nil, nil, err
	}
	logger.WithField("states", len(lr0.states)).Debug("LR(0) automaton generated")

	var tab *ParsingTable
	var report *spec.Report
	{
		var automaton *lr0Automaton
		switch config.class {
		case ClassSLR:
			followSet, err := genFollowSet(gram.productionSet, firstSet, gram.augmentedStartSymbol)
			if err != nil {
				return nil, nil, err
			}
			slr1, err := genSLR1Automaton(lr0, gram.productionSet, followSet)
			if err != nil {
				return nil, nil, err
			}
			automaton = slr1.lr0Automaton
		case ClassLALR:
			lalr1, err := genLALR1Automaton(lr0, gram.productionSet, firstSet)
			if err != nil {
				return nil, nil, err
			}
			automaton = lalr1.lr0Automaton
		default:
			return nil, nil, fmt.Errorf("unknown class: %v", config.class)
		}

		b := &lrTableBuilder{
			automaton:    automaton,
			prods:        gram.productionSet,
			termCount:    len(terms),
			nonTermCount: len(nonTerms),
			symTab:       symTab,
			precAndAssoc: gram.precAndAssoc,
			logger:       logger,
		}
		tab, err = b.build()
		if err != nil {
			return nil, nil, err
		}
		logger.WithFields(logrus.Fields{
			"class":     config.class,
			"states":    tab.stateCount,
			"conflicts": len(b.conflicts),
		}).Debug("parsing table generated")

		if config.isReportingEnabled {
			report, err = b.genReport(tab, gram)
			if err != nil {
				return nil, nil, err
			}
		}
	}

	tabs := &spec.ParsingTables{
		Action:    genActionTable(tab, gram.precAndAssoc),
		GoTo:      genGoToTable(tab),
		Rules:     genRuleTable(gram),
		Merges:    genMergeTable(gram),
		Terminals: termTab,
	}
	bundle, err := codec.Encode(tabs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode the parsing tables: %w", err)
	}

	return &spec.CompiledGrammar{
		Name:         gram.name,
		Scanner:      string(gram.scanner),
		Terminals:    terms,
		NonTerminals: nonTerms,
		Actions:      gram.actions,
		MergeActions: gram.mergeActions,
		Lexical:      lexical,
		Tables:       bundle,
	}, report, nil
}

func genActionTable(tab *ParsingTable, pa *precAndAssoc) *spec.ActionTable {
	act := spec.NewActionTable(tab.stateCount, tab.terminalCount)
	for state := 0; state < tab.stateCount; state++ {
		for term := 0; term < tab.terminalCount; term++ {
			entries := tab.getActions(stateNum(state), symbol.SymbolNum(term))
			if len(entries) == 0 {
				continue
			}
			acts := make([]spec.Action, 0, len(entries))
			for _, e := range entries {
				switch e.ty {
				case ActionTypeShift:
					acts = append(acts, spec.Action{
						Kind:  spec.ActionKindShift,
						Arg:   e.state.Int(),
						Prec:  pa.terminalPrecedence(symbol.SymbolNum(term)),
						Assoc: assocToSpec(pa.terminalAssociativity(symbol.SymbolNum(term))),
					})
				case ActionTypeReduce:
					acts = append(acts, spec.Action{
						Kind:  spec.ActionKindReduce,
						Arg:   e.prod.Int(),
						Prec:  pa.productionPredence(e.prod),
						Assoc: assocToSpec(pa.productionAssociativity(e.prod)),
					})
				case ActionTypeAccept:
					acts = append(acts, spec.Action{
						Kind: spec.ActionKindAccept,
					})
				}
			}
			act.Set(state, term, acts)
		}
	}
	return act
}

func assocToSpec(assoc Assoc) spec.Assoc {
	switch assoc {
	case AssocLeft:
		return spec.AssocLeft
	case AssocRight:
		return spec.AssocRight
	case AssocNonAssoc:
		return spec.AssocNonAssoc
	}
	return spec.AssocNil
}

func genGoToTable(tab *ParsingTable) *spec.GoToTable {
	goTo := spec.NewGoToTable(tab.stateCount, tab.nonTerminalCount)
	for state := 0; state < tab.stateCount; state++ {
		for nonTerm := 0; nonTerm < tab.nonTerminalCount; nonTerm++ {
			ty, next := tab.getGoTo(stateNum(state), symbol.SymbolNum(nonTerm))
			if ty != GoToTypeRegistered {
				continue
			}
			goTo.Set(state, nonTerm, next.Int())
		}
	}
	return goTo
}

// genRuleTable indexes rules by production number. Entry 0 is the nil production.
func genRuleTable(gram *Grammar) spec.RuleTable {
	rules := make(spec.RuleTable, gram.productionSet.count())
	for _, p := range gram.productionSet.getAllProductions() {
		rules[p.num] = spec.Rule{
			LHS:      p.lhs.Num().Int(),
			RHSLen:   p.rhsLen,
			ActionID: p.actionID,
			Builtin:  p.builtin,
		}
	}
	return rules
}

func genMergeTable(gram *Grammar) spec.MergeTable {
	merges := make(spec.MergeTable, 0, len(gram.merges))
	for _, m := range gram.merges {
		a, b := spec.MergeWildcard, spec.MergeWildcard
		if m.prodA != productionNumNil {
			a = m.prodA.Int()
			b = m.prodB.Int()
		}
		merges = append(merges, spec.Merge{
			LHS:         m.lhs.Num().Int(),
			ProductionA: a,
			ProductionB: b,
			ActionID:    m.actionID,
		})
	}
	return merges
}

// genTerminalTable maps raw codes of rune and byte grammars to terminals.
func genTerminalTable(gram *Grammar) spec.TerminalTable {
	var tab spec.TerminalTable
	for sym, ranges := range gram.term2Codes {
		for _, r := range ranges {
			tab = append(tab, spec.TerminalMapping{
				From:     int(r.from),
				To:       int(r.to),
				Terminal: sym.Num().Int(),
			})
		}
	}
	sort.Slice(tab, func(i, j int) bool {
		return tab[i].From < tab[j].From
	})
	return tab
}

// compileLexSpec compiles the lexical specification with maleeni. Kind IDs of the compiled
// specification are the raw codes the terminal table maps.
func compileLexSpec(gram *Grammar) (*spec.LexicalSpecification, spec.TerminalTable, error) {
	lexSpec, err, cErrs := mlcompiler.Compile(gram.lexSpec, mlcompiler.CompressionLevel(mlcompiler.CompressionLevelMax))
	if err != nil {
		if len(cErrs) > 0 {
			var b strings.Builder
			writeCompileError(&b, cErrs[0])
			for _, cerr := range cErrs[1:] {
				fmt.Fprintf(&b, "\n")
				writeCompileError(&b, cerr)
			}
			return nil, nil, fmt.Errorf("%s", b.String())
		}
		return nil, nil, err
	}

	kind2Sym := map[mlspec.LexKindName]symbol.Symbol{}
	for sym, kind := range gram.kindNames {
		kind2Sym[kind] = sym
	}

	var termTab spec.TerminalTable
	skip := make([]int, len(lexSpec.KindNames))
	for i, k := range lexSpec.KindNames {
		if k == mlspec.LexKindNameNil {
			continue
		}
		sym, ok := kind2Sym[k]
		if !ok {
			return nil, nil, fmt.Errorf("terminal symbol '%v' was not found in a symbol table", k)
		}
		if _, ok := gram.skipKinds[k]; ok {
			skip[i] = 1
		}
		termTab = append(termTab, spec.TerminalMapping{
			From:     i,
			To:       i,
			Terminal: sym.Num().Int(),
		})
	}

	return &spec.LexicalSpecification{
		Lexer: "maleeni",
		Maleeni: &spec.Maleeni{
			Spec: lexSpec,
			Skip: skip,
		},
	}, termTab, nil
}

func writeCompileError(w io.Writer, cErr *mlcompiler.CompileError) {
	if cErr.Fragment {
		fmt.Fprintf(w, "fragment ")
	}
	fmt.Fprintf(w, "%v: %v", cErr.Kind, cErr.Cause)
	if cErr.Detail != "" {
		fmt.Fprintf(w, ": %v", cErr.Detail)
	}
}
