package driver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"go/format"
	"strconv"
	"text/template"

	spec "github.com/nihei9/urchin/spec/grammar"
)

const grammarTemplate = `// Code generated by urchin. DO NOT EDIT.

package {{ .PkgName }}

import (
{{- if .Lexer }}
	"encoding/json"
{{- end }}
	"io"

	"github.com/nihei9/urchin/driver"
{{- if .Lexer }}
	spec "github.com/nihei9/urchin/spec/grammar"
{{- end }}
)

type grammarImpl struct{}

// NewGrammar returns the {{ .Name }} grammar.
func NewGrammar() driver.Grammar {
	return grammarImpl{}
}

func (grammarImpl) Name() string {
	return {{ quote .Name }}
}

func (grammarImpl) EncodedActionTable() []string {
	return actionTable
}

func (grammarImpl) EncodedGoToTable() []string {
	return goToTable
}

func (grammarImpl) EncodedRuleTable() []string {
	return ruleTable
}

func (grammarImpl) EncodedMergeTable() []string {
	return mergeTable
}

func (grammarImpl) EncodedTerminalTable() []string {
	return terminalTable
}

func (grammarImpl) EOF() int {
	return {{ .EOF }}
}

func (grammarImpl) Terminal(terminal int) string {
	if terminal < 0 || terminal >= len(terminals) {
		return ""
	}
	return terminals[terminal]
}

func (grammarImpl) NonTerminal(nonTerminal int) string {
	if nonTerminal < 0 || nonTerminal >= len(nonTerminals) {
		return ""
	}
	return nonTerminals[nonTerminal]
}

func (grammarImpl) Actions() []string {
	return actions
}

func (grammarImpl) MergeActions() []string {
	return mergeActions
}

{{ if .Lexer -}}
// NewSource tokenizes src with the lexer of the grammar.
func NewSource(src io.Reader) (driver.TerminalSource, error) {
	g := &spec.CompiledGrammar{}
	if err := json.Unmarshal([]byte(compiledGrammar), g); err != nil {
		return nil, err
	}
	return driver.NewLexerSource(g, src)
}

const compiledGrammar = {{ quote .JSON }}
{{- else -}}
// NewSource reads terminals from src.
func NewSource(src io.Reader) (driver.TerminalSource, error) {
	return driver.{{ .SourceFunc }}(NewGrammar(), src)
}
{{- end }}

var terminals = {{ strings .Terminals }}

var nonTerminals = {{ strings .NonTerminals }}

var actions = {{ strings .Actions }}

var mergeActions = {{ strings .MergeActions }}

var actionTable = {{ strings .Tables.Action }}

var goToTable = {{ strings .Tables.GoTo }}

var ruleTable = {{ strings .Tables.Rule }}

var mergeTable = {{ strings .Tables.Merge }}

var terminalTable = {{ strings .Tables.Terminal }}
`

// GenGrammar generates Go source code implementing Grammar for a compiled grammar. The code also
// provides NewSource returning the terminal source the scanner of the grammar calls for.
func GenGrammar(g *spec.CompiledGrammar, pkgName string) ([]byte, error) {
	if g.Tables == nil {
		return nil, fmt.Errorf("grammar %v has no tables", g.Name)
	}

	data := struct {
		*spec.CompiledGrammar
		PkgName    string
		EOF        int
		Lexer      bool
		SourceFunc string
		JSON       string
	}{
		CompiledGrammar: g,
		PkgName:         pkgName,
		EOF:             spec.TerminalEOF,
	}
	switch g.Scanner {
	case "", "rune":
		data.SourceFunc = "NewRuneSource"
	case "byte":
		data.SourceFunc = "NewByteSource"
	case "lexer":
		b, err := json.Marshal(g)
		if err != nil {
			return nil, err
		}
		data.Lexer = true
		data.JSON = string(b)
	default:
		return nil, fmt.Errorf("unknown scanner: %v", g.Scanner)
	}

	fns := template.FuncMap{
		"quote": strconv.Quote,
		"strings": func(ss []string) string {
			var b bytes.Buffer
			b.WriteString("[]string{\n")
			for _, s := range ss {
				fmt.Fprintf(&b, "%v,\n", strconv.Quote(s))
			}
			b.WriteString("}")
			return b.String()
		},
	}
	tmpl, err := template.New("").Funcs(fns).Parse(grammarTemplate)
	if err != nil {
		return nil, err
	}
	var b bytes.Buffer
	if err := tmpl.Execute(&b, data); err != nil {
		return nil, err
	}
	src, err := format.Source(b.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to format generated code: %w", err)
	}
	return src, nil
}
