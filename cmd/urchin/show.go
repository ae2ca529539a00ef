package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/template"

	gspec "github.com/nihei9/urchin/spec/grammar"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:     "show",
		Short:   "Print a report in a readable format",
		Example: `  urchin show grammar-report.json`,
		Args:    cobra.ExactArgs(1),
		RunE:    runShow,
	}
	rootCmd.AddCommand(cmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	report, err := readReport(args[0])
	if err != nil {
		return err
	}

	err = writeReport(os.Stdout, report)
	if err != nil {
		return err
	}

	return nil
}

func readReport(path string) (*gspec.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("Cannot open the report %s: %w", path, err)
	}
	defer f.Close()

	d, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	report := &gspec.Report{}
	err = json.Unmarshal(d, report)
	if err != nil {
		return nil, err
	}

	return report, nil
}

const reportTemplate = `# Conflicts

{{ printConflictSummary . }}

# Terminals

{{ printTerminals . }}
# Productions

{{ printProductions . }}
# States
{{ range .States }}
## State {{ .Number }}

{{ range .Kernel -}}
{{ printItem . }}
{{ end }}
{{ range .Shift -}}
{{ printShift . }}
{{ end -}}
{{ range .Reduce -}}
{{ printReduce . }}
{{ end -}}
{{ if .Accept -}}
accept on <eof>
{{ end -}}
{{ range .GoTo -}}
{{ printGoTo . }}
{{ end }}
{{ range .SRConflict -}}
{{ printSRConflict . }}
{{ end -}}
{{ range .RRConflict -}}
{{ printRRConflict . }}
{{ end -}}
{{ end }}`

func writeReport(w io.Writer, report *gspec.Report) error {
	termName := func(sym int) string {
		if sym <= 0 || sym >= len(report.Terminals) || report.Terminals[sym] == nil {
			return fmt.Sprintf("#%v", sym)
		}
		return report.Terminals[sym].Name
	}

	nonTermName := func(sym int) string {
		if sym <= 0 || sym >= len(report.NonTerminals) || report.NonTerminals[sym] == nil {
			return fmt.Sprintf("#%v", sym)
		}
		return report.NonTerminals[sym].Name
	}

	assocName := func(assoc string) string {
		switch assoc {
		case "l":
			return "left"
		case "r":
			return "right"
		case "n":
			return "non"
		default:
			return "no"
		}
	}

	precText := func(prec int) string {
		if prec == 0 {
			return "-"
		}
		return strconv.Itoa(prec)
	}

	assocText := func(assoc string) string {
		if assoc == "" {
			return "-"
		}
		return assoc
	}

	rhsText := func(rhs []int, dot int) string {
		var b strings.Builder
		for i, e := range rhs {
			if i == dot {
				fmt.Fprintf(&b, " ・")
			}
			if e > 0 {
				fmt.Fprintf(&b, " %v", termName(e))
			} else {
				fmt.Fprintf(&b, " %v", nonTermName(e*-1))
			}
		}
		if dot >= 0 && dot >= len(rhs) {
			fmt.Fprintf(&b, " ・")
		}
		if len(rhs) == 0 && dot < 0 {
			fmt.Fprintf(&b, " ε")
		}
		return b.String()
	}

	fns := template.FuncMap{
		"printConflictSummary": func(report *gspec.Report) string {
			var resolvedCount int
			var unresolvedCount int
			for _, s := range report.States {
				for _, c := range s.SRConflict {
					if c.ResolvedBy == gspec.ResolvedByUnresolved {
						unresolvedCount++
					} else {
						resolvedCount++
					}
				}
				unresolvedCount += len(s.RRConflict)
			}

			var b strings.Builder
			if resolvedCount == 1 {
				fmt.Fprintf(&b, "%v conflict occurred and resolved by precedence.\n", resolvedCount)
			} else if resolvedCount > 1 {
				fmt.Fprintf(&b, "%v conflicts occurred and resolved by precedence.\n", resolvedCount)
			}
			if unresolvedCount == 1 {
				fmt.Fprintf(&b, "%v conflict remains and is explored at parse time.\n", unresolvedCount)
			} else if unresolvedCount > 1 {
				fmt.Fprintf(&b, "%v conflicts remain and are explored at parse time.\n", unresolvedCount)
			}
			if resolvedCount == 0 && unresolvedCount == 0 {
				fmt.Fprintf(&b, "No conflict")
			}
			return b.String()
		},
		"printTerminals": func(report *gspec.Report) string {
			var b strings.Builder
			table := tablewriter.NewWriter(&b)
			table.SetHeader([]string{"#", "Prec", "Assoc", "Name", "Codes"})
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			for _, term := range report.Terminals {
				if term == nil {
					continue
				}
				codes := term.Codes
				if term.Pattern != "" {
					codes = term.Pattern
				}
				table.Append([]string{strconv.Itoa(term.Number), precText(term.Precedence), assocText(term.Associativity), term.Name, codes})
			}
			table.Render()
			return b.String()
		},
		"printProductions": func(report *gspec.Report) string {
			var b strings.Builder
			table := tablewriter.NewWriter(&b)
			table.SetHeader([]string{"#", "Prec", "Assoc", "Production", "Action"})
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetAutoWrapText(false)
			for _, prod := range report.Productions {
				if prod == nil {
					continue
				}
				act := prod.Action
				if prod.Builtin != "" {
					act = "<" + prod.Builtin + ">"
				}
				table.Append([]string{
					strconv.Itoa(prod.Number),
					precText(prod.Precedence),
					assocText(prod.Associativity),
					fmt.Sprintf("%v →%v", nonTermName(prod.LHS), rhsText(prod.RHS, -1)),
					act,
				})
			}
			table.Render()
			return b.String()
		},
		"printItem": func(item *gspec.Item) string {
			prod := report.Productions[item.Production]
			return fmt.Sprintf("%4v %v →%v", prod.Number, nonTermName(prod.LHS), rhsText(prod.RHS, item.Dot))
		},
		"printShift": func(tran *gspec.Transition) string {
			return fmt.Sprintf("shift  %4v on %v", tran.State, termName(tran.Symbol))
		},
		"printReduce": func(reduce *gspec.Reduce) string {
			var b strings.Builder
			{
				fmt.Fprintf(&b, "%v", termName(reduce.LookAhead[0]))
				for _, a := range reduce.LookAhead[1:] {
					fmt.Fprintf(&b, ", %v", termName(a))
				}
			}
			return fmt.Sprintf("reduce %4v on %v", reduce.Production, b.String())
		},
		"printGoTo": func(tran *gspec.Transition) string {
			return fmt.Sprintf("goto   %4v on %v", tran.State, nonTermName(tran.Symbol))
		},
		"printSRConflict": func(sr *gspec.SRConflict) string {
			var adopted string
			switch {
			case sr.AdoptedState != nil:
				adopted = fmt.Sprintf("shift %v adopted", *sr.AdoptedState)
			case sr.AdoptedProduction != nil:
				adopted = fmt.Sprintf("reduce %v adopted", *sr.AdoptedProduction)
			case sr.ResolvedBy == gspec.ResolvedByUnresolved:
				adopted = "both actions kept"
			default:
				adopted = "error adopted"
			}
			prodAssoc := ""
			if sr.Production < len(report.Productions) && report.Productions[sr.Production] != nil {
				prodAssoc = report.Productions[sr.Production].Associativity
			}
			var resolvedBy string
			switch sr.ResolvedBy {
			case gspec.ResolvedByPrec:
				if sr.AdoptedState != nil {
					resolvedBy = fmt.Sprintf("symbol %v has higher precedence than production %v", termName(sr.Symbol), sr.Production)
				} else {
					resolvedBy = fmt.Sprintf("production %v has higher precedence than symbol %v", sr.Production, termName(sr.Symbol))
				}
			case gspec.ResolvedByAssoc:
				resolvedBy = fmt.Sprintf("production %v and symbol %v has the same precedence, and production %v has %v associativity", sr.Production, termName(sr.Symbol), sr.Production, assocName(prodAssoc))
			case gspec.ResolvedByUnresolved:
				resolvedBy = fmt.Sprintf("symbol %v and production %v don't define a precedence comparison", termName(sr.Symbol), sr.Production)
			default:
				resolvedBy = "?" // This is a bug.
			}
			return fmt.Sprintf("shift/reduce conflict (shift %v, reduce %v) on %v: %v because %v", sr.State, sr.Production, termName(sr.Symbol), adopted, resolvedBy)
		},
		"printRRConflict": func(rr *gspec.RRConflict) string {
			return fmt.Sprintf("reduce/reduce conflict (%v, %v) on %v: both actions kept", rr.Production1, rr.Production2, termName(rr.Symbol))
		},
	}

	tmpl, err := template.New("").Funcs(fns).Parse(reportTemplate)
	if err != nil {
		return err
	}

	err = tmpl.Execute(w, report)
	if err != nil {
		return err
	}

	return nil
}
