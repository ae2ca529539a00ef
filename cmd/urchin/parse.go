package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sort"
	"strconv"
	"time"

	"github.com/nihei9/urchin/codec"
	"github.com/nihei9/urchin/driver"
	"github.com/nihei9/urchin/metrics"
	gspec "github.com/nihei9/urchin/spec/grammar"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:     "parse <grammar file path>",
		Short:   "Parse a text stream",
		Example: `  cat src | urchin parse grammar.json`,
		Args:    cobra.ExactArgs(1),
		RunE:    runParse,
	}
	cmd.Flags().StringP("source", "s", "", "source file path (default stdin)")
	cmd.Flags().Bool("only-parse", false, "when this option is enabled, the parser performs only parse and doesn't print trees")
	cmd.Flags().Bool("json", false, "print trees in JSON")
	cmd.Flags().Int("max-values", driver.DefaultMaxValues, "maximum number of trees of one source")
	cmd.Flags().Int("cache-size", codec.DefaultCacheSize, "number of decoded tables kept in memory")
	cmd.Flags().Bool("stats", false, "print the statistics of the parse to stderr")
	cmd.Flags().Bool("metrics", false, "print the statistics of the parse to stderr in the Prometheus text format")
	rootCmd.AddCommand(cmd)
}

func runParse(cmd *cobra.Command, args []string) (retErr error) {
	defer func() {
		v := recover()
		if v != nil {
			err, ok := v.(error)
			if !ok {
				err = fmt.Errorf("an unexpected error occurred: %v", v)
			}
			fmt.Fprintf(os.Stderr, "%v:\n%v", err, string(debug.Stack()))
			retErr = err
		}
	}()

	cgram, err := readCompiledGrammar(args[0])
	if err != nil {
		return fmt.Errorf("Cannot read a compiled grammar: %w", err)
	}

	var p *driver.Parser
	{
		src := io.Reader(os.Stdin)
		if path := config.GetString("source"); path != "" {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("Cannot open the source file %s: %w", path, err)
			}
			defer f.Close()
			src = f
		}

		cache, err := codec.NewCache(config.GetInt("cache-size"))
		if err != nil {
			return err
		}
		toks, err := driver.NewSource(cgram, src, driver.SourceCache(cache))
		if err != nil {
			return err
		}
		gram := driver.NewGrammar(cgram)
		p, err = driver.NewParser(toks, gram,
			driver.SemanticAction(driver.NewSyntaxTreeActionSet(gram)),
			driver.MaxValues(config.GetInt("max-values")),
			driver.Cache(cache),
			driver.Logger(logger.WithField("grammar", cgram.Name)),
		)
		if err != nil {
			return err
		}
	}

	start := time.Now()
	res, err := p.Parse()
	elapsed := time.Since(start)

	if config.GetBool("metrics") {
		if err := writeMetrics(cgram.Name, res, err, elapsed); err != nil {
			return err
		}
	}
	if err != nil {
		return err
	}
	if config.GetBool("stats") {
		writeStats(os.Stderr, cgram, res)
	}
	if res.Truncated {
		logger.WithField("max_values", config.GetInt("max-values")).Warn("trees were truncated")
	}

	if config.GetBool("only-parse") {
		return nil
	}

	if config.GetBool("json") {
		b, err := json.Marshal(res.Values)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%v\n", string(b))
		return nil
	}
	for i, v := range res.Values {
		if len(res.Values) > 1 {
			fmt.Fprintf(os.Stdout, "# tree %v/%v\n", i+1, len(res.Values))
		}
		driver.PrintTree(os.Stdout, v.(*driver.Node))
	}

	return nil
}

func writeMetrics(name string, res *driver.Result, parseErr error, elapsed time.Duration) error {
	r := metrics.NewRecorder()
	reg := prometheus.NewRegistry()
	if err := r.Register(reg); err != nil {
		return err
	}
	r.Observe(name, res, parseErr, elapsed)
	return metrics.WriteText(os.Stderr, reg)
}

func writeStats(w io.Writer, cgram *gspec.CompiledGrammar, res *driver.Result) {
	st := res.Stats
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Stat", "Value"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, row := range [][2]any{
		{"rounds", st.Rounds},
		{"shifts", st.Shifts},
		{"reductions", st.Reductions},
		{"forks", st.Forks},
		{"merges", st.Merges},
		{"stack nodes", st.Nodes},
		{"max frontier", st.MaxFrontier},
		{"trees", len(res.Values)},
		{"truncated", res.Truncated},
	} {
		table.Append([]string{fmt.Sprint(row[0]), fmt.Sprint(row[1])})
	}
	table.Render()

	prods := make([]int, 0, len(st.ReductionsByRule))
	for prod := range st.ReductionsByRule {
		prods = append(prods, prod)
	}
	sort.Ints(prods)
	rules := tablewriter.NewWriter(w)
	rules.SetHeader([]string{"Production", "LHS", "Reductions"})
	rules.SetAlignment(tablewriter.ALIGN_LEFT)
	gram := driver.NewGrammar(cgram)
	tabs, err := driver.DecodeTables(gram, nil)
	for _, prod := range prods {
		lhs := "?"
		if err == nil && prod < len(tabs.Rules) {
			lhs = gram.NonTerminal(tabs.Rules[prod].LHS)
		}
		rules.Append([]string{strconv.Itoa(prod), lhs, strconv.Itoa(st.ReductionsByRule[prod])})
	}
	rules.Render()
}
