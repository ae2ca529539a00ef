package tester

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nihei9/urchin/driver"
	gspec "github.com/nihei9/urchin/spec/grammar"
	tspec "github.com/nihei9/urchin/spec/test"
	"github.com/sergi/go-diff/diffmatchpatch"
)

type TestResult struct {
	TestCasePath string
	Description  string
	Error        error
	Diffs        []*tspec.TreeDiff

	// TextDiff is a line diff between the expected trees and the actual ones.
	TextDiff string
}

func (r *TestResult) String() string {
	name := r.TestCasePath
	if r.Description != "" {
		name = fmt.Sprintf("%v (%v)", r.TestCasePath, r.Description)
	}
	if r.Error != nil {
		const indent1 = "    "
		const indent2 = indent1 + indent1

		msgLines := strings.Split(r.Error.Error(), "\n")
		msg := fmt.Sprintf("Failed %v:\n%v%v", name, indent1, strings.Join(msgLines, "\n"+indent1))
		if len(r.Diffs) > 0 {
			var diffLines []string
			for _, diff := range r.Diffs {
				diffLines = append(diffLines, diff.Message)
				diffLines = append(diffLines, fmt.Sprintf("%vexpected path: %v", indent1, diff.ExpectedPath))
				diffLines = append(diffLines, fmt.Sprintf("%vactual path:   %v", indent1, diff.ActualPath))
			}
			msg = fmt.Sprintf("%v\n%v%v", msg, indent2, strings.Join(diffLines, "\n"+indent2))
		}
		if r.TextDiff != "" {
			lines := strings.Split(strings.TrimSuffix(r.TextDiff, "\n"), "\n")
			msg = fmt.Sprintf("%v\n%v%v", msg, indent2, strings.Join(lines, "\n"+indent2))
		}
		return msg
	}
	return fmt.Sprintf("Passed %v", name)
}

type TestCaseWithMetadata struct {
	TestCase *tspec.TestCase
	FilePath string
	Error    error
}

// ListTestCases reads a test file or every test file under a directory.
func ListTestCases(testPath string) []*TestCaseWithMetadata {
	fi, err := os.Stat(testPath)
	if err != nil {
		return []*TestCaseWithMetadata{
			{
				FilePath: testPath,
				Error:    err,
			},
		}
	}
	if !fi.IsDir() {
		cs, err := parseTestCases(testPath)
		if err != nil {
			return []*TestCaseWithMetadata{
				{
					FilePath: testPath,
					Error:    err,
				},
			}
		}
		cases := make([]*TestCaseWithMetadata, len(cs))
		for i, c := range cs {
			cases[i] = &TestCaseWithMetadata{
				TestCase: c,
				FilePath: testPath,
			}
		}
		return cases
	}

	es, err := os.ReadDir(testPath)
	if err != nil {
		return []*TestCaseWithMetadata{
			{
				FilePath: testPath,
				Error:    err,
			},
		}
	}
	var cases []*TestCaseWithMetadata
	for _, e := range es {
		cs := ListTestCases(filepath.Join(testPath, e.Name()))
		cases = append(cases, cs...)
	}
	return cases
}

func parseTestCases(testCasePath string) ([]*tspec.TestCase, error) {
	f, err := os.Open(testCasePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return tspec.ParseTestCases(f)
}

type Tester struct {
	Grammar *gspec.CompiledGrammar
	Cases   []*TestCaseWithMetadata

	// MaxValues bounds the trees of one source. 0 means driver.DefaultMaxValues.
	MaxValues int
}

func (t *Tester) Run() []*TestResult {
	var rs []*TestResult
	for _, c := range t.Cases {
		rs = append(rs, t.runTest(c))
	}
	return rs
}

func (t *Tester) runTest(c *TestCaseWithMetadata) *TestResult {
	r := &TestResult{
		TestCasePath: c.FilePath,
	}
	if c.Error != nil {
		r.Error = c.Error
		return r
	}
	r.Description = c.TestCase.Description

	var p *driver.Parser
	{
		gram := driver.NewGrammar(t.Grammar)
		toks, err := driver.NewSource(t.Grammar, bytes.NewReader(c.TestCase.Source))
		if err != nil {
			r.Error = err
			return r
		}
		opts := []driver.ParserOption{
			driver.SemanticAction(driver.NewSyntaxTreeActionSet(gram)),
		}
		if t.MaxValues > 0 {
			opts = append(opts, driver.MaxValues(t.MaxValues))
		}
		p, err = driver.NewParser(toks, gram, opts...)
		if err != nil {
			r.Error = err
			return r
		}
	}

	res, err := p.Parse()
	if err != nil {
		r.Error = err
		return r
	}

	actual := make([]*tspec.Tree, 0, len(res.Values))
	for _, v := range res.Values {
		n, ok := v.(*driver.Node)
		if !ok {
			r.Error = fmt.Errorf("a parse tree was not generated: %T", v)
			return r
		}
		actual = append(actual, genTree(n).Fill())
	}

	expected := c.TestCase.Trees
	if len(actual) != len(expected) {
		r.Error = fmt.Errorf("unexpected tree count: expected %v but got %v", len(expected), len(actual))
		r.TextDiff = textDiff(expected, actual)
		return r
	}
	used := make([]bool, len(actual))
	for i, exp := range expected {
		matched := false
		for j, act := range actual {
			if used[j] || len(tspec.DiffTree(exp, act)) > 0 {
				continue
			}
			used[j] = true
			matched = true
			break
		}
		if !matched {
			r.Error = fmt.Errorf("output mismatch")
			if !used[i] {
				r.Diffs = tspec.DiffTree(exp, actual[i])
			}
			r.TextDiff = textDiff(expected, actual)
			return r
		}
	}
	return r
}

func genTree(n *driver.Node) *tspec.Tree {
	switch n.Type {
	case driver.NodeTypeTerminal, driver.NodeTypeError:
		return tspec.NewTerminalNode(n.KindName, n.Text)
	}
	var children []*tspec.Tree
	if len(n.Children) > 0 {
		children = make([]*tspec.Tree, len(n.Children))
		for i, c := range n.Children {
			children[i] = genTree(c)
		}
	}
	return tspec.NewNonTerminalTree(n.KindName, children...)
}

func textDiff(expected, actual []*tspec.Tree) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(formatTrees(expected), formatTrees(actual))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var w strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		}
		for _, l := range strings.SplitAfter(d.Text, "\n") {
			if l == "" {
				continue
			}
			w.WriteString(prefix)
			w.WriteString(l)
			if !strings.HasSuffix(l, "\n") {
				w.WriteString("\n")
			}
		}
	}
	return w.String()
}

func formatTrees(trees []*tspec.Tree) string {
	var b strings.Builder
	for _, t := range trees {
		b.Write(t.Format())
		b.WriteString("\n")
	}
	return b.String()
}
