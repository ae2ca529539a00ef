package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	verr "github.com/nihei9/urchin/error"
	"github.com/nihei9/urchin/grammar"
	"github.com/nihei9/urchin/spec"
	gspec "github.com/nihei9/urchin/spec/grammar"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:     "compile",
		Short:   "Compile grammar you defined into parsing tables",
		Example: `  urchin compile grammar.yaml -o grammar.json`,
		Args:    cobra.MaximumNArgs(1),
		RunE:    runCompile,
	}
	cmd.Flags().StringP("output", "o", "", "output file path (default stdout)")
	cmd.Flags().String("class", string(grammar.ClassLALR), "class of the parsing table (slr or lalr)")
	cmd.Flags().Int("max-states", 0, "fail when the automaton has more states than this number (0 means no limit)")
	rootCmd.AddCommand(cmd)
}

func runCompile(cmd *cobra.Command, args []string) (retErr error) {
	var tmpDirPath string
	defer func() {
		if tmpDirPath == "" {
			return
		}
		os.RemoveAll(tmpDirPath)
	}()

	var grmPath string
	if len(args) > 0 {
		grmPath = args[0]
	}
	defer func() {
		if retErr != nil {
			sourceName := grmPath
			if len(args) == 0 {
				sourceName = "stdin"
			}
			setSourceName(retErr, grmPath, sourceName)
		}
	}()

	if grmPath == "" {
		var err error
		tmpDirPath, err = os.MkdirTemp("", "urchin-compile-*")
		if err != nil {
			return err
		}

		src, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}

		grmPath = filepath.Join(tmpDirPath, "stdin.yaml")
		err = os.WriteFile(grmPath, src, 0600)
		if err != nil {
			return err
		}
	}

	gram, err := readGrammar(grmPath)
	if err != nil {
		return err
	}

	cgram, report, err := grammar.Compile(gram,
		grammar.EnableReporting(),
		grammar.Logger(logger),
		grammar.MaxStates(config.GetInt("max-states")),
		grammar.SpecifyClass(grammar.Class(config.GetString("class"))),
	)
	if err != nil {
		return err
	}

	err = writeCompiledGrammarAndReport(cgram, report, config.GetString("output"))
	if err != nil {
		return fmt.Errorf("Cannot write an output files: %w", err)
	}

	var unresolvedCount int
	for _, s := range report.States {
		for _, c := range s.SRConflict {
			if c.ResolvedBy == gspec.ResolvedByUnresolved {
				unresolvedCount++
			}
		}
		unresolvedCount += len(s.RRConflict)
	}
	if unresolvedCount > 0 {
		fmt.Fprintf(os.Stderr, "%v conflicts; the parser forks on them\n", unresolvedCount)
	}

	return nil
}

// setSourceName makes errors of a grammar file quote the offending line.
func setSourceName(err error, filePath, sourceName string) {
	var specErrs verr.SpecErrors
	if errors.As(err, &specErrs) {
		for _, e := range specErrs {
			e.FilePath = filePath
			e.SourceName = sourceName
		}
		return
	}
	var specErr *verr.SpecError
	if errors.As(err, &specErr) {
		specErr.FilePath = filePath
		specErr.SourceName = sourceName
	}
}

func readGrammar(path string) (*grammar.Grammar, error) {
	def, err := spec.LoadDefinitionFile(path)
	if err != nil {
		return nil, err
	}

	b := grammar.GrammarBuilder{
		Def: def,
	}
	return b.Build()
}

// writeCompiledGrammarAndReport writes a compiled grammar and a report to files located at a specified path.
// This function selects one of the following output methods depending on how the path is specified.
//
//  1. When the path is a directory path, this function writes the compiled grammar and the report to
//     <path>/<grammar-name>.json and <path>/<grammar-name>-report.json files, respectively.
//  2. When the path is a file path or a non-existent path, this function assumes that the path represents a file
//     path for the compiled grammar. Then it also writes the report in the same directory as the compiled grammar.
//  3. When the path is an empty string, this function writes the compiled grammar to the stdout and writes
//     the report to a file named <current-directory>/<grammar-name>-report.json.
func writeCompiledGrammarAndReport(cgram *gspec.CompiledGrammar, report *gspec.Report, path string) error {
	cgramPath, reportPath, err := makeOutputFilePaths(cgram.Name, path)
	if err != nil {
		return err
	}

	{
		var cgramW io.Writer
		if cgramPath != "" {
			cgramFile, err := os.OpenFile(cgramPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
			if err != nil {
				return err
			}
			defer cgramFile.Close()
			cgramW = cgramFile
		} else {
			cgramW = os.Stdout
		}

		b, err := json.Marshal(cgram)
		if err != nil {
			return err
		}
		fmt.Fprintf(cgramW, "%v\n", string(b))
	}

	{
		reportFile, err := os.OpenFile(reportPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer reportFile.Close()

		b, err := json.Marshal(report)
		if err != nil {
			return err
		}
		fmt.Fprintf(reportFile, "%v\n", string(b))
	}

	return nil
}

func makeOutputFilePaths(gramName string, path string) (string, string, error) {
	reportFileName := gramName + "-report.json"

	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", "", err
		}
		return "", filepath.Join(wd, reportFileName), nil
	}

	fi, err := os.Stat(path)
	if err != nil && !os.IsNotExist(err) {
		return "", "", err
	}
	if os.IsNotExist(err) || !fi.IsDir() {
		dir, _ := filepath.Split(path)
		return path, filepath.Join(dir, reportFileName), nil
	}

	return filepath.Join(path, gramName+".json"), filepath.Join(path, reportFileName), nil
}

func readCompiledGrammar(path string) (*gspec.CompiledGrammar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cgram := &gspec.CompiledGrammar{}
	err = json.Unmarshal(data, cgram)
	if err != nil {
		return nil, err
	}
	return cgram, nil
}
