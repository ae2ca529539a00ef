package main

import (
	"fmt"
	"os"

	"github.com/nihei9/urchin/driver"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:     "generate <grammar file path>",
		Short:   "Generate Go source code embedding a compiled grammar",
		Example: `  urchin generate grammar.json -p calc`,
		Args:    cobra.ExactArgs(1),
		RunE:    runGenerate,
	}
	cmd.Flags().StringP("package", "p", "main", "package name")
	cmd.Flags().StringP("output", "o", "", "output file path (default <grammar name>_grammar.go)")
	rootCmd.AddCommand(cmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cgram, err := readCompiledGrammar(args[0])
	if err != nil {
		return fmt.Errorf("Cannot read a compiled grammar: %w", err)
	}

	b, err := driver.GenGrammar(cgram, config.GetString("package"))
	if err != nil {
		return fmt.Errorf("Failed to generate a grammar: %w", err)
	}

	filePath := config.GetString("output")
	if filePath == "" {
		filePath = fmt.Sprintf("%v_grammar.go", cgram.Name)
	}

	f, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("Failed to create an output file: %v", err)
	}
	defer f.Close()

	_, err = f.Write(b)
	if err != nil {
		return fmt.Errorf("Failed to write grammar source code: %v", err)
	}

	return nil
}
