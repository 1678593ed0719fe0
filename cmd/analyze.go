package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/octagon/analyzer"
	"github.com/gnolang/octagon/internal"
	tt "github.com/gnolang/octagon/internal/types"
)

var (
	analyzeJSONOutput bool
	outPath           string
	entry             string
	merge             string
	floats            bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [paths...]",
	Short: "Compute loop and exit invariants and check assertions",
	Long: `Runs the octagon analysis from the entry function of every Go file and
prints the variable bounds at function exits and loop heads.
Example) octagon analyze --merge join ./examples`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			fmt.Println("error: Please provide file or directory paths")
			os.Exit(1)
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		config, err := loadConfig()
		if err != nil {
			logger.Fatal("Failed to load configuration", zap.Error(err))
		}
		applyFlags(cmd, &config)

		engine, err := analyzer.New(config, logger)
		if err != nil {
			logger.Fatal("Failed to initialize analysis engine", zap.Error(err))
		}

		var progress io.Writer
		if isTerminal(os.Stderr) {
			progress = os.Stderr
		}
		issues, err := runAnalysis(ctx, logger, engine, args, os.Stdout, analyzeJSONOutput, outPath, progress)
		if err != nil {
			logger.Error("Error processing files", zap.Error(err))
			os.Exit(1)
		}
		if issues > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSONOutput, "json", false, "Output reports in JSON format")
	analyzeCmd.Flags().StringVarP(&outPath, "output", "o", "", "Output path (when using JSON)")
	analyzeCmd.Flags().StringVar(&entry, "entry", "", "Entry function (overrides the configuration)")
	analyzeCmd.Flags().StringVar(&merge, "merge", "", "Merge operator: sep, join or widening")
	analyzeCmd.Flags().BoolVar(&floats, "float", false, "Track float variables")
}

// applyFlags overrides config with the flags set on the command line.
func applyFlags(cmd *cobra.Command, config *analyzer.Config) {
	if cmd.Flags().Changed("entry") {
		config.Entry = entry
	}
	if cmd.Flags().Changed("merge") {
		config.Merge = merge
	}
	if cmd.Flags().Changed("float") {
		config.Float = floats
	}
}

// runAnalysis analyzes paths and writes the reports to w, or to jsonOutput
// in JSON mode. It returns the number of issues found.
func runAnalysis(
	ctx context.Context,
	logger *zap.Logger,
	engine analyzer.Engine,
	paths []string,
	w io.Writer,
	isJSON bool,
	jsonOutput string,
	progress io.Writer,
) (int, error) {
	reports, err := analyzer.ProcessFiles(ctx, logger, engine, paths, analyzer.Options{Progress: progress})
	if err != nil {
		return 0, err
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].File < reports[j].File })

	issues := 0
	for _, r := range reports {
		issues += len(r.Issues)
	}

	if isJSON {
		return issues, writeJSON(reports, w, jsonOutput)
	}
	printReports(logger, reports, w)
	return issues, nil
}

func printReports(logger *zap.Logger, reports []*tt.Report, w io.Writer) {
	for _, report := range reports {
		sourceCode, err := internal.ReadSourceCode(report.File)
		if err != nil {
			logger.Error("Error reading source file", zap.String("file", report.File), zap.Error(err))
		}
		fmt.Fprintln(w, internal.FormatReport(report, sourceCode))
	}
}

func writeJSON(reports []*tt.Report, w io.Writer, jsonOutput string) error {
	d, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshalling reports to JSON: %w", err)
	}
	if jsonOutput == "" {
		_, err = fmt.Fprintln(w, string(d))
		return err
	}
	f, err := os.Create(jsonOutput)
	if err != nil {
		return fmt.Errorf("error creating JSON output file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(d); err != nil {
		return fmt.Errorf("error writing JSON output file: %w", err)
	}
	return nil
}
