// Package internal runs the octagon analysis on Go source files.
//
// Key components:
//
// Engine: parses a file, lowers it into control-flow automata, computes the
// reached set from the entry function and condenses it into a report.
//
// Report: per function, the variable intervals at the exit and the
// invariants at each loop head, plus the issues found in the file. An
// assertion-violation issue is raised for every assertion some reached
// state may falsify; constructs the analysis cannot handle raise an
// unsupported-construct issue instead of a report.
//
// Watcher: re-analyzes files as they are written.
//
// Usage:
//
//	engine, err := internal.NewEngine(internal.DefaultConfig(), logger)
//	if err != nil {
//	    // handle error
//	}
//
//	report, err := engine.Run(ctx, "path/to/file.go")
//	if err != nil {
//	    // handle error
//	}
//
//	fmt.Print(internal.FormatReport(report, nil))
//
// This package is intended for internal use within the analyzer and should
// not be imported by external packages.
package internal
