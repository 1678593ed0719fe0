// Package analyzer is the entry point for running the octagon analysis on
// files and directories.
package analyzer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/gnolang/octagon/internal"
	tt "github.com/gnolang/octagon/internal/types"
)

// Engine analyzes one file.
type Engine interface {
	Run(ctx context.Context, filePath string) (*tt.Report, error)
	RunSource(ctx context.Context, filename string, source []byte) (*tt.Report, error)
}

// New creates an engine from a configuration.
func New(config Config, logger *zap.Logger) (*internal.Engine, error) {
	engineConfig, err := config.EngineConfig()
	if err != nil {
		return nil, err
	}
	return internal.NewEngine(engineConfig, logger)
}

// Options tune how paths are processed.
type Options struct {
	// Processor analyzes one file; ProcessFile when nil.
	Processor func(context.Context, Engine, string) (*tt.Report, error)
	// Progress receives a progress bar while a directory is processed; no
	// bar is drawn when nil.
	Progress io.Writer
	// Workers bounds the files analyzed at once; the number of CPUs when
	// zero.
	Workers int
}

func (o Options) processor() func(context.Context, Engine, string) (*tt.Report, error) {
	if o.Processor == nil {
		return ProcessFile
	}
	return o.Processor
}

// ProcessFile analyzes one file with engine.
func ProcessFile(ctx context.Context, engine Engine, filePath string) (*tt.Report, error) {
	return engine.Run(ctx, filePath)
}

// ProcessSource analyzes in-memory source reported under filename.
func ProcessSource(ctx context.Context, engine Engine, filename string, source []byte) (*tt.Report, error) {
	return engine.RunSource(ctx, filename, source)
}

// ProcessFiles analyzes every path in order.
func ProcessFiles(
	ctx context.Context,
	logger *zap.Logger,
	engine Engine,
	paths []string,
	opts Options,
) ([]*tt.Report, error) {
	var reports []*tt.Report
	for _, path := range paths {
		pathReports, err := ProcessPath(ctx, logger, engine, path, opts)
		reports = append(reports, pathReports...)
		if err != nil {
			if logger != nil {
				logger.Error("Error processing path", zap.String("path", path), zap.Error(err))
			}
			return reports, err
		}
	}
	return reports, nil
}

// ProcessPath analyzes a file, or every Go file below a directory. Files of
// a directory that fail to analyze are logged and skipped; the reports keep
// the walk order.
func ProcessPath(
	ctx context.Context,
	logger *zap.Logger,
	engine Engine,
	path string,
	opts Options,
) ([]*tt.Report, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing %s: %w", path, err)
	}
	process := opts.processor()

	if !info.IsDir() {
		if !hasDesiredExtension(path) {
			return nil, nil
		}
		report, err := process(ctx, engine, path)
		if err != nil {
			return nil, err
		}
		return []*tt.Report{report}, nil
	}

	var files []string
	err = filepath.Walk(path, func(filePath string, fileInfo os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fileInfo.IsDir() && hasDesiredExtension(filePath) {
			files = append(files, filePath)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking %s: %w", path, err)
	}

	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription(path),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}))
	}

	// limit the number of workers
	maxWorkers := opts.Workers
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}
	sem := make(chan struct{}, maxWorkers)

	results := make([]*tt.Report, len(files))
	var wg sync.WaitGroup
	var canceled error
	for i, filePath := range files {
		if err := ctx.Err(); err != nil {
			canceled = err
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, fp string) {
			defer wg.Done()
			defer func() { <-sem }()

			report, err := process(ctx, engine, fp)
			if err != nil {
				if logger != nil {
					logger.Error("Error processing file", zap.String("file", fp), zap.Error(err))
				}
			} else {
				results[i] = report
			}
			if bar != nil {
				_ = bar.Add(1)
			}
		}(i, filePath)
	}
	wg.Wait()
	if bar != nil {
		_ = bar.Finish()
	}

	reports := make([]*tt.Report, 0, len(files))
	for _, r := range results {
		if r != nil {
			reports = append(reports, r)
		}
	}
	if canceled == nil {
		canceled = ctx.Err()
	}
	return reports, canceled
}

func hasDesiredExtension(path string) bool {
	return filepath.Ext(path) == ".go"
}
