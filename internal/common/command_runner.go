package common

import (
	"context"
	"fmt"
	"os"

	"bulletsmith/internal/ai"
	"bulletsmith/internal/errors"
)

// BuildInputFunc assembles a typed operation input from raw file contents,
// ordered the same way the paths were given on the command line.
type BuildInputFunc[In any] func(contents []string) (In, error)

// LogStartFunc announces the operation before it runs.
type LogStartFunc[In any] func(input In, cfg CommandConfig)

// OperationFunc runs one pipeline operation and reports token usage when the
// provider exposes it.
type OperationFunc[In, Out any] func(context.Context, In) (Out, *ai.TokenUsage, error)

// RunAICommand is the shared skeleton for file-in, formatted-out CLI commands:
// validate and read the input files, build the typed input, run the operation,
// then hand the result to the output layer.
func RunAICommand[In, Out any](
	ctx context.Context,
	logger *errors.Logger,
	cmdConfig CommandConfig,
	args []string,
	buildInput BuildInputFunc[In],
	operation OperationFunc[In, Out],
	logStart LogStartFunc[In],
) error {
	files := NewFileProcessor(logger)
	files.MaxFileSize = cmdConfig.MaxFileSize

	contents, err := files.ValidateAndReadFiles(args...)
	if err != nil {
		return err
	}

	input, err := buildInput(contents)
	if err != nil {
		return fmt.Errorf("failed to create input from file contents: %w", err)
	}

	logStart(input, cmdConfig)

	result, usage, err := operation(ctx, input)
	if err != nil {
		return err
	}
	reportTokenUsage(logger, usage)

	return NewOutputHandler(logger).HandleOutput(result, cmdConfig)
}

// reportTokenUsage logs per-invocation spend so batch users can track it.
func reportTokenUsage(logger *errors.Logger, usage *ai.TokenUsage) {
	if usage == nil {
		return
	}
	if logger != nil {
		logger.Info("AI token usage",
			"input_tokens", usage.InputTokens,
			"output_tokens", usage.OutputTokens,
			"total_tokens", usage.TotalTokens)
		return
	}
	fmt.Fprintf(os.Stderr, "AI token usage: input=%d, output=%d, total=%d\n",
		usage.InputTokens, usage.OutputTokens, usage.TotalTokens)
}
