package common

import (
	"fmt"

	"bulletsmith/internal/errors"
	"bulletsmith/internal/formatters"
)

// CommandConfig carries the output routing shared by all CLI commands.
type CommandConfig struct {
	OutputFile   string
	OutputFormat string

	// MaxFileSize caps input files in bytes. Zero disables the cap.
	MaxFileSize int64
}

// OutputHandler formats results and routes them to a file or stdout.
type OutputHandler struct {
	files    *FileProcessor
	registry *formatters.FormatterRegistry
	logger   *errors.Logger
}

// NewOutputHandler wires a handler to the shared formatter registry.
func NewOutputHandler(logger *errors.Logger) *OutputHandler {
	return &OutputHandler{
		files:    NewFileProcessor(logger),
		registry: formatters.GlobalRegistry,
		logger:   logger,
	}
}

// HandleOutput renders data in the configured format and writes it to the
// configured destination. An empty OutputFile means stdout.
func (oh *OutputHandler) HandleOutput(data any, config CommandConfig) error {
	if err := oh.files.ValidateOutputFile(config.OutputFile); err != nil {
		return err
	}

	output, err := oh.registry.Format(data, config.OutputFormat)
	if err != nil {
		msg := fmt.Sprintf("Failed to format output as %s", config.OutputFormat)
		return errors.NewValidationError(errors.ErrCodeInvalidFormat, msg, err)
	}

	if config.OutputFile == "" {
		fmt.Print(output)
		return nil
	}

	if err := oh.files.WriteFile(config.OutputFile, output); err != nil {
		return err
	}
	if oh.logger != nil {
		oh.logger.Info("Output written successfully",
			"file", config.OutputFile, "format", config.OutputFormat)
	}
	return nil
}
