package common

import (
	"fmt"
	"os"
	"path/filepath"

	"bulletsmith/internal/errors"
	"bulletsmith/internal/utils"
)

// FileProcessor reads job inputs and writes results, wrapping IO failures in
// coded errors so callers can classify them without string matching.
type FileProcessor struct {
	logger *errors.Logger

	// MaxFileSize rejects input files larger than this many bytes.
	// Zero disables the check.
	MaxFileSize int64
}

// NewFileProcessor returns a processor without a size cap. Callers that load
// configuration set MaxFileSize afterwards.
func NewFileProcessor(logger *errors.Logger) *FileProcessor {
	return &FileProcessor{logger: logger}
}

// ReadFile loads a file into memory, enforcing the size cap when one is set.
func (fp *FileProcessor) ReadFile(path string) (string, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil:
	case os.IsNotExist(err):
		return "", errors.NewIOError(errors.ErrCodeFileNotFound,
			fmt.Sprintf("File not found: %s", path), err)
	default:
		return "", errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", path), err)
	}

	if fp.MaxFileSize > 0 && info.Size() > fp.MaxFileSize {
		return "", errors.NewValidationError("FILE_TOO_LARGE",
			fmt.Sprintf("File %s is %s, which exceeds the %s input limit",
				path, utils.FormatFileSize(info.Size()), utils.FormatFileSize(fp.MaxFileSize)), nil)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", path), err)
	}

	return string(content), nil
}

// WriteFile writes content to a file, creating parent directories as needed.
func (fp *FileProcessor) WriteFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return errors.NewIOError("DIRECTORY_CREATE_FAILED",
				fmt.Sprintf("Cannot create directory: %s", dir), err)
		}
	}

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return errors.NewIOError("FILE_WRITE_FAILED",
			fmt.Sprintf("Cannot write file: %s", path), err)
	}

	return nil
}

// ValidateAndReadFiles checks every path and returns the contents in argument
// order. The first bad path aborts the whole batch.
func (fp *FileProcessor) ValidateAndReadFiles(paths ...string) ([]string, error) {
	contents := make([]string, len(paths))

	for i, path := range paths {
		if err := utils.ValidateInputFile(path); err != nil {
			return nil, errors.NewValidationError("INVALID_INPUT_FILE",
				fmt.Sprintf("Invalid file %s", path), err)
		}

		if !utils.IsTextFile(path) {
			fp.warnNonTextFile(path)
		}

		content, err := fp.ReadFile(path)
		if err != nil {
			return nil, err
		}
		contents[i] = content
	}

	return contents, nil
}

// warnNonTextFile goes through the structured logger when one is wired,
// falling back to stderr for bare CLI use.
func (fp *FileProcessor) warnNonTextFile(path string) {
	if fp.logger != nil {
		fp.logger.Warn("File may not be a text file", "path", path)
		return
	}
	fmt.Fprintf(os.Stderr, "Warning: %s may not be a text file\n", path)
}

// ValidateOutputFile checks that the output path is usable. Empty means stdout.
func (fp *FileProcessor) ValidateOutputFile(path string) error {
	if path == "" {
		return nil
	}

	if err := utils.ValidateOutputFile(path); err != nil {
		return errors.NewValidationError("INVALID_OUTPUT_FILE",
			fmt.Sprintf("Invalid output file: %s", path), err)
	}

	return nil
}
