package common

import (
	"fmt"
	"slices"
)

// ValidateOutputFormat checks the requested format against the configured
// list. An empty list disables the restriction.
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 || slices.Contains(supportedFormats, format) {
		return nil
	}
	return fmt.Errorf("unsupported output format '%s'. Supported formats: %v", format, supportedFormats)
}

// GetSupportedFormats returns the configured formats in a stable order for
// shell completion.
func GetSupportedFormats(supportedFormats []string) []string {
	formats := slices.Clone(supportedFormats)
	slices.Sort(formats)
	return formats
}
