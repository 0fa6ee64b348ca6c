package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// GetLoadedPrompts returns a copy of the loaded prompt content in a thread-safe way
func GetLoadedPrompts() AllLoadedPrompts {
	promptsMu.RLock()
	defer promptsMu.RUnlock()
	return loadedPrompts
}

// promptFileBinding ties one configured prompt file to the slot its content
// lands in after loading.
type promptFileBinding struct {
	path       string
	target     *string
	promptType string // "system" or "user"
	operation  string // pipeline stage the prompt drives
}

// promptFileBindings enumerates every prompt file the configuration can name,
// global and per-operation, paired with its destination slot in next. Load
// and validation both walk this list so they can never disagree about which
// files matter.
func (c *Config) promptFileBindings(next *AllLoadedPrompts) []promptFileBinding {
	system := func(p *SystemPrompts, t *LoadedSystemPrompts) []promptFileBinding {
		return []promptFileBinding{
			{p.ExtractSignalsFile, &t.ExtractSignals, "system", "extractSignals"},
			{p.ProcessBulletsFile, &t.ProcessBullets, "system", "processBullets"},
			{p.CheckConsistencyFile, &t.CheckConsistency, "system", "checkConsistency"},
		}
	}
	user := func(p *UserPrompts, t *LoadedUserPrompts) []promptFileBinding {
		return []promptFileBinding{
			{p.ExtractSignalsFile, &t.ExtractSignals, "user", "extractSignals"},
			{p.ProcessBulletsFile, &t.ProcessBullets, "user", "processBullets"},
			{p.CheckConsistencyFile, &t.CheckConsistency, "user", "checkConsistency"},
		}
	}

	var bindings []promptFileBinding
	bindings = append(bindings, system(&c.AI.CustomPrompts.SystemPrompts, &next.Global.SystemPrompts)...)
	bindings = append(bindings, user(&c.AI.CustomPrompts.UserPrompts, &next.Global.UserPrompts)...)
	bindings = append(bindings, system(&c.AI.Signals.CustomPrompts.SystemPrompts, &next.Signals.SystemPrompts)...)
	bindings = append(bindings, user(&c.AI.Signals.CustomPrompts.UserPrompts, &next.Signals.UserPrompts)...)
	bindings = append(bindings, system(&c.AI.Process.CustomPrompts.SystemPrompts, &next.Process.SystemPrompts)...)
	bindings = append(bindings, user(&c.AI.Process.CustomPrompts.UserPrompts, &next.Process.UserPrompts)...)
	bindings = append(bindings, system(&c.AI.Validate.CustomPrompts.SystemPrompts, &next.Validate.SystemPrompts)...)
	bindings = append(bindings, user(&c.AI.Validate.CustomPrompts.UserPrompts, &next.Validate.UserPrompts)...)
	return bindings
}

// resolvePromptPath resolves a prompt file path, treating relative paths as
// relative to the configured prompts directory when one is set
func (c *Config) resolvePromptPath(filePath string) (string, error) {
	if c.Prompts.Dir != "" && !filepath.IsAbs(filePath) {
		filePath = filepath.Join(c.Prompts.Dir, filePath)
	}
	return filepath.Abs(filePath)
}

// loadPromptsFromFiles reads every configured prompt file into a fresh prompt
// set and swaps it in atomically, so the prompt watcher can call this again
// after a file change without readers seeing a half-loaded state.
func (c *Config) loadPromptsFromFiles() error {
	log.Println("[CONFIG] Starting custom prompt loading from files")

	var next AllLoadedPrompts
	for _, b := range c.promptFileBindings(&next) {
		if b.path == "" {
			continue
		}
		content, err := c.loadPromptFromFile(b.path, b.promptType, b.operation)
		if err != nil {
			return err
		}
		*b.target = content
	}

	setLoadedPrompts(next)
	c.logPromptLoadingSummary(next)
	return nil
}

// loadPromptFromFile reads one prompt file, rejecting empty content so a
// truncated file never silently blanks a prompt.
func (c *Config) loadPromptFromFile(filePath, promptType, operation string) (string, error) {
	absPath, err := c.resolvePromptPath(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %s %s prompt file '%s': %w", promptType, operation, filePath, err)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s %s prompt file not found: %s", promptType, operation, absPath)
		}
		return "", fmt.Errorf("failed to read %s %s prompt file '%s': %w", promptType, operation, absPath, err)
	}

	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return "", fmt.Errorf("%s %s prompt file '%s' is empty", promptType, operation, absPath)
	}

	log.Printf("[CONFIG] Loaded %s %s prompt from %s (%d characters)",
		promptType, operation, absPath, len(trimmed))
	return trimmed, nil
}

// validatePromptFiles checks that every configured prompt file resolves and
// exists before the loader touches any of them, reporting all problems at
// once instead of stopping at the first.
func (c *Config) validatePromptFiles() error {
	var problems []string
	for _, b := range c.promptFileBindings(new(AllLoadedPrompts)) {
		if b.path == "" {
			continue
		}
		absPath, err := c.resolvePromptPath(b.path)
		if err != nil {
			problems = append(problems, fmt.Sprintf("invalid path for %s %s prompt: %s", b.promptType, b.operation, b.path))
			continue
		}
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			problems = append(problems, fmt.Sprintf("%s %s prompt file not found: %s", b.promptType, b.operation, absPath))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("prompt file validation failed:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}

// logPromptLoadingSummary reports which custom prompts are active after a
// load pass.
func (c *Config) logPromptLoadingSummary(loaded AllLoadedPrompts) {
	log.Println("[CONFIG] === Custom Prompt Loading Summary ===")

	scopes := []struct {
		name   string
		system LoadedSystemPrompts
		user   LoadedUserPrompts
	}{
		{"global", loaded.Global.SystemPrompts, loaded.Global.UserPrompts},
		{"signals", loaded.Signals.SystemPrompts, loaded.Signals.UserPrompts},
		{"process", loaded.Process.SystemPrompts, loaded.Process.UserPrompts},
		{"validate", loaded.Validate.SystemPrompts, loaded.Validate.UserPrompts},
	}

	count := 0
	for _, s := range scopes {
		for _, p := range []struct {
			kind, operation, content string
		}{
			{"system", "extractSignals", s.system.ExtractSignals},
			{"system", "processBullets", s.system.ProcessBullets},
			{"system", "checkConsistency", s.system.CheckConsistency},
			{"user", "extractSignals", s.user.ExtractSignals},
			{"user", "processBullets", s.user.ProcessBullets},
			{"user", "checkConsistency", s.user.CheckConsistency},
		} {
			if p.content == "" {
				continue
			}
			log.Printf("[CONFIG] Custom %s %s %s prompt active (%d characters)",
				s.name, p.kind, p.operation, len(p.content))
			count++
		}
	}

	if count == 0 {
		log.Println("[CONFIG] No custom prompts loaded - using built-in defaults")
	} else {
		log.Printf("[CONFIG] Total custom prompts loaded: %d", count)
	}
	log.Println("[CONFIG] ==========================================")
}
