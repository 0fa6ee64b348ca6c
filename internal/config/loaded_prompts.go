package config

import (
	"sync"
)

// loadedPrompts is guarded by promptsMu because the prompt watcher may
// swap it while providers read it.
var (
	promptsMu     sync.RWMutex
	loadedPrompts AllLoadedPrompts
)

// LoadedSystemPrompts contains loaded system-level instructions
type LoadedSystemPrompts struct {
	ExtractSignals   string
	ProcessBullets   string
	CheckConsistency string
}

// LoadedUserPrompts contains loaded user-level prompt templates
type LoadedUserPrompts struct {
	ExtractSignals   string
	ProcessBullets   string
	CheckConsistency string
}

// OperationLoadedPrompts holds the loaded prompt pair for one scope, either
// a single operation or the global fallback.
type OperationLoadedPrompts struct {
	SystemPrompts LoadedSystemPrompts
	UserPrompts   LoadedUserPrompts
}

// AllLoadedPrompts holds every prompt loaded from files, per scope.
type AllLoadedPrompts struct {
	Global   OperationLoadedPrompts
	Signals  OperationLoadedPrompts
	Process  OperationLoadedPrompts
	Validate OperationLoadedPrompts
}

// setLoadedPrompts swaps in a freshly loaded prompt set
func setLoadedPrompts(prompts AllLoadedPrompts) {
	promptsMu.Lock()
	defer promptsMu.Unlock()
	loadedPrompts = prompts
}

// GetPromptsForOperation returns a copy of the loaded prompts for an
// operation type. Prompts an operation scope did not load fall back to the
// global scope, so a single global prompt file reaches every provider.
func GetPromptsForOperation(operationType string) OperationLoadedPrompts {
	promptsMu.RLock()
	defer promptsMu.RUnlock()

	var scoped OperationLoadedPrompts
	switch operationType {
	case "signals":
		scoped = loadedPrompts.Signals
	case "process":
		scoped = loadedPrompts.Process
	case "validate":
		scoped = loadedPrompts.Validate
	default:
		return loadedPrompts.Global
	}

	global := loadedPrompts.Global
	fallbackString(&scoped.SystemPrompts.ExtractSignals, global.SystemPrompts.ExtractSignals)
	fallbackString(&scoped.SystemPrompts.ProcessBullets, global.SystemPrompts.ProcessBullets)
	fallbackString(&scoped.SystemPrompts.CheckConsistency, global.SystemPrompts.CheckConsistency)
	fallbackString(&scoped.UserPrompts.ExtractSignals, global.UserPrompts.ExtractSignals)
	fallbackString(&scoped.UserPrompts.ProcessBullets, global.UserPrompts.ProcessBullets)
	fallbackString(&scoped.UserPrompts.CheckConsistency, global.UserPrompts.CheckConsistency)
	return scoped
}
