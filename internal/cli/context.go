// Package cli provides the command-line interface for the wlprep tool.
package cli

import (
	"sync"

	"github.com/web-traces/wlprep/internal/app"
)

// The application is initialized once in the root command's
// PersistentPreRunE and shared by every subcommand.
var (
	appMu     sync.RWMutex
	globalApp *app.Application
)

// SetApp stores the application for subcommands to retrieve.
func SetApp(a *app.Application) {
	appMu.Lock()
	defer appMu.Unlock()
	globalApp = a
}

// GetApp returns the shared application, or nil before initialization.
func GetApp() *app.Application {
	appMu.RLock()
	defer appMu.RUnlock()
	return globalApp
}
