package filament

import "log"

// DevMode enables development-time diagnostics.
// When true:
//   - Per-subscriber OnTrack/OnTrigger hooks fire
//   - Misuse warnings carry more detail
//
// Set this at application startup:
//
//	func main() {
//	    filament.DevMode = os.Getenv("FILAMENT_DEV") == "1"
//	    // ...
//	}
var DevMode = false

// Debug holds fine-grained diagnostic toggles, all off by default.
// These are read on hot paths, so keep them plain bools.
var Debug = struct {
	// LogScheduler logs queue arming and flush completion.
	LogScheduler bool

	// LogTracking logs link creation and teardown.
	LogTracking bool
}{}

// Warnf reports non-fatal diagnostics such as triggering a disposed
// subscriber. Replaceable at startup to route into an application logger.
var Warnf = func(format string, args ...any) {
	log.Printf("filament: "+format, args...)
}
