package monitoring

import "log"

// Logf is the diagnostic logger used by the pipeline packages. It defaults to
// log.Printf; tests may mute it through SetLogger.
var Logf func(format string, v ...any) = log.Printf

// SetLogger replaces Logf. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		Logf = func(string, ...any) {}
		return
	}
	Logf = f
}
