// -----------------------------------------------------------------------
// Crash Protection - panic recovery with an on-disk report
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// CrashLogDir receives crash-*.log files; set from logging.dir at startup
var CrashLogDir = "./logs"

// InstallCrashHandler points crash reports at logDir and makes sure it exists
func InstallCrashHandler(logDir string) {
	if logDir != "" {
		CrashLogDir = logDir
	}
	if err := os.MkdirAll(CrashLogDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: failed to create log directory: %v\n", err)
	}
}

// RecoverWithCrashFile must be deferred directly: defer common.RecoverWithCrashFile()
func RecoverWithCrashFile() {
	if r := recover(); r != nil {
		WriteCrashFile(r, string(debug.Stack()))
		os.Exit(1)
	}
}

// WriteCrashFile writes the panic value, the panicking stack and every
// goroutine to a timestamped file and returns its path. The report is echoed
// to stderr when the file cannot be written.
func WriteCrashFile(panicVal interface{}, stackTrace string) string {
	now := time.Now()
	report := crashReport(now, panicVal, stackTrace)

	path := filepath.Join(CrashLogDir, fmt.Sprintf("crash-%s.log", now.Format("2006-01-02T15-04-05")))
	if err := os.WriteFile(path, []byte(report), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: failed to write crash file: %v\n%s", err, report)
		return ""
	}

	fmt.Fprintf(os.Stderr, "\n!!! cartograb crashed - report saved to %s !!!\nPanic: %v\n", path, panicVal)
	return path
}

func crashReport(now time.Time, panicVal interface{}, stackTrace string) string {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	var b strings.Builder
	section := func(title string) { fmt.Fprintf(&b, "\n=== %s ===\n", title) }

	fmt.Fprintf(&b, "cartograb crash report\nTime: %s\nVersion: %s\n", now.Format(time.RFC3339), GetFullVersion())

	section("PANIC")
	fmt.Fprintf(&b, "%v\n", panicVal)

	section("STACK")
	b.WriteString(stackTrace)

	section("GOROUTINES")
	b.WriteString(allGoroutineStacks())

	section("RUNTIME")
	fmt.Fprintf(&b, "Goroutines: %d  CPUs: %d  %s/%s\n", runtime.NumGoroutine(), runtime.NumCPU(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&b, "Alloc: %d MB  Sys: %d MB  GC cycles: %d\n", mem.Alloc>>20, mem.Sys>>20, mem.NumGC)

	return b.String()
}

// allGoroutineStacks grows the buffer until every stack fits, capped at 16 MB
func allGoroutineStacks() string {
	buf := make([]byte, 64*1024)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) || len(buf) >= 16<<20 {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*2)
	}
}
