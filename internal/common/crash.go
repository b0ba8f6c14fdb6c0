package common

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

var (
	crashMu  sync.Mutex
	crashDir = "./logs"
)

// InstallCrashHandler sets the directory crash reports are written to.
// Call it early in main and pair it with a deferred RecoverWithCrashFile.
func InstallCrashHandler(dir string) {
	crashMu.Lock()
	defer crashMu.Unlock()

	if dir != "" {
		crashDir = dir
	}
	if err := os.MkdirAll(crashDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: cannot create crash directory %s: %v\n", crashDir, err)
	}
}

// CrashDir returns the directory crash reports are written to
func CrashDir() string {
	crashMu.Lock()
	defer crashMu.Unlock()
	return crashDir
}

// WriteCrashFile writes a crash report for panicVal and returns its path.
// An empty path means the report could only be written to stderr.
func WriteCrashFile(panicVal interface{}, stack string) string {
	report := buildCrashReport(panicVal, stack, time.Now())
	path := filepath.Join(CrashDir(), fmt.Sprintf("crash-%s.log", time.Now().Format("2006-01-02T15-04-05.000")))

	if err := os.WriteFile(path, report, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: cannot write crash file: %v\n%s", err, report)
		return ""
	}

	fmt.Fprintf(os.Stderr, "\nFATAL: slidegen crashed, report saved to %s\npanic: %v\n", path, panicVal)
	return path
}

func buildCrashReport(panicVal interface{}, stack string, at time.Time) []byte {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	var b bytes.Buffer
	fmt.Fprintf(&b, "slidegen crash report\n")
	fmt.Fprintf(&b, "time:       %s\n", at.Format(time.RFC3339))
	fmt.Fprintf(&b, "version:    %s\n", GetFullVersion())
	fmt.Fprintf(&b, "goroutines: %d\n", runtime.NumGoroutine())
	fmt.Fprintf(&b, "platform:   %s/%s (%d cpu)\n", runtime.GOOS, runtime.GOARCH, runtime.NumCPU())
	fmt.Fprintf(&b, "heap:       %d MB alloc, %d MB sys, %d gc\n\n", mem.Alloc>>20, mem.Sys>>20, mem.NumGC)

	fmt.Fprintf(&b, "panic: %v\n\n%s\n", panicVal, stack)
	fmt.Fprintf(&b, "all goroutines:\n%s\n", allStacks())
	return b.Bytes()
}

func allStacks() string {
	buf := make([]byte, 64<<10)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) || len(buf) >= 16<<20 {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*2)
	}
}

// RecoverWithCrashFile writes a crash report and exits. It must be deferred directly.
func RecoverWithCrashFile() {
	if r := recover(); r != nil {
		buf := make([]byte, 8192)
		n := runtime.Stack(buf, false)
		WriteCrashFile(r, string(buf[:n]))
		os.Exit(1)
	}
}
