package linksim

import (
	"fmt"
	"io"
	"runtime"
)

// A FatalError is a model error that aborts the simulation. It remembers the
// call stack where it was raised so it can be reported with a backtrace.
type FatalError struct {
	Msg string
	pcs []uintptr
}

func fatalf(format string, args ...any) *FatalError {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	return &FatalError{
		Msg: fmt.Sprintf(format, args...),
		pcs: pcs[:n],
	}
}

func (e *FatalError) Error() string {
	return e.Msg
}

// Report writes the error followed by its backtrace. Frame addresses vary
// from build to build.
func (e *FatalError) Report(w io.Writer) {
	fmt.Fprintf(w, "FATAL: [0:0] %s\n", e.Msg)
	fmt.Fprintln(w, "SST Fatal Backtrace Information:")
	frames := runtime.CallersFrames(e.pcs)
	for i := 0; ; i++ {
		frame, more := frames.Next()
		fmt.Fprintf(w, "    %d : %s [%#x]\n", i, frame.Function, frame.PC)
		if !more {
			break
		}
	}
}
