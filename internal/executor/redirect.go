package executor

import (
	"log"
	"os"

	"dsh/internal/jobs"
)

// redirects holds the files opened for one process's "<" and ">" targets.
// A nil field means the stream is inherited.
type redirects struct {
	in  *os.File
	out *os.File
}

// openRedirects opens p's redirect targets. An open failure is logged and
// that stream is left to be inherited.
func openRedirects(p *jobs.Process, logger *log.Logger) redirects {
	var r redirects

	if p.Input != "" {
		f, err := os.Open(p.Input)
		if err != nil {
			logger.Printf("input redirect: %v", err)
		} else {
			r.in = f
		}
	}

	if p.Output != "" {
		flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if p.Append {
			flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		}
		f, err := os.OpenFile(p.Output, flags, 0o644)
		if err != nil {
			logger.Printf("output redirect: %v", err)
		} else {
			r.out = f
		}
	}

	return r
}

func (r redirects) Close() {
	if r.in != nil {
		r.in.Close()
	}
	if r.out != nil {
		r.out.Close()
	}
}
