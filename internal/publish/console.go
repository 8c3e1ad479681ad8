package publish

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// Console prints user-facing progress.
type Console struct {
	out     io.Writer
	step    *color.Color
	title   *color.Color
	dim     *color.Color
	success *color.Color
	info    *color.Color
	warn    *color.Color
	fail    *color.Color
}

// NewConsole writes to out. Colors follow color.NoColor.
func NewConsole(out io.Writer) *Console {
	return &Console{
		out:     out,
		step:    color.New(color.FgCyan, color.Bold),
		title:   color.New(color.FgGreen, color.Bold),
		dim:     color.New(color.Faint),
		success: color.New(color.FgGreen),
		info:    color.New(color.FgBlue),
		warn:    color.New(color.FgYellow),
		fail:    color.New(color.FgRed, color.Bold),
	}
}

// Writer returns the underlying writer.
func (c *Console) Writer() io.Writer {
	return c.out
}

// Step announces a workflow step.
func (c *Console) Step(n, total int, title, description string) {
	_, _ = fmt.Fprintln(c.out)
	_, _ = c.step.Fprintf(c.out, "Step %d/%d", n, total)
	_, _ = fmt.Fprint(c.out, " - ")
	_, _ = c.title.Fprintln(c.out, title)
	if description != "" {
		_, _ = c.dim.Fprintf(c.out, "   %s\n", description)
	}
}

// Success prints a completed action.
func (c *Console) Success(format string, args ...interface{}) {
	_, _ = c.success.Fprintf(c.out, "[ok] "+format+"\n", args...)
}

// Info prints a neutral message.
func (c *Console) Info(format string, args ...interface{}) {
	_, _ = c.info.Fprintf(c.out, "[..] "+format+"\n", args...)
}

// Warn prints a recoverable problem.
func (c *Console) Warn(format string, args ...interface{}) {
	_, _ = c.warn.Fprintf(c.out, "[!!] "+format+"\n", args...)
}

// Error prints a failure.
func (c *Console) Error(format string, args ...interface{}) {
	_, _ = c.fail.Fprintf(c.out, "[xx] "+format+"\n", args...)
}

// Plain prints without decoration.
func (c *Console) Plain(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(c.out, format+"\n", args...)
}

// PrintSummary prints the final report of a successful upload.
func (c *Console) PrintSummary(s *Summary) {
	_, _ = fmt.Fprintln(c.out)
	_, _ = c.title.Fprintln(c.out, "Upload complete")
	c.Plain("  Repository:  %s", s.URL)
	c.Plain("  Files:       %s", humanize.Comma(int64(s.Files)))
	c.Plain("  Directories: %s", humanize.Comma(int64(s.Dirs)))
	c.Plain("  Size:        %s", humanize.IBytes(uint64(s.Bytes)))
	c.Plain("  Conflicts:   %d", s.Conflicts)
	c.Plain("  Stopped git: %d", s.Killed)
	c.Plain("  Duration:    %s", s.Elapsed.Round(100*time.Millisecond))
	if s.ForcePushed {
		c.Warn("Remote history was overwritten by a force push")
	}
}

// PrintTroubleshooting lists common causes of a failed upload.
func (c *Console) PrintTroubleshooting() {
	_, _ = fmt.Fprintln(c.out)
	_, _ = c.warn.Fprintln(c.out, "Troubleshooting:")
	c.Plain("  - Check the token has the 'repo' scope and has not expired")
	c.Plain("  - Check the repository name and the account it belongs to")
	c.Plain("  - Close editors or terminals holding files in the work directory")
	c.Plain("  - Make sure git is installed or listed in git_paths")
}
