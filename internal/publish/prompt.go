package publish

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Prompter asks questions on a line-based terminal.
type Prompter struct {
	in        *bufio.Reader
	out       io.Writer
	assumeYes bool
}

// NewPrompter reads answers from in and writes questions to out.
// With assumeYes every confirmation is accepted without asking.
func NewPrompter(in io.Reader, out io.Writer, assumeYes bool) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, assumeYes: assumeYes}
}

// readLine returns io.EOF only when the input is exhausted and nothing was read.
func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Ask returns the answer, or def for an empty one.
func (p *Prompter) Ask(question, def string) (string, error) {
	if def != "" {
		_, _ = fmt.Fprintf(p.out, "%s [%s]: ", question, def)
	} else {
		_, _ = fmt.Fprintf(p.out, "%s: ", question)
	}

	answer, err := p.readLine()
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// Choose asks for one of choices, by name or 1-based number. Unknown answers select def.
func (p *Prompter) Choose(question string, choices []string, def string) (string, error) {
	_, _ = fmt.Fprintln(p.out, question)
	for i, c := range choices {
		_, _ = fmt.Fprintf(p.out, "  %d. %s\n", i+1, c)
	}

	answer, err := p.Ask("Choose", def)
	if err != nil {
		return "", err
	}

	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(choices) {
		return choices[n-1], nil
	}
	for _, c := range choices {
		if strings.EqualFold(c, answer) {
			return c, nil
		}
	}
	return def, nil
}

// Confirm asks a yes/no question, no being the default.
func (p *Prompter) Confirm(question string) (bool, error) {
	if p.assumeYes {
		_, _ = fmt.Fprintf(p.out, "%s (y/N): y\n", question)
		return true, nil
	}

	_, _ = fmt.Fprintf(p.out, "%s (y/N): ", question)
	answer, err := p.readLine()
	if err != nil {
		return false, err
	}

	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
