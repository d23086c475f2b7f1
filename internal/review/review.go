// Public domain.

// Package review implements the interactive review channel: a small fixed
// command vocabulary and a navigation state machine over a sequence of
// steps.
package review

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Command is a reviewer's answer at a suspension point.
type Command int

const (
	Next     Command = iota // accept and advance
	Previous                // step back one
	Run                     // accept the rest without asking
	Quit                    // stop, keeping what is done
)

func (c Command) String() string {
	switch c {
	case Next:
		return "next"
	case Previous:
		return "previous"
	case Run:
		return "run"
	case Quit:
		return "quit"
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// ParseCommand recognizes the command vocabulary, full words or first
// letters, case insensitive.
func ParseCommand(s string) (Command, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "n", "next":
		return Next, true
	case "p", "prev", "previous":
		return Previous, true
	case "r", "run":
		return Run, true
	case "q", "quit":
		return Quit, true
	}
	return 0, false
}

// Reviewer is consulted at each suspension point.  Pos is the index of the
// step just completed, of n steps.
type Reviewer interface {
	Review(pos, n int, summary string) (Command, error)
}

// Auto never suspends.
type Auto struct{}

// Review always answers Run.
func (Auto) Review(int, int, string) (Command, error) { return Run, nil }

// Console reads commands line by line from In and writes prompts to Out.
// Unrecognized input is prompted again.  End of input is Quit.
type Console struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewConsole returns a Console reviewer.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{bufio.NewScanner(in), out}
}

// Review prints summary and waits for a command.
func (c *Console) Review(pos, n int, summary string) (Command, error) {
	fmt.Fprintf(c.out, "%s\n[%d/%d] (n)ext, (p)revious, (r)un, (q)uit: ",
		summary, pos+1, n)
	for c.in.Scan() {
		if cmd, ok := ParseCommand(c.in.Text()); ok {
			return cmd, nil
		}
		fmt.Fprint(c.out, "? (n)ext, (p)revious, (r)un, (q)uit: ")
	}
	if err := c.in.Err(); err != nil {
		return Quit, err
	}
	return Quit, nil
}

// Script answers from a fixed list of commands, then Run.
type Script []Command

// Review pops the next scripted command.
func (s *Script) Review(int, int, string) (Command, error) {
	if len(*s) == 0 {
		return Run, nil
	}
	c := (*s)[0]
	*s = (*s)[1:]
	return c, nil
}
