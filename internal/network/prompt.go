package network

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// ErrNoSelection is returned when input ends before a valid adapter is chosen.
var ErrNoSelection = errors.New("no adapter selected")

// TerminalPrompter lists adapters on out and reads the choice from in. The
// operator may answer with the list number or the adapter name.
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer

	once  sync.Once
	lines chan inputLine
}

type inputLine struct {
	text string
	err  error
}

// NewTerminalPrompter returns a prompter reading from in and writing to out.
func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{
		in:    bufio.NewReader(in),
		out:   out,
		lines: make(chan inputLine),
	}
}

// readLines feeds lines from in until the first read error, which is
// delivered before the channel is closed.
func (p *TerminalPrompter) readLines() {
	defer close(p.lines)
	for {
		text, err := p.in.ReadString('\n')
		p.lines <- inputLine{text: text, err: err}
		if err != nil {
			return
		}
	}
}

// ChooseAdapter implements AdapterPrompter. It blocks until a valid answer is
// read, input ends or ctx is done.
func (p *TerminalPrompter) ChooseAdapter(ctx context.Context, switchName string, adapters []Adapter) (Adapter, error) {
	fmt.Fprintf(p.out, "Switch %q does not exist. Available network adapters:\n", switchName)
	for i, a := range adapters {
		if a.Description != "" {
			fmt.Fprintf(p.out, "  %d) %s (%s)\n", i+1, a.Name, a.Description)
		} else {
			fmt.Fprintf(p.out, "  %d) %s\n", i+1, a.Name)
		}
	}

	p.once.Do(func() { go p.readLines() })

	for {
		if err := ctx.Err(); err != nil {
			return Adapter{}, fmt.Errorf("adapter selection interrupted: %w", err)
		}

		fmt.Fprintf(p.out, "Select adapter for %q [1-%d]: ", switchName, len(adapters))

		var in inputLine
		select {
		case <-ctx.Done():
			fmt.Fprintln(p.out)
			return Adapter{}, fmt.Errorf("adapter selection interrupted: %w", ctx.Err())
		case l, ok := <-p.lines:
			if !ok {
				l = inputLine{err: io.EOF}
			}
			in = l
		}

		if answer := strings.TrimSpace(in.text); answer != "" {
			if a, ok := pick(adapters, answer); ok {
				return a, nil
			}
			fmt.Fprintf(p.out, "Invalid selection %q\n", answer)
		}

		if in.err != nil {
			if errors.Is(in.err, io.EOF) {
				return Adapter{}, ErrNoSelection
			}
			return Adapter{}, fmt.Errorf("failed to read selection: %w", in.err)
		}
	}
}

func pick(adapters []Adapter, answer string) (Adapter, bool) {
	if n, err := strconv.Atoi(answer); err == nil {
		if n >= 1 && n <= len(adapters) {
			return adapters[n-1], true
		}
		return Adapter{}, false
	}
	for _, a := range adapters {
		if strings.EqualFold(a.Name, answer) {
			return a, true
		}
	}
	return Adapter{}, false
}
