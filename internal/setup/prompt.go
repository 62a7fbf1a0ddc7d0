// Package setup implements the interactive first-run wizard. It walks the
// live address cascade of the collection site so the user picks district,
// street and house number from the site's own lists, then chooses a calendar
// backend and writes the config file.
package setup

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Prompter provides reusable terminal prompts backed by an io.Reader/Writer
// pair. In production these are os.Stdin and os.Stdout; tests can inject
// buffers for deterministic input.
type Prompter struct {
	scanner *bufio.Scanner
	w       io.Writer
}

// NewPrompter creates a Prompter wired to the given reader and writer.
func NewPrompter(r io.Reader, w io.Writer) *Prompter {
	return &Prompter{scanner: bufio.NewScanner(r), w: w}
}

// String prompts the user for a text value. If the user presses Enter without
// typing anything, defaultVal is returned. An empty defaultVal means the field
// is required and the prompt repeats until a non-empty value is given.
func (p *Prompter) String(label, defaultVal string) string {
	for {
		if defaultVal != "" {
			_, _ = fmt.Fprintf(p.w, "  %s [%s]: ", label, defaultVal)
		} else {
			_, _ = fmt.Fprintf(p.w, "  %s: ", label)
		}

		if !p.scanner.Scan() {
			return defaultVal
		}

		val := strings.TrimSpace(p.scanner.Text())
		if val == "" {
			if defaultVal != "" {
				return defaultVal
			}
			_, _ = fmt.Fprintf(p.w, "  (required, please enter a value)\n")
			continue
		}
		return val
	}
}

// Secret prompts for a sensitive value such as a token. Input is not masked.
func (p *Prompter) Secret(label string) string {
	for {
		_, _ = fmt.Fprintf(p.w, "  %s: ", label)

		if !p.scanner.Scan() {
			return ""
		}

		val := strings.TrimSpace(p.scanner.Text())
		if val == "" {
			_, _ = fmt.Fprintf(p.w, "  (required, please enter a value)\n")
			continue
		}
		return val
	}
}

// Confirm asks a yes/no question. An empty answer yields defaultYes.
func (p *Prompter) Confirm(label string, defaultYes bool) bool {
	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}

	_, _ = fmt.Fprintf(p.w, "  %s %s: ", label, hint)

	if !p.scanner.Scan() {
		return defaultYes
	}

	answer := strings.TrimSpace(strings.ToLower(p.scanner.Text()))
	if answer == "" {
		return defaultYes
	}
	return answer == "y" || answer == "yes"
}

// Select presents a numbered list and asks the user to pick one. Returns the
// zero-based index of the chosen option.
func (p *Prompter) Select(label string, options []string) (int, error) {
	if len(options) == 0 {
		return -1, fmt.Errorf("no options to select from")
	}

	_, _ = fmt.Fprintf(p.w, "  %s:\n", label)
	for i, opt := range options {
		_, _ = fmt.Fprintf(p.w, "    %d) %s\n", i+1, opt)
	}

	for {
		_, _ = fmt.Fprintf(p.w, "  Choice [1-%d]: ", len(options))

		if !p.scanner.Scan() {
			return -1, fmt.Errorf("no input")
		}

		val := strings.TrimSpace(p.scanner.Text())
		n, err := strconv.Atoi(val)
		if err != nil || n < 1 || n > len(options) {
			_, _ = fmt.Fprintf(p.w, "  (enter a number between 1 and %d)\n", len(options))
			continue
		}
		return n - 1, nil
	}
}

// maxListed is the longest list Search prints without asking for a filter.
const maxListed = 20

// Search is Select for long lists such as the streets of a district. While
// more than maxListed options remain, the user types part of a name to
// narrow them down. It returns the index into options.
func (p *Prompter) Search(label string, options []string) (int, error) {
	if len(options) == 0 {
		return -1, fmt.Errorf("no options to select from")
	}

	remaining := make([]int, len(options))
	for i := range options {
		remaining[i] = i
	}

	for len(remaining) > maxListed {
		_, _ = fmt.Fprintf(p.w, "  %s (%d choices, type part of the name): ", label, len(remaining))
		if !p.scanner.Scan() {
			return -1, fmt.Errorf("no input")
		}
		needle := strings.ToLower(strings.TrimSpace(p.scanner.Text()))
		if needle == "" {
			continue
		}

		var narrowed []int
		for _, i := range remaining {
			if strings.Contains(strings.ToLower(options[i]), needle) {
				narrowed = append(narrowed, i)
			}
		}
		if len(narrowed) == 0 {
			_, _ = fmt.Fprintf(p.w, "  (nothing matches %q)\n", needle)
			continue
		}
		remaining = narrowed
	}

	labels := make([]string, len(remaining))
	for j, i := range remaining {
		labels[j] = options[i]
	}
	choice, err := p.Select(label, labels)
	if err != nil {
		return -1, err
	}
	return remaining[choice], nil
}
