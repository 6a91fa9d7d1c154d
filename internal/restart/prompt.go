package restart

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Prompter asks the user for a yes/no confirmation.
type Prompter interface {
	Confirm(question string) (bool, error)
}

// LinePrompter reads one answer line from In after writing the question
// to Out. Only "y" or "Y" confirms.
type LinePrompter struct {
	In  *bufio.Reader
	Out io.Writer
}

// NewLinePrompter wraps in and out.
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{In: bufio.NewReader(in), Out: out}
}

func (p *LinePrompter) Confirm(question string) (bool, error) {
	if _, err := fmt.Fprintf(p.Out, "%s ", question); err != nil {
		return false, err
	}
	line, err := p.In.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(line), "y"), nil
}
