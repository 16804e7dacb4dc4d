package safety

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Options are the global safety flags.
type Options struct {
	DryRun bool
	Yes    bool
}

// ErrDeclined is returned when the user answers no to a confirmation.
var ErrDeclined = errors.New("operation declined by user")

// Confirm prompts the user to confirm a mutating operation.
// - If opts.Yes is true, it returns true without prompting.
// - If opts.DryRun is true, it returns false but no error (nothing runs).
// The caller decides what to do with the result.
func Confirm(opts Options, in io.Reader, out io.Writer, question string) (bool, error) {
	if opts.DryRun {
		return false, nil
	}
	if opts.Yes {
		return true, nil
	}
	if out != nil {
		fmt.Fprintf(out, "%s [y/N]: ", strings.TrimSpace(question))
	}
	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	ans := strings.TrimSpace(strings.ToLower(line))
	return ans == "y" || ans == "yes", nil
}

// Prompter binds Confirm to a reader and writer for repeated use.
func Prompter(opts Options, in io.Reader, out io.Writer) func(question string) (bool, error) {
	return func(question string) (bool, error) {
		return Confirm(opts, in, out, question)
	}
}
