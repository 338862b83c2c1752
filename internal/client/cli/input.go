package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is swapped out in tests.
var readPassword = term.ReadPassword

// line reads one trimmed line of input. A final line without a newline is
// still returned.
func (a *App) line(prompt string) (string, error) {
	fmt.Fprint(a.out, prompt+": ")
	s, err := a.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(s) > 0 {
			return strings.TrimSpace(s), nil
		}
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// password reads a secret without echo when stdin is a terminal.
func (a *App) password(prompt string) (string, error) {
	if !a.terminal {
		return a.line(prompt)
	}
	fmt.Fprint(a.out, prompt+": ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(a.out)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
