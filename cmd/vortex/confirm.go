package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var errNotInteractive = errors.New("refusing to continue without --yes: stdin is not a terminal")

// confirm asks question on out and reads a y/N answer from in. yes skips the
// prompt. Without a terminal there is nobody to answer, so it fails instead
// of reading whatever is piped in.
func confirm(in io.Reader, out io.Writer, interactive, yes bool, question string) (bool, error) {
	if yes {
		return true, nil
	}
	if !interactive {
		return false, errNotInteractive
	}

	fmt.Fprintf(out, "%s [y/N]: ", strings.TrimSpace(question))
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	ans := strings.TrimSpace(strings.ToLower(line))
	return ans == "y" || ans == "yes", nil
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
