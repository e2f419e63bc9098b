package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// prompt prints label and reads one trimmed line. It reports false when
// input is exhausted.
func prompt(in *bufio.Scanner, out io.Writer, label string) (string, bool) {
	fmt.Fprint(out, label)
	if !in.Scan() {
		return "", false
	}
	return strings.TrimSpace(in.Text()), true
}

// promptCredentials asks for a password, and for a name when none was
// given on the command line.
func promptCredentials(in *bufio.Scanner, out io.Writer, args []string) (name, password string, ok bool) {
	if len(args) > 0 {
		name = strings.Join(args, " ")
	} else if name, ok = prompt(in, out, "Name: "); !ok {
		return "", "", false
	}
	if password, ok = prompt(in, out, "Password: "); !ok {
		return "", "", false
	}
	return name, password, true
}
