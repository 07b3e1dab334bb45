package main

import (
	"os"

	"github.com/catatsuy/kioku/internal/cli"
	"golang.org/x/term"
)

func main() {
	cl := cli.NewCLI(os.Stdout, os.Stderr, os.Stdin, term.IsTerminal(int(os.Stderr.Fd())))
	os.Exit(cl.Run(os.Args))
}
