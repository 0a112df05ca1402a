package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/taskmanager/internal/server/commands"
)

func main() {
	if err := commands.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
