// Command longshot bootstraps the longshot runtime and supervises an orchestrator run.
package main

import (
	"os"

	"github.com/andrewcai8/agentswarm/internal/cli"
)

func main() {
	os.Exit(cli.ExitCode(cli.Execute()))
}
