package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	// A missing .env is normal; variables may come from the environment.
	_ = godotenv.Load()

	os.Exit(run(os.Args[1:], DefaultDeps()))
}

// run dispatches args to a command and returns the process exit code.
func run(args []string, deps *Dependencies) int {
	if len(args) == 0 {
		printUsage(deps.Stderr)
		return ExitUsage
	}

	switch args[0] {
	case "export":
		return runExportCmd(args[1:], deps)
	case "doctor":
		return runDoctorCmd(args[1:], deps)
	case "version", "--version":
		fmt.Fprintf(deps.Stdout, "taskexport %s\n", Version)
		return ExitSuccess
	case "help", "-h", "--help":
		return runHelp(args[1:], deps)
	}

	fmt.Fprintf(deps.Stderr, "Unknown command: %s\n\n", args[0])
	printUsage(deps.Stderr)
	return ExitUsage
}
