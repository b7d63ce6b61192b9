package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Lists   *ListsCommand
	Entries *EntriesCommand
	Add     *AddCommand
	Update  *UpdateCommand
	Remove  *RemoveCommand
	Clear   *ClearCommand
	Match   *MatchCommand
	Sync    *SyncCommand
	Export  *ExportCommand
	Import  *ImportCommand
	Seed    *SeedCommand
	Status  *StatusCommand
	Serve   *ServeCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "listkeeper"
	parser.LongDescription = "Named URL pattern lists kept in sync with a backend, queryable from the command line and over HTTP."

	cmds := &commands{
		Lists:   &ListsCommand{globals: &globals, version: version},
		Entries: &EntriesCommand{globals: &globals, version: version},
		Add:     &AddCommand{globals: &globals, version: version},
		Update:  &UpdateCommand{globals: &globals, version: version},
		Remove:  &RemoveCommand{globals: &globals, version: version},
		Clear:   &ClearCommand{globals: &globals, version: version},
		Match:   &MatchCommand{globals: &globals, version: version},
		Sync:    &SyncCommand{globals: &globals, version: version},
		Export:  &ExportCommand{globals: &globals, version: version},
		Import:  &ImportCommand{globals: &globals, version: version},
		Seed:    &SeedCommand{globals: &globals, version: version},
		Status:  &StatusCommand{globals: &globals, version: version},
		Serve:   &ServeCommand{globals: &globals, version: version},
	}

	parser.AddCommand("lists", "List the names of all lists", "Print the names of every list that has at least one entry.", cmds.Lists)
	parser.AddCommand("entries", "Show the entries of a list", "Show the entries of a list in storage order, optionally filtered by source.", cmds.Entries)
	parser.AddCommand("add", "Add a pattern to a list", "Add a pattern to a list. Domain patterns must be bare registrable domains.", cmds.Add)
	parser.AddCommand("update", "Update an entry", "Update the pattern, type, list, source or metadata of an entry.", cmds.Update)
	parser.AddCommand("remove", "Remove an entry", "Remove an entry by id.", cmds.Remove)
	parser.AddCommand("clear", "Delete the entries of a list", "Delete every entry of a list, or only those from one source. Destructive operation with safety prompt.", cmds.Clear)
	parser.AddCommand("match", "Test a URL against a list", "Report whether a URL matches any entry of a list.", cmds.Match)
	parser.AddCommand("sync", "Run one backend sync", "Read the backend payload and merge every list it carries.", cmds.Sync)
	parser.AddCommand("export", "Export a list", "Write a list as a versioned JSON document.", cmds.Export)
	parser.AddCommand("import", "Import a list", "Replace a list with the valid entries of an export document.", cmds.Import)
	parser.AddCommand("seed", "Seed the sensitive-domain list", "Add the configured sensitive domains to a list as generated entries.", cmds.Seed)
	parser.AddCommand("status", "Show database statistics", "Show database statistics, last sync and configuration summary.", cmds.Status)
	parser.AddCommand("serve", "Run the HTTP API and periodic sync", "Run the HTTP API and the periodic backend sync until interrupted.", cmds.Serve)

	return parser, &globals, cmds
}

// Run is the main entry point for the listkeeper CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("listkeeper %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
