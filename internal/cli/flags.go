package cli

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// ListsCommand prints the names of all lists.
type ListsCommand struct {
	globals *GlobalFlags
	version string
}

// EntriesCommand prints the entries of one list.
type EntriesCommand struct {
	Source string `long:"source" description:"Only entries from this source: backend | user | generated"`

	Args struct {
		List string `positional-arg-name:"list" description:"List name"`
	} `positional-args:"yes" required:"yes"`

	globals *GlobalFlags
	version string
}

// AddCommand adds one entry to a list.
type AddCommand struct {
	Type        string   `long:"type" short:"t" description:"Pattern type: domain | host | exact_url | host_path_prefix | regex" default:"domain"`
	Source      string   `long:"source" description:"Entry source: user | generated" default:"user"`
	Category    string   `long:"category" description:"Metadata category"`
	Description string   `long:"description" description:"Metadata description"`
	Tags        []string `long:"tag" description:"Metadata tag (repeatable)"`

	Args struct {
		List    string `positional-arg-name:"list" description:"List name"`
		Pattern string `positional-arg-name:"pattern" description:"Pattern text"`
	} `positional-args:"yes" required:"yes"`

	globals *GlobalFlags
	version string
}

// UpdateCommand changes fields of an existing entry.
type UpdateCommand struct {
	List        string   `long:"list" description:"Move the entry to this list"`
	Pattern     string   `long:"pattern" description:"New pattern text"`
	Type        string   `long:"type" short:"t" description:"New pattern type"`
	Source      string   `long:"source" description:"New source"`
	Category    string   `long:"category" description:"New metadata category"`
	Description string   `long:"description" description:"New metadata description"`
	Tags        []string `long:"tag" description:"Replace metadata tags (repeatable)"`

	Args struct {
		ID int64 `positional-arg-name:"id" description:"Entry id"`
	} `positional-args:"yes" required:"yes"`

	globals *GlobalFlags
	version string
}

// RemoveCommand deletes one entry by id.
type RemoveCommand struct {
	Args struct {
		ID int64 `positional-arg-name:"id" description:"Entry id"`
	} `positional-args:"yes" required:"yes"`

	globals *GlobalFlags
	version string
}

// ClearCommand deletes the entries of a list.
type ClearCommand struct {
	Source string `long:"source" description:"Only delete entries from this source"`
	Force  bool   `long:"force" description:"Skip safety confirmation prompt"`

	Args struct {
		List string `positional-arg-name:"list" description:"List name"`
	} `positional-args:"yes" required:"yes"`

	globals *GlobalFlags
	version string
}

// MatchCommand tests a URL against a list.
type MatchCommand struct {
	All bool `long:"all" description:"Print every matching entry, not just the first"`

	Args struct {
		List string `positional-arg-name:"list" description:"List name"`
		URL  string `positional-arg-name:"url" description:"URL to test"`
	} `positional-args:"yes" required:"yes"`

	globals *GlobalFlags
	version string
}

// SyncCommand runs one backend sync.
type SyncCommand struct {
	File string `long:"file" short:"f" description:"Payload file (overrides sync.source_file)"`

	globals *GlobalFlags
	version string
}

// ExportCommand writes a list as an export document.
type ExportCommand struct {
	Output string `long:"output" short:"o" description:"Write to file instead of stdout"`

	Args struct {
		List string `positional-arg-name:"list" description:"List name"`
	} `positional-args:"yes" required:"yes"`

	globals *GlobalFlags
	version string
}

// ImportCommand replaces a list with the contents of an export document.
type ImportCommand struct {
	List   string `long:"list" description:"Target list (defaults to the document's list name)"`
	Source string `long:"source" description:"Source assigned to imported entries" default:"user"`

	Args struct {
		File string `positional-arg-name:"file" description:"Export document, or - for stdin"`
	} `positional-args:"yes" required:"yes"`

	globals *GlobalFlags
	version string
}

// SeedCommand adds the configured sensitive domains as generated entries.
type SeedCommand struct {
	List string `long:"list" description:"Target list (overrides seed.list)"`

	globals *GlobalFlags
	version string
}

// StatusCommand shows database statistics and configuration summary.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}

// ServeCommand runs the HTTP API and the periodic backend sync.
type ServeCommand struct {
	Host string `long:"host" description:"Override server host"`
	Port int    `long:"port" description:"Override server port"`

	globals *GlobalFlags
	version string
}
