package command

// FlagSpec describes one command flag's value arity and required permit
// level, mirroring original_source/bot/mods/spec: FlagSpec.
type FlagSpec struct {
	Name           string
	Permit         string
	Aliases        []string
	RequireValue   bool
	MultipleValues bool
}

func (f *FlagSpec) specName() string         { return f.Name }
func (f *FlagSpec) specPermit() string       { return f.Permit }
func (f *FlagSpec) specRequireValue() bool   { return f.RequireValue }
func (f *FlagSpec) specMultipleValues() bool { return f.MultipleValues }

// CommandSpec describes one bot command: its permit level, its value
// arity, whether it batches repeated invocations over its values, and
// whether it runs on the commands thread pool (spec §4.5 ExecuteCommand).
type CommandSpec struct {
	Name           string
	Permit         string
	Aliases        []string
	Flags          map[string]*FlagSpec
	RequireValue   bool
	MultipleValues bool
	BatchValues    bool
	Threaded       bool
	Signal         string
}

func (c *CommandSpec) specName() string         { return c.Name }
func (c *CommandSpec) specPermit() string       { return c.Permit }
func (c *CommandSpec) specRequireValue() bool   { return c.RequireValue }
func (c *CommandSpec) specMultipleValues() bool { return c.MultipleValues }

// ExpandFlagAliases builds a flag-name/alias -> *FlagSpec lookup table for
// one CommandSpec's flags, mirroring process_spec's alias expansion.
func ExpandFlagAliases(flags []*FlagSpec) map[string]*FlagSpec {
	table := make(map[string]*FlagSpec, len(flags))
	for _, f := range flags {
		table[f.Name] = f
		for _, alias := range f.Aliases {
			table[alias] = f
		}
	}
	return table
}

// BuildRegistry builds a command-name/alias -> *CommandSpec lookup table,
// mirroring process_spec's alias expansion at the command level.
func BuildRegistry(commands []*CommandSpec) map[string]*CommandSpec {
	registry := make(map[string]*CommandSpec, len(commands))
	for _, c := range commands {
		registry[c.Name] = c
		for _, alias := range c.Aliases {
			registry[alias] = c
		}
	}
	return registry
}
