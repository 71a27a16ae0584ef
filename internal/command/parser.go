package command

import "strings"

// FlagValue is a resolved flag occurrence: either a bare boolean flag
// (Present, no value) or a value flag whose tokens were space-joined
// (mirrors the original's `flags[name] = True` vs `' '.join(values)`).
type FlagValue struct {
	Present  bool
	HasValue bool
	Value    string
}

// ProcessedCommand is a fully resolved, permit-checked command ready for
// CommandsProcessing (spec §4.5 step 4).
type ProcessedCommand struct {
	Spec   *CommandSpec
	Values []string
	Flags  map[string]FlagValue
}

// Parser resolves tokenized commands against a bot's installed command
// table (spec §4.6's "for each command/flag, compare the caller's
// effective permit to the spec's permits[spec.permit]").
type Parser struct {
	prefix   string
	registry map[string]*CommandSpec
}

// NewParser builds a Parser over a pre-aliased command registry (see
// BuildRegistry).
func NewParser(commandPrefix string, registry map[string]*CommandSpec) *Parser {
	return &Parser{prefix: commandPrefix, registry: registry}
}

// Parse tokenizes text and resolves every command/flag against the
// registry, rejecting any that the caller's permit does not satisfy.
// permits maps a permit name (spec.md §4.5 fixed levels) to its integer
// rank; lower rank is more privileged.
func (p *Parser) Parse(text string, permit int, permits map[string]int) ([]ProcessedCommand, error) {
	entries, err := Tokenize(p.prefix, text)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	output := make([]ProcessedCommand, 0, len(entries))
	for _, entry := range entries {
		spec, ok := p.registry[entry.Name]
		if !ok {
			return nil, newErr(KindNoSuchCommand, entry.Name)
		}
		if err := checkSpec(spec, entry.Values, permit, permits); err != nil {
			return nil, err
		}

		flags := make(map[string]FlagValue, len(entry.Flags))
		for _, raw := range entry.Flags {
			flagSpec, ok := spec.Flags[raw.Name]
			if !ok {
				return nil, newErr(KindNoSuchFlag, raw.Name)
			}
			if err := checkSpec(flagSpec, raw.Values, permit, permits); err != nil {
				return nil, err
			}
			if len(raw.Values) > 0 {
				flags[flagSpec.Name] = FlagValue{HasValue: true, Value: strings.Join(raw.Values, " ")}
			} else {
				flags[flagSpec.Name] = FlagValue{Present: true}
			}
		}

		output = append(output, ProcessedCommand{Spec: spec, Values: entry.Values, Flags: flags})
	}
	return output, nil
}

type specLike interface {
	specName() string
	specPermit() string
	specRequireValue() bool
	specMultipleValues() bool
}

func checkSpec[T specLike](spec T, values []string, permit int, permits map[string]int) error {
	if spec.specRequireValue() && len(values) == 0 {
		return newErr(KindValueMissing, spec.specName())
	}
	if !spec.specRequireValue() && len(values) > 0 {
		return newErr(KindValueNotAllowed, spec.specName())
	}
	if !spec.specMultipleValues() && len(values) > 1 {
		return newErr(KindMultipleValues, spec.specName())
	}
	if permit > permits[spec.specPermit()] {
		return newErr(KindAccessRights, spec.specName())
	}
	return nil
}
