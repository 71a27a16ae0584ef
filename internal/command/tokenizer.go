package command

import (
	"regexp"
	"strings"
)

var (
	flagRe        = regexp.MustCompile(`^--\w+$`)
	flagClusterRe = regexp.MustCompile(`^-\w+$`)
)

// RawFlag is one flag occurrence from a single tokenizer pass, before it
// is resolved against a CommandSpec's flag table.
type RawFlag struct {
	Name   string
	Values []string
}

// ParsedCommand is one `<prefix>name arg1 arg2 --flag value` segment
// split out of a message, before spec lookup.
type ParsedCommand struct {
	Name   string
	Values []string
	Flags  []RawFlag
}

const (
	stateAny = iota
	stateFlags
	stateCloseQuote
)

// Tokenize splits s into ParsedCommands separated by `|`, recognizing
// commandPrefix-prefixed command tokens, long/cluster flags, and quoted
// (single- or multi-token) values. Ported from
// original_source/lamb/utils/tokenizer/__init__.py: create_parser/parse,
// since spec §4.6 describes this only at the narrative level.
func Tokenize(commandPrefix, s string) ([]ParsedCommand, error) {
	commandRe := regexp.MustCompile(`^` + regexp.QuoteMeta(commandPrefix) + `\w+$`)
	args := strings.Fields(s)

	var output []ParsedCommand
	for len(args) > 0 {
		commandTok := args[0]
		if !commandRe.MatchString(commandTok) {
			break
		}
		args = args[1:]
		name := commandTok[len(commandPrefix):]
		if len(args) == 0 {
			output = append(output, ParsedCommand{Name: name})
			continue
		}

		values, flags, rest, err := parseArgs(args)
		if err != nil {
			return nil, err
		}
		output = append(output, ParsedCommand{Name: name, Values: values, Flags: flags})
		args = rest
	}
	return output, nil
}

// parseArgs consumes one command's argument tokens up to the next `|` or
// end of input, resolving quoting and flag clustering exactly as the
// original state machine does. args is mutated in place to normalize
// escaped closing quotes, matching the original's in-place token rewrite.
func parseArgs(args []string) (values []string, flags []RawFlag, rest []string, err error) {
	currentFlag := -1 // -1 means "append to values"
	state := stateAny
	enclosed := -1

	appendValue := func(tok string) {
		if currentFlag == -1 {
			values = append(values, tok)
		} else {
			flags[currentFlag].Values = append(flags[currentFlag].Values, tok)
		}
	}

	i := 0
	for ; i < len(args); i++ {
		tok := args[i]
		switch state {
		case stateAny:
			switch {
			case tok == "|":
				return values, flags, args[i+1:], nil
			case strings.HasPrefix(tok, `\"`):
				appendValue(`"` + tok[2:])
			case strings.HasPrefix(tok, `"`):
				switch {
				case tok == `"`:
					enclosed = i
					state = stateCloseQuote
				case len(tok) > 1 && strings.HasSuffix(tok, `"`):
					if strings.HasSuffix(tok, `\"`) {
						args[i] = tok[:len(tok)-2] + `"`
						enclosed = i
						state = stateCloseQuote
					} else {
						appendValue(tok[1 : len(tok)-1])
					}
				default:
					enclosed = i
					state = stateCloseQuote
				}
			case flagRe.MatchString(tok):
				flags = append(flags, RawFlag{Name: tok[2:]})
				currentFlag = len(flags) - 1
			case flagClusterRe.MatchString(tok):
				for _, r := range tok[1:] {
					flags = append(flags, RawFlag{Name: string(r)})
				}
				state = stateFlags
			default:
				appendValue(tok)
			}
		case stateFlags:
			switch {
			case tok == "|":
				return values, flags, args[i+1:], nil
			case flagRe.MatchString(tok):
				flags = append(flags, RawFlag{Name: tok[2:]})
				currentFlag = len(flags) - 1
				state = stateAny
			case flagClusterRe.MatchString(tok):
				for _, r := range tok[1:] {
					flags = append(flags, RawFlag{Name: string(r)})
				}
			default:
				return nil, nil, nil, newErr(KindUnexpectedToken, tok)
			}
		case stateCloseQuote:
			if strings.HasSuffix(tok, `"`) {
				if strings.HasSuffix(tok, `\"`) {
					args[i] = tok[:len(tok)-2] + `"`
				} else {
					joined := strings.Join(args[enclosed:i+1], " ")
					appendValue(strings.TrimSpace(joined[1 : len(joined)-1]))
					state = stateAny
				}
			}
		}
	}

	if state == stateCloseQuote {
		return nil, nil, nil, newErr(KindEnclosing, args[enclosed])
	}
	return values, flags, args[i:], nil
}
