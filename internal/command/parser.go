// Package command splits inbound chat text into a command verb and its
// free-form argument.
package command

import (
	"strings"
)

// separators are the token separators recognised in command text. Some chat
// clients insert U+2005 (four-per-em space) after a mention instead of an
// ASCII space.
const separators = " \u2005"

// Command is a parsed command line.
type Command struct {
	// Verb is the first token exactly as typed, including any leading slash
	// or "@botname" suffix.
	Verb string
	// Argument is every token after the verb, joined with a single ASCII space.
	Argument string
	// Tokens holds the raw split, empty tokens included.
	Tokens []string
}

// Parse splits text on ASCII space and U+2005. Consecutive separators yield
// empty tokens, which survive in Argument as repeated spaces.
func Parse(text string) Command {
	tokens := split(text)

	cmd := Command{Tokens: tokens, Verb: tokens[0]}
	if len(tokens) > 1 {
		cmd.Argument = strings.Join(tokens[1:], " ")
	}
	return cmd
}

// HasArgument reports whether at least one token followed the verb.
func (c Command) HasArgument() bool {
	return len(c.Tokens) >= 2
}

// Name returns the verb without the leading slash and without a trailing
// "@botname" qualifier, lower-cased.
func (c Command) Name() string {
	name := strings.TrimPrefix(c.Verb, "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

// Target returns the bot username a "/cmd@botname" verb is addressed to, or
// "" when the verb carries no qualifier.
func (c Command) Target() string {
	if i := strings.IndexByte(c.Verb, '@'); i >= 0 {
		return c.Verb[i+1:]
	}
	return ""
}

// IsSlash reports whether the verb is a slash command.
func (c Command) IsSlash() bool {
	return strings.HasPrefix(c.Verb, "/")
}

// split always returns at least one token, like a regexp split would.
func split(s string) []string {
	var tokens []string
	start := 0
	for i, r := range s {
		if strings.ContainsRune(separators, r) {
			tokens = append(tokens, s[start:i])
			start = i + len(string(r))
		}
	}
	return append(tokens, s[start:])
}
