package record

import (
	"fmt"
	"strings"
)

// Verb enumerates the commands the bridge understands. The grammar is the
// bridge's fixed external contract and must be rendered bit-exact.
type Verb string

// Command verbs accepted by the bridge.
const (
	VerbConnect    Verb = "connect"
	VerbDisconnect Verb = "disconnect"
	VerbStart      Verb = "start"
	VerbStop       Verb = "stop"
	VerbConfigure  Verb = "configure"
	VerbList       Verb = "list"
	VerbSelect     Verb = "select"
	VerbCreate     Verb = "create"
	VerbDelete     Verb = "delete"
	VerbShow       Verb = "show"
	VerbDownload   Verb = "download"
	VerbEcho       Verb = "echo"
	VerbQuit       Verb = "quit"
)

// Command is one outgoing instruction: a verb and its ordered arguments.
// Commands are immutable once constructed and carry no identity beyond their
// content; correlation is by the FIFO protocol convention.
type Command struct {
	Verb Verb
	Args []string
}

// NewCommand builds a Command for verb with the given arguments.
func NewCommand(verb Verb, args ...string) Command {
	return Command{Verb: verb, Args: args}
}

// Encode renders the command in the bridge's textual grammar: the verb and
// space-separated arguments. The line terminator is added by the channel.
func (c Command) Encode() string {
	if len(c.Args) == 0 {
		return string(c.Verb)
	}

	return string(c.Verb) + " " + strings.Join(c.Args, " ")
}

// Validate rejects commands that cannot be rendered safely on a line-oriented
// channel. An embedded line break in an argument would be read by the bridge
// as a second command.
func (c Command) Validate() error {
	if c.Verb == "" {
		return fmt.Errorf("empty verb")
	}

	if strings.ContainsAny(string(c.Verb), " \t\r\n") {
		return fmt.Errorf("verb %q contains whitespace", c.Verb)
	}

	for i, arg := range c.Args {
		if arg == "" {
			return fmt.Errorf("argument %d is empty", i)
		}

		if strings.ContainsAny(arg, "\r\n") {
			return fmt.Errorf("argument %d contains a line break", i)
		}
	}

	return nil
}
