package channel

import "strings"

// CommandKind identifies which slash command was recognised.
type CommandKind int

const (
	CommandNone CommandKind = iota
	CommandJoin
	CommandLeave
	CommandList
	CommandWho
	CommandMsg
	CommandHelp
)

// Command is a parsed slash command (spec §4.8).
type Command struct {
	Kind           CommandKind
	Handled        bool
	Channel        string // /join, /leave, /who [channel]
	Password       string // /join <name> <password>
	TargetNickname string // /msg <name> <text>
	Text           string // /msg text
}

// ParseCommand recognises /join, /leave, /channels|/list, /who
// [channel], /msg <name> <text>, /help. Anything else starting with
// '/' is returned with Handled=false; non-slash input is CommandNone
// with Handled=false (it isn't a command at all).
func ParseCommand(raw string) Command {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "/") {
		return Command{Kind: CommandNone}
	}

	fields := strings.Fields(trimmed)
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "/join":
		c := Command{Kind: CommandJoin, Handled: true}
		if len(args) > 0 {
			c.Channel = args[0]
		}
		if len(args) > 1 {
			c.Password = args[1]
		}
		return c
	case "/leave":
		c := Command{Kind: CommandLeave, Handled: true}
		if len(args) > 0 {
			c.Channel = args[0]
		}
		return c
	case "/channels", "/list":
		return Command{Kind: CommandList, Handled: true}
	case "/who":
		c := Command{Kind: CommandWho, Handled: true}
		if len(args) > 0 {
			c.Channel = args[0]
		}
		return c
	case "/msg":
		c := Command{Kind: CommandMsg, Handled: true}
		if len(args) >= 2 {
			c.TargetNickname = args[0]
			c.Text = strings.Join(args[1:], " ")
		}
		return c
	case "/help":
		return Command{Kind: CommandHelp, Handled: true}
	default:
		return Command{Kind: CommandNone, Handled: false}
	}
}
