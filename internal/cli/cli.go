// Package cli parses the quedo binary's command-line surface: the
// argv shape its process entrypoint accepts, independent of how each
// command is ultimately executed.
package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Command names one top-level verb on the command line.
type Command string

const (
	CommandStart      Command = "start"
	CommandStop       Command = "stop"
	CommandRestart    Command = "restart"
	CommandStatus     Command = "status"
	CommandLogs       Command = "logs"
	CommandDoctor     Command = "doctor"
	CommandConfig     Command = "config"
	CommandHistory    Command = "history"
	CommandTranscribe Command = "transcribe"
	CommandVersion    Command = "version"
	CommandHelp       Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandStart:      {},
	CommandStop:       {},
	CommandRestart:    {},
	CommandStatus:     {},
	CommandLogs:       {},
	CommandDoctor:     {},
	CommandConfig:     {},
	CommandHistory:    {},
	CommandTranscribe: {},
	CommandVersion:    {},
	CommandHelp:       {},
}

// Parsed is the fully decoded argv the dispatcher acts on.
type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool

	// StderrOnly narrows `logs` to error-level lines only.
	StderrOnly bool

	// Sub is the subcommand for `config` (show|edit) or `history`
	// (list|play|transcribe).
	Sub string

	// Index is the 1-based session index for `history play`/`history
	// transcribe`.
	Index int

	// Path is the audio file argument to the top-level `transcribe`
	// command.
	Path string
}

// Parse decodes args into a Parsed command invocation. An empty argv parses
// to CommandHelp with ShowHelp set, matching a bare invocation of the
// binary.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
			return parsed, nil
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
			return parsed, nil
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = false
			if err := parseCommandArgs(&parsed, cmd, args[i+1:]); err != nil {
				return Parsed{}, err
			}
			return parsed, nil
		}
	}

	return parsed, nil
}

// parseCommandArgs consumes the argv remaining after cmd, validating the
// subcommand/positional shape each command requires.
func parseCommandArgs(parsed *Parsed, cmd Command, rest []string) error {
	switch cmd {
	case CommandLogs:
		for _, a := range rest {
			if a != "--stderr" {
				return fmt.Errorf("unknown flag for logs: %s", a)
			}
			parsed.StderrOnly = true
		}
	case CommandConfig:
		if len(rest) != 1 {
			return errors.New("config requires exactly one subcommand: show|edit")
		}
		switch rest[0] {
		case "show", "edit":
			parsed.Sub = rest[0]
		default:
			return fmt.Errorf("unknown config subcommand: %s", rest[0])
		}
	case CommandHistory:
		if len(rest) == 0 {
			return errors.New("history requires a subcommand: list|play <n>|transcribe <n>")
		}
		switch rest[0] {
		case "list":
			if len(rest) != 1 {
				return errors.New("history list takes no arguments")
			}
			parsed.Sub = "list"
		case "play", "transcribe":
			if len(rest) != 2 {
				return fmt.Errorf("history %s requires exactly one session index", rest[0])
			}
			index, err := strconv.Atoi(rest[1])
			if err != nil {
				return fmt.Errorf("invalid session index %q: %w", rest[1], err)
			}
			parsed.Sub = rest[0]
			parsed.Index = index
		default:
			return fmt.Errorf("unknown history subcommand: %s", rest[0])
		}
	case CommandTranscribe:
		if len(rest) != 1 {
			return errors.New("transcribe requires exactly one audio file path")
		}
		parsed.Path = rest[0]
	default:
		if len(rest) != 0 {
			return fmt.Errorf("unexpected arguments after command %q", cmd)
		}
	}
	return nil
}

// HelpText renders the usage banner printed by `help`/`-h` and on parse
// errors.
func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command>

Commands:
  start                        Run the background assistant in the foreground
  stop                         Stop the running assistant
  restart                      Stop then start the running assistant
  status                       Print current daemon/session state
  logs [--stderr]              Print recent log lines
  doctor                       Run configuration and environment checks
  config show                  Print the resolved settings
  config edit                  Open the settings file in $EDITOR
  history list                 List recent sessions
  history play <n>             Play back session n's recording
  history transcribe <n>       Re-run transcription for session n
  transcribe <path>            Transcribe an arbitrary audio file
  version                      Print version information
  help                         Show this help

Flags:
  --config PATH   Settings file path (default: $XDG_DATA_HOME/Quedo/settings.yaml)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
