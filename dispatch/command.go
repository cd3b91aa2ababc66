package dispatch

import (
	"fmt"
	"log"
	"strings"

	"screensnap/capture"
)

// Command is one parsed chat-input action. The set is closed so dispatch can
// switch exhaustively instead of matching prefixes at the call site.
type Command interface{ isCommand() }

type (
	// CmdCapture captures the full screen.
	CmdCapture struct{}
	// CmdWindow captures the window whose title contains Query. An empty
	// Query is a usage error surfaced as response text.
	CmdWindow struct{ Query string }
	// CmdModel sets the model, or reports the current one when Name is empty.
	CmdModel struct{ Name string }
	// CmdAnalyze analyzes the current image with the default prompt.
	CmdAnalyze struct{}
	// CmdClear wipes the transcript and the current image.
	CmdClear struct{}
	// CmdHelp prints the command list.
	CmdHelp struct{}
	// CmdUnknown is any unrecognized /command.
	CmdUnknown struct{ Name string }
	// CmdPrompt is plain (non-slash) input: an analysis prompt over the
	// current image.
	CmdPrompt struct{ Text string }
)

func (CmdCapture) isCommand() {}
func (CmdWindow) isCommand()  {}
func (CmdModel) isCommand()   {}
func (CmdAnalyze) isCommand() {}
func (CmdClear) isCommand()   {}
func (CmdHelp) isCommand()    {}
func (CmdUnknown) isCommand() {}
func (CmdPrompt) isCommand()  {}

const helpText = `Available commands:
/capture - Capture full screen
/window [name] - Capture a specific window (or part of name)
/model [name] - Change AI model (e.g., /model llava:latest)
/analyze - Analyze current image with default prompt
/clear - Clear chat history and current image
/help - Show this help message`

// ParseCommand turns one line of chat input into a Command. Lines starting
// with "/" carry a command name and at most one argument string; anything
// else is a prompt.
func ParseCommand(line string) Command {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return CmdPrompt{Text: line}
	}

	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "/capture":
		return CmdCapture{}
	case "/window":
		return CmdWindow{Query: arg}
	case "/model":
		return CmdModel{Name: arg}
	case "/analyze":
		return CmdAnalyze{}
	case "/clear":
		return CmdClear{}
	case "/help":
		return CmdHelp{}
	default:
		return CmdUnknown{Name: name}
	}
}

// HandleInput parses and executes one line of chat input.
func (d *Dispatcher) HandleInput(line string) *Task {
	return d.Exec(ParseCommand(line))
}

// Exec runs a parsed command. Confirmation and error strings land in the
// response field; capture and analysis work runs on background tasks.
func (d *Dispatcher) Exec(cmd Command) *Task {
	switch c := cmd.(type) {
	case CmdCapture:
		return d.Capture(capture.FullScreen())

	case CmdWindow:
		if c.Query == "" {
			d.store.SetResponse("Please specify a window name or part of it after /window (e.g., /window firefox)")
			return completedTask()
		}
		return d.Capture(capture.NamedWindow(d.resolveWindow(c.Query)))

	case CmdModel:
		if c.Name == "" {
			d.store.SetResponse(fmt.Sprintf("Current model: %s. Usage: /model <model_name>", d.model))
			return completedTask()
		}
		d.SetModel(c.Name)
		d.store.SetResponse(fmt.Sprintf("Model set to: %s", c.Name))
		return completedTask()

	case CmdAnalyze:
		return d.Analyze("")

	case CmdClear:
		d.store.Clear()
		d.store.SetResponse(MsgCleared)
		log.Printf("dispatch: chat history and current image cleared")
		return completedTask()

	case CmdHelp:
		d.store.SetResponse(helpText)
		return completedTask()

	case CmdUnknown:
		d.store.SetResponse(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", c.Name))
		return completedTask()

	case CmdPrompt:
		return d.Analyze(c.Text)

	default:
		return completedTask()
	}
}

// resolveWindow matches the query against open window titles,
// case-insensitive substring first, falling back to the literal query so the
// capture path can still try (and fall back to full screen on a miss).
func (d *Dispatcher) resolveWindow(query string) string {
	titles, err := d.capturer.WindowTitles()
	if err != nil {
		log.Printf("dispatch: window list failed: %v", err)
		return query
	}
	lower := strings.ToLower(query)
	for _, title := range titles {
		if strings.Contains(strings.ToLower(title), lower) {
			return title
		}
	}
	return query
}
