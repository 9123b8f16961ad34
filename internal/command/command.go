// Package command parses bot commands out of chat messages. A command
// is a message starting with "@", followed by a command word and
// whitespace-separated positional arguments.
package command

import "strings"

// Intent is the recognized command category.
type Intent string

const (
	IntentWarikan  Intent = "warikan"
	IntentSchedule Intent = "schedule"
	IntentMemo     Intent = "memo"
	IntentHelp     Intent = "help"
	IntentUnknown  Intent = "unknown"
)

// Command is a parsed message. Raw always carries the original text so
// unknown commands can still be inspected downstream.
type Command struct {
	Intent Intent
	Args   []string
	Raw    string
}

// Token match is exact and case-sensitive.
var intentMap = map[string]Intent{
	"割り勘":    IntentWarikan,
	"わりかん":   IntentWarikan,
	"割勘":     IntentWarikan,
	"予定":     IntentSchedule,
	"スケジュール": IntentSchedule,
	"メモ":     IntentMemo,
	"memo":   IntentMemo,
	"ヘルプ":    IntentHelp,
	"help":   IntentHelp,
}

// Parse extracts a Command from message text. Messages without the "@"
// marker, and marked messages whose command word is not in the map,
// return IntentUnknown with empty args.
func Parse(text string) Command {
	trimmed := strings.TrimSpace(text)

	if !strings.HasPrefix(trimmed, "@") {
		return Command{Intent: IntentUnknown, Args: []string{}, Raw: text}
	}

	parts := strings.Fields(trimmed[1:])
	if len(parts) == 0 {
		return Command{Intent: IntentUnknown, Args: []string{}, Raw: text}
	}

	intent, ok := intentMap[parts[0]]
	if !ok {
		intent = IntentUnknown
	}

	return Command{Intent: intent, Args: parts[1:], Raw: text}
}
