//go:build darwin

package notify

import (
	"fmt"
	"strconv"
)

func soundCommands() [][]string {
	return [][]string{
		{"afplay", "/System/Library/Sounds/Glass.aiff"},
	}
}

func notifyCommand(title, body string) []string {
	script := fmt.Sprintf("display notification %s with title %s", strconv.Quote(body), strconv.Quote(title))
	return []string{"osascript", "-e", script}
}

// caffeinate -i keeps the system awake for as long as it runs.
func inhibitCommand() []string {
	return []string{"caffeinate", "-i"}
}
