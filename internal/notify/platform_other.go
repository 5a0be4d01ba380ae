//go:build !linux && !darwin

package notify

func soundCommands() [][]string { return nil }

func notifyCommand(title, body string) []string { return nil }

func inhibitCommand() []string { return nil }
