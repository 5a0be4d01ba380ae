//go:build linux

package notify

// soundCommands lists PulseAudio then ALSA players for the completion sound.
func soundCommands() [][]string {
	return [][]string{
		{"paplay", "/usr/share/sounds/freedesktop/stereo/complete.oga"},
		{"aplay", "/usr/share/sounds/freedesktop/stereo/complete.wav"},
		{"paplay", "/usr/share/sounds/freedesktop/stereo/bell.oga"},
	}
}

func notifyCommand(title, body string) []string {
	return []string{"notify-send", "--app-name=pomo", title, body}
}

func inhibitCommand() []string {
	return []string{"systemd-inhibit", "--what=idle:sleep", "--who=pomo", "--why=Focus session", "--mode=block", "sleep", "infinity"}
}
