package proctitle

import "strings"

// MaxLen is the Linux task comm limit, excluding the terminating NUL.
const MaxLen = 15

// ForProfile names the daemon after its session profile, e.g. "studio:work".
// The default profile yields plain "studio".
func ForProfile(profile string) string {
	profile = strings.TrimSpace(profile)
	if profile == "" || profile == "default" {
		return "studio"
	}
	return "studio:" + profile
}

// Format trims the title and cuts it to MaxLen bytes without splitting a rune.
func Format(title string) string {
	title = strings.TrimSpace(title)
	if len(title) <= MaxLen {
		return title
	}
	cut := MaxLen
	for cut > 0 && !isRuneStart(title[cut]) {
		cut--
	}
	return title[:cut]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
