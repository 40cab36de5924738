package ffmpeg

import "strings"

// ParseLogLevel splits an ffmpeg output line into severity and
// message. With -loglevel level+... every line starts with a severity
// tag ("[info] message"), or a component tag followed by the severity
// ("[mjpeg @ 0x...] [warning] message"). The severity tag is stripped
// from the message; a component tag stays. Lines without a
// recognizable tag come back as info.
func ParseLogLevel(line string) (level, msg string) {
	tag, rest, ok := splitTag(line)
	if !ok {
		return "info", line
	}
	if isLogLevel(tag) {
		return tag, rest
	}
	// First tag names a component; severity may follow in a second tag.
	if next, after, ok := splitTag(rest); ok && isLogLevel(next) {
		return next, line[:len(line)-len(rest)] + after
	}
	return "info", line
}

// splitTag peels a leading "[...] " bracket off a line.
func splitTag(line string) (tag, rest string, ok bool) {
	if len(line) < 3 || line[0] != '[' {
		return "", "", false
	}
	end := strings.Index(line, "] ")
	if end == -1 {
		return "", "", false
	}
	return line[1:end], line[end+2:], true
}

func isLogLevel(s string) bool {
	switch s {
	case "trace", "debug", "verbose", "info", "warning", "error", "fatal", "panic", "quiet":
		return true
	}
	return false
}
