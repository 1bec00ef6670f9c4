package logger

import "strings"

var levelNames = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

var knownStatus = map[string]struct{}{
	"ok":           {},
	"fail":         {},
	"skip":         {},
	"denied":       {},
	"throttled":    {},
	"unrecognized": {},
	"blocked":      {},
	"rate_limited": {},
}

func normalizeLevel(level string) string {
	if mapped, ok := levelNames[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

// normalizeStatus lowercases known statuses; unknown values pass through trimmed.
func normalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	if _, ok := knownStatus[s]; ok {
		return s
	}
	return strings.TrimSpace(status)
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"message_id",
	"sender_id",
	"conversation_id",
	"is_group",
	"handler",
	"command",
	"outcome",
	"remaining_s",
	"duration_ms",
	"args",
	"payload",
	"mode",
	"listen",
	"public_url",
	"storage",
	"db",
	"host",
	"port",
	"count",
	"err",
	"err_kind",
	"attempts",
	"elapsed_ms",
}
