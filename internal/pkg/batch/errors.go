package batch

import (
	"strings"

	"github.com/airenas/supaquery/internal/pkg/retry"
)

const maxErrLen = 100

// GroupErrors counts error messages by a normalized category
func GroupErrors(msgs []string) map[string]int {
	if len(msgs) == 0 {
		return nil
	}
	res := map[string]int{}
	for _, m := range msgs {
		res[category(m)]++
	}
	return res
}

func category(msg string) string {
	lm := strings.ToLower(msg)
	switch {
	case retry.IsRateLimitMsg(lm):
		return "API rate limit exceeded"
	case strings.Contains(lm, "not found"):
		return "Receipt not found in storage"
	case strings.Contains(lm, "timeout"), strings.Contains(lm, "deadline exceeded"):
		return "Network timeout"
	}
	if r := []rune(msg); len(r) > maxErrLen {
		return string(r[:maxErrLen]) + "..."
	}
	return msg
}
