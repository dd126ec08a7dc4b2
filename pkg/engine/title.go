package engine

import (
	"strings"

	"github.com/noctics/central/pkg/api"
	"github.com/noctics/central/pkg/marker"
)

const (
	titleMaxWords = 8
	titleMaxChars = 80
)

// Title derives a short conversation title from the first meaningful user
// message: helper-result wraps are skipped, whitespace is collapsed, and
// the result is trimmed to a few words. Returns the empty string when no
// suitable message exists.
func (e *Engine) Title() string {
	return ComputeTitle(e.messages, e.helperLabel)
}

// ComputeTitle derives a title from an arbitrary message list.
func ComputeTitle(msgs []api.Message, helperLabel string) string {
	var source string
	for _, m := range msgs {
		if m.Role != api.RoleUser {
			continue
		}
		if isResultWrap(m.Content, helperLabel) {
			continue
		}
		source = m.Content
		break
	}

	source = strings.Join(strings.Fields(source), " ")
	if source == "" {
		return ""
	}

	words := strings.Fields(source)
	if len(words) > titleMaxWords {
		words = words[:titleMaxWords]
	}
	title := strings.Join(words, " ")
	if len(title) > titleMaxChars {
		title = title[:titleMaxChars]
	}
	return title
}

// isResultWrap reports whether user content starts with a helper-result
// envelope, for either the configured or the default label.
func isResultWrap(content, helperLabel string) bool {
	trimmed := strings.TrimSpace(content)
	labels := []string{DefaultHelperLabel}
	if helperLabel != "" && helperLabel != DefaultHelperLabel {
		labels = append(labels, helperLabel)
	}
	for _, label := range labels {
		if strings.HasPrefix(strings.ToLower(trimmed), strings.ToLower(marker.ResultPair(label).Start)) {
			return true
		}
	}
	return false
}
