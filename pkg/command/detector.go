// Package command recognizes control commands embedded in pull-request
// comments.
package command

import (
	"fmt"
	"regexp"
	"strings"

	"reviewhook/pkg/event"
)

// DefaultMention is the bot handle commands are addressed to.
const DefaultMention = "@kody"

// reviewMarker is the hidden token the bot leaves on comments it generated,
// so its own output is never treated as a command.
const reviewMarker = "<!-- kody-codereview -->"

// Bitbucket strips HTML comments from rendered markdown, so bot output is
// recognized there by reaction emojis or the literal review signature.
var bitbucketMarkers = []string{"\U0001F44D", "\U0001F44E", "kody code-review"}

// Classification is the result of inspecting a comment body.
type Classification struct {
	IsStartCommand  bool
	HasReviewMarker bool
	IsMention       bool
}

// Detector classifies comment bodies against a configured mention token.
type Detector struct {
	mention   string
	start     *regexp.Regexp
	mentionRe *regexp.Regexp
}

// NewDetector compiles the command patterns for the given mention token.
// An empty token falls back to DefaultMention.
func NewDetector(mention string) (*Detector, error) {
	mention = strings.TrimSpace(mention)
	if mention == "" {
		mention = DefaultMention
	}
	quoted := regexp.QuoteMeta(mention)

	start, err := regexp.Compile(`(?i)^\s*` + quoted + `\s+start-review`)
	if err != nil {
		return nil, fmt.Errorf("compile start-command pattern: %w", err)
	}
	mentionRe, err := regexp.Compile(`(?i)^\s*` + quoted + `\b`)
	if err != nil {
		return nil, fmt.Errorf("compile mention pattern: %w", err)
	}
	return &Detector{mention: mention, start: start, mentionRe: mentionRe}, nil
}

// Classify inspects a comment body. Callers must have already discarded
// deleted comments and empty bodies.
func (d *Detector) Classify(body string, platform event.Platform) Classification {
	isStart := d.start.MatchString(body)
	return Classification{
		IsStartCommand:  isStart,
		HasReviewMarker: hasReviewMarker(body, platform),
		IsMention:       d.mentionRe.MatchString(body) && !isStart,
	}
}

func hasReviewMarker(body string, platform event.Platform) bool {
	if platform == event.PlatformBitbucket {
		lower := strings.ToLower(body)
		for _, marker := range bitbucketMarkers {
			if strings.Contains(lower, strings.ToLower(marker)) {
				return true
			}
		}
		return false
	}
	return strings.Contains(body, reviewMarker)
}

// ReviewMarker returns the marker token the bot appends to its own comments
// on the given platform.
func ReviewMarker(platform event.Platform) string {
	if platform == event.PlatformBitbucket {
		return "kody code-review"
	}
	return reviewMarker
}
