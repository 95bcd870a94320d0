// ABOUTME: Tolerant parsing of structured generation output
// ABOUTME: Extracts JSON objects from free text and falls back to usable defaults
package genai

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// FallbackSubject is used when a generated email cannot be parsed.
const FallbackSubject = "Follow-up from RetainIQ"

const (
	fallbackBody     = "We wanted to follow up and see how things are going. Reply to this email any time if there is anything we can help with."
	fallbackAnalysis = "No analysis available."
)

// DefaultChurnActions are recommended when an analysis carries none.
var DefaultChurnActions = []string{"Schedule QBR", "Alert account manager", "Review usage data"}

// objectPattern matches the outermost {...} span, including newlines.
var objectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// Email is a generated subject and body. Degraded is set when the raw output
// did not contain a usable JSON object and defaults were substituted.
type Email struct {
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Degraded bool   `json:"degraded,omitempty"`
}

// ChurnAnalysis is a generated risk narrative with recommended actions.
type ChurnAnalysis struct {
	Analysis string   `json:"analysis"`
	Actions  []string `json:"actions"`
	Degraded bool     `json:"degraded,omitempty"`
}

// extractObject returns the first parseable JSON object in raw: the whole
// trimmed text, or failing that the widest {...} span inside it.
func extractObject(raw string) (gjson.Result, bool) {
	trimmed := strings.TrimSpace(raw)
	if gjson.Valid(trimmed) {
		if res := gjson.Parse(trimmed); res.IsObject() {
			return res, true
		}
	}

	match := objectPattern.FindString(trimmed)
	if match != "" && gjson.Valid(match) {
		if res := gjson.Parse(match); res.IsObject() {
			return res, true
		}
	}

	return gjson.Result{}, false
}

func stringField(obj gjson.Result, key string) string {
	v := obj.Get(key)
	if v.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(v.String())
}

// ParseEmail never fails: unparseable output becomes the body of an email
// with the fallback subject.
func ParseEmail(raw string) Email {
	if obj, ok := extractObject(raw); ok {
		subject := stringField(obj, "subject")
		body := stringField(obj, "body")
		if subject != "" && body != "" {
			return Email{Subject: subject, Body: body}
		}
	}

	body := strings.TrimSpace(raw)
	if body == "" {
		body = fallbackBody
	}
	return Email{Subject: FallbackSubject, Body: body, Degraded: true}
}

// ParseChurnAnalysis never fails: unparseable output becomes the analysis
// text paired with DefaultChurnActions.
func ParseChurnAnalysis(raw string) ChurnAnalysis {
	if obj, ok := extractObject(raw); ok {
		analysis := stringField(obj, "analysis")
		var actions []string
		obj.Get("actions").ForEach(func(_, v gjson.Result) bool {
			if v.Type == gjson.String {
				if s := strings.TrimSpace(v.String()); s != "" {
					actions = append(actions, s)
				}
			}
			return true
		})
		if analysis != "" {
			if len(actions) == 0 {
				return ChurnAnalysis{Analysis: analysis, Actions: defaultActions(), Degraded: true}
			}
			return ChurnAnalysis{Analysis: analysis, Actions: actions}
		}
	}

	analysis := strings.TrimSpace(raw)
	if analysis == "" {
		analysis = fallbackAnalysis
	}
	return ChurnAnalysis{Analysis: analysis, Actions: defaultActions(), Degraded: true}
}

func defaultActions() []string {
	out := make([]string, len(DefaultChurnActions))
	copy(out, DefaultChurnActions)
	return out
}
