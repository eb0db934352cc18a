// Package refs implements the symbolic reference language used by
// experiment steps: $manifest.{name}, $choices.{name}, $parameters.{name},
// and $steps.{step}.{output}. A raw string is parsed once into a typed
// reference; all validation and resolution then works over that AST instead
// of repeated string matching.
package refs

import (
	"regexp"
	"strings"

	"github.com/agext/levenshtein"
)

// RefKind enumerates the reference AST variants.
type RefKind int

const (
	// KindLiteral: not a reference at all; the value passes through.
	KindLiteral RefKind = iota
	// KindManifest: $manifest.{dataset}
	KindManifest
	// KindChoice: $choices.{name}
	KindChoice
	// KindParameter: $parameters.{name}
	KindParameter
	// KindStep: $steps.{step}.{output}
	KindStep
)

// Ref is a parsed reference.
type Ref struct {
	Kind   RefKind
	Name   string // dataset, choice, or parameter name
	Step   string // step id, for KindStep
	Output string // output name, for KindStep
	Raw    string
}

const ident = `[a-zA-Z_][a-zA-Z0-9_]*`

var (
	manifestPattern   = regexp.MustCompile(`^\$manifest\.(` + ident + `)$`)
	choicesPattern    = regexp.MustCompile(`^\$choices\.(` + ident + `)$`)
	parametersPattern = regexp.MustCompile(`^\$parameters\.(` + ident + `)$`)
	stepsPattern      = regexp.MustCompile(`^\$steps\.(` + ident + `)\.(` + ident + `)$`)

	// looksLikeRef matches anything that starts like a reference attempt.
	looksLikeRef = regexp.MustCompile(`^\$[a-zA-Z]`)
	// embeddedRef matches a $-reference appearing after the first character.
	embeddedRef = regexp.MustCompile(`.+\$[a-zA-Z]`)

	// stepRefPrefix matches a $steps reference at the start of a string; used
	// for dependency extraction, which deliberately tolerates trailing junk
	// the resolver would later reject.
	stepRefPrefix = regexp.MustCompile(`^\$steps\.(` + ident + `)\.(` + ident + `)`)
)

// Parse turns a raw string into a typed reference. Strings that do not start
// with a reference marker come back as KindLiteral. Malformed references
// (start with $ but match no valid form) and embedded references (a $
// appearing past the first character) are errors.
func Parse(raw string) (Ref, error) {
	if embeddedRef.MatchString(raw) {
		return Ref{}, &Error{Kind: ErrEmbedded, Ref: raw}
	}
	if !looksLikeRef.MatchString(raw) {
		return Ref{Kind: KindLiteral, Raw: raw}, nil
	}

	if m := stepsPattern.FindStringSubmatch(raw); m != nil {
		return Ref{Kind: KindStep, Step: m[1], Output: m[2], Raw: raw}, nil
	}
	if m := manifestPattern.FindStringSubmatch(raw); m != nil {
		return Ref{Kind: KindManifest, Name: m[1], Raw: raw}, nil
	}
	if m := choicesPattern.FindStringSubmatch(raw); m != nil {
		return Ref{Kind: KindChoice, Name: m[1], Raw: raw}, nil
	}
	if m := parametersPattern.FindStringSubmatch(raw); m != nil {
		return Ref{Kind: KindParameter, Name: m[1], Raw: raw}, nil
	}

	return Ref{}, &Error{Kind: ErrMalformed, Ref: raw, Suggestions: malformedHints(raw)}
}

// StepRefPrefix extracts the (step, output) pair when raw begins with a
// $steps reference, whether or not the full string is a valid reference.
func StepRefPrefix(raw string) (step, output string, ok bool) {
	m := stepRefPrefix.FindStringSubmatch(raw)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// validPrefixes are the only legal reference openers, used for diagnostics.
var validPrefixes = []string{"$manifest.", "$choices.", "$parameters.", "$steps."}

// malformedHints proposes likely fixes for a malformed reference.
func malformedHints(raw string) []string {
	var hints []string
	for _, prefix := range validPrefixes {
		bare := strings.TrimSuffix(prefix, ".")
		if strings.HasPrefix(raw, bare) && !strings.HasPrefix(raw, prefix) {
			hints = append(hints, "did you mean '"+prefix+"...'? (missing dot)")
			break
		}
	}
	if len(hints) == 0 {
		if prefix := closestPrefix(raw); prefix != "" {
			hints = append(hints, "did you mean '"+prefix+"...'?")
		}
	}
	if strings.HasPrefix(raw, "$params.") {
		hints = append(hints, "did you mean '$parameters.'? ($params is not valid)")
	}
	if strings.HasPrefix(raw, "$manifest.") && strings.Contains(raw[len("$manifest."):], ".") {
		hints = append(hints, "$manifest references are one level deep: $manifest.{dataset}")
	}
	return hints
}

// closestPrefix matches the reference's leading token against the valid
// prefixes by edit distance, so misspellings like "$choic.x" or "$step.a.b"
// still point at the intended form.
func closestPrefix(raw string) string {
	head := raw
	if i := strings.IndexByte(head, '.'); i >= 0 {
		head = head[:i]
	}

	best, bestDist := "", 3
	for _, prefix := range validPrefixes {
		bare := strings.TrimSuffix(prefix, ".")
		if head == bare {
			// The prefix itself is fine; the problem is elsewhere.
			return ""
		}
		if d := levenshtein.Distance(head, bare, nil); d < bestDist {
			best, bestDist = prefix, d
		}
	}
	return best
}
