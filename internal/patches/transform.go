package patches

import (
	"regexp"
	"strings"
)

const (
	unknownTransformMessageConstant      = "unknown transform kind"
	emptyPatternMessageConstant          = "pattern must not be empty"
	diffHeaderPrefixConstant             = "diff --git "
	hunkHeaderPrefixConstant             = "@@"
	headerPathExpressionTemplateConstant = `(a|b)/([^\n]*?)`
	pathSeparatorConstant                = "/"
)

// TransformKind names a text transformation applied to a diff.
type TransformKind string

// Transform kinds.
const (
	// TransformFilenames rewrites file paths in diff headers.
	TransformFilenames TransformKind = "filenames"
	// TransformPatch rewrites the whole diff text.
	TransformPatch TransformKind = "patch"
)

var transformTable = map[TransformKind]func(*Document, string, string) bool{
	TransformFilenames: (*Document).TransformFilenames,
	TransformPatch:     (*Document).TransformBody,
}

// DefaultTransformKinds lists every transform in the order a rewrite applies them.
func DefaultTransformKinds() []TransformKind {
	return []TransformKind{TransformPatch, TransformFilenames}
}

// ParseTransformKind resolves a transform kind from its name.
func ParseTransformKind(value string) (TransformKind, error) {
	kind := TransformKind(strings.ToLower(strings.TrimSpace(value)))
	if _, known := transformTable[kind]; !known {
		return "", TransformError{Kind: TransformKind(value), Message: unknownTransformMessageConstant}
	}
	return kind, nil
}

func validateTransformRequest(pattern string, kinds []TransformKind) error {
	for _, kind := range kinds {
		if _, known := transformTable[kind]; !known {
			return TransformError{Kind: kind, Message: unknownTransformMessageConstant}
		}
	}
	if len(pattern) == 0 {
		var firstKind TransformKind
		if len(kinds) > 0 {
			firstKind = kinds[0]
		}
		return TransformError{Kind: firstKind, Message: emptyPatternMessageConstant}
	}
	return nil
}

// rewriteHeaderPaths replaces the first occurrence of pattern inside every a/ or b/ path found on
// header lines. Header lines run from a "diff --git" line up to the first hunk header.
func rewriteHeaderPaths(text string, pattern string, replacement string) string {
	if len(pattern) == 0 {
		return text
	}

	pathExpression := regexp.MustCompile(headerPathExpressionTemplateConstant + regexp.QuoteMeta(pattern))
	lines := strings.SplitAfter(text, lineSeparatorConstant)

	var builder strings.Builder
	builder.Grow(len(text))
	insideHeader := false
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, diffHeaderPrefixConstant):
			insideHeader = true
		case strings.HasPrefix(line, hunkHeaderPrefixConstant):
			insideHeader = false
		}
		if !insideHeader {
			builder.WriteString(line)
			continue
		}
		builder.WriteString(rewriteHeaderLine(pathExpression, line, replacement))
	}
	return builder.String()
}

func rewriteHeaderLine(pathExpression *regexp.Regexp, line string, replacement string) string {
	matches := pathExpression.FindAllStringSubmatchIndex(line, -1)
	if len(matches) == 0 {
		return line
	}

	var builder strings.Builder
	previousEnd := 0
	for _, match := range matches {
		builder.WriteString(line[previousEnd:match[0]])
		builder.WriteString(line[match[2]:match[3]])
		builder.WriteString(pathSeparatorConstant)
		builder.WriteString(line[match[4]:match[5]])
		builder.WriteString(replacement)
		previousEnd = match[1]
	}
	builder.WriteString(line[previousEnd:])
	return builder.String()
}
