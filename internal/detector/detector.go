// Package detector identifies which coverage report format a file holds,
// by content and by extension, so the fix pipeline can pick the right
// format adapter without the caller naming one explicitly.
package detector

import (
	"bufio"
	"io"
	"strings"
)

// Format is a coverage report format covfix knows how to read and write.
type Format int

const (
	// Unknown indicates the format could not be determined.
	Unknown Format = iota
	// LCOV is the line-oriented lcov trace format.
	LCOV
	// Cobertura is the Cobertura-compatible XML format.
	Cobertura
)

// String returns the human-readable name of the format.
func (f Format) String() string {
	switch f {
	case LCOV:
		return "LCOV"
	case Cobertura:
		return "Cobertura"
	default:
		return "Unknown"
	}
}

// DetectFormat inspects the first few lines of reader's content to guess
// its format. It reads through a buffered scanner, so it may consume more
// of reader than the lines it inspects, and the reader itself is not
// rewound: callers that need to read the content again should pass a copy
// or re-open the source.
func DetectFormat(reader io.Reader) (Format, error) {
	scanner := bufio.NewScanner(reader)

	const maxLinesToCheck = 10
	lineCount := 0
	hasLCOVMarkers := false
	hasXMLMarkers := false

	for scanner.Scan() && lineCount < maxLinesToCheck {
		line := strings.TrimSpace(scanner.Text())
		lineCount++

		if line == "" {
			continue
		}

		if strings.Contains(line, "<coverage") || strings.Contains(line, "<class filename=") {
			hasXMLMarkers = true
		}

		if strings.HasPrefix(line, "TN:") ||
			strings.HasPrefix(line, "SF:") ||
			strings.HasPrefix(line, "DA:") ||
			strings.HasPrefix(line, "BRDA:") ||
			strings.HasPrefix(line, "LH:") ||
			strings.HasPrefix(line, "LF:") ||
			line == "end_of_record" {
			hasLCOVMarkers = true
		}
	}

	if err := scanner.Err(); err != nil {
		return Unknown, err
	}

	if hasXMLMarkers {
		return Cobertura, nil
	}
	if hasLCOVMarkers {
		return LCOV, nil
	}
	return Unknown, nil
}

// DetectFormatByExtension guesses a format from a filename alone, without
// reading any content.
func DetectFormatByExtension(filename string) Format {
	filename = strings.ToLower(filename)

	if strings.HasSuffix(filename, ".xml") {
		return Cobertura
	}

	if strings.HasSuffix(filename, ".lcov") ||
		strings.HasSuffix(filename, ".info") ||
		strings.Contains(filename, "lcov.info") {
		return LCOV
	}

	return Unknown
}
