package infer

import (
	"regexp"
	"strings"
)

var identifierRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// pythonKeywords are filtered from the lexical scan; the grammar-based path
// never produces them as identifiers in the first place.
var pythonKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true,
	"class": true, "continue": true, "def": true, "del": true, "elif": true,
	"else": true, "except": true, "finally": true, "for": true,
	"from": true, "global": true, "if": true, "import": true, "in": true,
	"is": true, "lambda": true, "nonlocal": true, "not": true, "or": true,
	"pass": true, "raise": true, "return": true, "try": true, "while": true,
	"with": true, "yield": true,
}

// lexicalIdentifiers is the degraded scan used when structured parsing
// fails: every identifier token counts, read or write, after comments and
// triple-quoted string blocks are stripped. Conservative over-reporting is
// accepted here.
func lexicalIdentifiers(code string) map[string]bool {
	reads := make(map[string]bool)

	for _, token := range identifierRe.FindAllString(stripCommentsAndStrings(code), -1) {
		if !pythonKeywords[token] {
			reads[token] = true
		}
	}

	return reads
}

// stripCommentsAndStrings removes #-comments and triple-quoted blocks with
// a line-oriented state machine. A trailing # is only trusted as a comment
// when the quote counts before it are even, i.e. the # is not sitting
// inside a string literal on that line.
func stripCommentsAndStrings(code string) string {
	var (
		out      strings.Builder
		inTriple bool
		delim    string
	)

	for _, line := range strings.Split(code, "\n") {
		work := line

		for {
			if inTriple {
				end := strings.Index(work, delim)
				if end < 0 {
					work = ""

					break
				}

				work = work[end+len(delim):]
				inTriple = false

				continue
			}

			quote, idx := nextTripleQuote(work)
			if idx < 0 {
				break
			}

			out.WriteString(work[:idx])
			out.WriteString(" ")

			delim = quote
			work = work[idx+3:]
			inTriple = true
		}

		if !inTriple {
			work = stripLineComment(work)
		}

		out.WriteString(work)
		out.WriteString("\n")
	}

	return out.String()
}

// nextTripleQuote finds the earliest ''' or """ in the line.
func nextTripleQuote(line string) (string, int) {
	single := strings.Index(line, "'''")
	double := strings.Index(line, `"""`)

	switch {
	case single < 0 && double < 0:
		return "", -1
	case single < 0:
		return `"""`, double
	case double < 0:
		return "'''", single
	case single < double:
		return "'''", single
	default:
		return `"""`, double
	}
}

// stripLineComment drops a trailing #-comment unless the # appears inside
// a single-line string literal, judged by the odd/even count of quote
// characters seen before it.
func stripLineComment(line string) string {
	singles, doubles := 0, 0

	for i, r := range line {
		switch r {
		case '\'':
			singles++
		case '"':
			doubles++
		case '#':
			if singles%2 == 0 && doubles%2 == 0 {
				return line[:i]
			}
		}
	}

	return line
}
