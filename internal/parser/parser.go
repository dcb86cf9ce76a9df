package parser

import (
	"errors"
	"fmt"
	"strings"

	"dsh/internal/jobs"
)

var ErrSyntax = errors.New("syntax error")

type token struct {
	text  string
	op    bool
	start int
}

// Parse splits a command line into jobs. ";" ends a foreground job, "&" a
// background one, "|" separates pipeline stages, and "<", ">", ">>" set a
// stage's redirects. A blank line yields no jobs.
func Parse(line string) ([]*jobs.Job, error) {
	tokens, err := tokenize(line)
	if err != nil {
		return nil, err
	}

	var (
		result   []*jobs.Job
		stages   []*jobs.Process
		cur      = &jobs.Process{}
		redirect string
		jobStart = -1
	)

	finish := func(end int, background bool, op string) error {
		if redirect != "" {
			return fmt.Errorf("%w: missing target for %q", ErrSyntax, redirect)
		}
		if len(cur.Argv) == 0 {
			if len(stages) == 0 && cur.Input == "" && cur.Output == "" && op != "&" {
				return nil
			}
			return fmt.Errorf("%w: empty command before %q", ErrSyntax, op)
		}
		stages = append(stages, cur)
		text := strings.TrimSpace(line[jobStart:end])
		result = append(result, jobs.New(text, background, stages...))
		stages, cur, jobStart = nil, &jobs.Process{}, -1
		return nil
	}

	for _, tok := range tokens {
		if jobStart < 0 {
			jobStart = tok.start
		}

		if !tok.op {
			switch redirect {
			case "<":
				cur.Input = tok.text
			case ">", ">>":
				cur.Output = tok.text
				cur.Append = redirect == ">>"
			default:
				cur.Argv = append(cur.Argv, tok.text)
			}
			redirect = ""
			continue
		}

		if redirect != "" {
			return nil, fmt.Errorf("%w: missing target for %q", ErrSyntax, redirect)
		}

		switch tok.text {
		case "<", ">", ">>":
			redirect = tok.text
		case "|":
			if len(cur.Argv) == 0 {
				return nil, fmt.Errorf("%w: empty command before %q", ErrSyntax, "|")
			}
			stages = append(stages, cur)
			cur = &jobs.Process{}
		case ";", "&":
			if err := finish(tok.start, tok.text == "&", tok.text); err != nil {
				return nil, err
			}
			jobStart = -1
		}
	}

	if jobStart >= 0 {
		if err := finish(len(line), false, "end of line"); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func isOpByte(c byte) bool {
	return c == '|' || c == '<' || c == '>' || c == '&' || c == ';'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// tokenize splits line into words and operators. Quotes group a word and
// are removed; there is no escaping or expansion.
func tokenize(line string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case isSpace(c):
			i++
		case isOpByte(c):
			end := i + 1
			if c == '>' && end < len(line) && line[end] == '>' {
				end++
			}
			tokens = append(tokens, token{text: line[i:end], op: true, start: i})
			i = end
		default:
			start := i
			var b strings.Builder
			for i < len(line) && !isSpace(line[i]) && !isOpByte(line[i]) {
				if q := line[i]; q == '\'' || q == '"' {
					closing := strings.IndexByte(line[i+1:], q)
					if closing < 0 {
						return nil, fmt.Errorf("%w: unterminated %c", ErrSyntax, q)
					}
					b.WriteString(line[i+1 : i+1+closing])
					i += closing + 2
					continue
				}
				b.WriteByte(line[i])
				i++
			}
			tokens = append(tokens, token{text: b.String(), start: start})
		}
	}
	return tokens, nil
}
