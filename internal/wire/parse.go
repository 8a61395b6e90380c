package wire

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Parse decodes a single flat JSON object. Nested objects and arrays are
// captured as Raw fragments without interpretation. All failures wrap
// ErrMalformedPayload.
func Parse(text string) (*Message, error) {
	p := &parser{input: strings.TrimSpace(text)}

	msg, err := p.parseObject()
	if err != nil {
		return nil, err
	}

	p.skipWhitespace()
	if p.pos != len(p.input) {
		return nil, fmt.Errorf("%w: trailing data at offset %d", ErrMalformedPayload, p.pos)
	}

	return msg, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) parseObject() (*Message, error) {
	if !p.consume('{') {
		return nil, fmt.Errorf("%w: expected '{'", ErrMalformedPayload)
	}

	msg := NewMessage()

	p.skipWhitespace()
	if p.consume('}') {
		return msg, nil
	}

	for {
		p.skipWhitespace()

		key, err := p.parseString()
		if err != nil {
			return nil, err
		}

		p.skipWhitespace()
		if !p.consume(':') {
			return nil, fmt.Errorf("%w: expected ':' after key %q", ErrMalformedPayload, key)
		}

		p.skipWhitespace()
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		msg.Set(key, value)

		p.skipWhitespace()
		if p.consume(',') {
			continue
		}
		if p.consume('}') {
			return msg, nil
		}
		return nil, fmt.Errorf("%w: expected ',' or '}' at offset %d", ErrMalformedPayload, p.pos)
	}
}

// parseValue dispatches on the first character of a value.
func (p *parser) parseValue() (any, error) {
	if p.pos >= len(p.input) {
		return nil, fmt.Errorf("%w: unexpected end of input", ErrMalformedPayload)
	}

	switch c := p.input[p.pos]; {
	case c == '"':
		return p.parseString()
	case c == '{' || c == '[':
		return p.parseRaw()
	case c == 't' || c == 'f':
		return p.parseBool()
	case c == 'n':
		return p.parseNull()
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	default:
		return nil, fmt.Errorf("%w: unexpected character %q at offset %d", ErrMalformedPayload, c, p.pos)
	}
}

// parseString parses a quoted JSON string with escape handling.
func (p *parser) parseString() (string, error) {
	if !p.consume('"') {
		return "", fmt.Errorf("%w: expected string at offset %d", ErrMalformedPayload, p.pos)
	}

	var b strings.Builder
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch {
		case c == '"':
			p.pos++
			return b.String(), nil
		case c == '\\':
			p.pos++
			if p.pos >= len(p.input) {
				return "", fmt.Errorf("%w: unterminated escape", ErrMalformedPayload)
			}
			if err := p.parseEscape(&b); err != nil {
				return "", err
			}
		default:
			b.WriteByte(c)
			p.pos++
		}
	}

	return "", fmt.Errorf("%w: unterminated string", ErrMalformedPayload)
}

// parseEscape handles the character after a backslash.
func (p *parser) parseEscape(b *strings.Builder) error {
	const unicodeEscapeLen = 4

	c := p.input[p.pos]
	p.pos++

	switch c {
	case '"', '\\', '/':
		b.WriteByte(c)
	case 'n':
		b.WriteByte('\n')
	case 'r':
		b.WriteByte('\r')
	case 't':
		b.WriteByte('\t')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'u':
		if p.pos+unicodeEscapeLen > len(p.input) {
			return fmt.Errorf("%w: truncated unicode escape", ErrMalformedPayload)
		}
		code, err := strconv.ParseUint(p.input[p.pos:p.pos+unicodeEscapeLen], 16, 32)
		if err != nil {
			return fmt.Errorf("%w: invalid unicode escape", ErrMalformedPayload)
		}
		p.pos += unicodeEscapeLen
		b.WriteRune(decodeUTF16(rune(code)))
	default:
		return fmt.Errorf("%w: invalid escape '\\%c'", ErrMalformedPayload, c)
	}

	return nil
}

// decodeUTF16 passes through BMP code points. Lone surrogates become
// the replacement character, matching encoding/json behaviour.
func decodeUTF16(r rune) rune {
	if utf16.IsSurrogate(r) {
		return '�'
	}
	return r
}

// parseRaw captures a balanced {...} or [...] fragment verbatim,
// respecting strings so braces inside quotes don't count.
func (p *parser) parseRaw() (Raw, error) {
	start := p.pos
	depth := 0
	inString := false

	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch {
		case inString:
			if c == '\\' {
				p.pos++ // skip escaped character
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '{' || c == '[':
			depth++
		case c == '}' || c == ']':
			depth--
			if depth == 0 {
				p.pos++
				return Raw(p.input[start:p.pos]), nil
			}
			if depth < 0 {
				return "", fmt.Errorf("%w: unbalanced nesting at offset %d", ErrMalformedPayload, p.pos)
			}
		}
		p.pos++
	}

	return "", fmt.Errorf("%w: unterminated nested value", ErrMalformedPayload)
}

func (p *parser) parseBool() (bool, error) {
	switch {
	case strings.HasPrefix(p.input[p.pos:], "true"):
		p.pos += len("true")
		return true, nil
	case strings.HasPrefix(p.input[p.pos:], "false"):
		p.pos += len("false")
		return false, nil
	default:
		return false, fmt.Errorf("%w: invalid literal at offset %d", ErrMalformedPayload, p.pos)
	}
}

func (p *parser) parseNull() (any, error) {
	if strings.HasPrefix(p.input[p.pos:], "null") {
		p.pos += len("null")
		return nil, nil
	}
	return nil, fmt.Errorf("%w: invalid literal at offset %d", ErrMalformedPayload, p.pos)
}

// parseNumber parses integers as int64 and anything with a fraction or
// exponent as float64.
func (p *parser) parseNumber() (any, error) {
	start := p.pos
	isFloat := false

	if p.pos < len(p.input) && p.input[p.pos] == '-' {
		p.pos++
	}
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c >= '0' && c <= '9' {
			p.pos++
			continue
		}
		if c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-' {
			isFloat = true
			p.pos++
			continue
		}
		break
	}

	text := p.input[start:p.pos]
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid number %q", ErrMalformedPayload, text)
		}
		return f, nil
	}

	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid number %q", ErrMalformedPayload, text)
	}
	return n, nil
}

func (p *parser) consume(c byte) bool {
	if p.pos < len(p.input) && p.input[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) skipWhitespace() {
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}
