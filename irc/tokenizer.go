package irc

// Tokenizer splits protocol lines. Both fields are optional: without a
// Resolver every prefix falls back to the link, without a Limit every
// command uses MaxParams.
type Tokenizer struct {
	Resolver Resolver
	Limit    LimitFunc
}

// Tokenize parses line into ctx and returns the message stored there.
//
// An unresolvable prefix does not stop processing: the origin falls back to
// link and Message.Resolved is false.
func (t *Tokenizer) Tokenize(ctx *Context, link Origin, line string) (*Message, error) {
	if len(line) > MaxLineLength {
		return nil, ErrLineTooLong
	}

	m := &ctx.msg
	*m = Message{Origin: link}

	i := skipSpaces(line, 0)

	if i < len(line) && line[i] == ':' {
		i++
		end := indexSpace(line, i)
		m.Prefix = line[i:end]
		i = end
		if m.Prefix != "" {
			if o := t.resolve(link, m.Prefix); o != nil {
				m.Origin = o
				m.Resolved = true
			}
		}
		i = skipSpaces(line, i)
	}

	if i >= len(line) {
		return nil, ErrEmptyMessage
	}

	limit := MaxParams
	if isNumeric(line, i) {
		m.numeric = true
		m.Command = line[i : i+3]
		m.Numeric = int(line[i]-'0')*100 + int(line[i+1]-'0')*10 + int(line[i+2]-'0')
		i += 4
	} else {
		end := indexSpace(line, i)
		m.Command = line[i:end]
		i = end
		if i < len(line) {
			i++
		}
		if t.Limit != nil {
			if n := t.Limit(m.Command); n > 0 && n < MaxParams {
				limit = n
			}
		}
	}

	m.Trailer = line[i:]
	m.Params = splitParams(ctx.params[:0], m.Trailer, limit)
	return m, nil
}

func (t *Tokenizer) resolve(link Origin, name string) Origin {
	if t.Resolver == nil {
		return nil
	}
	if o := t.Resolver.FindClient(link, name); o != nil {
		return o
	}
	return t.Resolver.FindServer(name)
}

// splitParams appends at most limit parameters of s to dst. A ':'-prefixed
// token, or reaching the last slot, takes the remainder of the line.
func splitParams(dst []string, s string, limit int) []string {
	i := 0
	for {
		i = skipSpaces(s, i)
		if i >= len(s) {
			return dst
		}

		if s[i] == ':' {
			return append(dst, s[i+1:])
		}
		if len(dst) == limit-1 {
			return append(dst, s[i:])
		}

		end := indexSpace(s, i)
		dst = append(dst, s[i:end])
		i = end
	}
}

// isNumeric reports three ASCII digits at i followed by a space.
func isNumeric(s string, i int) bool {
	return i+3 < len(s) &&
		isDigit(s[i]) && isDigit(s[i+1]) && isDigit(s[i+2]) &&
		s[i+3] == ' '
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func skipSpaces(s string, i int) int {
	for i < len(s) && s[i] == ' ' {
		i++
	}
	return i
}

func indexSpace(s string, i int) int {
	for i < len(s) && s[i] != ' ' {
		i++
	}
	return i
}
