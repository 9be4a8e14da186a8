package pipeline

// Operators recognized inside the token stream.
const (
	OpPipe        = "|"
	OpRedirectIn  = "<"
	OpRedirectOut = ">"
)

// IsOperator returns true if the token is a pipeline operator.
func IsOperator(tok string) bool {
	switch tok {
	case OpPipe, OpRedirectIn, OpRedirectOut:
		return true
	default:
		return false
	}
}

// Scan splits a token list into pipeline stages.
//
// An empty token list produces a pipeline with no stages. A dangling
// operator, a redirect without a target, or a stage without a program is an
// error wrapping ErrMalformedPipeline. If a stage has more than one
// redirect of the same kind, the last one wins.
//
// The token slice isn't modified.
func Scan(tokens []string) (*Pipeline, error) {
	out := &Pipeline{}
	if len(tokens) == 0 {
		return out, nil
	}

	var current Stage
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok {
		case OpPipe:
			if len(current.Argv) == 0 {
				return nil, malformed(tokens, i, "missing command before pipe")
			}
			if i == len(tokens)-1 {
				return nil, malformed(tokens, i, "missing command after pipe")
			}
			out.Stages = append(out.Stages, current)
			current = Stage{}

		case OpRedirectIn, OpRedirectOut:
			if i+1 >= len(tokens) || IsOperator(tokens[i+1]) {
				return nil, malformed(tokens, i, "missing redirection target")
			}
			i++
			if tok == OpRedirectIn {
				current.Stdin = tokens[i]
			} else {
				current.Stdout = tokens[i]
			}

		default:
			current.Argv = append(current.Argv, tok)
		}
	}

	if len(current.Argv) == 0 {
		return nil, malformed(tokens, len(tokens)-1, "missing command")
	}
	out.Stages = append(out.Stages, current)

	return out, nil
}
