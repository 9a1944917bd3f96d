package content

// Transformer rewrites content, returning the rewritten content or an error.
type Transformer interface {
	// Transform rewrites input, returning the rewritten content or an error.
	Transform(input []byte) ([]byte, error)
}

// TransformerFunc is a [Transformer] represented by its [Transform] method.
type TransformerFunc func(input []byte) ([]byte, error)

// Transform satisfies [Transformer].
func (fn TransformerFunc) Transform(input []byte) ([]byte, error) { return fn(input) }
