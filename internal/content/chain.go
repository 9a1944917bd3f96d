package content

// Chain runs transformers in order, feeding each the previous output. The
// chain stops at the first error.
func Chain(transformers ...Transformer) TransformerFunc {
	return func(input []byte) ([]byte, error) {
		var err error
		for _, transformer := range transformers {
			if input, err = transformer.Transform(input); err != nil {
				return nil, err
			}
		}
		return input, nil
	}
}
