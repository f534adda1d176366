package repository

// Option applies a configuration option to the FileStore.
type Option func(*FileStore)

// WithIVGenerator overrides how missing mapping IVs are generated.
func WithIVGenerator(gen func() (string, error)) Option {
	return func(s *FileStore) {
		if gen != nil {
			s.newIV = gen
		}
	}
}
