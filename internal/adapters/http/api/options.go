package api

// Option configures a Server.
type Option func(*Server)

// WithMaxLimit caps the limit query parameter of list endpoints.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithArrivals sets the default window in minutes and length of /arrivals.
func WithArrivals(window, limit int) Option {
	return func(s *Server) {
		if window > 0 {
			s.arrivalWindow = window
		}
		if limit > 0 {
			s.arrivalLimit = limit
		}
	}
}
