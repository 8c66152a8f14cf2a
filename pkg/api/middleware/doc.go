// Package middleware provides the HTTP middleware chain of the diagram API.
//
// Every middleware has the shape func(http.Handler) http.Handler so they
// compose by wrapping:
//
//	handler := middleware.PanicRecovery(logger)(mux)
//	handler = middleware.Metrics(reg)(handler)
//	handler = middleware.Logging(logger)(handler)
//	handler = middleware.RequestID()(handler)
//	handler = middleware.CORS(cors)(handler)
//
// RequestID replaces the request with one carrying the ID, so it wraps
// Metrics and Logging rather than sitting inside them; those two read the
// route pattern the mux records on the request they passed down.
//
// Response wrappers keep http.Flusher reachable so server-sent event
// streams work through the whole chain.
package middleware
