// Package auth provides authentication middleware for the draftpace REST API.
//
// APIKeyMiddleware(mode, header, key) returns a gorilla/mux MiddlewareFunc
// that validates the API key carried in the named request header. It guards
// the control routes (target and mode selection); read-only routes stay open.
//
// When mode != "apikey" or key == "", all requests pass through (useful for
// local development with auth disabled). When the key is incorrect or absent,
// the middleware answers 401 Unauthorized immediately.
package auth
