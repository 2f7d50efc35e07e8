// Package oauth protects the streamable HTTP transport with Google bearer
// tokens.
//
// MCP clients obtain a Google access token themselves (the authorization
// server advertised in the protected resource metadata is Google) and send it
// as "Authorization: Bearer <token>". ValidateGoogleToken checks the token
// against Google's userinfo endpoint, stores it in an mcp-oauth TokenStore
// keyed by the user's email and puts the user into the request context.
// TokenProvider then hands that token to the Calendar and Tasks clients.
package oauth
