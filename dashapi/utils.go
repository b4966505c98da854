package dashapi

// The attribute of the response envelope containing the payload.
const DataAttribute = "data"

// The attribute of the response envelope containing a human-readable message.
const MessageAttribute = "message"

// The header carrying a unique identifier for each request.
const RequestIdHeader = "X-Request-Id"

// The header used to pass API keys.
const ApiKeyHeader = "X-Api-Key"

// The default name of the cookie holding the session token.
const DefaultTokenCookie = "token"

// The endpoint exchanging credentials for a session token.
const LoginPath = "/api/auth/login"
