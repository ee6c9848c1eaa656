package arenanet

// Defaults
const (
	// DefaultServerURL is the endpoint of a locally running arena server.
	DefaultServerURL = "ws://localhost:8080/ws"
	// DefaultStorageFile is the session database name used by the CLI.
	DefaultStorageFile = "arenaclient.db"
)

// Standard error messages
const (
	// Configuration errors
	ErrServerURLRequired = "server url is required"
	ErrOpenStorage       = "failed to open session storage"
	ErrInvalidConfig     = "invalid configuration"

	// Connection errors
	ErrConnect      = "failed to start connection"
	ErrFailedEncode = "failed to encode message"
)
