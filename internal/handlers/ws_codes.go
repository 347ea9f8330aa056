// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the table handler.
const (
	BadSubprotocolError = 3000 // Client connected without the nines subprotocol.
	ReplacedError       = 3001 // The same player opened a newer connection.
	InvalidTableIDError = 3003
)
