// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the room handshake. These provide more
// specific reasons for closure than standard codes.
const (
	BadSubprotocolError = websocket.StatusCode(3000) // Client connected with an unsupported subprotocol.
	InvalidGameIDError  = websocket.StatusCode(3001) // Game code in the WS URL does not exist.
	HandshakeError      = websocket.StatusCode(3002) // Server-side failure while validating the handshake.
)
