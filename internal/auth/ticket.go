// internal/auth/ticket.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Room tickets bootstrap identity on the room socket. createGame and joinGame
// hand the caller a short-lived signed token binding a player id to a game
// id; join_room must present it before the socket is paired with the player.
// After pairing, live operations authenticate by the socket pairing alone.

var (
	ticketPrivateKey ed25519.PrivateKey
	ticketPublicKey  ed25519.PublicKey
	ticketTTL        time.Duration
)

const defaultTicketTTL = 2 * time.Hour

// ErrInvalidTicket covers every verification failure: bad signature, expiry,
// malformed claims. Callers don't get to distinguish.
var ErrInvalidTicket = errors.New("invalid room ticket")

// Init generates a fresh signing key pair and reads TICKET_TTL. Tickets do
// not survive a restart with generated keys; clients re-join through the REST
// API, which issues new ones.
func Init() {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		fmt.Printf("failed to generate ticket key pair: %v\n", err)
		os.Exit(1)
	}
	ticketPublicKey, ticketPrivateKey = pub, priv
	parseTicketTTL()
}

// InitFromPath loads a persisted key pair so tickets stay valid across
// rolling restarts.
func InitFromPath(privatePath, publicPath string) error {
	priv, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("reading ticket private key: %w", err)
	}
	pub, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("reading ticket public key: %w", err)
	}
	ticketPrivateKey = ed25519.PrivateKey(priv)
	ticketPublicKey = ed25519.PublicKey(pub)
	parseTicketTTL()
	return nil
}

func parseTicketTTL() {
	ticketTTL = defaultTicketTTL
	if raw := os.Getenv("TICKET_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			fmt.Printf("failed to parse TICKET_TTL: %v\n", err)
			os.Exit(1)
		}
		ticketTTL = d
	}
}

// NewRoomTicket signs a ticket admitting the player to the game's room.
func NewRoomTicket(playerID uuid.UUID, gameID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  playerID.String(),
		"game": gameID,
		"iat":  now.Unix(),
		"exp":  now.Add(ticketTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(ticketPrivateKey)
}

// VerifyRoomTicket checks signature and expiry and returns the bound player
// and game ids.
func VerifyRoomTicket(token string) (uuid.UUID, string, error) {
	t, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ticketPublicKey, nil
	})
	if err != nil || !t.Valid {
		return uuid.Nil, "", ErrInvalidTicket
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, "", ErrInvalidTicket
	}
	sub, _ := claims["sub"].(string)
	gameID, _ := claims["game"].(string)

	playerID, err := uuid.Parse(sub)
	if err != nil || gameID == "" {
		return uuid.Nil, "", ErrInvalidTicket
	}
	return playerID, gameID, nil
}
