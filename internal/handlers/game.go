// internal/handlers/game.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/avagner/summit/internal/lobby"
	"github.com/avagner/summit/internal/models"
)

type createGameRequest struct {
	Name       string          `json:"name"`
	HostName   string          `json:"host_name"`
	Password   string          `json:"password,omitempty"`
	MaxPlayers int             `json:"max_players,omitempty"`
	Language   models.Language `json:"language,omitempty"`
}

type joinGameRequest struct {
	PlayerName string `json:"player_name"`
	Password   string `json:"password,omitempty"`
}

type kickPlayerRequest struct {
	HostPlayerID   uuid.UUID `json:"host_player_id"`
	TargetPlayerID uuid.UUID `json:"target_player_id"`
}

type updateSettingsRequest struct {
	HostPlayerID uuid.UUID        `json:"host_player_id"`
	Name         *string          `json:"name,omitempty"`
	Password     *string          `json:"password,omitempty"`
	Language     *models.Language `json:"language,omitempty"`
	MaxPlayers   *int             `json:"max_players,omitempty"`
}

// handleCreateGame creates a game with the caller seated as host.
// POST /api/games
func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.log, lobby.Validationf("invalid request body"))
		return
	}

	detail, err := s.coord.CreateGame(r.Context(), lobby.CreateGameParams{
		Name:       req.Name,
		HostName:   req.HostName,
		Password:   req.Password,
		MaxPlayers: req.MaxPlayers,
		Language:   req.Language,
	})
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, s.log, http.StatusCreated, detail)
}

// handleListGames returns the joinable lobby listing.
// GET /api/games
func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	views, err := s.coord.ListOpenGames(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if views == nil {
		views = []models.GameView{}
	}
	writeJSON(w, s.log, http.StatusOK, views)
}

// handleGameDetails returns the room snapshot for a seated player.
// GET /api/games/{gameID}?player_id=...
func (s *Server) handleGameDetails(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	playerID, err := uuid.Parse(r.URL.Query().Get("player_id"))
	if err != nil {
		writeError(w, s.log, lobby.Validationf("invalid player_id"))
		return
	}

	detail, err := s.coord.GameDetails(r.Context(), gameID, playerID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, s.log, http.StatusOK, detail)
}

// handleJoinGame seats a new player in the game.
// POST /api/games/{gameID}/join
func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	var req joinGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.log, lobby.Validationf("invalid request body"))
		return
	}

	detail, err := s.coord.JoinGame(r.Context(), gameID, req.PlayerName, req.Password)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, s.log, http.StatusOK, detail)
}

// handleKickPlayer soft-removes a member on the host's behalf.
// POST /api/games/{gameID}/kick
func (s *Server) handleKickPlayer(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	var req kickPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.log, lobby.Validationf("invalid request body"))
		return
	}

	if err := s.coord.KickPlayer(r.Context(), gameID, req.HostPlayerID, req.TargetPlayerID); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, s.log, http.StatusOK, map[string]bool{"kicked": true})
}

// handleUpdateSettings applies a host's lobby-phase settings patch.
// PATCH /api/games/{gameID}/settings
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.log, lobby.Validationf("invalid request body"))
		return
	}

	view, err := s.coord.UpdateSettings(r.Context(), gameID, req.HostPlayerID, lobby.SettingsPatch{
		Name:       req.Name,
		Password:   req.Password,
		Language:   req.Language,
		MaxPlayers: req.MaxPlayers,
	})
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, s.log, http.StatusOK, view)
}

// handleListMessages returns the chat history the player may read.
// GET /api/games/{gameID}/messages?player_id=...
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	playerID, err := uuid.Parse(r.URL.Query().Get("player_id"))
	if err != nil {
		writeError(w, s.log, lobby.Validationf("invalid player_id"))
		return
	}

	msgs, err := s.coord.ListMessages(r.Context(), gameID, playerID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if msgs == nil {
		msgs = []*models.ChatMessage{}
	}
	writeJSON(w, s.log, http.StatusOK, msgs)
}
