package controller

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/watchroom/server/internal/service/presence"
	"github.com/watchroom/server/internal/service/room"
)

type CreateRoomSessionInput struct {
	UserId          string `json:"user_id" validate:"required,min=1,max=64"`
	Username        string `json:"username" validate:"required,min=1,max=32"`
	AvatarUrl       string `json:"avatar_url" validate:"max=256"`
	InitialMediaRef string `json:"initial_media_ref" validate:"max=256"`
}

func (c controller) createRoomSession(w http.ResponseWriter, r *http.Request) {
	var input CreateRoomSessionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		c.writeJSON(w, http.StatusBadRequest, errorPayload{Code: "BAD_REQUEST", Message: "invalid json"})
		return
	}

	if fields, ok := c.validate.Validate(input); !ok {
		c.writeJSON(w, http.StatusBadRequest, errorPayload{Code: "VALIDATION_ERROR", Message: "validation failed", Fields: fields})
		return
	}

	connectToken, err := c.roomService.CreateRoomSession(r.Context(), &room.CreateRoomSessionParams{
		UserId:          input.UserId,
		Username:        input.Username,
		AvatarUrl:       input.AvatarUrl,
		InitialMediaRef: input.InitialMediaRef,
	})
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to create room session", "error", err)
		c.writeHTTPError(w, err)
		return
	}

	c.writeJSON(w, http.StatusOK, map[string]string{"connect_token": connectToken})
}

type JoinRoomSessionInput struct {
	UserId    string `json:"user_id" validate:"required,min=1,max=64"`
	Username  string `json:"username" validate:"required,min=1,max=32"`
	AvatarUrl string `json:"avatar_url" validate:"max=256"`
	RoomId    string `json:"room_id" validate:"required,min=1,max=64"`
}

func (c controller) joinRoomSession(w http.ResponseWriter, r *http.Request) {
	var input JoinRoomSessionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		c.writeJSON(w, http.StatusBadRequest, errorPayload{Code: "BAD_REQUEST", Message: "invalid json"})
		return
	}

	if fields, ok := c.validate.Validate(input); !ok {
		c.writeJSON(w, http.StatusBadRequest, errorPayload{Code: "VALIDATION_ERROR", Message: "validation failed", Fields: fields})
		return
	}

	connectToken, err := c.roomService.JoinRoomSession(r.Context(), &room.JoinRoomSessionParams{
		UserId:    input.UserId,
		Username:  input.Username,
		AvatarUrl: input.AvatarUrl,
		RoomId:    input.RoomId,
	})
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to create join room session", "error", err)
		c.writeHTTPError(w, err)
		return
	}

	c.writeJSON(w, http.StatusOK, map[string]string{"connect_token": connectToken})
}

// listPresence serves the external friends feature: it resolves the
// given user ids to presence records in one call.
func (c controller) listPresence(w http.ResponseWriter, r *http.Request) {
	idsParam := r.URL.Query().Get("ids")
	if idsParam == "" {
		c.writeJSON(w, http.StatusBadRequest, errorPayload{Code: "BAD_REQUEST", Message: "ids query parameter is required"})
		return
	}

	records, err := c.presenceService.ListFor(r.Context(), strings.Split(idsParam, ","))
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to list presence", "error", err)
		c.writeHTTPError(w, err)
		return
	}

	c.writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

type SetPresenceStatusInput struct {
	UserId string `json:"user_id" validate:"required,min=1,max=64"`
	Status string `json:"status" validate:"required,oneof=offline online watching in_room"`
	RoomId string `json:"room_id" validate:"max=64"`
}

func (c controller) setPresenceStatus(w http.ResponseWriter, r *http.Request) {
	var input SetPresenceStatusInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		c.writeJSON(w, http.StatusBadRequest, errorPayload{Code: "BAD_REQUEST", Message: "invalid json"})
		return
	}

	if fields, ok := c.validate.Validate(input); !ok {
		c.writeJSON(w, http.StatusBadRequest, errorPayload{Code: "VALIDATION_ERROR", Message: "validation failed", Fields: fields})
		return
	}

	if err := c.presenceService.SetStatus(r.Context(), &presence.SetStatusParams{
		UserId: input.UserId,
		Status: input.Status,
		RoomId: input.RoomId,
	}); err != nil {
		c.logger.WarnContext(r.Context(), "failed to set presence status", "error", err)
		c.writeHTTPError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
