package controllers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"taskrelay/backend/app/dto"
	"taskrelay/backend/app/services"
	"taskrelay/backend/app/session"
)

const maxCommandBody = 1 << 20

// CommandController lets operators queue commands and read their results.
type CommandController struct {
	Agents *services.AgentService
}

func NewCommandController(agents *services.AgentService) *CommandController {
	return &CommandController{Agents: agents}
}

// Create handles POST /command/{agent_id}/{type} with a type-specific JSON body.
func (c *CommandController) Create(w http.ResponseWriter, r *http.Request) {
	agentID, ok := pathInt(r, "agent_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}
	typ, err := session.ParseCommandType(r.PathValue("type"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body failed")
		return
	}
	payload, err := session.DecodePayload(typ, json.RawMessage(raw))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	c.enqueue(w, r, agentID, payload)
}

// CreateLegacy handles POST /create_command/{agent_id}, which only queues exec
// commands. The command may come as JSON or as the "command" query parameter.
func (c *CommandController) CreateLegacy(w http.ResponseWriter, r *http.Request) {
	agentID, ok := pathInt(r, "agent_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}
	var req dto.LegacyCommandRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Command == "" {
		req.Command = r.URL.Query().Get("command")
	}
	c.enqueue(w, r, agentID, session.ExecPayload{Command: req.Command})
}

func (c *CommandController) enqueue(w http.ResponseWriter, r *http.Request, agentID int, p session.Payload) {
	id, err := c.Agents.Enqueue(r.Context(), agentID, p)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.CommandCreatedResponse{
		CommandID: id,
		Type:      string(p.Type()),
		Status:    "queued",
		Message:   fmt.Sprintf("%s command queued for agent %d", p.Type(), agentID),
	})
}

func (c *CommandController) Result(w http.ResponseWriter, r *http.Request) {
	agentID, ok := pathInt(r, "agent_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}
	cmdID, ok := pathInt(r, "command_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid command id")
		return
	}
	v, err := c.Agents.Result(agentID, cmdID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
