package controllers

import (
	"fmt"
	"net/http"

	"taskrelay/backend/app/dto"
	"taskrelay/backend/app/services"
)

// AgentController serves the operator's agent dashboard.
type AgentController struct {
	Agents *services.AgentService
}

func NewAgentController(agents *services.AgentService) *AgentController {
	return &AgentController{Agents: agents}
}

func (c *AgentController) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.Agents.List())
}

func (c *AgentController) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "agent_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}
	d, err := c.Agents.Detail(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Delete blocks for the terminate grace period when the agent is online.
func (c *AgentController) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "agent_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}
	terminated, err := c.Agents.Delete(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	msg := fmt.Sprintf("Agent %d deleted", id)
	if terminated {
		msg = fmt.Sprintf("Agent %d terminated and deleted", id)
	}
	writeJSON(w, http.StatusOK, dto.DeleteAgentResponse{Status: "success", Message: msg, Terminated: terminated})
}
