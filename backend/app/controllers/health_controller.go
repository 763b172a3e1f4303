package controllers

import (
	"net/http"
	"time"

	"taskrelay/backend/app/dto"
	"taskrelay/backend/app/services"
)

// HealthController answers liveness probes.
type HealthController struct {
	Agents  *services.AgentService
	started time.Time
}

func NewHealthController(agents *services.AgentService) *HealthController {
	return &HealthController{Agents: agents, started: time.Now()}
}

func (c *HealthController) Ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("pong"))
}

// Health reports uptime and how many agents are registered and online.
func (c *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	res := dto.HealthResponse{Status: "ok", Uptime: time.Since(c.started).Round(time.Second).String()}
	for _, a := range c.Agents.List() {
		res.Agents++
		if a.Online {
			res.Online++
		}
	}
	writeJSON(w, http.StatusOK, res)
}
