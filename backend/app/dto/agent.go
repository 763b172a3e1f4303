package dto

import "taskrelay/backend/app/session"

type JoinRequest struct {
	Hostname string `json:"hostname"`
	User     string `json:"user"`
}

type JoinResponse struct {
	ID     int  `json:"id"`
	Status bool `json:"status"`
}

type PollResponse struct {
	Commands []session.Delivery `json:"commands"`
}

type CommandResultRequest struct {
	AgentID   int    `json:"agent_id"`
	CommandID int    `json:"command_id"`
	Status    string `json:"status"`
	Result    string `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}

type BatchCommand struct {
	CommandID int    `json:"command_id"`
	Result    string `json:"result"`
}

type BatchResultRequest struct {
	AgentID  int            `json:"agent_id"`
	Commands []BatchCommand `json:"commands"`
}

type StatusResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
}

type DeleteAgentResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	Terminated bool   `json:"terminated"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
	Agents int    `json:"agents"`
	Online int    `json:"online"`
}
