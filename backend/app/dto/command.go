package dto

type LegacyCommandRequest struct {
	Command string `json:"command"`
}

type CommandCreatedResponse struct {
	CommandID int    `json:"command_id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}
