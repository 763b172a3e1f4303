package controllers

import (
	"errors"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"

	"taskrelay/backend/app/dto"
	"taskrelay/backend/app/services"
	"taskrelay/backend/app/session"
)

// AgentCommController serves the endpoints agents call: join, poll, report
// and upload.
type AgentCommController struct {
	Agents *services.AgentService
	Files  *services.FileService
}

func NewAgentCommController(agents *services.AgentService, files *services.FileService) *AgentCommController {
	return &AgentCommController{Agents: agents, Files: files}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Join accepts hostname and user either as JSON or as query parameters.
func (c *AgentCommController) Join(w http.ResponseWriter, r *http.Request) {
	var req dto.JoinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	q := r.URL.Query()
	if req.Hostname == "" {
		req.Hostname = q.Get("hostname")
	}
	if req.User == "" {
		req.User = q.Get("user")
	}
	id, err := c.Agents.Join(r.Context(), remoteIP(r), req.Hostname, req.User)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.JoinResponse{ID: id, Status: true})
}

func (c *AgentCommController) GetCommands(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "agent_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}
	cmds, err := c.Agents.Poll(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.PollResponse{Commands: cmds})
}

func (c *AgentCommController) SetCommandResult(w http.ResponseWriter, r *http.Request) {
	var req dto.CommandResultRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	rep := session.Report{Outcome: session.Outcome(req.Status), Result: req.Result, Error: req.Error}
	if err := c.Agents.Report(r.Context(), req.AgentID, req.CommandID, rep); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.StatusResponse{Status: true, Message: "Result recorded"})
}

// SetCommands is the older batch form; every entry counts as a success.
func (c *AgentCommController) SetCommands(w http.ResponseWriter, r *http.Request) {
	var req dto.BatchResultRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	results := make([]services.BatchResult, 0, len(req.Commands))
	for _, cmd := range req.Commands {
		results = append(results, services.BatchResult{CommandID: cmd.CommandID, Result: cmd.Result})
	}
	if err := c.Agents.ReportBatch(r.Context(), req.AgentID, results); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.StatusResponse{Status: true})
}

func (c *AgentCommController) UploadFile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.URL.Query().Get("agent_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}
	if _, err := c.Agents.Session(id); err != nil {
		writeServiceError(w, err)
		return
	}
	part, err := filePart(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer part.Close()
	info, err := c.Files.AgentUpload(r.Context(), id, part.FileName(), part)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FileUploadResponse{Status: "success", Filename: info.Name, Size: info.Size})
}

var errNoFilePart = errors.New("missing multipart field \"file\"")

// filePart streams the multipart body up to the part named "file".
func filePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errNoFilePart
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			return part, nil
		}
		part.Close()
	}
}
