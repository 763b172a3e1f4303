package controllers

import (
	"io"
	"mime"
	"net/http"

	"taskrelay/backend/app/dto"
	"taskrelay/backend/app/services"
	"taskrelay/backend/app/storage"
)

type FileController struct {
	Files *services.FileService
}

func NewFileController(files *services.FileService) *FileController {
	return &FileController{Files: files}
}

// ServeToAgent handles GET /files/{agent_dir}/{filename}; the path is the URL
// put into download commands.
func (c *FileController) ServeToAgent(w http.ResponseWriter, r *http.Request) {
	f, info, err := c.Files.OpenForAgent(r.Context(), r.PathValue("agent_dir"), r.PathValue("filename"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer f.Close()
	serveFile(w, r, f, info)
}

func (c *FileController) List(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "agent_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}
	files, err := c.Files.List(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FileListResponse{Files: files})
}

func (c *FileController) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "agent_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}
	f, info, err := c.Files.OpenForOperator(id, r.PathValue("filename"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer f.Close()
	serveFile(w, r, f, info)
}

// Stage handles POST /upload_for_agent/{agent_id} (multipart field "file").
func (c *FileController) Stage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "agent_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}
	part, err := filePart(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer part.Close()
	info, err := c.Files.Stage(r.Context(), id, part.FileName(), part)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FileUploadResponse{Status: "success", Filename: info.Name, Size: info.Size})
}

func serveFile(w http.ResponseWriter, r *http.Request, f io.ReadSeeker, info storage.FileInfo) {
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": info.Name}))
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeContent(w, r, info.Name, info.ModTime, f)
}
