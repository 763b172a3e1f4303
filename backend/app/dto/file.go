package dto

import "taskrelay/backend/app/storage"

type FileUploadResponse struct {
	Status   string `json:"status"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

type FileListResponse struct {
	Files []storage.FileInfo `json:"files"`
}
