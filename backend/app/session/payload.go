package session

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	MinPollInterval     = 1
	MaxPollInterval     = 60
	DefaultPollInterval = 3

	DefaultReadFileMaxSize = 10 * 1024 * 1024
)

// Payload is the type-specific data carried by a command.
type Payload interface {
	Type() CommandType
	Validate() error
}

type ExecPayload struct {
	Command string `json:"command"`
}

type UploadPayload struct {
	SourcePath string `json:"source_path"`
	Filename   string `json:"filename"`
}

type DownloadPayload struct {
	Filename string `json:"filename"`
	SaveAs   string `json:"save_as"`
	URL      string `json:"url"`
}

type DeletePayload struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive"`
}

type ListDirectoryPayload struct {
	Path string `json:"path"`
}

type SetSleepTimePayload struct {
	SleepTime int `json:"sleep_time"`
}

type ReadFilePayload struct {
	Path    string `json:"path"`
	MaxSize int64  `json:"max_size"`
}

type WriteFilePayload struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type TerminatePayload struct{}

func (ExecPayload) Type() CommandType          { return CommandExec }
func (UploadPayload) Type() CommandType        { return CommandUpload }
func (DownloadPayload) Type() CommandType      { return CommandDownload }
func (DeletePayload) Type() CommandType        { return CommandDelete }
func (ListDirectoryPayload) Type() CommandType { return CommandListDirectory }
func (SetSleepTimePayload) Type() CommandType  { return CommandSetSleepTime }
func (ReadFilePayload) Type() CommandType      { return CommandReadFile }
func (WriteFilePayload) Type() CommandType     { return CommandWriteFile }
func (TerminatePayload) Type() CommandType     { return CommandTerminate }

func (p ExecPayload) Validate() error { return required("command", p.Command) }

func (p UploadPayload) Validate() error {
	if err := required("source_path", p.SourcePath); err != nil {
		return err
	}
	return required("filename", p.Filename)
}

func (p DownloadPayload) Validate() error {
	if err := required("filename", p.Filename); err != nil {
		return err
	}
	if strings.ContainsAny(p.Filename, `/\`) {
		return invalid("filename", "must be a bare file name")
	}
	return required("save_as", p.SaveAs)
}

func (p DeletePayload) Validate() error        { return required("path", p.Path) }
func (p ListDirectoryPayload) Validate() error { return required("path", p.Path) }

func (p SetSleepTimePayload) Validate() error { return ValidatePollInterval(p.SleepTime) }

func (p ReadFilePayload) Validate() error {
	if err := required("path", p.Path); err != nil {
		return err
	}
	if p.MaxSize <= 0 {
		return invalid("max_size", "must be positive")
	}
	return nil
}

func (p WriteFilePayload) Validate() error { return required("path", p.Path) }
func (TerminatePayload) Validate() error   { return nil }

// ValidatePollInterval checks seconds against [MinPollInterval, MaxPollInterval].
func ValidatePollInterval(seconds int) error {
	if seconds < MinPollInterval || seconds > MaxPollInterval {
		return invalid("sleep_time", "must be between 1 and 60 seconds")
	}
	return nil
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return invalid(field, "is required")
	}
	return nil
}

// DecodePayload parses raw JSON into the payload variant for t, fills
// defaults and validates the result.
func DecodePayload(t CommandType, raw json.RawMessage) (Payload, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		raw = json.RawMessage("{}")
	}
	var p Payload
	switch t {
	case CommandExec:
		var v ExecPayload
		if err := decode(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case CommandUpload:
		var v UploadPayload
		if err := decode(raw, &v); err != nil {
			return nil, err
		}
		if v.Filename == "" {
			v.Filename = BaseName(v.SourcePath)
		}
		p = v
	case CommandDownload:
		var v DownloadPayload
		if err := decode(raw, &v); err != nil {
			return nil, err
		}
		if v.SaveAs == "" {
			v.SaveAs = v.Filename
		}
		p = v
	case CommandDelete:
		var v DeletePayload
		if err := decode(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case CommandListDirectory:
		var v ListDirectoryPayload
		if err := decode(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case CommandSetSleepTime:
		var v SetSleepTimePayload
		if err := decode(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case CommandReadFile:
		var v ReadFilePayload
		if err := decode(raw, &v); err != nil {
			return nil, err
		}
		if v.MaxSize == 0 {
			v.MaxSize = DefaultReadFileMaxSize
		}
		p = v
	case CommandWriteFile:
		var v WriteFilePayload
		if err := decode(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case CommandTerminate:
		p = TerminatePayload{}
	default:
		return nil, invalid("type", "unknown command type "+string(t))
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func decode(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return invalid("data", err.Error())
	}
	return nil
}

// BaseName returns the last element of a path written with either separator.
func BaseName(p string) string {
	p = strings.TrimRight(p, `/\`)
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}
