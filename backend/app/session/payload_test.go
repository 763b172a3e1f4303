package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayloadDefaults(t *testing.T) {
	tests := []struct {
		name string
		typ  CommandType
		raw  string
		want Payload
	}{
		{"exec", CommandExec, `{"command":"whoami"}`, ExecPayload{Command: "whoami"}},
		{"upload filename from unix path", CommandUpload, `{"source_path":"/etc/passwd"}`, UploadPayload{SourcePath: "/etc/passwd", Filename: "passwd"}},
		{"upload filename from windows path", CommandUpload, `{"source_path":"C:\\Users\\bob\\notes.txt"}`, UploadPayload{SourcePath: `C:\Users\bob\notes.txt`, Filename: "notes.txt"}},
		{"upload explicit filename", CommandUpload, `{"source_path":"/etc/passwd","filename":"p.txt"}`, UploadPayload{SourcePath: "/etc/passwd", Filename: "p.txt"}},
		{"download save_as", CommandDownload, `{"filename":"tool.bin"}`, DownloadPayload{Filename: "tool.bin", SaveAs: "tool.bin"}},
		{"delete", CommandDelete, `{"path":"/tmp/x","recursive":true}`, DeletePayload{Path: "/tmp/x", Recursive: true}},
		{"list_directory", CommandListDirectory, `{"path":"/"}`, ListDirectoryPayload{Path: "/"}},
		{"set_sleep_time", CommandSetSleepTime, `{"sleep_time":60}`, SetSleepTimePayload{SleepTime: 60}},
		{"read_file max_size", CommandReadFile, `{"path":"/etc/hosts"}`, ReadFilePayload{Path: "/etc/hosts", MaxSize: DefaultReadFileMaxSize}},
		{"write_file empty content", CommandWriteFile, `{"path":"/tmp/a"}`, WriteFilePayload{Path: "/tmp/a"}},
		{"terminate", CommandTerminate, ``, TerminatePayload{}},
		{"terminate null", CommandTerminate, `null`, TerminatePayload{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePayload(tt.typ, json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.typ, got.Type())
		})
	}
}

func TestDecodePayloadRejects(t *testing.T) {
	tests := []struct {
		name string
		typ  CommandType
		raw  string
	}{
		{"exec without command", CommandExec, `{}`},
		{"exec blank command", CommandExec, `{"command":"  "}`},
		{"upload without source", CommandUpload, `{"filename":"x"}`},
		{"download without filename", CommandDownload, `{}`},
		{"download path traversal", CommandDownload, `{"filename":"../secret"}`},
		{"sleep too small", CommandSetSleepTime, `{"sleep_time":0}`},
		{"sleep too large", CommandSetSleepTime, `{"sleep_time":61}`},
		{"read_file negative size", CommandReadFile, `{"path":"/a","max_size":-1}`},
		{"bad json", CommandExec, `{"command":`},
		{"wrong field type", CommandSetSleepTime, `{"sleep_time":"ten"}`},
		{"unknown type", CommandType("shutdown"), `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePayload(tt.typ, json.RawMessage(tt.raw))
			require.Error(t, err)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestParseCommandType(t *testing.T) {
	for _, ct := range CommandTypes {
		got, err := ParseCommandType(string(ct))
		require.NoError(t, err)
		assert.Equal(t, ct, got)
	}
	_, err := ParseCommandType("EXEC")
	assert.Error(t, err)
}

func TestStatusText(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusRetrieved, StatusCompleted, StatusFailed} {
		b, err := s.MarshalText()
		require.NoError(t, err)
		var back Status
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, s, back)
	}
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusRetrieved.Terminal())
	assert.Error(t, new(Status).UnmarshalText([]byte("done")))
}
