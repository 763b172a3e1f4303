package services

import (
	"context"
	"io"

	"taskrelay/backend/app/events"
	"taskrelay/backend/app/session"
	"taskrelay/backend/app/storage"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// FileService moves bytes between agents, operators and the store, and
// records transfers in the owning session's ledgers.
type FileService struct {
	registry *session.Registry
	store    *storage.Store
	events   events.Publisher
	log      zerolog.Logger
}

func NewFileService(reg *session.Registry, store *storage.Store, pub events.Publisher, log zerolog.Logger) *FileService {
	return &FileService{registry: reg, store: store, events: pub, log: log}
}

func (s *FileService) MaxSize() int64 { return s.store.MaxSize() }

func (s *FileService) publish(ctx context.Context, e events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Warn().Err(err).Str("kind", string(e.Kind)).Msg("publish event failed")
	}
}

// AgentUpload stores a file sent by the agent and appends it to the
// session's upload ledger.
func (s *FileService) AgentUpload(ctx context.Context, agentID int, name string, r io.Reader) (storage.FileInfo, error) {
	sess, err := s.registry.Lookup(agentID)
	if err != nil {
		return storage.FileInfo{}, err
	}
	info, err := s.store.Save(agentID, name, r)
	if err != nil {
		return storage.FileInfo{}, err
	}
	sess.RecordUpload(info.Name, info.Path, info.Size)
	s.log.Info().Int("agent", agentID).Str("file", info.Name).Int64("size", info.Size).Msg("file received from agent")
	s.publish(ctx, events.New(events.FileUploaded, agentID).WithDetail(info.Name))
	return info, nil
}

// Stage stores an operator-provided file that the agent can download later.
func (s *FileService) Stage(ctx context.Context, agentID int, name string, r io.Reader) (storage.FileInfo, error) {
	if _, err := s.registry.Lookup(agentID); err != nil {
		return storage.FileInfo{}, err
	}
	info, err := s.store.Save(agentID, name, r)
	if err != nil {
		return storage.FileInfo{}, err
	}
	s.log.Info().Int("agent", agentID).Str("file", info.Name).Int64("size", info.Size).Msg("file staged for agent")
	return info, nil
}

// OpenForAgent serves a file from an agent_<id> directory and records the
// download when that agent still has a session.
func (s *FileService) OpenForAgent(ctx context.Context, agentDir, name string) (afero.File, storage.FileInfo, error) {
	agentID, ok := storage.ParseAgentDir(agentDir)
	if !ok {
		return nil, storage.FileInfo{}, storage.ErrFileNotFound
	}
	f, info, err := s.store.Open(agentID, name)
	if err != nil {
		return nil, storage.FileInfo{}, err
	}
	if sess, err := s.registry.Lookup(agentID); err == nil {
		sess.RecordDownload(info.Name)
		s.publish(ctx, events.New(events.FileDownloaded, agentID).WithDetail(info.Name))
	}
	return f, info, nil
}

// OpenForOperator opens a file of a registered agent without touching ledgers.
func (s *FileService) OpenForOperator(agentID int, name string) (afero.File, storage.FileInfo, error) {
	if _, err := s.registry.Lookup(agentID); err != nil {
		return nil, storage.FileInfo{}, err
	}
	return s.store.Open(agentID, name)
}

func (s *FileService) List(agentID int) ([]storage.FileInfo, error) {
	if _, err := s.registry.Lookup(agentID); err != nil {
		return nil, err
	}
	return s.store.List(agentID)
}
