package session

import (
	"fmt"
	"sync"
	"time"
)

// DefaultOnlineThreshold is how recently an agent must have polled to count as online.
const DefaultOnlineThreshold = 15 * time.Second

type UploadRecord struct {
	Filename   string    `json:"filename"`
	Path       string    `json:"filepath"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type DownloadRecord struct {
	Filename     string    `json:"filename"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// Session is one registered agent: identity, liveness, its command queue
// and file-transfer ledgers. Sessions are created and destroyed only by a
// Registry.
type Session struct {
	id       int
	address  string
	hostname string
	user     string
	joinedAt time.Time
	now      func() time.Time

	mu           sync.Mutex
	lastSeen     time.Time
	pollInterval int
	queue        queue
	uploads      []UploadRecord
	downloads    []DownloadRecord
}

func newSession(id int, address, hostname, user string, pollInterval int, now func() time.Time) *Session {
	t := now()
	return &Session{
		id:           id,
		address:      address,
		hostname:     hostname,
		user:         user,
		joinedAt:     t,
		now:          now,
		lastSeen:     t,
		pollInterval: pollInterval,
		queue:        newQueue(),
	}
}

func (s *Session) ID() int             { return s.id }
func (s *Session) Address() string     { return s.address }
func (s *Session) Hostname() string    { return s.hostname }
func (s *Session) User() string        { return s.user }
func (s *Session) JoinedAt() time.Time { return s.joinedAt }

// EnqueueCommand validates p and appends it as a pending command.
func (s *Session) EnqueueCommand(p Payload) (int, error) {
	if p == nil {
		return 0, invalid("data", "is required")
	}
	if err := p.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.enqueue(p, s.now()), nil
}

// DrainPending moves every pending command to retrieved and returns them in
// ascending id order. A command is returned by at most one call.
func (s *Session) DrainPending() []Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.drain(s.now())
}

// ReportResult records the outcome of a retrieved command and returns the
// command as it stands after the report. It returns ErrCommandNotFound for
// unknown ids and ErrInvalidState when the command is not retrieved; in both
// cases nothing changes.
func (s *Session) ReportResult(id int, r Report) (CommandView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.queue.report(id, r, s.now())
	if err != nil {
		return CommandView{}, err
	}
	if c.status == StatusCompleted {
		if p, ok := c.payload.(SetSleepTimePayload); ok {
			// payload was validated at enqueue
			s.pollInterval = p.SleepTime
		}
	}
	return c.view(), nil
}

func (s *Session) GetResult(id int) (CommandView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.queue.get(id)
	if !ok {
		return CommandView{}, fmt.Errorf("%w: %d", ErrCommandNotFound, id)
	}
	return c.view(), nil
}

// CommandStatus returns the current status of a command.
func (s *Session) CommandStatus(id int) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.queue.get(id)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrCommandNotFound, id)
	}
	return c.status, nil
}

func (s *Session) Commands() []CommandView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.views()
}

// Touch marks the agent as seen now. Only a successful poll calls it.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = s.now()
	s.mu.Unlock()
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// IsOnline reports whether the last poll happened strictly less than
// threshold before now. A non-positive threshold means DefaultOnlineThreshold.
func (s *Session) IsOnline(now time.Time, threshold time.Duration) bool {
	if threshold <= 0 {
		threshold = DefaultOnlineThreshold
	}
	return now.Sub(s.LastSeen()) < threshold
}

func (s *Session) PollInterval() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollInterval
}

func (s *Session) RecordUpload(filename, path string, size int64) {
	s.mu.Lock()
	s.uploads = append(s.uploads, UploadRecord{Filename: filename, Path: path, Size: size, UploadedAt: s.now()})
	s.mu.Unlock()
}

func (s *Session) RecordDownload(filename string) {
	s.mu.Lock()
	s.downloads = append(s.downloads, DownloadRecord{Filename: filename, DownloadedAt: s.now()})
	s.mu.Unlock()
}

// Summary is the dashboard view of a session.
type Summary struct {
	ID                   int       `json:"id"`
	Address              string    `json:"ipaddr"`
	Hostname             string    `json:"hostname"`
	User                 string    `json:"user"`
	LastSeen             time.Time `json:"last_seen"`
	JoinedAt             time.Time `json:"joined_at"`
	TotalCommands        int       `json:"total_commands"`
	UploadedFilesCount   int       `json:"uploaded_files_count"`
	DownloadedFilesCount int       `json:"downloaded_files_count"`
	SleepTime            int       `json:"sleep_time"`
	Online               bool      `json:"online"`
}

// Detail is a summary plus command history and transfer ledgers.
type Detail struct {
	Summary
	Commands        []CommandView    `json:"commands"`
	UploadedFiles   []UploadRecord   `json:"uploaded_files"`
	DownloadedFiles []DownloadRecord `json:"downloaded_files"`
}

func (s *Session) Summary(now time.Time, threshold time.Duration) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked(now, threshold)
}

func (s *Session) summaryLocked(now time.Time, threshold time.Duration) Summary {
	if threshold <= 0 {
		threshold = DefaultOnlineThreshold
	}
	return Summary{
		ID:                   s.id,
		Address:              s.address,
		Hostname:             s.hostname,
		User:                 s.user,
		LastSeen:             s.lastSeen,
		JoinedAt:             s.joinedAt,
		TotalCommands:        s.queue.len(),
		UploadedFilesCount:   len(s.uploads),
		DownloadedFilesCount: len(s.downloads),
		SleepTime:            s.pollInterval,
		Online:               now.Sub(s.lastSeen) < threshold,
	}
}

func (s *Session) Detail(now time.Time, threshold time.Duration) Detail {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := Detail{
		Summary:         s.summaryLocked(now, threshold),
		Commands:        s.queue.views(),
		UploadedFiles:   make([]UploadRecord, len(s.uploads)),
		DownloadedFiles: make([]DownloadRecord, len(s.downloads)),
	}
	copy(d.UploadedFiles, s.uploads)
	copy(d.DownloadedFiles, s.downloads)
	return d
}
