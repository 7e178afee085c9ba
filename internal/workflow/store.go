package workflow

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// DraftStore persists the draft between sessions. Implementations should be
// cheap: the form saves on every field change.
type DraftStore interface {
	Save(key string, d *ComplaintDraft) error
	Load(key string) (*ComplaintDraft, error)
	Clear(key string) error
}

// ErrNoDraft is returned by Load when no draft is stored under the key.
var ErrNoDraft = errors.New("no stored draft")

// FileDraftStore keeps drafts as JSON files in a directory, one per key.
type FileDraftStore struct {
	dir string
}

// NewFileDraftStore creates the directory if needed.
func NewFileDraftStore(dir string) (*FileDraftStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileDraftStore{dir: dir}, nil
}

func (s *FileDraftStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileDraftStore) Save(key string, d *ComplaintDraft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(key), data, 0o600)
}

func (s *FileDraftStore) Load(key string) (*ComplaintDraft, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoDraft
	}
	if err != nil {
		return nil, err
	}
	var d ComplaintDraft
	if err := json.Unmarshal(data, &d); err != nil {
		// corrupt draft is the same as no draft
		return nil, ErrNoDraft
	}
	d.Step = clampStep(d.Step)
	return &d, nil
}

func (s *FileDraftStore) Clear(key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// MemoryDraftStore is for tests and ephemeral sessions.
type MemoryDraftStore struct {
	drafts map[string][]byte
}

func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{drafts: make(map[string][]byte)}
}

func (s *MemoryDraftStore) Save(key string, d *ComplaintDraft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	s.drafts[key] = data
	return nil
}

func (s *MemoryDraftStore) Load(key string) (*ComplaintDraft, error) {
	data, ok := s.drafts[key]
	if !ok {
		return nil, ErrNoDraft
	}
	var d ComplaintDraft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, ErrNoDraft
	}
	d.Step = clampStep(d.Step)
	return &d, nil
}

func (s *MemoryDraftStore) Clear(key string) error {
	delete(s.drafts, key)
	return nil
}

// TokenStore persists the access token issued after verification or login.
type TokenStore interface {
	SaveToken(token string) error
	LoadToken() (string, error)
	ClearToken() error
}

// FileTokenStore keeps the token in a single file.
type FileTokenStore struct {
	path string
}

func NewFileTokenStore(path string) (*FileTokenStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return &FileTokenStore{path: path}, nil
}

func (s *FileTokenStore) SaveToken(token string) error {
	return os.WriteFile(s.path, []byte(token), 0o600)
}

func (s *FileTokenStore) LoadToken() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *FileTokenStore) ClearToken() error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// MemoryTokenStore is for tests.
type MemoryTokenStore struct {
	token string
	set   bool
}

func (s *MemoryTokenStore) SaveToken(token string) error {
	s.token, s.set = token, true
	return nil
}

func (s *MemoryTokenStore) LoadToken() (string, error) {
	if !s.set {
		return "", errors.New("no stored token")
	}
	return s.token, nil
}

func (s *MemoryTokenStore) ClearToken() error {
	s.token, s.set = "", false
	return nil
}
