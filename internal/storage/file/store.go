// Package file keeps transcripts as JSON documents in a directory and the
// question bank in a YAML file.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spigell/interview-coach/internal/storage"
	"github.com/spigell/interview-coach/internal/transcript"
	"gopkg.in/yaml.v3"
)

const transcriptExt = ".json"

type Store struct {
	dir           string
	questionsPath string
	now           func() time.Time

	mu sync.RWMutex
}

var (
	_ storage.TranscriptStore = (*Store)(nil)
	_ storage.QuestionBank    = (*Store)(nil)
	_ storage.Seeder          = (*Store)(nil)
	_ storage.Pinger          = (*Store)(nil)
)

// questionFile is the layout of the YAML question bank.
type questionFile struct {
	Questions []transcript.Question `yaml:"questions"`
}

// New creates dir if needed. questionsPath defaults to questions.yaml inside dir.
func New(dir, questionsPath string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("file store: directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("file store: create directory: %w", err)
	}
	if questionsPath == "" {
		questionsPath = filepath.Join(dir, "questions.yaml")
	}
	return &Store{dir: dir, questionsPath: questionsPath, now: time.Now}, nil
}

func (s *Store) Ping(context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("file store: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("file store: %s is not a directory", s.dir)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, submission transcript.Submission) (*transcript.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tr, err := storage.NewTranscript(submission, s.now())
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(tr, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("file store: marshal transcript: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeAtomic(filepath.Join(s.dir, tr.ID+transcriptExt), data); err != nil {
		return nil, fmt.Errorf("file store: write transcript: %w", err)
	}
	return tr, nil
}

func (s *Store) List(ctx context.Context) ([]*transcript.Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("file store: list transcripts: %w", err)
	}

	items := make([]*transcript.Transcript, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != transcriptExt {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tr, err := readTranscript(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("file store: list transcripts: %w", err)
		}
		items = append(items, tr)
	}

	transcript.SortNewestFirst(items)
	return items, nil
}

func (s *Store) Get(_ context.Context, id string) (*transcript.Transcript, error) {
	if !validID(id) {
		return nil, storage.ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tr, err := readTranscript(filepath.Join(s.dir, id+transcriptExt))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("file store: get transcript %q: %w", id, err)
	}
	return tr, nil
}

// Questions reads the YAML bank. A missing file is an empty bank.
func (s *Store) Questions(context.Context) ([]transcript.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.questionsPath)
	if errors.Is(err, fs.ErrNotExist) {
		return []transcript.Question{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file store: read questions: %w", err)
	}

	var qf questionFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("file store: parse questions: %w", err)
	}

	out := make([]transcript.Question, 0, len(qf.Questions))
	for i, q := range qf.Questions {
		if q.Text = strings.TrimSpace(q.Text); q.Text == "" {
			continue
		}
		if q.ID == "" {
			q.ID = storage.QuestionID(i)
		}
		out = append(out, q)
	}
	return out, nil
}

func (s *Store) Seed(_ context.Context, texts []string) error {
	qf := questionFile{Questions: make([]transcript.Question, 0, len(texts))}
	for _, text := range texts {
		if text = strings.TrimSpace(text); text == "" {
			continue
		}
		qf.Questions = append(qf.Questions, transcript.Question{
			ID:   storage.QuestionID(len(qf.Questions)),
			Text: text,
		})
	}

	data, err := yaml.Marshal(qf)
	if err != nil {
		return fmt.Errorf("file store: marshal questions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.questionsPath), 0o750); err != nil {
		return fmt.Errorf("file store: seed questions: %w", err)
	}
	if err := writeAtomic(s.questionsPath, data); err != nil {
		return fmt.Errorf("file store: seed questions: %w", err)
	}
	return nil
}

func readTranscript(path string) (*transcript.Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tr transcript.Transcript
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return &tr, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// validID rejects ids that could escape the store directory.
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}
