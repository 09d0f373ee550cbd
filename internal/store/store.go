// Package store persists run outputs as JSON files.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/capitalize-ai/convsynth/internal/model"
)

// File names inside a run directory.
const (
	ProfilingFile    = "profiling.json"
	GoalFile         = "conversation_goal.json"
	ChatFile         = "chat.json"
	ReportFile       = "run.json"
	InteractionsFile = "interactions.json"
)

// Store writes runs under a root directory laid out as
// <root>/<model>/<source>/<user_id>/<session_id>/.
type Store struct {
	root string
}

// New creates a store rooted at root.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the root directory.
func (s *Store) Root() string {
	return s.root
}

// RunDir returns the directory of one run. Runs of the same session land
// side by side under the session directory.
func (s *Store) RunDir(modelName, source, userID, sessionID, runID string) string {
	return filepath.Join(s.root, pathSegment(modelName), pathSegment(source), pathSegment(userID), pathSegment(sessionID), pathSegment(runID))
}

// Save writes the outputs and the optional report and interaction log to dir.
func (s *Store) Save(dir string, out *model.Outputs, report *model.RunReport, interactions []model.Interaction) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	files := []struct {
		name string
		v    any
	}{
		{ProfilingFile, out.Profiling},
		{GoalFile, out.ConversationGoal},
		{ChatFile, chatOrEmpty(out.Chat)},
	}
	if report != nil {
		files = append(files, struct {
			name string
			v    any
		}{ReportFile, report})
	}
	if interactions != nil {
		files = append(files, struct {
			name string
			v    any
		}{InteractionsFile, interactions})
	}

	for _, f := range files {
		if err := writeJSON(filepath.Join(dir, f.name), f.v); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the three output files of a run directory.
func (s *Store) Load(dir string) (*model.Outputs, error) {
	var out model.Outputs
	if err := readJSON(filepath.Join(dir, ProfilingFile), &out.Profiling); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, GoalFile), &out.ConversationGoal); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, ChatFile), &out.Chat); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoadReport reads the run manifest of a run directory.
func (s *Store) LoadReport(dir string) (*model.RunReport, error) {
	var r model.RunReport
	if err := readJSON(filepath.Join(dir, ReportFile), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// LoadChat reads only the transcript of a run directory.
func (s *Store) LoadChat(dir string) (model.ConversationTurns, error) {
	var chat model.ConversationTurns
	if err := readJSON(filepath.Join(dir, ChatFile), &chat); err != nil {
		return nil, err
	}
	return chat, nil
}

// Walk calls fn for every run directory under the root, that is every
// directory holding a chat file. A missing root is not an error.
func (s *Store) Walk(fn func(dir string) error) error {
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != ChatFile {
			return nil
		}
		return fn(filepath.Dir(path))
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func chatOrEmpty(c model.ConversationTurns) model.ConversationTurns {
	if c == nil {
		return model.ConversationTurns{}
	}
	return c
}

// pathSegment keeps model names like "models/gemini-2.5-flash" to one level.
func pathSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return strings.NewReplacer("/", "_", `\`, "_", "..", "_").Replace(s)
}
