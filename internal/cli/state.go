package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// DefaultStateFile keeps the conversation of the interactive chat.
const DefaultStateFile = "conversation_id.json"

// stateDateLayout is the day the conversation was saved, e.g. "2025-08-03".
const stateDateLayout = "2006-01-02"

// State is the saved conversation of the interactive chat. Timestamp is kept
// as written so files from other tools with other layouts still load.
type State struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Timestamp      string `json:"timestamp,omitempty"`
}

// loadState reads path. A missing file yields nil and no error.
func loadState(path string) (*State, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s State
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("state file %s: %w", path, err)
	}
	if s.ConversationID == "" {
		return nil, nil
	}
	return &s, nil
}

func saveState(path string, s State) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o600)
}
