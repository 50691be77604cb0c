package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/nexteleven/eleven/errors"
)

const todosFileName = ".eleven/todos.json"

// Todos is the agent's persistent task list, an opaque id-to-text map stored
// next to the sessions. The runtime never interprets the entries; the model
// reads and rewrites them across turns.
type Todos map[string]string

// LoadTodos reads the todo store. A missing file is an empty list.
func LoadTodos() (Todos, error) {
	data, err := os.ReadFile(todosFileName)
	if err != nil {
		if os.IsNotExist(err) {
			return Todos{}, nil
		}
		return nil, errors.Wrapf(err, "could not read todos")
	}
	var t Todos
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, errors.Wrapf(err, "could not parse todos")
	}
	if t == nil {
		t = Todos{}
	}
	return t, nil
}

// Save writes the full todo store back to disk.
func (t Todos) Save() error {
	if err := os.MkdirAll(filepath.Dir(todosFileName), 0755); err != nil {
		return errors.Wrapf(err, "could not create todos directory")
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "could not encode todos")
	}
	if err := os.WriteFile(todosFileName, data, 0644); err != nil {
		return errors.Wrapf(err, "could not write todos")
	}
	return nil
}

// IDs returns the entry ids in a stable order.
func (t Todos) IDs() []string {
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
