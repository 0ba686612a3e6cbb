package flow

import (
	"fmt"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// State is the mutable context of one flow run.
// It is created by Run and discarded when the run ends.
type State struct {
	RunID       string         // Unique id of the run, used in logs
	UserID      int64          // User the run talks to
	CurrentID   string         // Active state id
	History     []string       // Previously visited state ids, most recent last
	Data        map[string]any // Scratch data shared between states
	LastMessage MessageRef     // Most recently rendered message

	mu sync.RWMutex
}

// NewState creates an empty flow state.
//
// Parameters:
//   - runID: Unique ID of the run, used for log correlation
//   - userID: Telegram user ID the run talks to
func NewState(runID string, userID int64) *State {
	return &State{
		RunID:  runID,
		UserID: userID,
		Data:   make(map[string]any),
	}
}

// Set stores a value in the flow data, replacing any previous value.
// Thread-safe for concurrent access.
func (s *State) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Data[key] = value
}

// Get retrieves a value from the flow data.
// Thread-safe for concurrent access.
func (s *State) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.Data[key]
	return v, ok
}

// Has reports whether key is present in the flow data.
func (s *State) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Pop removes key and returns its previous value.
// Thread-safe for concurrent access.
func (s *State) Pop(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.Data[key]
	delete(s.Data, key)
	return v, ok
}

// Clear removes the given keys, or everything when called without keys.
// Internal keys such as the page index of a paginated state are cleared too, so a
// full Clear also resets pagination.
func (s *State) Clear(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(keys) == 0 {
		s.Data = make(map[string]any)
		return
	}
	for _, k := range keys {
		delete(s.Data, k)
	}
}

// Update merges values into the flow data under a single lock.
// Existing keys not present in values are kept.
func (s *State) Update(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.Data[k] = v
	}
}

// GetString returns a string value, or "" when missing or of another type.
func (s *State) GetString(key string) string {
	v, _ := s.Get(key)
	str, _ := v.(string)
	return str
}

// GetInt returns an integer value, or 0 when missing.
// Handles int, int64 and float64, the types produced by Go code and by JSON or
// YAML decoding of initial data.
func (s *State) GetInt(key string) int {
	v, _ := s.Get(key)
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// GetFloat returns a float value. Handles float64, int and int64.
func (s *State) GetFloat(key string) float64 {
	v, _ := s.Get(key)
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// Decode copies the value stored under key into out, which must be a pointer.
// Maps are decoded into structs using mapstructure tags.
func (s *State) Decode(key string, out any) error {
	v, ok := s.Get(key)
	if !ok {
		return fmt.Errorf("flow data %q not set", key)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode flow data %q: %w", key, err)
	}
	return nil
}

// Previous returns the state visited before the current one, or "".
func (s *State) Previous() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.History) == 0 {
		return ""
	}
	return s.History[len(s.History)-1]
}

func (s *State) push(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.History); n > 0 && s.History[n-1] == id {
		return
	}
	s.History = append(s.History, id)
}

func (s *State) pop() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.History)
	if n == 0 {
		return "", false
	}
	id := s.History[n-1]
	s.History = s.History[:n-1]
	return id, true
}
