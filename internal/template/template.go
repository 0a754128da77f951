// Package template implements the in-memory template store of spec §4.11:
// named payload templates with {{variable}} substitution.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/notifyhub/core/internal/apperror"
	"github.com/notifyhub/core/internal/model"
)

var (
	idPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	varPattern  = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)
)

// Store is a concurrent map id → Template.
type Store struct {
	mu    sync.RWMutex
	byID  map[string]model.Template
}

func New() *Store {
	return &Store{byID: make(map[string]model.Template)}
}

// Create validates id/name/event_type and rejects duplicates (spec §4.11).
func (s *Store) Create(t model.Template) error {
	if !idPattern.MatchString(t.ID) {
		return apperror.New(apperror.CategoryValidation, "invalid_template_id", "id must match [A-Za-z0-9_-]{1,64}")
	}
	if l := len(t.Name); l < 1 || l > 256 {
		return apperror.New(apperror.CategoryValidation, "invalid_template_name", "name must be 1-256 characters")
	}
	if l := len(t.EventType); l < 1 || l > 128 {
		return apperror.New(apperror.CategoryValidation, "invalid_event_type", "event_type must be 1-128 characters")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[t.ID]; exists {
		return apperror.New(apperror.CategoryValidation, "duplicate_template", "template id already exists")
	}

	now := time.Now().Unix()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.byID[t.ID] = t
	return nil
}

func (s *Store) Get(id string) (model.Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[id]
	return t, ok
}

func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	return true
}

func (s *Store) List() []model.Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Template, 0, len(s.byID))
	for _, t := range s.byID {
		out = append(out, t)
	}
	return out
}

// Render substitutes every {{name}} occurrence in the template's
// payload_template — inside both string values and map keys — using
// variables. Numbers/booleans/null render as their canonical string form;
// arrays/objects render as their JSON text; missing variables are left as
// the literal placeholder (spec §4.11).
func (s *Store) Render(id string, variables map[string]interface{}) (json.RawMessage, error) {
	t, ok := s.Get(id)
	if !ok {
		return nil, apperror.New(apperror.CategoryValidation, "template_not_found", "no such template")
	}

	var value interface{}
	if err := json.Unmarshal(t.PayloadTemplate, &value); err != nil {
		return nil, err
	}

	rendered := renderValue(value, variables)
	return json.Marshal(rendered)
}

func renderValue(v interface{}, vars map[string]interface{}) interface{} {
	switch x := v.(type) {
	case string:
		return renderString(x, vars)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, val := range x {
			out[renderString(k, vars)] = renderValue(val, vars)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, val := range x {
			out[i] = renderValue(val, vars)
		}
		return out
	default:
		return x
	}
}

// renderString substitutes every {{name}} occurrence in s. A missing
// variable is left as the literal placeholder.
func renderString(s string, vars map[string]interface{}) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSpace(varPattern.FindStringSubmatch(match)[1])
		val, ok := vars[name]
		if !ok {
			return match
		}
		return canonicalString(val)
	})
}

// canonicalString renders a substituted value as text: scalars in their
// canonical form, arrays/objects as their JSON text (spec §4.11).
func canonicalString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return "null"
	case bool:
		if x {
			return "true"
		}
		return "false"
	case float64, int, int64:
		return fmt.Sprintf("%v", x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
