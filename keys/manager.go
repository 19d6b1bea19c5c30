// Package keys keeps an in-memory registry of service API keys and fills
// key-like schema fields from it.
//
// Matching is heuristic and best effort. A Manager is not safe for concurrent
// mutation; callers serialise access.
package keys

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// KeyIndicators are the substrings that mark a field name as holding a key.
var KeyIndicators = []string{"api_key", "apikey", "key", "token", "auth"}

const (
	// VisibleSuffix is the number of trailing secret characters left unmasked.
	VisibleSuffix = 4
	// MinRedactLength is the shortest secret Redact rewrites. Shorter values
	// are too likely to occur in unrelated text.
	MinRedactLength = 8
	maskChar      = "*"
)

// Record is a stored service key.
type Record struct {
	ServiceName  string
	SecretValue  string
	FieldAliases []string
}

// Manager maps service names to secrets and field names to services.
type Manager struct {
	records map[string]*Record
}

// NewManager creates an empty key manager.
func NewManager() *Manager {
	return &Manager{records: make(map[string]*Record)}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register stores or overwrites the key for a service. Aliases are extra
// field names that should resolve to this secret.
func (m *Manager) Register(service, secret string, aliases ...string) {
	name := normalize(service)
	rec := &Record{ServiceName: name, SecretValue: secret}
	seen := make(map[string]struct{})
	for _, alias := range aliases {
		a := normalize(alias)
		if a == "" {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		rec.FieldAliases = append(rec.FieldAliases, a)
	}
	sort.Strings(rec.FieldAliases)
	m.records[name] = rec
}

// AddFieldAlias maps an additional field name to an already registered service.
func (m *Manager) AddFieldAlias(service, field string) error {
	rec, ok := m.records[normalize(service)]
	if !ok {
		return fmt.Errorf("no key registered for service %q", service)
	}
	f := normalize(field)
	if f == "" {
		return fmt.Errorf("field name cannot be empty")
	}
	for _, existing := range rec.FieldAliases {
		if existing == f {
			return nil
		}
	}
	rec.FieldAliases = append(rec.FieldAliases, f)
	sort.Strings(rec.FieldAliases)
	return nil
}

// Remove deletes the key for a service and reports whether one existed.
func (m *Manager) Remove(service string) bool {
	name := normalize(service)
	if _, ok := m.records[name]; !ok {
		return false
	}
	delete(m.records, name)
	return true
}

// Get returns the raw secret stored for a service.
func (m *Manager) Get(service string) (string, bool) {
	rec, ok := m.records[normalize(service)]
	if !ok {
		return "", false
	}
	return rec.SecretValue, true
}

// Services returns the registered service names, sorted.
func (m *Manager) Services() []string {
	names := make([]string, 0, len(m.records))
	for name := range m.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of stored keys.
func (m *Manager) Len() int {
	return len(m.records)
}

// FieldMappings returns the alias set of a service, empty if unknown.
func (m *Manager) FieldMappings(service string) []string {
	rec, ok := m.records[normalize(service)]
	if !ok {
		return []string{}
	}
	return append([]string{}, rec.FieldAliases...)
}

// HasKeyFor reports whether a stored key covers field: through an alias,
// because the field is named after the service, or because Resolve finds a
// record for it without a service hint.
func (m *Manager) HasKeyFor(field string) bool {
	f := normalize(field)
	for name, rec := range m.records {
		if name == f || containsString(rec.FieldAliases, f) {
			return true
		}
	}
	_, ok := m.Resolve(field, "")
	return ok
}

// ListMasked returns every service with its masked secret.
func (m *Manager) ListMasked() map[string]string {
	out := make(map[string]string, len(m.records))
	for name, rec := range m.records {
		out[name] = MaskSecret(rec.SecretValue)
	}
	return out
}

// Redact replaces every stored secret of at least MinRedactLength characters
// found in text with its masked form.
func (m *Manager) Redact(text string) string {
	if text == "" {
		return text
	}
	recs := m.sortedRecords()
	// longest first so a secret that contains another is masked whole
	sort.SliceStable(recs, func(i, j int) bool {
		return len(recs[i].SecretValue) > len(recs[j].SecretValue)
	})
	for _, rec := range recs {
		if utf8.RuneCountInString(rec.SecretValue) < MinRedactLength {
			continue
		}
		text = strings.ReplaceAll(text, rec.SecretValue, MaskSecret(rec.SecretValue))
	}
	return text
}

// MaskSecret keeps the last VisibleSuffix characters and masks the rest.
// Secrets no longer than the suffix are masked entirely.
func MaskSecret(secret string) string {
	runes := []rune(secret)
	if len(runes) <= VisibleSuffix {
		return strings.Repeat(maskChar, len(runes))
	}
	return strings.Repeat(maskChar, len(runes)-VisibleSuffix) + string(runes[len(runes)-VisibleSuffix:])
}

// sortedRecords returns records ordered by service name so matching is
// deterministic.
func (m *Manager) sortedRecords() []*Record {
	out := make([]*Record, 0, len(m.records))
	for _, name := range m.Services() {
		out = append(out, m.records[name])
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
