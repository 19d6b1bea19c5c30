package keys

import "strings"

// MatchOption tunes MatchKeysToSchema.
type MatchOption func(*matchOptions)

type matchOptions struct {
	service string
}

// WithService names the service the schema belongs to. When that service has
// a stored key, every still-empty key-like required field receives it.
func WithService(service string) MatchOption {
	return func(o *matchOptions) { o.service = normalize(service) }
}

// MatchKeysToSchema returns a copy of candidate in which empty key-like
// required fields are filled from stored keys. A field is key-like when its
// lower-cased name contains one of KeyIndicators. It resolves to a record
// whose aliases contain the field name, or whose service name equals the
// field name with the indicator stripped. Fields that already hold a
// non-empty value are never touched; unmatched fields stay empty.
func (m *Manager) MatchKeysToSchema(candidate map[string]interface{}, required []string, opts ...MatchOption) map[string]interface{} {
	var o matchOptions
	for _, opt := range opts {
		opt(&o)
	}

	out := make(map[string]interface{}, len(candidate))
	for k, v := range candidate {
		out[k] = v
	}

	for _, field := range required {
		if !isEmpty(out[field]) {
			continue
		}
		if rec, ok := m.Resolve(field, o.service); ok {
			out[field] = rec.SecretValue
		}
	}
	return out
}

// Resolve returns the record whose secret auto-fill would place in field.
// Only key-like fields resolve: first by alias, then by service name with the
// indicator stripped, then to service when that service has a stored key.
// An empty service skips the last step.
func (m *Manager) Resolve(field, service string) (*Record, bool) {
	indicator, ok := keyIndicator(field)
	if !ok {
		return nil, false
	}
	if rec := m.lookup(field, indicator); rec != nil {
		return rec, true
	}
	if name := normalize(service); name != "" {
		if rec, ok := m.records[name]; ok {
			return rec, true
		}
	}
	return nil, false
}

// FilledFields lists the fields whose value differs between before and after
// a MatchKeysToSchema call.
func FilledFields(before, after map[string]interface{}) []string {
	var filled []string
	for k, v := range after {
		if isEmpty(before[k]) && !isEmpty(v) {
			filled = append(filled, k)
		}
	}
	return filled
}

func (m *Manager) lookup(field, indicator string) *Record {
	f := normalize(field)
	recs := m.sortedRecords()
	for _, rec := range recs {
		if containsString(rec.FieldAliases, f) {
			return rec
		}
	}

	stripped := strings.Trim(strings.Replace(f, indicator, "", 1), "_-. ")
	if stripped == "" {
		return nil
	}
	for _, rec := range recs {
		if rec.ServiceName == stripped {
			return rec
		}
	}
	return nil
}

// keyIndicator returns the first indicator contained in the field name.
func keyIndicator(field string) (string, bool) {
	f := strings.ToLower(field)
	for _, ind := range KeyIndicators {
		if strings.Contains(f, ind) {
			return ind, true
		}
	}
	return "", false
}

// IsKeyField reports whether a field name looks like it holds a key.
func IsKeyField(field string) bool {
	_, ok := keyIndicator(field)
	return ok
}

func isEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
