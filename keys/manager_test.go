package keys

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRegister(t *testing.T) {
	m := NewManager()
	m.Register("Resend", "secret123", "x-api-key", "X-API-KEY", "")

	secret, ok := m.Get("resend")
	require.True(t, ok)
	assert.Equal(t, "secret123", secret)
	assert.Equal(t, []string{"x-api-key"}, m.FieldMappings("RESEND"))
	assert.Equal(t, []string{"resend"}, m.Services())

	m.Register("resend", "other")
	secret, _ = m.Get("resend")
	assert.Equal(t, "other", secret)
	assert.Empty(t, m.FieldMappings("resend"))
	assert.Equal(t, 1, m.Len())
}

func TestFieldMappings_Unknown(t *testing.T) {
	m := NewManager()
	mappings := m.FieldMappings("nope")
	assert.NotNil(t, mappings)
	assert.Empty(t, mappings)
}

func TestAddFieldAlias(t *testing.T) {
	m := NewManager()
	assert.Error(t, m.AddFieldAlias("stripe", "secret_key"))

	m.Register("stripe", "sk_live_abcdef")
	require.NoError(t, m.AddFieldAlias("stripe", "secret_key"))
	require.NoError(t, m.AddFieldAlias("stripe", "secret_key"))
	assert.Error(t, m.AddFieldAlias("stripe", " "))
	assert.Equal(t, []string{"secret_key"}, m.FieldMappings("stripe"))
}

func TestRemove(t *testing.T) {
	m := NewManager()
	m.Register("openai", "sk-123456")
	assert.True(t, m.Remove("OpenAI"))
	assert.False(t, m.Remove("openai"))
	_, ok := m.Get("openai")
	assert.False(t, ok)
}

func TestHasKeyFor(t *testing.T) {
	m := NewManager()
	m.Register("resend", "re_123456", "x-api-key")

	assert.True(t, m.HasKeyFor("x-api-key"))
	assert.True(t, m.HasKeyFor("resend"))
	assert.False(t, m.HasKeyFor("api_key"))
}

func TestHasKeyFor_ServiceNamedField(t *testing.T) {
	m := NewManager()
	m.Register("github", "ghp")

	assert.True(t, m.HasKeyFor("github_token"))
	filled := m.MatchKeysToSchema(map[string]interface{}{}, []string{"github_token"})
	assert.Equal(t, "ghp", filled["github_token"])
}

func TestResolve(t *testing.T) {
	m := NewManager()
	m.Register("resend", "secret123", "x-api-key")
	m.Register("github", "ghp_token")

	tests := []struct {
		name, field, service string
		want                 string
		ok                   bool
	}{
		{"alias", "x-api-key", "", "resend", true},
		{"service named field", "github_token", "", "github", true},
		{"metadata service", "api_key", "Resend", "resend", true},
		{"alias beats service", "x-api-key", "github", "resend", true},
		{"unknown service", "api_key", "stripe", "", false},
		{"not key-like", "to", "resend", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := m.Resolve(tt.field, tt.service)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, rec.ServiceName)
			}
		})
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"abc", "***"},
		{"abcd", "****"},
		{"abcde", "*bcde"},
		{"secret123", "*****t123"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskSecret(tt.in), tt.in)
	}
}

func TestListMasked(t *testing.T) {
	m := NewManager()
	m.Register("resend", "secret123")
	m.Register("github", "ghp_abcdefgh")

	assert.Equal(t, map[string]string{
		"resend": "*****t123",
		"github": "********efgh",
	}, m.ListMasked())
}

func TestRedact(t *testing.T) {
	m := NewManager()
	m.Register("resend", "secret123")
	m.Register("long", "secret123456")

	out := m.Redact("sending with secret123 and secret123456")
	assert.NotContains(t, out, "secret123 ")
	assert.NotContains(t, out, "secret123456")
	assert.Equal(t, "sending with *****t123 and ********3456", out)
	assert.Equal(t, "", m.Redact(""))
}

func TestRedact_SkipsShortSecrets(t *testing.T) {
	m := NewManager()
	m.Register("tiny", "abc")
	m.Register("short", "1234567")
	m.Register("resend", "secret123")

	out := m.Redact("abcdef took 1234567 ms with secret123")
	assert.Equal(t, "abcdef took 1234567 ms with *****t123", out)
}

func TestMatchKeysToSchema(t *testing.T) {
	m := NewManager()
	m.Register("resend", "secret123", "x-api-key")
	m.Register("github", "ghp_token")

	tests := []struct {
		name      string
		candidate map[string]interface{}
		required  []string
		opts      []MatchOption
		want      map[string]interface{}
	}{
		{
			name:      "alias match",
			candidate: map[string]interface{}{"x-api-key": "", "to": "a@b.c"},
			required:  []string{"x-api-key", "to"},
			want:      map[string]interface{}{"x-api-key": "secret123", "to": "a@b.c"},
		},
		{
			name:      "service name match after stripping indicator",
			candidate: map[string]interface{}{},
			required:  []string{"github_token"},
			want:      map[string]interface{}{"github_token": "ghp_token"},
		},
		{
			name:      "case insensitive field",
			candidate: map[string]interface{}{"GITHUB_TOKEN": nil},
			required:  []string{"GITHUB_TOKEN"},
			want:      map[string]interface{}{"GITHUB_TOKEN": "ghp_token"},
		},
		{
			name:      "existing value is kept",
			candidate: map[string]interface{}{"github_token": "mine"},
			required:  []string{"github_token"},
			want:      map[string]interface{}{"github_token": "mine"},
		},
		{
			name:      "not a key field",
			candidate: map[string]interface{}{"resend": ""},
			required:  []string{"resend"},
			want:      map[string]interface{}{"resend": ""},
		},
		{
			name:      "no match leaves field empty",
			candidate: map[string]interface{}{"api_key": ""},
			required:  []string{"api_key"},
			want:      map[string]interface{}{"api_key": ""},
		},
		{
			name:      "service-keyed match",
			candidate: map[string]interface{}{"api_key": ""},
			required:  []string{"api_key"},
			opts:      []MatchOption{WithService("resend")},
			want:      map[string]interface{}{"api_key": "secret123"},
		},
		{
			name:      "unknown service",
			candidate: map[string]interface{}{"api_key": ""},
			required:  []string{"api_key"},
			opts:      []MatchOption{WithService("mailgun")},
			want:      map[string]interface{}{"api_key": ""},
		},
		{
			name:      "optional fields are not filled",
			candidate: map[string]interface{}{"github_token": ""},
			required:  nil,
			want:      map[string]interface{}{"github_token": ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.MatchKeysToSchema(tt.candidate, tt.required, tt.opts...))
		})
	}
}

func TestMatchKeysToSchema_DoesNotMutateInput(t *testing.T) {
	m := NewManager()
	m.Register("resend", "secret123")
	candidate := map[string]interface{}{"api_key": ""}

	out := m.MatchKeysToSchema(candidate, []string{"api_key"}, WithService("resend"))
	assert.Equal(t, "secret123", out["api_key"])
	assert.Equal(t, "", candidate["api_key"])
	assert.Equal(t, []string{"api_key"}, FilledFields(candidate, out))
}

func TestIsKeyField(t *testing.T) {
	assert.True(t, IsKeyField("Authorization"))
	assert.True(t, IsKeyField("apiKey"))
	assert.True(t, IsKeyField("keyword"))
	assert.False(t, IsKeyField("location"))
}

func TestMatchKeysToSchema_NeverOverwrites(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := NewManager()
		services := rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,6}`), 1, 4).Draw(t, "services")
		for _, s := range services {
			m.Register(s, rapid.StringMatching(`[A-Za-z0-9]{1,12}`).Draw(t, "secret_"+s), s+"_key")
		}

		fields := rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,6}_(key|token|auth|name)`), 0, 6).Draw(t, "fields")
		candidate := map[string]interface{}{}
		for _, f := range fields {
			candidate[f] = rapid.SampledFrom([]interface{}{"", nil, "given", 7}).Draw(t, "value_"+f)
		}

		out := m.MatchKeysToSchema(candidate, fields, WithService(services[0]))
		for k, v := range candidate {
			if !isEmpty(v) && out[k] != v {
				t.Fatalf("field %s overwritten: %v -> %v", k, v, out[k])
			}
		}
	})
}

func TestListMasked_NeverLeaksSecret(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		secret := rapid.StringMatching(`[A-Za-z0-9_\-]{5,40}`).Draw(t, "secret")
		m := NewManager()
		m.Register("svc", secret)
		masked := m.ListMasked()["svc"]
		if strings.Contains(masked, secret) {
			t.Fatalf("masked value %q leaks secret %q", masked, secret)
		}
		if !strings.HasSuffix(masked, secret[len(secret)-VisibleSuffix:]) {
			t.Fatalf("masked value %q lost its suffix", masked)
		}
	})
}
