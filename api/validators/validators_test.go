package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type customerForm struct {
	Name  string `json:"name" validate:"required,max=10"`
	Email string `json:"email" validate:"omitempty,email"`
	Age   int    `json:"age"`
}

func decode(t *testing.T, body string) (customerForm, error) {
	t.Helper()
	var form customerForm
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	return form, DecodeJSONBody(req, &form)
}

func TestDecodeJSONBodyAccepts(t *testing.T) {
	form, err := decode(t, `{"name":"Ana","email":"ana@example.com"}`)
	require.NoError(t, err)
	assert.Equal(t, "Ana", form.Name)
}

func TestDecodeJSONBodyRejects(t *testing.T) {
	tests := map[string]struct {
		body    string
		message string
	}{
		"empty":          {body: ``, message: "request body is empty"},
		"unknown field":  {body: `{"name":"Ana","color":"red"}`, message: "invalid request body"},
		"two objects":    {body: `{"name":"Ana"}{"name":"Bia"}`, message: "request body must hold a single JSON object"},
		"wrong type":     {body: `{"name":"Ana","age":"ten"}`, message: "invalid request body"},
		"missing name":   {body: `{"email":"ana@example.com"}`, message: "validation failed"},
		"too large":      {body: `{"name":"` + strings.Repeat("a", MaxBodyBytes) + `"}`, message: "request body too large"},
		"malformed json": {body: `{"name":`, message: "invalid request body"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := decode(t, tt.body)
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
			assert.Equal(t, tt.message, typed.Message())
		})
	}
}

func TestDecodeJSONBodyDetailsUseJSONNames(t *testing.T) {
	_, err := decode(t, `{"name":"much too long a name","email":"nope"}`)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, map[string]string{
		"name":  "must be at most 10",
		"email": "must be a valid email",
	}, typed.Details())
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{query: "", want: 50},
		{query: "?limit=10", want: 10},
		{query: "?limit=500", want: 500},
		{query: "?limit=0", wantErr: true},
		{query: "?limit=501", wantErr: true},
		{query: "?limit=abc", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLimit(httptest.NewRequest(http.MethodGet, "/"+tt.query, nil), 50, 500)
		if tt.wantErr {
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), tt.query)
			continue
		}
		require.NoError(t, err, tt.query)
		assert.Equal(t, tt.want, got, tt.query)
	}
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Ana", SanitizeString("  Ana \n", 10))
	assert.Equal(t, "João", SanitizeString("João Silva", 4))
	assert.Equal(t, "unbounded", SanitizeString(" unbounded ", 0))
}
