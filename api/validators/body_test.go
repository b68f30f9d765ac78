package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/hasanarpat/memento-mori/pkg/errors"
)

type lineBody struct {
	Email string `json:"email" validate:"required,email"`
	Items []struct {
		Quantity int `json:"quantity" validate:"min=1"`
	} `json:"items" validate:"required,min=1,dive"`
}

func decode(t *testing.T, raw string) (lineBody, error) {
	t.Helper()
	var dest lineBody
	req := httptest.NewRequest(http.MethodPost, "/api/shop/checkout", strings.NewReader(raw))
	return dest, DecodeJSONBody(req, &dest)
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	body, err := decode(t, `{"email":"raven@example.com","items":[{"quantity":2}]}`)
	require.NoError(t, err)
	assert.Equal(t, 2, body.Items[0].Quantity)
}

func TestDecodeJSONBodyRejections(t *testing.T) {
	cases := map[string]string{
		"empty":         ``,
		"unknown field": `{"email":"raven@example.com","items":[{"quantity":1}],"price":1}`,
		"trailing data": `{"email":"raven@example.com","items":[{"quantity":1}]} {}`,
		"bad email":     `{"email":"nope","items":[{"quantity":1}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decode(t, raw)
			require.Error(t, err)
			assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
		})
	}
}

func TestValidateStructReportsJSONPaths(t *testing.T) {
	_, err := decode(t, `{"email":"raven@example.com","items":[{"quantity":0}]}`)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be at least 1", details["items[0].quantity"])
}

func TestDecodeJSONBodyCapsSize(t *testing.T) {
	raw := `{"email":"` + strings.Repeat("a", MaxBodyBytes) + `@example.com"}`
	_, err := decode(t, raw)
	require.Error(t, err)
	assert.Contains(t, pkgerrors.PublicMessage(err), "exceeds")
}
