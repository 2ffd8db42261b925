package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

type addItemBody struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Size      string    `json:"size" validate:"notblank,max=32"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

func post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func fieldDetails(t *testing.T, err error) map[string]string {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok, "details were %T", typed.Details())
	return details
}

func TestDecodeJSONBodyValid(t *testing.T) {
	id := uuid.New()
	var body addItemBody
	require.NoError(t, DecodeJSONBody(post(`{"product_id":"`+id.String()+`","size":"M","quantity":2}`), &body))
	assert.Equal(t, id, body.ProductID)
	assert.Equal(t, 2, body.Quantity)
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	var body addItemBody
	err := DecodeJSONBody(post(`{"size":"M","quantity":1,"extra":true}`), &body)
	assert.Equal(t, "is not allowed", fieldDetails(t, err)["extra"])
}

func TestDecodeJSONBodyReportsJSONFieldNames(t *testing.T) {
	var body addItemBody
	err := DecodeJSONBody(post(`{"product_id":"`+uuid.NewString()+`","size":"  ","quantity":0}`), &body)
	details := fieldDetails(t, err)
	assert.Equal(t, "is required", details["quantity"])
	assert.Equal(t, "is required", details["size"])
}

func TestDecodeJSONBodyTypeMismatch(t *testing.T) {
	var body addItemBody
	err := DecodeJSONBody(post(`{"quantity":"two"}`), &body)
	assert.Equal(t, "must be a int", fieldDetails(t, err)["quantity"])
}

func TestDecodeJSONBodyRejectsEmptyAndTrailing(t *testing.T) {
	var body addItemBody
	err := DecodeJSONBody(post(""), &body)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	err = DecodeJSONBody(post(`{"product_id":"`+uuid.NewString()+`","size":"M","quantity":1}{"x":1}`), &body)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestDecodeJSONBodyEnforcesSizeLimit(t *testing.T) {
	var body addItemBody
	huge := `{"size":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	err := DecodeJSONBody(post(huge), &body)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestPathUUID(t *testing.T) {
	id := uuid.New()
	rc := chi.NewRouteContext()
	rc.URLParams.Add("orderId", id.String())
	rc.URLParams.Add("bad", "not-a-uuid")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	got, err := PathUUID(req, "orderId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = PathUUID(req, "missing")
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
	_, err = PathUUID(req, "bad")
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello world  ", 5))
	assert.Equal(t, "tiếng", SanitizeString("tiếng việt", 5))
	assert.Equal(t, "ab", SanitizeString("a\x00b\n", 0))
}
