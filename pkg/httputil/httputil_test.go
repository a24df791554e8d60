package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONWithMeta_EmptyPageKeepsZeroTotal(t *testing.T) {
	w := httptest.NewRecorder()
	JSONWithMeta(w, http.StatusOK, []string{}, PaginationMeta(1, 20, 0))

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Contains(t, body, "meta")

	// A zero total must be serialized, so callers can tell an empty
	// result from missing metadata
	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(body["meta"], &meta))
	assert.Contains(t, meta, "total")
	assert.EqualValues(t, 0, meta["total"])
	assert.EqualValues(t, 1, meta["page"])
	assert.EqualValues(t, 0, meta["total_pages"])
}

func TestJSON_OmitsMetaWhenAbsent(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusOK, map[string]string{"status": "healthy"})

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotContains(t, body, "meta")
}
