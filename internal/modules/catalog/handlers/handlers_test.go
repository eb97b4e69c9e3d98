package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/dealflow/internal/modules/catalog"
	testingpkg "github.com/aristath/dealflow/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	db := testingpkg.NewTestDB(t, "catalog")
	manager, _ := testingpkg.NewEventManager()
	svc := catalog.NewService(catalog.NewRepository(db.Conn(), zerolog.Nop()), manager, zerolog.Nop())

	router := chi.NewRouter()
	NewHandler(svc, zerolog.Nop()).RegisterRoutes(router)
	return router
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandlers_DealLifecycle(t *testing.T) {
	router := newTestRouter(t)

	w := do(router, "POST", "/deals", `{"id":"DGT-2026-001","industry":"Retail","funding_amount":35,"revenue_share_ratio":0.08}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	data := created["data"].(map[string]interface{})
	assert.Equal(t, "pending", data["status"])
	assert.NotNil(t, created["metadata"])

	w = do(router, "POST", "/deals", `{"id":"DGT-2026-001"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(router, "PUT", "/deals/DGT-2026-001/status", `{"status":"under_review"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(router, "PUT", "/deals/DGT-2026-001/status", `{"status":"pending"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(router, "PUT", "/deals/DGT-2026-001/attributes", `{"industry":"Retail","funding_amount":40,"revenue_share_ratio":0.08}`)
	require.Equal(t, http.StatusOK, w.Code)
	var updated map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, float64(2), updated["data"].(map[string]interface{})["version"])

	w = do(router, "GET", "/deals/DGT-2026-001", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	history := got["data"].(map[string]interface{})["status_history"].([]interface{})
	assert.Len(t, history, 1)
}

func TestHandlers_Errors(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		expectedStatus int
	}{
		{"missing deal", "GET", "/deals/nope", "", http.StatusNotFound},
		{"bad body", "POST", "/deals", "{", http.StatusBadRequest},
		{"missing id", "POST", "/deals", `{"industry":"Retail"}`, http.StatusBadRequest},
		{"unknown status filter", "GET", "/deals?status=lost", "", http.StatusBadRequest},
		{"unknown status", "PUT", "/deals/nope/status", `{"status":"lost"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code)

			var response map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Contains(t, response, "error")
		})
	}
}

func TestHandlers_ListPaginates(t *testing.T) {
	router := newTestRouter(t)

	for _, id := range []string{"DGT-2026-001", "DGT-2026-002", "DGT-2026-003"} {
		w := do(router, "POST", "/deals", `{"id":"`+id+`","funding_amount":10}`)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := do(router, "GET", "/deals?status=pending,%20pending&offset=1&limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["total"])
	deals := data["deals"].([]interface{})
	require.Len(t, deals, 1)
	assert.Equal(t, "DGT-2026-002", deals[0].(map[string]interface{})["id"])
}
