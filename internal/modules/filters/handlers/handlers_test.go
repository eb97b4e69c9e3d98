package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/dealflow/internal/modules/filters"
	testingpkg "github.com/aristath/dealflow/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	db := testingpkg.NewTestDB(t, "filters")
	manager, _ := testingpkg.NewEventManager()
	svc := filters.NewService(filters.NewRepository(db.Conn(), zerolog.Nop()), filters.NewTracker(),
		filters.NewDimensionIndex(), manager, 0.6, zerolog.Nop())

	router := chi.NewRouter()
	NewHandler(svc, zerolog.Nop()).RegisterRoutes(router)
	return router
}

func do(router http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var response map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &response)
	return w, response
}

func TestHandlers_ReplaceAndGet(t *testing.T) {
	router := newTestRouter(t)

	w, response := do(router, "PUT", "/investors/inv-1/filters", `{
		"assessment_rules": [{"dimension":"funding_amount","operator":"<=","threshold":50,"weight":1}],
		"risk_rules": [{"dimension":"revenue_share_ratio","operator":"<=","threshold":{"number":0.05}}]
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := response["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["version"])
	assert.Equal(t, 0.6, data["effective_threshold"])

	w, response = do(router, "GET", "/investors/inv-1/filters", "")
	require.Equal(t, http.StatusOK, w.Code)
	data = response["data"].(map[string]interface{})
	assert.Len(t, data["risk_rules"], 1)

	w, response = do(router, "GET", "/investors", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), response["data"].(map[string]interface{})["count"])
}

func TestHandlers_ValidationErrorNamesRule(t *testing.T) {
	router := newTestRouter(t)

	w, response := do(router, "PUT", "/investors/inv-1/filters", `{
		"risk_rules": [{"dimension":"revenue_share_ratio","operator":"<","threshold":0.05}]
	}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	errBody := response["error"].(map[string]interface{})
	details := errBody["details"].([]interface{})
	require.Len(t, details, 1)
	assert.Equal(t, `risk rule 0 (revenue_share_ratio): unknown operator "<"`, details[0])
}

func TestHandlers_HistoryAndDelete(t *testing.T) {
	router := newTestRouter(t)

	for i := 0; i < 2; i++ {
		w, _ := do(router, "PUT", "/investors/inv-1/filters", `{"assessment_rules":[]}`)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, response := do(router, "GET", "/investors/inv-1/filters/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), response["data"].(map[string]interface{})["count"])

	w, _ = do(router, "DELETE", "/investors/inv-1/filters", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(router, "GET", "/investors/inv-1/filters", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(router, "DELETE", "/investors/inv-1/filters", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
