package work

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlers(t *testing.T) {
	p, completion := newTestProcessor(t, 1,
		&WorkType{ID: "opportunities:recompute", Priority: PriorityHigh, Execute: noop},
		&WorkType{ID: "opportunities:sweep", Priority: PriorityLow, Execute: func(ctx context.Context, subject string, payload any) error {
			return errors.New("catalog unavailable")
		}},
	)

	router := chi.NewRouter()
	NewHandlers(p, p.registry, completion).RegisterRoutes(router)

	get := func(path string) map[string]any {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return body
	}

	types := get("/work/types")["data"].([]any)
	require.Len(t, types, 2)
	assert.Equal(t, "opportunities:recompute", types[0].(map[string]any)["id"])
	assert.Equal(t, "High", types[0].(map[string]any)["priority"])

	// Queued before Start so the item is still pending.
	require.NoError(t, p.Submit("opportunities:recompute", "inv-1", nil))
	require.NoError(t, p.Submit("opportunities:recompute", "inv-1", nil))
	status := get("/work/status")["data"].(map[string]any)
	queued := status["queued"].([]any)
	require.Len(t, queued, 1)
	assert.Equal(t, "opportunities:recompute:inv-1", queued[0].(map[string]any)["id"])
	assert.Equal(t, float64(1), queued[0].(map[string]any)["coalesced"])

	p.Start()
	require.NoError(t, p.Submit("opportunities:sweep", "", nil))
	waitIdle(t, p)

	status = get("/work/status")["data"].(map[string]any)
	assert.Empty(t, status["queued"])
	stats := status["stats"].(map[string]any)
	assert.Equal(t, float64(1), stats["completed"])
	assert.Equal(t, float64(1), stats["failed"])
	assert.Len(t, status["completions"], 2)
}
