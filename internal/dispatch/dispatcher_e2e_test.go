package dispatch_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/napix/napixd/examples/servers"
	"github.com/napix/napixd/internal/napix"
	"github.com/napix/napixd/internal/router"
	"github.com/napix/napixd/internal/service"
	"github.com/napix/napixd/internal/store"
)

// TestServersVhostsEndToEnd drives spec.md §8's worked example through the
// full stack (router -> dispatcher -> service resolver -> manager -> store),
// covering all six enumerated scenarios.
func TestServersVhostsEndToEnd(t *testing.T) {
	backend := store.NewMemoryBackend()
	nodes, err := service.Build(servers.NewRootDecl(backend), func([]string) napix.Conf { return napix.Conf{} })
	require.NoError(t, err)

	sub := chi.NewRouter()
	router.MountAt(sub, nodes, nil, "/servers")
	r := chi.NewRouter()
	r.Mount("/servers", sub)
	ts := httptest.NewServer(r)
	defer ts.Close()

	client := ts.Client()

	// Scenario 1: POST creates, 201 + Location; GET returns it with alive=true.
	resp := doJSON(t, client, http.MethodPost, ts.URL+"/servers/", map[string]any{"name": "web1", "port": 80})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "/servers/web1", resp.Header.Get("Location"))
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodGet, ts.URL+"/servers/web1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	resp.Body.Close()
	assert.Equal(t, map[string]any{"name": "web1", "port": float64(80), "alive": true}, got)

	// Scenario 2: missing required field -> 400, {"name": "Required"}.
	resp = doJSON(t, client, http.MethodPost, ts.URL+"/servers/", map[string]any{"port": 80})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errBody map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errBody))
	resp.Body.Close()
	assert.Equal(t, "Required", errBody["name"])

	// Scenario 3: bad type on PUT -> 400 with a Bad type message naming the field.
	resp = doJSON(t, client, http.MethodPut, ts.URL+"/servers/web1", map[string]any{"name": "web1", "port": "eighty"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errBody))
	resp.Body.Close()
	assert.Contains(t, errBody["port"], "Bad type")

	// Scenario 4: ?getall -> {url: resource}.
	resp = doJSON(t, client, http.MethodGet, ts.URL+"/servers/?getall", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var all map[string]map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	resp.Body.Close()
	require.Contains(t, all, "/servers/web1")
	assert.Equal(t, "web1", all["/servers/web1"]["name"])

	// Scenario 5: vhosts managed class, create then list.
	resp = doJSON(t, client, http.MethodPost, ts.URL+"/servers/web1/vhosts/", map[string]any{"host": "a.example"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "/servers/web1/vhosts/a.example", resp.Header.Get("Location"))
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodGet, ts.URL+"/servers/web1/vhosts/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var urls []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&urls))
	resp.Body.Close()
	assert.Equal(t, []string{"/servers/web1/vhosts/a.example"}, urls)

	// Scenario 6: DELETE on an absent id -> 404; unsupported verb -> 405 + Allow.
	resp = doJSON(t, client, http.MethodDelete, ts.URL+"/servers/ghost", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, client, "PATCH", ts.URL+"/servers/web1", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "GET, HEAD, PUT, DELETE", resp.Header.Get("Allow"))
	resp.Body.Close()
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}
