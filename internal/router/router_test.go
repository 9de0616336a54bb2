package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/napix/napixd/internal/fields"
	"github.com/napix/napixd/internal/napix"
	"github.com/napix/napixd/internal/napixerr"
	"github.com/napix/napixd/internal/service"
)

type fakeServers struct {
	data map[string]napix.Resource
}

func (m *fakeServers) Name() string { return "servers" }

func (m *fakeServers) Fields() *fields.FieldSet {
	name, _ := fields.New("name", "web1")
	port, _ := fields.New("port", 80)
	return fields.NewFieldSet(name, port)
}

func (m *fakeServers) ListResource(ctx context.Context) ([]string, error) {
	out := make([]string, 0, len(m.data))
	for k := range m.data {
		out = append(out, k)
	}
	return out, nil
}

func (m *fakeServers) CreateResource(ctx context.Context, data napix.Resource) (string, error) {
	id := data["name"].(string)
	m.data[id] = data
	return id, nil
}

func (m *fakeServers) GetResource(ctx context.Context, id string) (napix.Resource, error) {
	r, ok := m.data[id]
	if !ok {
		return nil, &napixerr.NotFound{ID: id}
	}
	return r, nil
}

func newRouter(t *testing.T) chi.Router {
	t.Helper()
	mgr := &fakeServers{data: map[string]napix.Resource{"web1": {"name": "web1", "port": 80}}}
	decl := napix.ManagerDecl{
		ManagerName: "servers",
		Doc:         "servers collection",
		NewManager:  func(parent napix.Resource) napix.Manager { return mgr },
	}
	nodes, err := service.Build(decl, func([]string) napix.Conf { return napix.Conf{} })
	require.NoError(t, err)

	r := chi.NewRouter()
	Mount(r, nodes, nil)
	return r
}

func TestRouter_SelfDescribingNew(t *testing.T) {
	r := newRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/_napix_new", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "web1", got["name"])
}

func TestRouter_ListResource(t *testing.T) {
	r := newRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"/web1"}, got)
}

func TestMountAt_PrefixesWrittenURLs(t *testing.T) {
	mgr := &fakeServers{data: map[string]napix.Resource{"web1": {"name": "web1", "port": 80}}}
	decl := napix.ManagerDecl{
		ManagerName: "servers",
		NewManager:  func(parent napix.Resource) napix.Manager { return mgr },
	}
	nodes, err := service.Build(decl, func([]string) napix.Conf { return napix.Conf{} })
	require.NoError(t, err)

	sub := chi.NewRouter()
	MountAt(sub, nodes, nil, "/servers")
	r := chi.NewRouter()
	r.Mount("/servers", sub)

	createReq := httptest.NewRequest(http.MethodPost, "/servers/", strings.NewReader(`{"name":"web2","port":22}`))
	createRec := httptest.NewRecorder()
	r.ServeHTTP(createRec, createReq)
	require.Equal(t, http.StatusCreated, createRec.Code)
	assert.Equal(t, "/servers/web2", createRec.Header().Get("Location"))

	listReq := httptest.NewRequest(http.MethodGet, "/servers/", nil)
	listRec := httptest.NewRecorder()
	r.ServeHTTP(listRec, listReq)
	var urls []string
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &urls))
	assert.Contains(t, urls, "/servers/web1")
}

func TestRouter_CreateThenGet(t *testing.T) {
	r := newRouter(t)

	createReq := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"web2","port":22}`))
	createRec := httptest.NewRecorder()
	r.ServeHTTP(createRec, createReq)
	require.Equal(t, http.StatusCreated, createRec.Code)
	require.Equal(t, "/web2", createRec.Header().Get("Location"))

	getReq := httptest.NewRequest(http.MethodGet, "/web2", nil)
	getRec := httptest.NewRecorder()
	r.ServeHTTP(getRec, getReq)
	assert.Equal(t, http.StatusOK, getRec.Code)
}
