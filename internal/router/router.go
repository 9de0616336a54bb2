// Package router binds a built service tree onto a chi.Router (component G):
// one collection route, one resource route, an optional managed-classes
// listing, and the three self-describing sub-routes per node.
//
// Grounded in the teacher's own route registration idiom
// (generated/ref/services/todo/internal/todo/itemhandler.go's RegisterRoutes),
// generalised from a fixed /items tree to an arbitrary depth walked from the
// service tree built by internal/service.
package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/napix/napixd/internal/dispatch"
	"github.com/napix/napixd/internal/fields"
	"github.com/napix/napixd/internal/logging"
	"github.com/napix/napixd/internal/napix"
	"github.com/napix/napixd/internal/service"
)

// Mount registers every node's routes on r, with client-facing URLs written
// relative to the tree's own root (no outer mount segment). Use MountAt when
// this tree is one of several independently-configured managers mounted
// side by side under their own name (DESIGN.md, cmd/napixd).
func Mount(r chi.Router, nodes []*service.Node, log logging.Logger) {
	MountAt(r, nodes, log, "")
}

// MountAt is Mount with every written URL (Location headers, list/getall
// bodies, managed-classes listings) prefixed by prefix — the outer path
// segment chi.Mount strips before a request reaches these routes.
func MountAt(r chi.Router, nodes []*service.Node, log logging.Logger, prefix string) {
	for _, n := range nodes {
		mountNode(r, n, log, prefix)
	}
}

func mountNode(r chi.Router, n *service.Node, log logging.Logger, prefix string) {
	d := dispatch.New(n, log)
	d.Prefix = prefix
	collectionPattern := chiPattern(n.CollectionURL)
	resourcePattern := chiPattern(n.ResourceURL)

	r.HandleFunc(collectionPattern, func(w http.ResponseWriter, r *http.Request) {
		d.ServeCollection(w, r, positional(r, n.Depth))
	})

	r.HandleFunc(resourcePattern, func(w http.ResponseWriter, r *http.Request) {
		d.ServeResource(w, r, positional(r, n.Depth+1))
	})

	// Self-describing sub-routes live on the collection URL (§4.D), not per
	// resource: collectionPattern already ends in "/".
	for _, route := range []string{"_napix_resource_fields", "_napix_help", "_napix_new"} {
		route := route
		r.Get(collectionPattern+route, func(w http.ResponseWriter, r *http.Request) {
			serveSelfDescribing(w, r, n, route)
		})
	}

	r.Post(resourcePattern+"/{napixAction}", func(w http.ResponseWriter, r *http.Request) {
		action := chi.URLParam(r, "napixAction")
		d.ServeAction(w, r, positional(r, n.Depth+1), action)
	})

	if n.HasMultipleManaged() {
		r.Get(resourcePattern+"/", func(w http.ResponseWriter, r *http.Request) {
			ids := positional(r, n.Depth+1)
			urls := n.ManagedClassURLs(ids)
			for i, u := range urls {
				urls[i] = prefix + u
			}
			writeJSON(w, http.StatusOK, urls)
		})
	}
}

// serveSelfDescribing answers the three reserved sub-routes every collection
// exposes (§4.D): _napix_resource_fields, _napix_help, _napix_new.
func serveSelfDescribing(w http.ResponseWriter, r *http.Request, n *service.Node, route string) {
	mgr := n.Decl.NewManager(nil)
	if c, ok := mgr.(napix.Configurer); ok {
		_ = c.Configure(n.Config)
	}
	fs := schemaFor(n, mgr)

	switch route {
	case "_napix_resource_fields":
		writeJSON(w, http.StatusOK, fs.Schema())
	case "_napix_help":
		writeJSON(w, http.StatusOK, map[string]any{
			"doc":                n.Decl.Doc,
			"managed_class":      managedClassNames(n),
			"resource_fields":    fs.Schema(),
			"collection_methods": dispatch.CollectionAllow(mgr),
			"resource_methods":   dispatch.ResourceAllow(mgr),
		})
	case "_napix_new":
		writeJSON(w, http.StatusOK, fs.GetExampleResource())
	default:
		http.NotFound(w, r)
	}
}

// schemaFor prefers the declaration's own FieldSet constructor (the class
// view used for self-describing endpoints and documentation assembly) and
// falls back to the already-constructed mgr's Fields() when a ManagerDecl was
// built without one.
func schemaFor(n *service.Node, mgr napix.Manager) *fields.FieldSet {
	if n.Decl.NewFieldSet != nil {
		return n.Decl.NewFieldSet()
	}
	return mgr.Fields()
}

func managedClassNames(n *service.Node) []string {
	names := make([]string, len(n.Children))
	for i, c := range n.Children {
		names[i] = c.Decl.ManagerName
	}
	return names
}

// chiPattern rewrites the node's ":f{i}" placeholders into chi's "{f{i}}"
// route-param syntax.
func chiPattern(url string) string {
	var b strings.Builder
	for i := 0; i < len(url); i++ {
		if url[i] == ':' {
			j := i + 1
			for j < len(url) && url[j] != '/' {
				j++
			}
			fmt.Fprintf(&b, "{%s}", url[i+1:j])
			i = j - 1
			continue
		}
		b.WriteByte(url[i])
	}
	return b.String()
}

// positional extracts the ordered f0..f{n-1} path params chi bound for this
// request (§4.G: "router extracts positional path segments in declaration
// order").
func positional(r *http.Request, count int) []string {
	out := make([]string, count)
	for i := 0; i < count; i++ {
		out[i] = chi.URLParam(r, fmt.Sprintf("f%d", i))
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
