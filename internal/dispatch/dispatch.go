// Package dispatch maps an HTTP verb, a resolved manager and query
// parameters onto a manager method call, and shapes the HTTP response
// (component F).
//
// Grounded in the teacher's handler idiom
// (generated/ref/services/todo/internal/todo/itemhandler.go's decode/validate/
// respond sequence), adapted from fixed CRUD handlers to a verb table driven by what the resolved
// Manager implements.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/napix/napixd/internal/fields"
	"github.com/napix/napixd/internal/logging"
	"github.com/napix/napixd/internal/napix"
	"github.com/napix/napixd/internal/napixerr"
	"github.com/napix/napixd/internal/service"
)

const maxBodyBytes = 1 << 20

// Dispatcher serves one resolved node of the service tree.
type Dispatcher struct {
	Node *service.Node
	Log  logging.Logger

	// Prefix is prepended to every client-facing URL this dispatcher writes
	// (Location headers, list/getall bodies). It is empty for a manager
	// mounted at the HTTP server root, and the outer mount segment (e.g.
	// "/servers") for one of several independently-configured managers
	// mounted side by side (DESIGN.md: a top-level manager's own name is an
	// application-level concern, not part of the CollectionService tree).
	Prefix string
}

// New returns a Dispatcher for node, logging through log (or a discard logger
// if log is nil).
func New(node *service.Node, log logging.Logger) *Dispatcher {
	if log == nil {
		log = logging.FromContext(context.Background())
	}
	return &Dispatcher{Node: node, Log: log}
}

// ServeCollection handles a request against a collection URL, given the ids
// of every ancestor resource (§4.F).
func (d *Dispatcher) ServeCollection(w http.ResponseWriter, r *http.Request, parentIDs []string) {
	mgr, _, ancestors, err := service.ResolveCollection(r.Context(), d.Node, parentIDs)
	if err != nil {
		d.writeError(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		d.listOrGetAll(w, r, mgr, ancestors)
	case http.MethodPost:
		d.create(w, r, mgr, ancestors)
	default:
		d.methodNotAllowed(w, collectionAllow(mgr))
	}
}

// ServeResource handles a request against a resource URL, given the ids of
// every ancestor plus the resource's own id (the last entry of ids).
func (d *Dispatcher) ServeResource(w http.ResponseWriter, r *http.Request, ids []string) {
	resolved, err := service.Resolve(r.Context(), d.Node, ids)
	if err != nil {
		d.writeError(w, err)
		return
	}
	leaf := resolved.Leaf()
	mgr := leaf.Manager

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		d.get(w, r, mgr, leaf.ID)
	case http.MethodPut:
		d.modify(w, r, mgr, leaf.ID, resolved.Chain[:len(resolved.Chain)-1])
	case http.MethodDelete:
		d.delete(w, r, mgr, leaf.ID)
	default:
		d.methodNotAllowed(w, resourceAllow(mgr))
	}
}

// ServeAction handles POST on resource/<action> (§4.F, "custom action method").
func (d *Dispatcher) ServeAction(w http.ResponseWriter, r *http.Request, ids []string, action string) {
	resolved, err := service.Resolve(r.Context(), d.Node, ids)
	if err != nil {
		d.writeError(w, err)
		return
	}
	leaf := resolved.Leaf()

	actions, ok := leaf.Manager.(napix.Actions)
	if !ok {
		d.methodNotAllowed(w, resourceAllow(leaf.Manager))
		return
	}
	fn, ok := actions.Action(action)
	if !ok {
		d.methodNotAllowed(w, resourceAllow(leaf.Manager))
		return
	}

	body, err := d.decodeBody(w, r, leaf.Manager.Fields(), true)
	if err != nil {
		d.writeError(w, err)
		return
	}

	unlock := leaf.Node.Lock(leaf.ID)
	defer unlock()

	wrapper := napix.NewResourceWrapper(leaf.Manager, leaf.ID)
	result, err := fn(r.Context(), wrapper, body)
	if err != nil {
		d.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (d *Dispatcher) listOrGetAll(w http.ResponseWriter, r *http.Request, mgr napix.Manager, ids []service.ResolvedAncestor) {
	query := r.URL.Query()
	getAll := query.Has("getall")
	filterParams := withoutGetAll(query)
	hasFilters := len(filterParams) > 0

	switch {
	case getAll && hasFilters:
		af, ok := mgr.(napix.AllFilterer)
		if !ok {
			d.methodNotAllowed(w, collectionAllow(mgr))
			return
		}
		all, err := af.GetAllResourcesFilter(r.Context(), filterParams)
		if err != nil {
			d.writeError(w, err)
			return
		}
		d.writeGetAll(w, r, mgr, ids, all)
	case getAll:
		ag, ok := mgr.(napix.AllGetter)
		if !ok {
			d.methodNotAllowed(w, collectionAllow(mgr))
			return
		}
		all, err := ag.GetAllResources(r.Context())
		if err != nil {
			d.writeError(w, err)
			return
		}
		d.writeGetAll(w, r, mgr, ids, all)
	case hasFilters:
		lf, ok := mgr.(napix.ListFilterer)
		if !ok {
			d.methodNotAllowed(w, collectionAllow(mgr))
			return
		}
		keys, err := lf.ListResourceFilter(r.Context(), filterParams)
		if err != nil {
			d.writeError(w, err)
			return
		}
		d.writeList(w, r, ids, keys)
	default:
		l, ok := mgr.(napix.Lister)
		if !ok {
			d.methodNotAllowed(w, collectionAllow(mgr))
			return
		}
		keys, err := l.ListResource(r.Context())
		if err != nil {
			d.writeError(w, err)
			return
		}
		d.writeList(w, r, ids, keys)
	}

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
	}
}

func (d *Dispatcher) create(w http.ResponseWriter, r *http.Request, mgr napix.Manager, ids []service.ResolvedAncestor) {
	creator, ok := mgr.(napix.Creator)
	if !ok {
		d.methodNotAllowed(w, collectionAllow(mgr))
		return
	}
	body, err := d.decodeBody(w, r, mgr.Fields(), false)
	if err != nil {
		d.writeError(w, err)
		return
	}
	id, err := creator.CreateResource(r.Context(), body)
	if err != nil {
		d.writeError(w, err)
		return
	}
	if id == "" {
		d.writeError(w, errors.New("create_resource must return the id"))
		return
	}
	w.Header().Set("Location", d.url(d.Node.ResourceToken(append(rawIDs(ids), id))))
	w.WriteHeader(http.StatusCreated)
}

func (d *Dispatcher) get(w http.ResponseWriter, r *http.Request, mgr napix.Manager, id string) {
	if format := r.URL.Query().Get("format"); format != "" {
		formatter, ok := mgr.(napix.Formatter)
		if !ok {
			d.writeError(w, &napixerr.NotAcceptable{})
			return
		}
		fn, ok := formatter.GetFormatter(format)
		if !ok {
			d.writeError(w, &napixerr.NotAcceptable{})
			return
		}
		getter, ok := mgr.(napix.Getter)
		if !ok {
			d.methodNotAllowed(w, resourceAllow(mgr))
			return
		}
		resource, err := getter.GetResource(r.Context(), id)
		if err != nil {
			d.writeError(w, err)
			return
		}
		wrapper := napix.NewResourceWrapper(mgr, id).WithResource(resource)
		if err := fn(w, wrapper); err != nil {
			d.writeError(w, err)
		}
		return
	}

	getter, ok := mgr.(napix.Getter)
	if !ok {
		d.methodNotAllowed(w, resourceAllow(mgr))
		return
	}
	resource, err := getter.GetResource(r.Context(), id)
	if err != nil {
		d.writeError(w, err)
		return
	}
	serialized := mgr.Fields().Serialize(resource)
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, serialized)
}

func (d *Dispatcher) modify(w http.ResponseWriter, r *http.Request, mgr napix.Manager, id string, ancestors []service.ResolvedAncestor) {
	modifier, ok := mgr.(napix.Modifier)
	if !ok {
		d.methodNotAllowed(w, resourceAllow(mgr))
		return
	}
	body, err := d.decodeBody(w, r, mgr.Fields(), true)
	if err != nil {
		d.writeError(w, err)
		return
	}

	wrapper := napix.NewResourceWrapper(mgr, id)
	if getter, ok := mgr.(napix.Getter); ok {
		existing, err := getter.GetResource(r.Context(), id)
		switch {
		case err == nil:
			wrapper = wrapper.WithResource(existing)
		case isNotFound(err):
			// PUT-as-upsert: no prior resource, proceed with a nil body.
		default:
			d.writeError(w, err)
			return
		}
	}

	newID, err := modifier.ModifyResource(r.Context(), wrapper, body)
	if err != nil {
		d.writeError(w, err)
		return
	}
	if newID != "" {
		w.Header().Set("Location", d.url(d.Node.ResourceToken(append(rawIDs(ancestors), newID))))
		w.WriteHeader(http.StatusResetContent)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d *Dispatcher) delete(w http.ResponseWriter, r *http.Request, mgr napix.Manager, id string) {
	deleter, ok := mgr.(napix.Deleter)
	if !ok {
		d.methodNotAllowed(w, resourceAllow(mgr))
		return
	}
	wrapper := napix.NewResourceWrapper(mgr, id)
	if err := deleter.DeleteResource(r.Context(), wrapper); err != nil {
		d.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d *Dispatcher) writeList(w http.ResponseWriter, r *http.Request, ids []service.ResolvedAncestor, keys []string) {
	urls := make([]string, len(keys))
	for i, k := range keys {
		urls[i] = d.url(d.Node.ResourceToken(append(rawIDs(ids), k)))
	}
	writeJSON(w, http.StatusOK, urls)
}

func (d *Dispatcher) writeGetAll(w http.ResponseWriter, r *http.Request, mgr napix.Manager, ids []service.ResolvedAncestor, all map[string]napix.Resource) {
	out := make(map[string]napix.Resource, len(all))
	for k, v := range all {
		url := d.url(d.Node.ResourceToken(append(rawIDs(ids), k)))
		out[url] = mgr.Fields().Serialize(v)
	}
	writeJSON(w, http.StatusOK, out)
}

// decodeBody reads and validates the request body against fs (§4.F: "POST
// validates with for_edit=false; PUT validates with for_edit=true"). It
// accepts application/json (without DisallowUnknownFields: unknown keys are
// dropped by FieldSet.Validate, matching the Python original) and
// application/x-www-form-urlencoded.
func (d *Dispatcher) decodeBody(w http.ResponseWriter, r *http.Request, fs *fields.FieldSet, forEdit bool) (napix.Resource, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	contentType := r.Header.Get("Content-Type")
	var raw napix.Resource

	switch {
	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"):
		payload, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		values, err := url.ParseQuery(string(payload))
		if err != nil {
			return nil, fmt.Errorf("parse form body: %w", err)
		}
		raw = napix.Resource{}
		for k := range values {
			raw[k] = values.Get(k)
		}
	default:
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&raw); err != nil && err != io.EOF {
			return nil, fmt.Errorf("decode request body: %w", err)
		}
		if raw == nil {
			raw = napix.Resource{}
		}
		// JSON numbers decode as float64; convert whole numbers onto fields
		// declared with an integer type so the static type check accepts them.
		for k, v := range raw {
			n, isNum := v.(float64)
			f := fs.Field(k)
			if !isNum || f == nil || f.Type == nil || n != math.Trunc(n) {
				continue
			}
			switch f.Type.Kind() {
			case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
				raw[k] = reflect.ValueOf(n).Convert(f.Type).Interface()
			}
		}
	}

	validated, err := fs.Validate(raw, forEdit)
	if err != nil {
		return nil, err
	}
	return fs.Unserialize(validated), nil
}

func isNotFound(err error) bool {
	var notFound *napixerr.NotFound
	return errors.As(err, &notFound)
}

func (d *Dispatcher) writeError(w http.ResponseWriter, err error) {
	var notFound *napixerr.NotFound
	var duplicate *napixerr.Duplicate
	var validation *napixerr.ValidationError
	var methodNotAllowed *napixerr.MethodNotAllowed
	var notAcceptable *napixerr.NotAcceptable

	switch {
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &duplicate):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, validation.Flatten())
	case errors.As(err, &methodNotAllowed):
		d.methodNotAllowed(w, methodNotAllowed.Allowed)
	case errors.As(err, &notAcceptable):
		writeJSON(w, http.StatusNotAcceptable, map[string]string{"error": err.Error()})
	default:
		d.Log.Error("unhandled dispatcher error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (d *Dispatcher) methodNotAllowed(w http.ResponseWriter, allowed []string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	w.WriteHeader(http.StatusMethodNotAllowed)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

// url prepends the dispatcher's mount prefix to a tree-relative token, so
// Location headers and listed resource URLs are correct even when this
// manager's tree was mounted under an outer path segment (component G,
// router.MountAt's prefix parameter).
func (d *Dispatcher) url(token string) string {
	return d.Prefix + token
}

func rawIDs(ids []service.ResolvedAncestor) []string {
	out := make([]string, len(ids))
	for i, a := range ids {
		out[i] = a.ID
	}
	return out
}

// canonicalVerbOrder is the order every Allow header lists verbs in (spec §8
// scenario 6: "Allow: GET, HEAD, PUT, DELETE").
var canonicalVerbOrder = []string{"GET", "HEAD", "POST", "PUT", "DELETE"}

// collectionAllow computes the Allow header for a collection URL (§4.C:
// "advertised Allow header... computed from which methods the manager
// defines").
func collectionAllow(mgr napix.Manager) []string { return CollectionAllow(mgr) }

func resourceAllow(mgr napix.Manager) []string { return ResourceAllow(mgr) }

// CollectionAllow computes the Allow header for a collection URL (§4.C:
// "advertised Allow header... computed from which methods the manager
// defines"). Exported for _napix_help (router.serveSelfDescribing), which
// reports the same advertised verbs without duplicating the gating logic.
func CollectionAllow(mgr napix.Manager) []string {
	set := map[string]bool{}
	if _, ok := mgr.(napix.Lister); ok {
		set["GET"] = true
		set["HEAD"] = true
	}
	if _, ok := mgr.(napix.Creator); ok {
		set["POST"] = true
	}
	return inCanonicalOrder(set)
}

// ResourceAllow is CollectionAllow for a resource URL.
func ResourceAllow(mgr napix.Manager) []string {
	set := map[string]bool{}
	if _, ok := mgr.(napix.Getter); ok {
		set["GET"] = true
		set["HEAD"] = true
	}
	if _, ok := mgr.(napix.Modifier); ok {
		set["PUT"] = true
	}
	if _, ok := mgr.(napix.Deleter); ok {
		set["DELETE"] = true
	}
	return inCanonicalOrder(set)
}

func inCanonicalOrder(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for _, verb := range canonicalVerbOrder {
		if set[verb] {
			out = append(out, verb)
		}
	}
	return out
}

func withoutGetAll(q url.Values) url.Values {
	out := url.Values{}
	for k, v := range q {
		if k == "getall" || k == "format" {
			continue
		}
		out[k] = v
	}
	return out
}
