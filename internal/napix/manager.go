// Package napix defines the Manager contract (component C) and the small set
// of runtime types (Conf, ResourceWrapper, ManagedClass) threaded through the
// service tree, path resolver and dispatcher.
//
// Grounded in napixd.managers.base.Manager (original_source) and, for the
// interface-segregation shape a statically typed port needs instead of
// hasattr-based verb gating, in the teacher's own Repo/Service interface split
// (generated/ref/services/todo/internal/todo/itemservice.go: ItemService is a
// narrow interface a handler type-asserts capabilities out of).
package napix

import (
	"context"
	"net/http"
	"net/url"

	"github.com/napix/napixd/internal/fields"
)

// Resource is a JSON-object instance of a manager's schema.
type Resource = fields.Resource

// Conf is the resolved configuration subtree handed to one manager's Configure,
// the Go analogue of napixd.conf.Conf.for_manager's per-node result.
type Conf map[string]any

// Get fetches a key, with ok=false when absent (mirrors Conf.get).
func (c Conf) Get(key string) (any, bool) {
	v, ok := c[key]
	return v, ok
}

// ManagerFactory builds a fresh Manager instance, given the resolved parent
// resource, for one request. Managers are constructed per request and disposed
// after (spec §3, "Lifecycle").
type ManagerFactory func(parent Resource) Manager

// Manager is the contract every domain module implements. Only Name and
// Fields are mandatory; everything else is an optional capability gated by the
// verb dispatcher through the narrow interfaces below (Design Notes §9,
// SPEC_FULL §4.C: "Go lacks hasattr").
type Manager interface {
	Name() string
	Fields() *fields.FieldSet
}

// Lister backs GET on a collection URL.
type Lister interface {
	ListResource(ctx context.Context) ([]string, error)
}

// ListFilterer backs GET on a collection URL with non-getall query parameters.
type ListFilterer interface {
	ListResourceFilter(ctx context.Context, params url.Values) ([]string, error)
}

// AllGetter backs GET .../?getall.
type AllGetter interface {
	GetAllResources(ctx context.Context) (map[string]Resource, error)
}

// AllFilterer backs GET .../?getall&<filters>.
type AllFilterer interface {
	GetAllResourcesFilter(ctx context.Context, params url.Values) (map[string]Resource, error)
}

// Creator backs POST on a collection URL. CreateResource MUST return the new id.
type Creator interface {
	CreateResource(ctx context.Context, data Resource) (string, error)
}

// Getter backs GET on a resource URL.
type Getter interface {
	GetResource(ctx context.Context, id string) (Resource, error)
}

// Modifier backs PUT on a resource URL. A non-empty returned id signals a move
// (§4.F: "modify_resource returning a new id is treated as a move").
type Modifier interface {
	ModifyResource(ctx context.Context, w *ResourceWrapper, data Resource) (string, error)
}

// Deleter backs DELETE on a resource URL.
type Deleter interface {
	DeleteResource(ctx context.Context, w *ResourceWrapper) error
}

// IDValidator backs per-manager id validation. When absent, any non-empty path
// segment is accepted as-is.
type IDValidator interface {
	ValidateID(raw string) (string, error)
}

// Configurer receives the manager's resolved config subtree. The subtree is
// resolved once per node when the service tree is built; Configure is called
// with it on every Manager instance right after construction, i.e. once per
// instance per request.
type Configurer interface {
	Configure(conf Conf) error
}

// RequestHooks declares start/end hooks around a request. The dispatcher
// (internal/dispatch) does not call StartRequest or EndRequest, so
// implementing this interface has no effect on request handling.
type RequestHooks interface {
	StartRequest(r *http.Request)
	EndRequest(r *http.Request)
}

// FormatFunc renders one resource in a client-selected representation
// (?format=X). It owns the entire response, including headers and status.
type FormatFunc func(w http.ResponseWriter, wrapper *ResourceWrapper) error

// Formatter backs GET .../<id>?format=X.
type Formatter interface {
	GetFormatter(name string) (FormatFunc, bool)
}

// ActionFunc is a custom POST verb on a resource, not part of the CRUD set.
type ActionFunc func(ctx context.Context, w *ResourceWrapper, body Resource) (any, error)

// Actions backs POST on resource/<action>.
type Actions interface {
	Action(name string) (ActionFunc, bool)
}

// ResourceWrapper is the runtime pairing (manager, id, resource?) threaded into
// ModifyResource/DeleteResource/custom actions, so the callee has both the id
// and (if already fetched) the body without refetching (spec §3).
type ResourceWrapper struct {
	Manager  Manager
	ID       string
	resource Resource
	hasBody  bool
}

func NewResourceWrapper(m Manager, id string) *ResourceWrapper {
	return &ResourceWrapper{Manager: m, ID: id}
}

func (w *ResourceWrapper) WithResource(r Resource) *ResourceWrapper {
	w.resource = r
	w.hasBody = true
	return w
}

// Resource returns the previously-fetched body and whether one was attached.
func (w *ResourceWrapper) Resource() (Resource, bool) {
	return w.resource, w.hasBody
}

// ManagedClass is the tagged union for a manager's managed_class declaration
// (Design Notes §9). NoChildren is the zero value.
type ManagedClass interface {
	isManagedClass()
}

type NoChildren struct{}

func (NoChildren) isManagedClass() {}

// OneChild models an implicit 1:1 relationship: the parent's id already
// identifies the child, so the mount point does not add a path segment
// (append_url=false).
type OneChild struct {
	Name    string
	Factory ManagerFactory
}

func (OneChild) isManagedClass() {}

// ManyChildren mounts each child under its own name/ segment (append_url=true).
type ManyChildren struct {
	Children []NamedFactory
}

func (ManyChildren) isManagedClass() {}

// NamedFactory pairs a managed class's name (used to build its collection's
// prefix and, for ManagedClasses listing, its URL) and constructor.
type NamedFactory struct {
	Name    string
	Factory ManagerFactory
}

// ManagerDecl is the static declaration of one manager class: its name, its
// FieldSet, its constructor, and its managed classes. Unlike Python, Go has no
// classmethods on an interface value, so the service tree builder (component D)
// walks ManagerDecl values, not Manager instances.
type ManagerDecl struct {
	ManagerName  string
	NewFieldSet  func() *fields.FieldSet
	NewManager   ManagerFactory
	Managed      ManagedClass
	Doc          string
}
