// Package modules defines the Cortex module system: each platform module
// (XSIAM, AppSec) declares the content types it exposes and how every
// content type is pulled from the remote API.
package modules

import "fmt"

// StrategyKind identifies which pull algorithm a content type uses.
type StrategyKind int

const (
	// StrategyJSONCollection is a single call returning all items.
	StrategyJSONCollection StrategyKind = iota

	// StrategyPaginated repeats a GET with an incrementing page number
	// until an empty page is returned.
	StrategyPaginated

	// StrategyOffsetPaginated repeats a GET with a numeric offset advanced
	// by the page size until an empty page is returned.
	StrategyOffsetPaginated

	// StrategyZipArtifact lists metadata records, then downloads a ZIP
	// archive per record and extracts its embedded YAML payload.
	StrategyZipArtifact

	// StrategyScriptCode lists script records, then fetches the code body
	// for each record by its UID.
	StrategyScriptCode
)

// String returns the strategy name used in logs.
func (k StrategyKind) String() string {
	switch k {
	case StrategyJSONCollection:
		return "json-collection"
	case StrategyPaginated:
		return "paginated"
	case StrategyOffsetPaginated:
		return "offset-paginated"
	case StrategyZipArtifact:
		return "zip-artifact"
	case StrategyScriptCode:
		return "script-code"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// PullStrategy is a closed tagged union: Kind selects the variant and only
// that variant's parameter fields are meaningful. The variant is fixed at
// registry construction time.
type PullStrategy struct {
	Kind StrategyKind

	// Paginated / OffsetPaginated parameters
	PageParam     string
	PageSizeParam string
	OffsetParam   string
	LimitParam    string
	PageSize      int

	// ZipArtifact parameters
	MetadataEndpoint     string
	DownloadEndpoint     string
	MetadataResponsePath string
	DownloadFilterField  string

	// ScriptCode parameters
	ListEndpoint     string
	CodeEndpoint     string
	ListResponsePath string
	UIDField         string
}

// JSONCollection returns the single-call strategy.
func JSONCollection() PullStrategy {
	return PullStrategy{Kind: StrategyJSONCollection}
}

// Paginated returns a page-number pagination strategy.
func Paginated(pageParam, pageSizeParam string, pageSize int) PullStrategy {
	return PullStrategy{
		Kind:          StrategyPaginated,
		PageParam:     pageParam,
		PageSizeParam: pageSizeParam,
		PageSize:      pageSize,
	}
}

// OffsetPaginated returns an offset-cursor pagination strategy.
func OffsetPaginated(offsetParam, limitParam string, pageSize int) PullStrategy {
	return PullStrategy{
		Kind:        StrategyOffsetPaginated,
		OffsetParam: offsetParam,
		LimitParam:  limitParam,
		PageSize:    pageSize,
	}
}

// ZipArtifact returns the two-step metadata-then-archive strategy.
func ZipArtifact(metadataEndpoint, downloadEndpoint, metadataResponsePath, downloadFilterField string) PullStrategy {
	return PullStrategy{
		Kind:                 StrategyZipArtifact,
		MetadataEndpoint:     metadataEndpoint,
		DownloadEndpoint:     downloadEndpoint,
		MetadataResponsePath: metadataResponsePath,
		DownloadFilterField:  downloadFilterField,
	}
}

// ScriptCode returns the two-step list-then-code strategy.
func ScriptCode(listEndpoint, codeEndpoint, listResponsePath, uidField string) PullStrategy {
	return PullStrategy{
		Kind:             StrategyScriptCode,
		ListEndpoint:     listEndpoint,
		CodeEndpoint:     codeEndpoint,
		ListResponsePath: listResponsePath,
		UIDField:         uidField,
	}
}

// ContentType describes one category of remote configuration object: where
// to fetch it, how to identify items, and which pull strategy applies.
// Instances are immutable after registry construction.
type ContentType struct {
	// Name is used for storage directories and CLI output (e.g. "dashboards").
	Name string

	// GetEndpoint is the retrieval endpoint relative to the module base path.
	GetEndpoint string

	// Strategy selects the pull algorithm for this content type.
	Strategy PullStrategy

	// IDField is the field carrying the unique ID in API responses.
	IDField string

	// RequestBody, when non-nil, makes the retrieval call a POST with this body.
	RequestBody map[string]any

	// ResponsePath optionally locates the item array inside the response
	// envelope (e.g. "reply", "objects[0].dashboards_data").
	ResponsePath string
}

// Module is the contract every platform module implements.
type Module interface {
	// ID is the module identifier used in CLI commands and config
	// [modules.<id>] blocks (e.g. "xsiam").
	ID() string

	// Name is the human-readable module name.
	Name() string

	// BaseAPIPath is the API prefix for this module (e.g. "/public_api/v1").
	BaseAPIPath() string

	// ContentTypes returns all content types supported by this module.
	ContentTypes() []ContentType
}

// Registry holds all available modules. It is built once at startup and
// read-only afterwards.
type Registry struct {
	modules map[string]Module
	order   []string
}

// NewRegistry loads all registered modules.
func NewRegistry() *Registry {
	r := &Registry{modules: make(map[string]Module)}
	r.register(&XsiamModule{})
	r.register(&AppSecModule{})
	return r
}

func (r *Registry) register(m Module) {
	r.modules[m.ID()] = m
	r.order = append(r.order, m.ID())
}

// Get returns the module with the given ID, or nil if not registered.
func (r *Registry) Get(id string) Module {
	return r.modules[id]
}

// All returns every registered module in registration order.
func (r *Registry) All() []Module {
	out := make([]Module, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.modules[id])
	}
	return out
}

// ValidateContentType reports whether name is a content type of module id.
func (r *Registry) ValidateContentType(moduleID, name string) error {
	m := r.Get(moduleID)
	if m == nil {
		return fmt.Errorf("unknown module: %s", moduleID)
	}
	for _, ct := range m.ContentTypes() {
		if ct.Name == name {
			return nil
		}
	}
	return fmt.Errorf("unknown content type %q for module %s", name, moduleID)
}
