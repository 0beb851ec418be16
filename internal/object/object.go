// Package object defines the canonical, platform-independent record for one
// remote configuration item and the normalization from raw API items.
package object

import (
	"fmt"
	"time"
)

// DefaultCreatedBy is recorded when the source does not carry an author.
const DefaultCreatedBy = "gcgit"

// Metadata carries bookkeeping fields that are stored but excluded from
// logical comparison.
type Metadata struct {
	CreatedBy string
	Version   string
	CreatedAt *time.Time
	UpdatedAt *time.Time

	// Additional preserves source metadata fields verbatim.
	Additional map[string]any
}

// NewMetadata returns metadata with the gcgit defaults.
func NewMetadata() Metadata {
	return Metadata{
		CreatedBy:  DefaultCreatedBy,
		Version:    "unknown",
		Additional: map[string]any{},
	}
}

// Object is the unit of version control: one normalized remote
// configuration item. Objects are created fresh on every fetch cycle and
// never mutated after construction.
type Object struct {
	// ID is always non-empty after normalization; when the source has no
	// natural key, a timestamp-based fallback is synthesized.
	ID          string
	Name        *string
	Description string
	ContentType string
	Metadata    Metadata

	// TenantID is populated only for authentication_settings.
	TenantID *string

	// Content holds every source field not hoisted to a reserved top-level
	// field, keyed by original field name.
	Content map[string]any
}

// reserved keys hoisted out of Content during normalization.
func isReservedKey(key string) bool {
	switch key {
	case "id", "name", "description", "metadata":
		return true
	}
	return false
}

// FromAPIItem normalizes a raw decoded JSON item into a canonical object.
// Identity and name extraction are content-type aware with ordered fallback
// chains, so the pipeline never fails purely on a missing key.
func FromAPIItem(item map[string]any, contentType string) *Object {
	obj := &Object{
		ContentType: contentType,
		Metadata:    NewMetadata(),
		Content:     map[string]any{},
	}

	obj.ID = extractID(item, contentType)
	obj.Name = extractName(item, contentType)
	if desc, ok := asString(item["description"]); ok {
		obj.Description = desc
	}

	if meta, ok := item["metadata"].(map[string]any); ok {
		obj.Metadata = parseMetadata(meta)
	} else {
		obj.Metadata.CreatedAt = ExtractTimestamp(item, createdAtFields)
		obj.Metadata.UpdatedAt = ExtractTimestamp(item, updatedAtFields)
		obj.Metadata.Version = extractVersion(item)
	}

	if contentType == "authentication_settings" {
		if tenant, ok := asStringOrInt(item["tenant_id"]); ok {
			obj.TenantID = &tenant
		}
	}

	for key, value := range item {
		if isReservedKey(key) {
			continue
		}
		if contentType == "authentication_settings" && key == "tenant_id" {
			continue
		}
		obj.Content[key] = value
	}

	return obj
}

// Validate checks the invariants a parsed or normalized object must satisfy.
func (o *Object) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("object ID is required")
	}
	if o.ContentType == "" {
		return fmt.Errorf("content type is required")
	}
	return nil
}

func extractID(item map[string]any, contentType string) string {
	switch contentType {
	case "correlation_searches", "biocs":
		// Rule-like types carry an integer rule_id as the primary key.
		if id, ok := asInt64(item["rule_id"]); ok {
			return fmt.Sprintf("%d", id)
		}
		if id, ok := asString(item["id"]); ok {
			return id
		}
		return fallbackID("rule")
	case "widgets":
		if id, ok := asInt64(item["creation_time"]); ok {
			return fmt.Sprintf("%d", id)
		}
		for _, field := range []string{"global_id", "widget_id", "id"} {
			if id, ok := asString(item[field]); ok {
				return id
			}
		}
		return fallbackID("widget")
	case "dashboards":
		if id, ok := asString(item["global_id"]); ok {
			return id
		}
		if id, ok := asInt64(item["default_dashboard_id"]); ok {
			return fmt.Sprintf("%d", id)
		}
		for _, field := range []string{"dashboard_id", "id"} {
			if id, ok := asString(item[field]); ok {
				return id
			}
		}
		return fallbackID("dashboard")
	case "authentication_settings":
		for _, field := range []string{"name", "setting_name", "type"} {
			if id, ok := asString(item[field]); ok {
				return id
			}
		}
		return fallbackID("auth_setting")
	default:
		if id, ok := asString(item["id"]); ok {
			return id
		}
		if id, ok := asInt64(item["id"]); ok {
			return fmt.Sprintf("%d", id)
		}
		return fallbackID("object")
	}
}

func fallbackID(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().Unix())
}

func extractName(item map[string]any, contentType string) *string {
	var fields []string
	switch contentType {
	case "widgets":
		fields = []string{"title", "name", "widget_name"}
	case "authentication_settings":
		fields = []string{"name", "setting_name", "type"}
	default:
		fields = []string{"name"}
	}
	for _, field := range fields {
		if name, ok := asString(item[field]); ok {
			return &name
		}
	}
	return nil
}

func extractVersion(item map[string]any) string {
	for _, field := range []string{"version", "rule_version", "object_version", "schema_version"} {
		if v, ok := asString(item[field]); ok {
			return v
		}
	}
	return "1.0"
}

func parseMetadata(meta map[string]any) Metadata {
	md := NewMetadata()
	for key, value := range meta {
		switch key {
		case "created_by":
			if s, ok := asString(value); ok {
				md.CreatedBy = s
			}
		case "version":
			if s, ok := asString(value); ok {
				md.Version = s
			}
		case "created_at":
			md.CreatedAt = coerceTimestamp(value)
		case "updated_at":
			md.UpdatedAt = coerceTimestamp(value)
		default:
			md.Additional[key] = value
		}
	}
	return md
}
