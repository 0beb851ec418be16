// Package store renders canonical objects into byte-stable YAML files under
// the instance directory and reads them back for drift comparison.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gocortexio/gcgit/internal/object"
)

// Store reads and writes object files below one instance directory.
type Store struct {
	root string
}

// New returns a store rooted at the instance directory.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the instance directory the store operates on.
func (s *Store) Root() string {
	return s.root
}

// FileName derives the on-disk name for an object: the sanitized object name
// when one exists, otherwise "<type>_id_<id>" with the content type's plural
// "s" trimmed.
func FileName(obj *object.Object) string {
	if obj.Name != nil && strings.TrimSpace(*obj.Name) != "" {
		return sanitizeFileName(*obj.Name) + ".yaml"
	}
	singular := strings.TrimSuffix(obj.ContentType, "s")
	return fmt.Sprintf("%s_id_%s.yaml", singular, sanitizeFileName(obj.ID))
}

// sanitizeFileName replaces spaces and path separators so names cannot
// escape the content-type directory.
func sanitizeFileName(name string) string {
	r := strings.NewReplacer(" ", "_", "/", "_", "\\", "_")
	return r.Replace(name)
}

// ObjectPath returns the file path for an object, relative to the store root:
// {module}/{contentType}/{file}.yaml.
func ObjectPath(moduleID string, obj *object.Object) string {
	return filepath.Join(moduleID, obj.ContentType, FileName(obj))
}

// WriteObject serializes the object and writes it below the store root,
// creating directories as needed. The relative path written is returned for
// the caller's Git bookkeeping.
func (s *Store) WriteObject(moduleID string, obj *object.Object) (string, error) {
	relPath := ObjectPath(moduleID, obj)
	fullPath := filepath.Join(s.root, relPath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", relPath, err)
	}

	data, err := Serialize(obj)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", relPath, err)
	}
	return relPath, nil
}

// ReadObject parses an object file. The content type is taken from the file
// itself, falling back to the parent directory name per the instance layout.
func (s *Store) ReadObject(relPath string) (*object.Object, error) {
	fullPath := filepath.Join(s.root, relPath)
	data, err := os.ReadFile(fullPath) // #nosec G304 - path is instance-local
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", relPath, err)
	}

	obj, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", relPath, err)
	}
	if obj.ContentType == "" {
		obj.ContentType = filepath.Base(filepath.Dir(relPath))
	}
	if err := obj.Validate(); err != nil {
		return nil, fmt.Errorf("invalid object in %s: %w", relPath, err)
	}
	return obj, nil
}

// ListObjectFiles returns the relative paths of all object files for the
// given content types of one module. Missing directories are not an error;
// an instance that has never pulled a content type simply has no files.
func (s *Store) ListObjectFiles(moduleID string, contentTypes []string) ([]string, error) {
	var files []string
	for _, ct := range contentTypes {
		dir := filepath.Join(s.root, moduleID, ct)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ext := filepath.Ext(entry.Name())
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			files = append(files, filepath.Join(moduleID, ct, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Serialize renders an object with a fixed field order: id, name (when
// present), description, content_type, tenant_id (when present), metadata,
// then every content key in lexicographic order. The total ordering keeps
// repeated pulls of unchanged remote data from producing spurious Git diffs
// when the API returns fields in a different order between calls.
func Serialize(obj *object.Object) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}

	appendScalar(root, "id", obj.ID)
	if obj.Name != nil {
		appendScalar(root, "name", *obj.Name)
	}
	appendScalar(root, "description", obj.Description)
	appendScalar(root, "content_type", obj.ContentType)
	if obj.TenantID != nil {
		appendScalar(root, "tenant_id", *obj.TenantID)
	}

	metaNode, err := metadataNode(obj.Metadata)
	if err != nil {
		return nil, err
	}
	appendEntry(root, "metadata", metaNode)

	if err := appendSortedMap(root, obj.Content); err != nil {
		return nil, err
	}

	return yaml.Marshal(root)
}

// SerializeContent renders only the content map with the same lexicographic
// key rule. Logical equality compares this form, so metadata never leaks
// into drift decisions.
func SerializeContent(content map[string]any) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	if err := appendSortedMap(root, content); err != nil {
		return nil, err
	}
	return yaml.Marshal(root)
}

// LogicallyEqual reports whether two objects are functionally identical:
// same id, name, description and content type, and byte-identical serialized
// content. Metadata is deliberately excluded, so objects fetched at
// different times with different updatedAt stamps still compare equal.
func LogicallyEqual(a, b *object.Object) (bool, error) {
	if a.ID != b.ID || a.Description != b.Description || a.ContentType != b.ContentType {
		return false, nil
	}
	if (a.Name == nil) != (b.Name == nil) {
		return false, nil
	}
	if a.Name != nil && *a.Name != *b.Name {
		return false, nil
	}

	aContent, err := SerializeContent(a.Content)
	if err != nil {
		return false, err
	}
	bContent, err := SerializeContent(b.Content)
	if err != nil {
		return false, err
	}
	return string(aContent) == string(bContent), nil
}

// Parse reconstructs an object from its serialized form.
func Parse(data []byte) (*object.Object, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	obj := &object.Object{
		Metadata: object.NewMetadata(),
		Content:  map[string]any{},
	}

	for key, value := range raw {
		switch key {
		case "id":
			if s, ok := scalarString(value); ok {
				obj.ID = s
			}
		case "name":
			if s, ok := scalarString(value); ok {
				name := s
				obj.Name = &name
			}
		case "description":
			if s, ok := value.(string); ok {
				obj.Description = s
			}
		case "content_type":
			if s, ok := value.(string); ok {
				obj.ContentType = s
			}
		case "tenant_id":
			if s, ok := scalarString(value); ok {
				tenant := s
				obj.TenantID = &tenant
			}
		case "metadata":
			if m, ok := value.(map[string]any); ok {
				obj.Metadata = parseMetadataMap(m)
			}
		default:
			obj.Content[key] = value
		}
	}

	return obj, nil
}

func parseMetadataMap(m map[string]any) object.Metadata {
	md := object.NewMetadata()
	for key, value := range m {
		switch key {
		case "created_by":
			if s, ok := value.(string); ok {
				md.CreatedBy = s
			}
		case "version":
			if s, ok := scalarString(value); ok {
				md.Version = s
			}
		case "created_at":
			md.CreatedAt = parseTimeValue(value)
		case "updated_at":
			md.UpdatedAt = parseTimeValue(value)
		default:
			md.Additional[key] = value
		}
	}
	return md
}

// parseTimeValue accepts both the RFC3339 strings we write and the time.Time
// values the YAML decoder produces for timestamp-tagged scalars.
func parseTimeValue(value any) *time.Time {
	switch v := value.(type) {
	case time.Time:
		t := v.UTC()
		return &t
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func scalarString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		if v != "" {
			return v, true
		}
	case int:
		return fmt.Sprintf("%d", v), true
	case int64:
		return fmt.Sprintf("%d", v), true
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v)), true
		}
	}
	return "", false
}

func metadataNode(md object.Metadata) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	appendScalar(node, "created_by", md.CreatedBy)
	appendScalar(node, "version", md.Version)
	if md.CreatedAt != nil {
		appendScalar(node, "created_at", md.CreatedAt.UTC().Format(time.RFC3339))
	}
	if md.UpdatedAt != nil {
		appendScalar(node, "updated_at", md.UpdatedAt.UTC().Format(time.RFC3339))
	}
	if err := appendSortedMap(node, md.Additional); err != nil {
		return nil, err
	}
	return node, nil
}

// appendSortedMap adds every key of m to the mapping node in lexicographic
// order, recursively sorting nested maps.
func appendSortedMap(node *yaml.Node, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		valNode, err := valueNode(m[key])
		if err != nil {
			return err
		}
		appendEntry(node, key, valNode)
	}
	return nil
}

// valueNode converts an arbitrary decoded value to a YAML node. Maps are
// sorted at every level and whole floats are rendered as integers, so values
// decoded from JSON and values re-read from YAML serialize identically.
func valueNode(value any) (*yaml.Node, error) {
	switch v := value.(type) {
	case map[string]any:
		node := &yaml.Node{Kind: yaml.MappingNode}
		if err := appendSortedMap(node, v); err != nil {
			return nil, err
		}
		return node, nil
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode}
		for _, el := range v {
			child, err := valueNode(el)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, child)
		}
		return node, nil
	case float64:
		if v == float64(int64(v)) {
			return scalarNode(int64(v))
		}
		return scalarNode(v)
	default:
		return scalarNode(v)
	}
}

func scalarNode(value any) (*yaml.Node, error) {
	node := &yaml.Node{}
	if err := node.Encode(value); err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}
	return node, nil
}

func appendScalar(node *yaml.Node, key, value string) {
	// Encode never fails for a string and picks quoting that survives
	// re-parsing (empty strings, colons, leading specials).
	valNode := &yaml.Node{}
	_ = valNode.Encode(value)
	appendEntry(node, key, valNode)
}

func appendEntry(node *yaml.Node, key string, value *yaml.Node) {
	keyNode := &yaml.Node{}
	_ = keyNode.Encode(key)
	node.Content = append(node.Content, keyNode, value)
}
