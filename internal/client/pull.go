package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/gocortexio/gcgit/internal/archive"
	"github.com/gocortexio/gcgit/internal/logger"
	"github.com/gocortexio/gcgit/internal/modules"
	"github.com/gocortexio/gcgit/internal/object"
)

// maxPages bounds paginated pulls so an endpoint that never returns an
// empty page cannot loop forever.
const maxPages = 1000

// emptyRequest is the body sent on list/metadata calls that take no filter.
var emptyRequest = map[string]any{"request_data": map[string]any{}}

// PullContentType fetches all objects of one content type using its
// configured strategy. The call is self-contained: it either returns the
// normalized objects or an error for the whole content type. Per-item
// failures inside two-phase strategies are logged and skipped.
func (c *Client) PullContentType(ctx context.Context, ct modules.ContentType) ([]*object.Object, error) {
	switch ct.Strategy.Kind {
	case modules.StrategyJSONCollection:
		return c.pullJSONCollection(ctx, ct)
	case modules.StrategyPaginated:
		return c.pullPaginated(ctx, ct)
	case modules.StrategyOffsetPaginated:
		return c.pullOffsetPaginated(ctx, ct)
	case modules.StrategyZipArtifact:
		return c.pullZipArtifact(ctx, ct)
	case modules.StrategyScriptCode:
		return c.pullScriptCode(ctx, ct)
	default:
		return nil, fmt.Errorf("unknown pull strategy %s for %s", ct.Strategy.Kind, ct.Name)
	}
}

// GetObjectByID pulls the content type and searches for a matching object,
// checking both the normalized ID and the content type's own ID field.
func (c *Client) GetObjectByID(ctx context.Context, ct modules.ContentType, id string) (*object.Object, error) {
	objects, err := c.PullContentType(ctx, ct)
	if err != nil {
		return nil, err
	}

	for _, obj := range objects {
		if obj.ID == id {
			return obj, nil
		}
		if fieldID, ok := stringOrIntField(obj.Content, ct.IDField); ok && fieldID == id {
			return obj, nil
		}
	}

	return nil, fmt.Errorf("object with ID %s not found in %s response", id, ct.Name)
}

// pullJSONCollection issues a single call (POST when the descriptor carries
// a request body, GET otherwise) and normalizes the item array.
func (c *Client) pullJSONCollection(ctx context.Context, ct modules.ContentType) ([]*object.Object, error) {
	url := c.endpointURL(ct.GetEndpoint)

	var body []byte
	var err error
	if ct.RequestBody != nil {
		body, err = c.postJSON(ctx, url, ct.RequestBody)
	} else {
		body, err = c.get(ctx, url)
	}
	if err != nil {
		return nil, err
	}

	items, err := c.extractItems(body, ct)
	if err != nil {
		return nil, err
	}
	return normalizeItems(items, ct.Name), nil
}

// pullPaginated repeats a GET with an incrementing page number, stopping at
// the first empty page. Pages are strictly ordered; nothing is parallel.
func (c *Client) pullPaginated(ctx context.Context, ct modules.ContentType) ([]*object.Object, error) {
	var all []*object.Object
	s := ct.Strategy

	for page := 1; ; page++ {
		if page > maxPages {
			return nil, fmt.Errorf("%s: pagination exceeded %d pages without an empty page", ct.Name, maxPages)
		}

		url := fmt.Sprintf("%s?%s=%d&%s=%d", c.endpointURL(ct.GetEndpoint), s.PageParam, page, s.PageSizeParam, s.PageSize)
		body, err := c.get(ctx, url)
		if err != nil {
			return nil, err
		}

		items, err := c.extractItems(body, ct)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			break
		}
		all = append(all, normalizeItems(items, ct.Name)...)
	}

	return all, nil
}

// pullOffsetPaginated repeats a GET with a numeric offset advanced by the
// page size each round, stopping at the first empty page.
func (c *Client) pullOffsetPaginated(ctx context.Context, ct modules.ContentType) ([]*object.Object, error) {
	var all []*object.Object
	s := ct.Strategy

	for page, offset := 1, 0; ; page, offset = page+1, offset+s.PageSize {
		if page > maxPages {
			return nil, fmt.Errorf("%s: pagination exceeded %d pages without an empty page", ct.Name, maxPages)
		}

		url := fmt.Sprintf("%s?%s=%d&%s=%d", c.endpointURL(ct.GetEndpoint), s.OffsetParam, offset, s.LimitParam, s.PageSize)
		body, err := c.get(ctx, url)
		if err != nil {
			return nil, err
		}

		items, err := c.extractItems(body, ct)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			break
		}
		all = append(all, normalizeItems(items, ct.Name)...)
	}

	return all, nil
}

// pullZipArtifact lists metadata records, then downloads and unpacks one
// ZIP archive per record. The embedded YAML fields are merged with the
// record's own fields; the record wins on collision except for the identity
// field, which is fixed to the resolved id. Per-record download failures
// are warnings, not failures of the whole pull.
func (c *Client) pullZipArtifact(ctx context.Context, ct modules.ContentType) ([]*object.Object, error) {
	s := ct.Strategy

	records, err := c.listRecords(ctx, s.MetadataEndpoint, s.MetadataResponsePath)
	if err != nil {
		return nil, err
	}

	var objects []*object.Object
	for _, record := range records {
		name, ok := record["name"].(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("%s metadata record missing name field", ct.Name)
		}

		id, ok := stringOrIntField(record, ct.IDField)
		if !ok {
			id = name
		}

		yamlContent, err := c.downloadArtifact(ctx, s.DownloadEndpoint, s.DownloadFilterField, name)
		if err != nil {
			logger.Warnf("Failed to download %s %q: %v", ct.Name, name, err)
			continue
		}

		content := map[string]any{}
		var unpacked map[string]any
		if err := yaml.Unmarshal([]byte(yamlContent), &unpacked); err == nil {
			for key, value := range unpacked {
				if key == "name" || key == "description" || key == ct.IDField {
					continue
				}
				content[key] = value
			}
		}
		content[ct.IDField] = id
		for key, value := range record {
			if key == "name" || key == "description" {
				continue
			}
			content[key] = value
		}

		objects = append(objects, buildRecordObject(record, ct.Name, id, name, content))
	}

	return objects, nil
}

// pullScriptCode lists script records, then fetches the code body for each
// record by its UID. The code is stored under a fixed "code" key with
// escaped newline sequences unescaped. Per-record code failures are
// warnings, not failures of the whole pull.
func (c *Client) pullScriptCode(ctx context.Context, ct modules.ContentType) ([]*object.Object, error) {
	s := ct.Strategy

	records, err := c.listRecords(ctx, s.ListEndpoint, s.ListResponsePath)
	if err != nil {
		return nil, err
	}

	var objects []*object.Object
	for _, record := range records {
		uid, ok := record[s.UIDField].(string)
		if !ok || uid == "" {
			return nil, fmt.Errorf("%s record missing %s field", ct.Name, s.UIDField)
		}

		name, ok := record["name"].(string)
		if !ok || name == "" {
			name = uid
		}

		code, err := c.getScriptCode(ctx, s.CodeEndpoint, s.UIDField, uid)
		if err != nil {
			logger.Warnf("Failed to get code for script %q: %v", name, err)
			continue
		}

		content := map[string]any{"code": code}
		for key, value := range record {
			if key == "name" || key == "description" || key == s.UIDField {
				continue
			}
			content[key] = value
		}

		objects = append(objects, buildRecordObject(record, ct.Name, uid, name, content))
	}

	return objects, nil
}

// listRecords performs the controlling list/metadata call of a two-phase
// strategy. A missing or non-array path here aborts the content type.
func (c *Client) listRecords(ctx context.Context, endpoint, responsePath string) ([]map[string]any, error) {
	body, err := c.postJSON(ctx, c.endpointURL(endpoint), emptyRequest)
	if err != nil {
		return nil, err
	}

	doc, err := parseBody(body)
	if err != nil {
		return nil, err
	}

	resolved, err := ResolvePath(doc, responsePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %q: %w", responsePath, err)
	}
	if !resolved.IsArray() {
		return nil, fmt.Errorf("expected array at path %q", responsePath)
	}

	return resultToItems(resolved), nil
}

// downloadArtifact fetches one ZIP artifact filtered by field=value and
// returns its embedded YAML payload.
func (c *Client) downloadArtifact(ctx context.Context, endpoint, filterField, filterValue string) (string, error) {
	body := map[string]any{
		"request_data": map[string]any{
			"filters": []map[string]any{
				{"field": filterField, "value": filterValue},
			},
		},
	}

	zipBytes, err := c.postJSON(ctx, c.endpointURL(endpoint), body)
	if err != nil {
		return "", err
	}

	yamlContent, err := archive.ExtractYAML(zipBytes)
	if err != nil {
		return "", fmt.Errorf("failed to extract YAML from artifact %q: %w", filterValue, err)
	}
	return yamlContent, nil
}

// getScriptCode fetches a script body by UID. Escaped newline sequences are
// converted to literal newlines for readable files.
func (c *Client) getScriptCode(ctx context.Context, endpoint, uidField, uid string) (string, error) {
	body := map[string]any{
		"request_data": map[string]any{uidField: uid},
	}

	respBody, err := c.postJSON(ctx, c.endpointURL(endpoint), body)
	if err != nil {
		return "", err
	}

	doc, err := parseBody(respBody)
	if err != nil {
		return "", err
	}

	reply := doc.Get("reply")
	if reply.Type != gjson.String {
		return "", fmt.Errorf("script code response missing 'reply' field")
	}

	return strings.ReplaceAll(reply.String(), "\\n", "\n"), nil
}

// extractItems locates the item array in a response body. A missing path or
// non-array value is not a hard failure: an empty remote collection is a
// legitimate steady state, so the result degrades to empty with a warning
// that distinguishes "no data" from "endpoint shape may have changed".
func (c *Client) extractItems(body []byte, ct modules.ContentType) ([]map[string]any, error) {
	doc, err := parseBody(body)
	if err != nil {
		return nil, err
	}

	if ct.ResponsePath != "" {
		resolved, err := ResolvePath(doc, ct.ResponsePath)
		if err != nil {
			logger.Warnf("Response path %q not found for %s. This could mean the endpoint has no data, or the API response structure has changed.",
				ct.ResponsePath, ct.Name)
			return nil, nil
		}
		if !resolved.IsArray() {
			logger.Warnf("Response path %q for %s exists but is not an array. Endpoint may have changed structure or returned an error.",
				ct.ResponsePath, ct.Name)
			return nil, nil
		}
		return resultToItems(resolved), nil
	}

	if !doc.IsArray() {
		logger.Warnf("Expected array at response root for %s but found %s. API response structure may have changed.",
			ct.Name, doc.Type)
		return nil, nil
	}
	return resultToItems(doc), nil
}

// parseBody validates and parses a JSON response body.
func parseBody(body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("failed to parse response as JSON")
	}
	return gjson.ParseBytes(body), nil
}

// resultToItems converts a gjson array into raw item maps. Non-object
// elements normalize with empty content rather than failing the pull.
func resultToItems(arr gjson.Result) []map[string]any {
	elements := arr.Array()
	items := make([]map[string]any, 0, len(elements))
	for _, el := range elements {
		if m, ok := el.Value().(map[string]any); ok {
			items = append(items, m)
		} else {
			items = append(items, map[string]any{})
		}
	}
	return items
}

func normalizeItems(items []map[string]any, contentType string) []*object.Object {
	objects := make([]*object.Object, 0, len(items))
	for _, item := range items {
		objects = append(objects, object.FromAPIItem(item, contentType))
	}
	return objects
}

// buildRecordObject assembles a canonical object for two-phase strategies,
// where identity, name and metadata come from the listing record.
func buildRecordObject(record map[string]any, contentType, id, name string, content map[string]any) *object.Object {
	md := object.NewMetadata()
	if createdBy, ok := record["created_by"].(string); ok && createdBy != "" {
		md.CreatedBy = createdBy
	}
	md.UpdatedAt = object.ExtractTimestamp(record, []string{"modification_date", "modification_time"})

	description := ""
	if d, ok := record["description"].(string); ok {
		description = d
	}

	nameCopy := name
	return &object.Object{
		ID:          id,
		Name:        &nameCopy,
		Description: description,
		ContentType: contentType,
		Metadata:    md,
		Content:     content,
	}
}

// stringOrIntField reads a field that may be a string or an integer,
// rendering integers in base 10.
func stringOrIntField(m map[string]any, field string) (string, bool) {
	switch v := m[field].(type) {
	case string:
		if v != "" {
			return v, true
		}
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v)), true
		}
	case int64:
		return fmt.Sprintf("%d", v), true
	case int:
		return fmt.Sprintf("%d", v), true
	}
	return "", false
}
