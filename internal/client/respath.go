package client

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ResolvePath navigates a parsed JSON document along a `.`-separated path.
// Each segment is a field name with optional `name[index]` array indexing.
// There are no wildcards and no recursive descent: exactly one hop per
// segment. Errors identify the segment or index that failed to resolve.
//
// Examples: "reply", "reply.scripts", "objects[0].dashboards_data".
func ResolvePath(doc gjson.Result, path string) (gjson.Result, error) {
	current := doc

	for _, segment := range strings.Split(path, ".") {
		field := segment
		index := -1

		if open := strings.IndexByte(segment, '['); open >= 0 && strings.HasSuffix(segment, "]") {
			field = segment[:open]
			idxStr := segment[open+1 : len(segment)-1]
			parsed, err := strconv.Atoi(idxStr)
			if err != nil {
				return gjson.Result{}, fmt.Errorf("invalid array index %q in path %q", idxStr, path)
			}
			index = parsed
		}

		if field != "" {
			next := current.Get(escapeGJSONKey(field))
			if !next.Exists() {
				return gjson.Result{}, fmt.Errorf("path segment %q not found", field)
			}
			current = next
		}

		if index >= 0 {
			arr := current.Array()
			if !current.IsArray() || index >= len(arr) {
				return gjson.Result{}, fmt.Errorf("array index %d not found", index)
			}
			current = arr[index]
		}
	}

	return current, nil
}

// escapeGJSONKey quotes characters gjson would otherwise treat as path
// syntax, so field names are matched literally.
func escapeGJSONKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '\\', '|', '#', '@':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
