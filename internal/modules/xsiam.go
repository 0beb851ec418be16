package modules

// XsiamModule exposes the XSIAM content types: scripts, dashboards, biocs,
// correlation searches, widgets, authentication settings, scheduled queries,
// XQL library and RBAC users.
type XsiamModule struct{}

// ID returns the module identifier.
func (*XsiamModule) ID() string { return "xsiam" }

// Name returns the human-readable module name.
func (*XsiamModule) Name() string { return "XSIAM" }

// BaseAPIPath returns the API prefix shared by XSIAM endpoints.
func (*XsiamModule) BaseAPIPath() string { return "/public_api/v1" }

// ContentTypes returns the XSIAM content type table.
func (*XsiamModule) ContentTypes() []ContentType {
	emptyRequest := map[string]any{"request_data": map[string]any{}}
	extendedRequest := map[string]any{"request_data": map[string]any{"extended_view": true}}

	return []ContentType{
		{
			Name:         "dashboards",
			GetEndpoint:  "dashboards/get",
			Strategy:     JSONCollection(),
			IDField:      "global_id",
			RequestBody:  emptyRequest,
			ResponsePath: "objects[0].dashboards_data",
		},
		{
			Name:         "biocs",
			GetEndpoint:  "bioc/get",
			Strategy:     JSONCollection(),
			IDField:      "rule_id",
			RequestBody:  extendedRequest,
			ResponsePath: "objects",
		},
		{
			Name:         "correlation_searches",
			GetEndpoint:  "correlations/get",
			Strategy:     JSONCollection(),
			IDField:      "rule_id",
			RequestBody:  extendedRequest,
			ResponsePath: "objects",
		},
		{
			Name:         "widgets",
			GetEndpoint:  "widgets/get",
			Strategy:     JSONCollection(),
			IDField:      "creation_time",
			RequestBody:  emptyRequest,
			ResponsePath: "objects[0].widgets_data",
		},
		{
			Name:         "authentication_settings",
			GetEndpoint:  "authentication-settings/get/settings",
			Strategy:     JSONCollection(),
			IDField:      "name",
			RequestBody:  emptyRequest,
			ResponsePath: "reply",
		},
		{
			// Scripts need a second call per record: the list endpoint only
			// carries metadata, the code body is fetched by script_uid.
			Name:        "scripts",
			GetEndpoint: "scripts/get_scripts",
			Strategy: ScriptCode(
				"scripts/get_scripts",
				"scripts/get_script_code",
				"reply.scripts",
				"script_uid",
			),
			IDField:     "script_uid",
			RequestBody: emptyRequest,
		},
		{
			Name:         "scheduled_queries",
			GetEndpoint:  "scheduled_queries/list",
			Strategy:     JSONCollection(),
			IDField:      "query_def_id",
			RequestBody:  extendedRequest,
			ResponsePath: "reply.DATA",
		},
		{
			// This endpoint sits at /public_api/xql_library/get (no /v1/).
			Name:         "xql_library",
			GetEndpoint:  "../xql_library/get",
			Strategy:     JSONCollection(),
			IDField:      "id",
			RequestBody:  extendedRequest,
			ResponsePath: "reply.xql_queries",
		},
		{
			Name:         "rbac_users",
			GetEndpoint:  "rbac/get_users",
			Strategy:     JSONCollection(),
			IDField:      "user_email",
			RequestBody:  emptyRequest,
			ResponsePath: "reply",
		},
	}
}
