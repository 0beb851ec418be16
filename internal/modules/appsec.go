package modules

// AppSecModule exposes the Application Security content types: applications,
// policies, rules, repositories and integrations.
type AppSecModule struct{}

// ID returns the module identifier.
func (*AppSecModule) ID() string { return "appsec" }

// Name returns the human-readable module name.
func (*AppSecModule) Name() string { return "Application Security" }

// BaseAPIPath returns the API prefix shared by AppSec endpoints.
func (*AppSecModule) BaseAPIPath() string { return "/public_api" }

// ContentTypes returns the AppSec content type table.
func (*AppSecModule) ContentTypes() []ContentType {
	return []ContentType{
		{
			Name:         "applications",
			GetEndpoint:  "appsec/v1/application",
			Strategy:     Paginated("page", "pageSize", 100),
			IDField:      "id",
			ResponsePath: "data",
		},
		{
			// Returns an array at the document root.
			Name:        "policies",
			GetEndpoint: "appsec/v1/policies",
			Strategy:    JSONCollection(),
			IDField:     "id",
		},
		{
			// The endpoint reports an "offset" cursor alongside the rules
			// array, so it is fetched with offset/limit pagination. This
			// assumes the endpoint honors the cursor; one that ignores it
			// and re-serves the full list would hit the page ceiling.
			Name:         "rules",
			GetEndpoint:  "appsec/v1/rules",
			Strategy:     OffsetPaginated("offset", "limit", 100),
			IDField:      "id",
			ResponsePath: "rules",
		},
		{
			Name:        "repositories",
			GetEndpoint: "appsec/v1/repositories",
			Strategy:    JSONCollection(),
			IDField:     "assetId",
		},
		{
			Name:        "integrations",
			GetEndpoint: "appsec/v1/integrations",
			Strategy:    JSONCollection(),
			IDField:     "id",
		},
	}
}
