package modules_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocortexio/gcgit/internal/modules"
)

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	registry := modules.NewRegistry()

	all := registry.All()
	require.Len(t, all, 2)
	assert.Equal(t, "xsiam", all[0].ID())
	assert.Equal(t, "appsec", all[1].ID())

	assert.NotNil(t, registry.Get("xsiam"))
	assert.NotNil(t, registry.Get("appsec"))
	assert.Nil(t, registry.Get("nope"))
}

func TestModuleBasePaths(t *testing.T) {
	t.Parallel()

	registry := modules.NewRegistry()
	assert.Equal(t, "/public_api/v1", registry.Get("xsiam").BaseAPIPath())
	assert.Equal(t, "/public_api", registry.Get("appsec").BaseAPIPath())
}

func TestXsiamContentTypes(t *testing.T) {
	t.Parallel()

	mod := modules.NewRegistry().Get("xsiam")
	byName := map[string]modules.ContentType{}
	for _, ct := range mod.ContentTypes() {
		byName[ct.Name] = ct
	}

	expected := []string{
		"dashboards", "biocs", "correlation_searches", "widgets",
		"authentication_settings", "scripts", "scheduled_queries",
		"xql_library", "rbac_users",
	}
	require.Len(t, byName, len(expected))
	for _, name := range expected {
		assert.Contains(t, byName, name)
	}

	dashboards := byName["dashboards"]
	assert.Equal(t, modules.StrategyJSONCollection, dashboards.Strategy.Kind)
	assert.Equal(t, "objects[0].dashboards_data", dashboards.ResponsePath)
	assert.Equal(t, "global_id", dashboards.IDField)

	scripts := byName["scripts"]
	assert.Equal(t, modules.StrategyScriptCode, scripts.Strategy.Kind)
	assert.Equal(t, "reply.scripts", scripts.Strategy.ListResponsePath)
	assert.Equal(t, "script_uid", scripts.Strategy.UIDField)

	xql := byName["xql_library"]
	assert.Equal(t, "../xql_library/get", xql.GetEndpoint)
}

func TestAppSecContentTypes(t *testing.T) {
	t.Parallel()

	mod := modules.NewRegistry().Get("appsec")
	byName := map[string]modules.ContentType{}
	for _, ct := range mod.ContentTypes() {
		byName[ct.Name] = ct
	}

	require.Len(t, byName, 5)

	applications := byName["applications"]
	assert.Equal(t, modules.StrategyPaginated, applications.Strategy.Kind)
	assert.Equal(t, "page", applications.Strategy.PageParam)
	assert.Equal(t, 100, applications.Strategy.PageSize)

	rules := byName["rules"]
	assert.Equal(t, modules.StrategyOffsetPaginated, rules.Strategy.Kind)
	assert.Equal(t, "offset", rules.Strategy.OffsetParam)
	assert.Equal(t, "limit", rules.Strategy.LimitParam)
}

// Every descriptor's strategy variant must carry only its own parameters:
// the variant fully determines which call sequence is legal.
func TestDescriptorStrategyConsistency(t *testing.T) {
	t.Parallel()

	for _, mod := range modules.NewRegistry().All() {
		for _, ct := range mod.ContentTypes() {
			s := ct.Strategy
			switch s.Kind {
			case modules.StrategyJSONCollection:
				assert.Empty(t, s.PageParam, "%s/%s", mod.ID(), ct.Name)
				assert.Empty(t, s.MetadataEndpoint, "%s/%s", mod.ID(), ct.Name)
				assert.Empty(t, s.ListEndpoint, "%s/%s", mod.ID(), ct.Name)
			case modules.StrategyPaginated:
				assert.NotEmpty(t, s.PageParam, "%s/%s", mod.ID(), ct.Name)
				assert.NotEmpty(t, s.PageSizeParam, "%s/%s", mod.ID(), ct.Name)
				assert.Positive(t, s.PageSize, "%s/%s", mod.ID(), ct.Name)
			case modules.StrategyOffsetPaginated:
				assert.NotEmpty(t, s.OffsetParam, "%s/%s", mod.ID(), ct.Name)
				assert.NotEmpty(t, s.LimitParam, "%s/%s", mod.ID(), ct.Name)
				assert.Positive(t, s.PageSize, "%s/%s", mod.ID(), ct.Name)
			case modules.StrategyZipArtifact:
				assert.NotEmpty(t, s.MetadataEndpoint, "%s/%s", mod.ID(), ct.Name)
				assert.NotEmpty(t, s.DownloadEndpoint, "%s/%s", mod.ID(), ct.Name)
				assert.NotEmpty(t, s.DownloadFilterField, "%s/%s", mod.ID(), ct.Name)
			case modules.StrategyScriptCode:
				assert.NotEmpty(t, s.ListEndpoint, "%s/%s", mod.ID(), ct.Name)
				assert.NotEmpty(t, s.CodeEndpoint, "%s/%s", mod.ID(), ct.Name)
				assert.NotEmpty(t, s.UIDField, "%s/%s", mod.ID(), ct.Name)
			}

			assert.NotEmpty(t, ct.Name)
			assert.NotEmpty(t, ct.IDField, "%s/%s", mod.ID(), ct.Name)
		}
	}
}

func TestValidateContentType(t *testing.T) {
	t.Parallel()

	registry := modules.NewRegistry()

	require.NoError(t, registry.ValidateContentType("xsiam", "dashboards"))
	require.NoError(t, registry.ValidateContentType("appsec", "policies"))

	err := registry.ValidateContentType("xsiam", "policies")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown content type")

	err = registry.ValidateContentType("nope", "dashboards")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown module")
}

func TestStrategyKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "json-collection", modules.StrategyJSONCollection.String())
	assert.Equal(t, "paginated", modules.StrategyPaginated.String())
	assert.Equal(t, "offset-paginated", modules.StrategyOffsetPaginated.String())
	assert.Equal(t, "zip-artifact", modules.StrategyZipArtifact.String())
	assert.Equal(t, "script-code", modules.StrategyScriptCode.String())
}
