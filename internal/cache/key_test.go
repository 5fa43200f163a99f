package cache

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildKey_Deterministic(t *testing.T) {
	a := BuildKey("GET", "/api/v1/recipes", url.Values{"page": {"2"}, "area": {"Thai"}})
	b := BuildKey("get", "/api/v1/recipes/", url.Values{"area": {"Thai"}, "page": {"2"}})

	assert.Equal(t, a, b)
	assert.Equal(t, "GET /api/v1/recipes?area=Thai&page=2", a)
}

func TestBuildKey_RepeatedValuesKeepOrder(t *testing.T) {
	a := BuildKey("GET", "/r", url.Values{"area": {"Mexican", "Italian"}})
	b := BuildKey("GET", "/r", url.Values{"area": {"Italian", "Mexican"}})
	assert.NotEqual(t, a, b)
	assert.Equal(t, "GET /r?area=Mexican&area=Italian", a)
}

func TestBuildKey_DistinguishesQueries(t *testing.T) {
	assert.NotEqual(t,
		BuildKey("GET", "/r", url.Values{"q": {"a&b=c"}}),
		BuildKey("GET", "/r", url.Values{"q": {"a"}, "b": {"c"}}),
	)
	assert.NotEqual(t, BuildKey("GET", "/r", nil), BuildKey("HEAD", "/r", nil))
	assert.Equal(t, "GET /r", BuildKey("GET", "r", url.Values{}))
}

func TestKeyPath(t *testing.T) {
	assert.Equal(t, "/api/v1/recipes", KeyPath("GET /api/v1/recipes?page=1"))
	assert.Equal(t, "/api/v1/recipes/42", KeyPath("GET /api/v1/recipes/42"))
}

func TestPathPrefix(t *testing.T) {
	match := PathPrefix("/api/v1/recipes")

	assert.True(t, match("GET /api/v1/recipes"))
	assert.True(t, match("GET /api/v1/recipes?page=3"))
	assert.True(t, match("GET /api/v1/recipes/42/reviews"))
	assert.False(t, match("GET /api/v1/recipes-archive"))
	assert.False(t, match("GET /api/v1/admin/stats"))

	all := PathPrefix("/")
	assert.True(t, all("GET /anything"))
}
