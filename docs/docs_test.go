package docs

import (
	"encoding/json"
	"testing"

	"github.com/swaggo/swag"
)

func TestSwaggerDocDescribesTokenlensRoutes(t *testing.T) {
	if SwaggerInfo.Title != "Tokenlens API" {
		t.Fatalf("unexpected title %q", SwaggerInfo.Title)
	}

	raw, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	if err != nil {
		t.Fatalf("read registered doc: %v", err)
	}
	var doc struct {
		Info  struct{ Title string } `json:"info"`
		Paths map[string]any         `json:"paths"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("rendered doc is not JSON: %v", err)
	}
	if doc.Info.Title != "Tokenlens API" {
		t.Fatalf("rendered title %q", doc.Info.Title)
	}
	for _, path := range []string{
		"/health",
		"/api/health/sources",
		"/api/tokens/batch",
		"/api/tokens/{network}/{address}",
		"/api/tokens/{network}/{address}/compare",
		"/api/pools/search",
		"/api/portfolio",
		"/api/portfolio/top/liquidity",
		"/api/crypto/price/{symbol}",
		"/api/crypto/top",
	} {
		if _, ok := doc.Paths[path]; !ok {
			t.Errorf("doc is missing %s", path)
		}
	}
}
