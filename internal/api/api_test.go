package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dancrook1/w2f-config/internal/bus"
	"github.com/dancrook1/w2f-config/internal/cache"
	"github.com/dancrook1/w2f-config/internal/catalog"
	"github.com/dancrook1/w2f-config/internal/configurator"
	"github.com/dancrook1/w2f-config/internal/domain"
	"github.com/dancrook1/w2f-config/internal/pricing"
	"github.com/dancrook1/w2f-config/internal/repository"
	"github.com/dancrook1/w2f-config/internal/rules"
)

// createTestServer wires a full stack against a temporary SQLite store:
// two CPUs and two boards with matching sockets, one attribute rule,
// one warranty bracket and plan.
func createTestServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "api_test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	store, err := cache.New(domain.CacheConfig{
		Type:         "memory",
		LocalMaxSize: 100,
		LocalTTL:     time.Minute,
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	eventBus, err := bus.New(domain.EventBusConfig{
		Type:              "channel",
		ChannelBufferSize: 16,
	})
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	t.Cleanup(func() { eventBus.Close() })

	products := []*domain.Product{
		{ID: 101, Name: "Ryzen 7", PriceInclTax: 360, PriceExclTax: 300, Purchasable: true, Attributes: map[string]string{"socket": "AM5"}},
		{ID: 102, Name: "Core i7", PriceInclTax: 420, PriceExclTax: 350, Purchasable: true, Attributes: map[string]string{"socket": "LGA1700"}},
		{ID: 201, Name: "B650 Board", PriceInclTax: 180, PriceExclTax: 150, Purchasable: true, Attributes: map[string]string{"socket": "AM5"}},
		{ID: 202, Name: "Z790 Board", PriceInclTax: 240, PriceExclTax: 200, Purchasable: true, Attributes: map[string]string{"socket": "LGA1700"}},
		{ID: 901, Name: "2 Year Warranty", Purchasable: true},
	}
	for _, p := range products {
		if err := repo.SaveProduct(ctx, p); err != nil {
			t.Fatalf("failed to seed product %d: %v", p.ID, err)
		}
	}

	conf := &domain.Configurator{
		ID:   1,
		Name: "Gaming PC",
		Slots: []domain.Slot{
			{ID: "cpu", Title: "Processor", ProductIDs: []int64{101, 102}},
			{ID: "motherboard", Title: "Motherboard", ProductIDs: []int64{201, 202}},
		},
		DefaultConfiguration: domain.Configuration{"cpu": 101, "motherboard": 201},
		DefaultPrice:         400,
	}
	if err := repo.SaveConfigurator(ctx, conf); err != nil {
		t.Fatalf("failed to seed configurator: %v", err)
	}

	socketRule := &domain.Rule{
		ID: "socket-match", Type: domain.RuleAttributeMatch, Action: domain.ActionRequire,
		Active: true, Position: 1,
		Message: "An AM5 CPU requires an AM5 motherboard.",
		Conditions: domain.Conditions{
			AttributeMatch: &domain.AttributeMatchConditions{
				ComponentA: "cpu", AttributeA: "socket", ValueA: "AM5",
				ComponentB: "motherboard", AttributeB: "socket", ValueB: "AM5",
			},
		},
	}
	if err := repo.SaveRule(ctx, socketRule); err != nil {
		t.Fatalf("failed to seed rule: %v", err)
	}

	if err := repo.SaveBrackets(ctx, []domain.PriceBracket{{Min: 0, Max: 10000, Cost: 40}}); err != nil {
		t.Fatalf("failed to seed brackets: %v", err)
	}
	if err := repo.SaveWarrantyPlans(ctx, &domain.WarrantyPlans{ProductIDs: []int64{901}}); err != nil {
		t.Fatalf("failed to seed warranty plans: %v", err)
	}

	engine, err := rules.NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })

	warranty := pricing.NewWarranty()
	composer := pricing.NewComposer(warranty, domain.PricingConfig{StandardTaxRate: 0.20})
	cat := catalog.New(repo, store, time.Minute)

	svc := configurator.New(repo, cat, engine, composer, warranty, eventBus, domain.EngineConfig{MaxParallel: 4})
	if _, err := svc.ReloadRules(ctx); err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}
	if err := svc.ReloadWarranty(ctx); err != nil {
		t.Fatalf("failed to load warranty tables: %v", err)
	}

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	return NewServer(cfg, repo, store, svc, engine, "test-v1")
}

func postJSON(t *testing.T, server *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(raw))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func TestConfiguratorEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("GetDefinition", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/configurators/1", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var conf domain.Configurator
		if err := json.Unmarshal(rr.Body.Bytes(), &conf); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if conf.Name != "Gaming PC" {
			t.Errorf("expected name 'Gaming PC', got %q", conf.Name)
		}
		if conf.Slot(domain.SlotWarranty) == nil {
			t.Error("expected the warranty slot to be appended")
		}
	})

	t.Run("GetDefinitionNotFound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/configurators/99", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("BadConfiguratorID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/configurators/abc", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("CompatibleConfiguration", func(t *testing.T) {
		rr := postJSON(t, server, "/configurators/1/compatibility", ConfigurationRequest{
			Configuration: map[string]int64{"cpu": 101, "motherboard": 201},
		})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var result configurator.CheckResult
		if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if !result.Valid {
			t.Errorf("expected valid result, got errors: %v", result.Errors)
		}
	})

	t.Run("SocketMismatchRejected", func(t *testing.T) {
		rr := postJSON(t, server, "/configurators/1/compatibility", ConfigurationRequest{
			Configuration: map[string]int64{"cpu": 101, "motherboard": 202},
		})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var result configurator.CheckResult
		json.Unmarshal(rr.Body.Bytes(), &result)
		if result.Valid {
			t.Error("expected mismatched sockets to be rejected")
		}
	})

	t.Run("UnknownSlotIsBadRequest", func(t *testing.T) {
		rr := postJSON(t, server, "/configurators/1/compatibility", ConfigurationRequest{
			Configuration: map[string]int64{"gpu": 500},
		})

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/configurators/1/compatibility", bytes.NewBufferString("not-json"))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("Price", func(t *testing.T) {
		rr := postJSON(t, server, "/configurators/1/price", PriceRequest{
			ConfigurationRequest: ConfigurationRequest{
				Configuration: map[string]int64{"cpu": 102, "motherboard": 202},
			},
		})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var result configurator.PriceResult
		if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		// 350 + 200 components plus the 40 bracket cost
		if result.Total != 590 {
			t.Errorf("expected total 590, got %v", result.Total)
		}
		if result.WarrantyCost != 40 {
			t.Errorf("expected warranty cost 40, got %v", result.WarrantyCost)
		}
	})

	t.Run("DefaultPriceWins", func(t *testing.T) {
		rr := postJSON(t, server, "/configurators/1/price", PriceRequest{
			ConfigurationRequest: ConfigurationRequest{
				Configuration: map[string]int64{"cpu": 101, "motherboard": 201},
			},
		})

		var result configurator.PriceResult
		json.Unmarshal(rr.Body.Bytes(), &result)
		if !result.Default {
			t.Error("expected the default configuration to be recognized")
		}
		if result.Total != 400 {
			t.Errorf("expected the merchant default price 400, got %v", result.Total)
		}
	})

	t.Run("FilterSlotOptions", func(t *testing.T) {
		rr := postJSON(t, server, "/configurators/1/slots/motherboard/options", ConfigurationRequest{
			Configuration: map[string]int64{"cpu": 101},
		})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var result configurator.SlotOptions
		if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if len(result.AllowedProductIDs) != 1 || result.AllowedProductIDs[0] != 201 {
			t.Errorf("expected only board 201 to remain, got %v", result.AllowedProductIDs)
		}
	})

	t.Run("FilterAllOptions", func(t *testing.T) {
		rr := postJSON(t, server, "/configurators/1/options", OptionsRequest{
			Configuration: map[string]int64{"cpu": 101},
		})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp struct {
			Slots map[string]*configurator.SlotOptions `json:"slots"`
			Count int                                  `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		// cpu, motherboard and the injected warranty slot
		if resp.Count != 3 {
			t.Errorf("expected 3 filtered slots, got %d", resp.Count)
		}
		board := resp.Slots["motherboard"]
		if board == nil || len(board.AllowedProductIDs) != 1 {
			t.Errorf("expected one surviving board option, got %+v", board)
		}
	})

	t.Run("ShareRoundTrip", func(t *testing.T) {
		rr := postJSON(t, server, "/configurators/1/share", ConfigurationRequest{
			Configuration: map[string]int64{"cpu": 101, "motherboard": 201},
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var encoded map[string]string
		json.Unmarshal(rr.Body.Bytes(), &encoded)
		if encoded["token"] == "" {
			t.Fatal("expected a share token")
		}

		rr = postJSON(t, server, "/configurators/1/share/decode", map[string]string{
			"token": encoded["token"],
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var decoded struct {
			Configuration map[string]int64 `json:"configuration"`
		}
		json.Unmarshal(rr.Body.Bytes(), &decoded)
		if decoded.Configuration["cpu"] != 101 || decoded.Configuration["motherboard"] != 201 {
			t.Errorf("expected the original configuration back, got %v", decoded.Configuration)
		}
	})

	t.Run("MalformedShareToken", func(t *testing.T) {
		rr := postJSON(t, server, "/configurators/1/share/decode", map[string]string{
			"token": "%%%not-a-token%%%",
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestSubmitEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("AcceptedSubmission", func(t *testing.T) {
		rr := postJSON(t, server, "/configurators/1/submit", ConfigurationRequest{
			Configuration: map[string]int64{"cpu": 101, "motherboard": 201},
		})

		if rr.Code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp SubmitResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if !resp.Accepted {
			t.Error("expected the submission to be accepted")
		}
		if resp.Order == nil || resp.Order.ID == "" {
			t.Fatal("expected an order with an id")
		}
		if resp.Order.Status != domain.OrderStatusPending {
			t.Errorf("expected pending status, got %q", resp.Order.Status)
		}
		if resp.Metadata.Version != "test-v1" {
			t.Errorf("expected version test-v1, got %s", resp.Metadata.Version)
		}
		if resp.Metadata.TraceID == "" {
			t.Error("expected traceId in metadata")
		}
	})

	t.Run("RejectedSubmission", func(t *testing.T) {
		rr := postJSON(t, server, "/configurators/1/submit", ConfigurationRequest{
			Configuration: map[string]int64{"cpu": 101, "motherboard": 202},
		})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp SubmitResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Accepted {
			t.Error("expected the submission to be rejected")
		}
		if resp.Order != nil {
			t.Error("expected no order on rejection")
		}
	})

	t.Run("EmptyConfiguration", func(t *testing.T) {
		rr := postJSON(t, server, "/configurators/1/submit", ConfigurationRequest{})

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestRuleEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("ListRules", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/rules", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 1 {
			t.Errorf("expected 1 loaded rule, got %d", resp.Count)
		}
	})

	t.Run("CreateReloadDelete", func(t *testing.T) {
		rr := postJSON(t, server, "/rules", RuleRequest{
			ID:     "cpu-board-pair",
			Type:   string(domain.RuleProductMatch),
			Action: string(domain.ActionRequire),
			Active: true,
			Conditions: map[string]string{
				"component_a": "cpu", "product_a": "102",
				"component_b": "motherboard", "product_b": "202",
			},
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		rr = postJSON(t, server, "/rules/reload", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var reload struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &reload)
		if reload.Count != 2 {
			t.Errorf("expected 2 rules after reload, got %d", reload.Count)
		}

		req := httptest.NewRequest(http.MethodDelete, "/rules/cpu-board-pair", nil)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		req = httptest.NewRequest(http.MethodGet, "/rules/cpu-board-pair", nil)
		rec = httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404 after delete, got %d", rec.Code)
		}
	})

	t.Run("CreateRuleMissingType", func(t *testing.T) {
		rr := postJSON(t, server, "/rules", RuleRequest{ID: "incomplete"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("CreateRuleBadExpression", func(t *testing.T) {
		rr := postJSON(t, server, "/rules", RuleRequest{
			ID:   "bad-expression",
			Type: string(domain.RuleExpression),
			Conditions: map[string]string{
				"expression": "this is not CEL",
			},
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("CreateRuleUnknownType", func(t *testing.T) {
		rr := postJSON(t, server, "/rules", RuleRequest{
			ID:         "unknown-type",
			Type:       "voltage_match",
			Conditions: map[string]string{"component_a": "cpu"},
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("PreviewRule", func(t *testing.T) {
		rr := postJSON(t, server, "/rules/preview", PreviewRuleRequest{
			ConfiguratorID: 1,
			Configuration:  map[string]int64{"cpu": 102, "motherboard": 201},
			Rule: RuleRequest{
				ID:     "preview-pair",
				Type:   string(domain.RuleProductMatch),
				Action: string(domain.ActionRequire),
				Active: true,
				Conditions: map[string]string{
					"component_a": "cpu", "product_a": "102",
					"component_b": "motherboard", "product_b": "202",
				},
			},
		})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var result configurator.CheckResult
		json.Unmarshal(rr.Body.Bytes(), &result)
		if result.Valid {
			t.Error("expected the previewed rule to reject the configuration")
		}
	})
}

func TestWarrantyEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("GetWarranty", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/warranty", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Brackets []domain.PriceBracket `json:"brackets"`
			Plans    *domain.WarrantyPlans `json:"plans"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if len(resp.Brackets) != 1 || resp.Brackets[0].Cost != 40 {
			t.Errorf("expected the seeded bracket, got %v", resp.Brackets)
		}
	})

	t.Run("UpdateWarrantyChangesPrice", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/warranty", bytes.NewBufferString(
			`{"brackets":[{"min":0,"max":10000,"cost":60}]}`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		rr = postJSON(t, server, "/configurators/1/price", PriceRequest{
			ConfigurationRequest: ConfigurationRequest{
				Configuration: map[string]int64{"cpu": 102, "motherboard": 202},
			},
		})
		var result configurator.PriceResult
		json.Unmarshal(rr.Body.Bytes(), &result)
		if result.WarrantyCost != 60 {
			t.Errorf("expected updated warranty cost 60, got %v", result.WarrantyCost)
		}
	})

	t.Run("InvalidBracketRejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/warranty", bytes.NewBufferString(
			`{"brackets":[{"min":100,"max":0,"cost":10}]}`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
		}
	})
}

func TestOrderEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("UnknownOrder", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders/no-such-order", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("HealthCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp["status"] != "healthy" {
			t.Errorf("expected status 'healthy', got '%s'", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version 'test-v1', got '%s'", resp["version"])
		}
	})

	t.Run("ReadyCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("ResponseHeaders", func(t *testing.T) {
		rr := postJSON(t, server, "/configurators/1/compatibility", ConfigurationRequest{
			Configuration: map[string]int64{"cpu": 101, "motherboard": 201},
		})

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header in response")
		}
		if rr.Header().Get("X-Trace-ID") == "" {
			t.Error("expected X-Trace-ID header in response")
		}
		if rr.Header().Get("Content-Type") != "application/json" {
			t.Error("expected Content-Type: application/json")
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("TracingMiddlewareSetsRequestID", func(t *testing.T) {
		var capturedRequestID string

		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v, ok := r.Context().Value(RequestIDKey).(string); ok {
				capturedRequestID = v
			}
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedRequestID == "" {
			t.Error("expected request ID to be set")
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID response header")
		}
	})

	t.Run("RecoverMiddlewareHandlesPanic", func(t *testing.T) {
		handler := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		// Should not panic
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rr.Code)
		}
	})
}
