package api

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/larder-app/larder/internal/engine"
	"github.com/larder-app/larder/internal/insights"
	"github.com/larder-app/larder/internal/pantry"
	"github.com/larder-app/larder/internal/policy"
	"github.com/larder-app/larder/internal/registry"
	"github.com/larder-app/larder/internal/storage"
)

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	eng, err := engine.New(registry.New(""), engine.Options{Thresholds: policy.DefaultThresholds()})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	return MCPDeps{
		Store:  store,
		Engine: eng,
		Now:    func() time.Time { return testNow },
	}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPTool_AssessItem(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpAssessItem(deps)

	req := makeCallToolRequest("assess_item", map[string]interface{}{
		"name":             "Whole Milk",
		"quantity":         1.0,
		"expiry_date":      "2026-06-10", // five days before the pinned now
		"storage_location": "fridge",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", toolText(t, result))
	}

	var got engine.Assessment
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("failed to parse assessment: %v", err)
	}
	if got.Category.Category != pantry.CategoryDairy {
		t.Errorf("Category = %q, want dairy", got.Category.Category)
	}
	if got.Risk.Value != 1 {
		t.Errorf("Risk = %g, want 1 (expired)", got.Risk.Value)
	}
	if got.Recommendation.Action != pantry.ActionDiscard {
		t.Errorf("Action = %q, want discard", got.Recommendation.Action)
	}
}

func TestMCPTool_AssessItem_MissingName(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpAssessItem(deps)

	result, err := handler(context.Background(), makeCallToolRequest("assess_item", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing name")
	}
}

func TestMCPTool_AssessItem_BadDate(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpAssessItem(deps)

	req := makeCallToolRequest("assess_item", map[string]interface{}{
		"name":        "Milk",
		"expiry_date": "next week",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for malformed date")
	}
}

func TestMCPTool_CategorizeItem(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpCategorizeItem(deps)

	req := makeCallToolRequest("categorize_item", map[string]interface{}{
		"name": "Organic Strawberries",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", toolText(t, result))
	}

	var got pantry.CategoryPrediction
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("failed to parse prediction: %v", err)
	}
	if got.Category != pantry.CategoryFruits {
		t.Errorf("Category = %q, want fruits", got.Category)
	}
}

func TestMCPTool_PantryInsights(t *testing.T) {
	deps, store := newTestMCPDeps(t)

	expiry := time.Date(2026, 6, 16, 0, 0, 0, 0, time.UTC)
	item := pantry.Item{ID: "it-1", Name: "Whole Milk", Category: pantry.CategoryDairy, Quantity: 1, ExpiryDate: &expiry}
	if err := store.SaveItem(item, testNow); err != nil {
		t.Fatalf("SaveItem: %v", err)
	}

	handler := mcpPantryInsights(deps)
	result, err := handler(context.Background(), makeCallToolRequest("pantry_insights", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", toolText(t, result))
	}

	var report insights.Report
	if err := json.Unmarshal([]byte(toolText(t, result)), &report); err != nil {
		t.Fatalf("failed to parse report: %v", err)
	}
	if report.TotalItems != 1 {
		t.Errorf("TotalItems = %d, want 1", report.TotalItems)
	}
}

func TestMCPResource_Summary(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	handler := mcpResourceSummary(deps)
	req := mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "pantry://summary"},
	}

	contents, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}

	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.MIMEType != "application/json" {
		t.Errorf("MIMEType = %q, want application/json", tc.MIMEType)
	}

	var report insights.Report
	if err := json.Unmarshal([]byte(tc.Text), &report); err != nil {
		t.Fatalf("failed to parse summary: %v", err)
	}
	if report.TotalItems != 0 {
		t.Errorf("TotalItems = %d, want 0 for empty pantry", report.TotalItems)
	}
}
