package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"panaudit/internal/store"
)

const setFixture = `set address Server-Web-01 ip-netmask 192.168.10.10/32
set address Server-Web-02 ip-netmask 192.168.10.10/32
set service service-http protocol tcp port 80
set security rules Allow-Web from trust
set security rules Allow-Web to untrust
set security rules Allow-Web source any
set security rules Allow-Web destination Server-Web-01
set security rules Allow-Web service service-http
set security rules Allow-Web action allow
set security rules Allow-Web-Copy from trust
set security rules Allow-Web-Copy to untrust
set security rules Allow-Web-Copy destination Server-Web-01
set security rules Allow-Web-Copy service service-http
set security rules Allow-Web-Copy action allow`

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "panaudit.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(st)
}

func uploadRequest(t *testing.T, content, sessionName string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "config.set")
	if err != nil {
		t.Fatalf("failed to build form: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if sessionName != "" {
		if err := w.WriteField("session_name", sessionName); err != nil {
			t.Fatalf("failed to write form field: %v", err)
		}
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/audits", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("failed to decode body %q: %v", raw, err)
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["status"] != "healthy" {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestCreateAuditUploadAndRetrieve(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(uploadRequest(t, setFixture, "nightly-audit"))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["status"] != "success" {
		t.Fatalf("unexpected status: %v", body)
	}
	data := body["data"].(map[string]any)
	if data["session_name"] != "nightly-audit" || data["filename"] != "config.set" {
		t.Errorf("session fields wrong: %v", data)
	}
	if hash, _ := data["file_hash"].(string); len(hash) != 64 {
		t.Errorf("expected a sha256 hex hash, got %q", hash)
	}
	metadata := data["metadata"].(map[string]any)
	if metadata["rules_parsed"].(float64) != 2 || metadata["objects_parsed"].(float64) != 3 {
		t.Errorf("parse counts wrong: %v", metadata)
	}
	auditID := int(data["audit_id"].(float64))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/audits/%d", auditID), nil))
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body = decodeBody(t, resp)
	data = body["data"].(map[string]any)
	if data["rules_count"].(float64) != 2 || data["objects_count"].(float64) != 3 {
		t.Errorf("stored counts wrong: %v", data)
	}
	if data["end_time"] == nil {
		t.Error("upload must close the session with an end time")
	}
}

func TestCreateAuditDefaultsSessionName(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(uploadRequest(t, setFixture, ""))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	body := decodeBody(t, resp)
	data := body["data"].(map[string]any)
	name, _ := data["session_name"].(string)
	if !strings.HasPrefix(name, "Audit_") {
		t.Errorf("expected a generated Audit_ name, got %q", name)
	}
}

func TestCreateAuditMissingFile(t *testing.T) {
	app := newTestApp(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	w.WriteField("session_name", "no-file")
	w.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/audits", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if got := decodeBody(t, resp)["error_code"]; got != "MISSING_FILE" {
		t.Errorf("expected MISSING_FILE, got %v", got)
	}
}

func TestCreateAuditEmptyFile(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(uploadRequest(t, "", "empty"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if got := decodeBody(t, resp)["error_code"]; got != "EMPTY_FILE" {
		t.Errorf("expected EMPTY_FILE, got %v", got)
	}
}

func TestCreateAuditMalformedXML(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(uploadRequest(t, "<config><devices>", "bad-xml"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if got := decodeBody(t, resp)["error_code"]; got != "INVALID_CONFIG_FILE" {
		t.Errorf("expected INVALID_CONFIG_FILE, got %v", got)
	}
}

func TestListAudits(t *testing.T) {
	app := newTestApp(t)

	if _, err := app.Test(uploadRequest(t, setFixture, "first")); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if _, err := app.Test(uploadRequest(t, setFixture, "second")); err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/audits", nil))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	data := body["data"].([]any)
	if len(data) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(data))
	}
	newest := data[0].(map[string]any)
	if newest["session_name"] != "second" {
		t.Errorf("expected newest first, got %v", newest["session_name"])
	}
}

func TestGetAuditNotFound(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/audits/42", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if got := decodeBody(t, resp)["error_code"]; got != "AUDIT_NOT_FOUND" {
		t.Errorf("expected AUDIT_NOT_FOUND, got %v", got)
	}
}

func TestGetAuditInvalidID(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/audits/0", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if got := decodeBody(t, resp)["error_code"]; got != "INVALID_AUDIT_ID" {
		t.Errorf("expected INVALID_AUDIT_ID, got %v", got)
	}
}

func TestGetAnalysis(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(uploadRequest(t, setFixture, "analysis-run"))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	data := decodeBody(t, resp)["data"].(map[string]any)
	auditID := int(data["audit_id"].(float64))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/audits/%d/analysis", auditID), nil))
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	report := body["data"].(map[string]any)
	summary := report["analysis_summary"].(map[string]any)
	if summary["total_rules"].(float64) != 2 || summary["total_objects"].(float64) != 3 {
		t.Errorf("summary totals wrong: %v", summary)
	}
	if summary["used_objects_count"].(float64) != 2 {
		t.Errorf("expected Server-Web-01 and service-http used, got %v", summary)
	}
	if summary["redundant_objects_count"].(float64) != 1 {
		t.Errorf("expected Server-Web-02 redundant, got %v", summary)
	}

	shadowed := report["shadowedRules"].([]any)
	if len(shadowed) != 1 {
		t.Fatalf("expected Allow-Web-Copy shadowed, got %v", report["shadowedRules"])
	}
	finding := shadowed[0].(map[string]any)
	if finding["name"] != "Allow-Web-Copy" {
		t.Errorf("wrong shadowed rule: %v", finding)
	}
	if len(report["overlappingRules"].([]any)) != 1 {
		t.Errorf("expected one overlapping pair, got %v", report["overlappingRules"])
	}
}

func TestGetAnalysisNotFound(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/audits/42/analysis", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
