package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wagerly/betting-mock/internal/api"
	"wagerly/betting-mock/internal/betting"
	"wagerly/betting-mock/internal/store"
)

// ─── Test server setup ────────────────────────────────────────────────────────

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st := store.New()
	svc := betting.NewService(st)
	h := api.NewHandler(st, svc, "test", "test")
	return httptest.NewServer(api.NewRouter(h))
}

func post(t *testing.T, srv *httptest.Server, path, token string, body any) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func get(t *testing.T, srv *httptest.Server, path, token string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return string(b)
}

func decodeList(t *testing.T, resp *http.Response) []map[string]any {
	t.Helper()
	var body []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	return body
}

// register creates a user and returns the session token.
func register(t *testing.T, srv *httptest.Server, username string) string {
	t.Helper()
	resp := post(t, srv, "/auth/register", "", map[string]any{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d", username, resp.StatusCode)
	}
	body := decode(t, resp)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("register response has no token")
	}
	return token
}

func validBet() map[string]any {
	return map[string]any{
		"matchId":   "M1",
		"amount":    50.0,
		"odds":      2.5,
		"selection": "home",
	}
}

// ─── Health ───────────────────────────────────────────────────────────────────

func TestHealth_Returns200WithMetadata(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp := get(t, srv, "/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	body := decode(t, resp)
	if body["status"] != "OK" {
		t.Errorf("expected status=OK, got %v", body["status"])
	}
	for _, field := range []string{"timestamp", "uptime", "version", "environment"} {
		if _, ok := body[field]; !ok {
			t.Errorf("health response missing %q", field)
		}
	}
}

func TestMetrics_Returns200(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp := get(t, srv, "/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestMetrics_RegistryPerServer(t *testing.T) {
	srvA := newTestServer(t)
	defer srvA.Close()
	srvB := newTestServer(t)
	defer srvB.Close()

	token := register(t, srvA, "alice")
	p := validBet()
	p["matchId"] = "M1-altered"
	if resp := post(t, srvA, "/bets/place", token, p); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("fraud bet: expected 400, got %d", resp.StatusCode)
	}

	bodyA := readBody(t, get(t, srvA, "/metrics", ""))
	want := `betting_mock_fraud_rejections_total{category="match-alteration"} 1`
	if !strings.Contains(bodyA, want) {
		t.Errorf("server A metrics missing %q", want)
	}

	// Server B saw no fraud; its registry must not carry server A's counters.
	bodyB := readBody(t, get(t, srvB, "/metrics", ""))
	if strings.Contains(bodyB, "betting_mock_fraud_rejections_total{") {
		t.Error("server B metrics leaked counters from server A")
	}
}

// ─── POST /auth/register ──────────────────────────────────────────────────────

func TestRegister_Returns201WithTokenAndUser(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp := post(t, srv, "/auth/register", "", map[string]any{
		"username": "alice", "email": "alice@example.com", "password": "secret",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	body := decode(t, resp)
	user, ok := body["user"].(map[string]any)
	if !ok {
		t.Fatalf("response has no 'user' object: %v", body)
	}
	if user["username"] != "alice" || user["status"] != "active" {
		t.Errorf("unexpected user view: %v", user)
	}
	if _, leaked := user["password"]; leaked {
		t.Error("password must never be echoed")
	}
}

func TestRegister_MissingField_Returns400(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp := post(t, srv, "/auth/register", "", map[string]any{
		"username": "alice", "password": "secret",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestRegister_DuplicateUsername_DifferentEmail_Returns409(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	register(t, srv, "alice")
	resp := post(t, srv, "/auth/register", "", map[string]any{
		"username": "alice", "email": "alice2@example.com", "password": "secret",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409, got %d", resp.StatusCode)
	}
}

func TestRegister_DuplicateEmail_Returns409(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	register(t, srv, "alice")
	resp := post(t, srv, "/auth/register", "", map[string]any{
		"username": "bob", "email": "alice@example.com", "password": "secret",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409, got %d", resp.StatusCode)
	}
}

// ─── POST /auth/login ─────────────────────────────────────────────────────────

func TestLogin_ValidCredentials_Returns200WithNewToken(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	registerToken := register(t, srv, "alice")
	resp := post(t, srv, "/auth/login", "", map[string]any{
		"username": "alice", "password": "secret",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode(t, resp)
	if body["token"] == "" || body["token"] == registerToken {
		t.Error("login must mint a fresh token")
	}
}

func TestLogin_WrongPassword_Returns401(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	register(t, srv, "alice")
	resp := post(t, srv, "/auth/login", "", map[string]any{
		"username": "alice", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestLogin_BlockedAccount_Returns403EvenWithCorrectCredentials(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	token := register(t, srv, "alice")
	blockAccount(t, srv, token)

	resp := post(t, srv, "/auth/login", "", map[string]any{
		"username": "alice", "password": "secret",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", resp.StatusCode)
	}
}

// blockAccount drives the account over the flag threshold with three
// distinct-category fraud attempts.
func blockAccount(t *testing.T, srv *httptest.Server, token string) {
	t.Helper()
	for _, mutate := range []func(map[string]any){
		func(p map[string]any) { p["matchId"] = "M1-altered" },
		func(p map[string]any) { p["odds"] = 100.0 },
		func(p map[string]any) { p["amount"] = -10.0 },
	} {
		p := validBet()
		mutate(p)
		resp := post(t, srv, "/bets/place", token, p)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("fraud attempt: expected 400, got %d", resp.StatusCode)
		}
	}
}

// ─── Authentication gate ──────────────────────────────────────────────────────

func TestProtectedRoutes_MissingToken_Returns401(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	routes := []struct{ method, path string }{
		{http.MethodPost, "/bets/place"},
		{http.MethodGet, "/bets/history"},
		{http.MethodGet, "/users/account-status"},
	}
	for _, rt := range routes {
		var resp *http.Response
		if rt.method == http.MethodPost {
			resp = post(t, srv, rt.path, "", validBet())
		} else {
			resp = get(t, srv, rt.path, "")
		}
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", rt.method, rt.path, resp.StatusCode)
			continue
		}
		body := decode(t, resp)
		if body["error"] != "Unauthorized: Missing token" {
			t.Errorf("%s %s: unexpected error %v", rt.method, rt.path, body["error"])
		}
	}
}

func TestProtectedRoutes_UnknownToken_Returns401(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp := get(t, srv, "/bets/history", "00000000-0000-0000-0000-000000000000")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	body := decode(t, resp)
	if body["error"] != "Unauthorized: Invalid token" {
		t.Errorf("unexpected error %v", body["error"])
	}
}

// ─── POST /bets/place ─────────────────────────────────────────────────────────

func TestPlaceBet_Legitimate_Returns201(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	token := register(t, srv, "alice")
	resp := post(t, srv, "/bets/place", token, validBet())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	body := decode(t, resp)
	if body["betId"] == "" {
		t.Error("response must carry betId")
	}
	bet, ok := body["bet"].(map[string]any)
	if !ok {
		t.Fatalf("response has no 'bet' object: %v", body)
	}
	if bet["status"] != "pending" {
		t.Errorf("expected pending, got %v", bet["status"])
	}
	if bet["matchId"] != "M1" || bet["odds"] != 2.5 || bet["amount"] != 50.0 {
		t.Errorf("unexpected bet view: %v", bet)
	}
}

func TestPlaceBet_MissingFields_Returns400(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	token := register(t, srv, "alice")
	resp := post(t, srv, "/bets/place", token, map[string]any{"matchId": "M1"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPlaceBet_InvalidJSON_Returns400(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	token := register(t, srv, "alice")
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/bets/place",
		bytes.NewBufferString("not-json"))
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPlaceBet_Fraud_Returns400WithFraudShape(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	token := register(t, srv, "alice")
	p := validBet()
	p["matchId"] = "M1-altered"
	resp := post(t, srv, "/bets/place", token, p)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	body := decode(t, resp)
	if body["error"] != "Fraudulent bet detected" {
		t.Errorf("unexpected error: %v", body["error"])
	}
	if body["fraudType"] != "match-alteration" {
		t.Errorf("expected fraudType=match-alteration, got %v", body["fraudType"])
	}
	if body["details"] != "match ID tampering detected" {
		t.Errorf("unexpected details: %v", body["details"])
	}
}

func TestPlaceBet_BlockedAccount_Returns403(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	token := register(t, srv, "alice")
	blockAccount(t, srv, token)

	resp := post(t, srv, "/bets/place", token, validBet())
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", resp.StatusCode)
	}
}

// ─── GET /bets/history ────────────────────────────────────────────────────────

func TestBetHistory_Empty_ReturnsEmptyArray(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	token := register(t, srv, "alice")
	resp := get(t, srv, "/bets/history", token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if bets := decodeList(t, resp); len(bets) != 0 {
		t.Errorf("expected empty history, got %d", len(bets))
	}
}

func TestBetHistory_NewestFirst(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	token := register(t, srv, "alice")
	for _, match := range []string{"M1", "M2", "M3"} {
		p := validBet()
		p["matchId"] = match
		resp := post(t, srv, "/bets/place", token, p)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("bet on %s: expected 201, got %d", match, resp.StatusCode)
		}
	}

	bets := decodeList(t, get(t, srv, "/bets/history", token))
	if len(bets) != 3 {
		t.Fatalf("expected 3 bets, got %d", len(bets))
	}
	if bets[0]["matchId"] != "M3" || bets[2]["matchId"] != "M1" {
		t.Errorf("history not newest-first: %v, %v, %v",
			bets[0]["matchId"], bets[1]["matchId"], bets[2]["matchId"])
	}
	for _, field := range []string{"id", "selection", "odds", "amount", "status", "createdAt"} {
		if _, ok := bets[0][field]; !ok {
			t.Errorf("history entry missing %q", field)
		}
	}
}

// ─── GET /users/account-status ───────────────────────────────────────────────

func TestAccountStatus_CleanAccount(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	token := register(t, srv, "alice")
	resp := get(t, srv, "/users/account-status", token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode(t, resp)
	if body["status"] != "active" || body["verificationStatus"] != "verified" {
		t.Errorf("unexpected status view: %v", body)
	}
	if body["fraudWarnings"] != 0.0 {
		t.Errorf("expected 0 warnings, got %v", body["fraudWarnings"])
	}
	if restrictions := body["restrictions"].([]any); len(restrictions) != 0 {
		t.Errorf("expected no restrictions, got %v", restrictions)
	}
}

// ─── Unknown routes ───────────────────────────────────────────────────────────

func TestUnknownRoute_Returns404WithErrorBody(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp := get(t, srv, "/no/such/route", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	body := decode(t, resp)
	if body["error"] == nil || body["message"] == nil {
		t.Errorf("404 body must carry error and message: %v", body)
	}
}

func TestWrongMethod_Returns404(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp := get(t, srv, "/auth/register", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

// ─── End-to-end scenario ──────────────────────────────────────────────────────

// TestScenario_FraudEscalationBlocksAccount walks the full journey: register,
// login, one accepted bet, then three fraud attempts that flag and finally
// block the account, while the accepted bet history stays intact.
func TestScenario_FraudEscalationBlocksAccount(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	register(t, srv, "mallory")
	loginResp := post(t, srv, "/auth/login", "", map[string]any{
		"username": "mallory", "password": "secret",
	})
	if loginResp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", loginResp.StatusCode)
	}
	token := decode(t, loginResp)["token"].(string)

	// Legitimate bet B1.
	resp := post(t, srv, "/bets/place", token, validBet())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("B1: expected 201, got %d", resp.StatusCode)
	}

	// Fraud attempt 1: tampered match ID.
	p := validBet()
	p["matchId"] = "M1-altered"
	resp = post(t, srv, "/bets/place", token, p)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("fraud 1: expected 400, got %d", resp.StatusCode)
	}
	if body := decode(t, resp); body["fraudType"] != "match-alteration" {
		t.Errorf("fraud 1: expected match-alteration, got %v", body["fraudType"])
	}

	// History unchanged by the rejection.
	if bets := decodeList(t, get(t, srv, "/bets/history", token)); len(bets) != 1 {
		t.Fatalf("expected history of 1, got %d", len(bets))
	}

	// Fraud attempts 2 and 3, distinct categories.
	for _, mutate := range []func(map[string]any){
		func(p map[string]any) { p["odds"] = 100.0 },
		func(p map[string]any) { p["amount"] = -10.0 },
	} {
		p := validBet()
		mutate(p)
		resp := post(t, srv, "/bets/place", token, p)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("fraud attempt: expected 400, got %d", resp.StatusCode)
		}
	}

	// Third flag crossed the threshold.
	status := decode(t, get(t, srv, "/users/account-status", token))
	if status["status"] != "blocked" {
		t.Errorf("expected blocked, got %v", status["status"])
	}
	if status["fraudWarnings"] != 3.0 {
		t.Errorf("expected 3 warnings, got %v", status["fraudWarnings"])
	}
	if status["verificationStatus"] != "rejected" {
		t.Errorf("expected rejected, got %v", status["verificationStatus"])
	}
	restrictions := fmt.Sprintf("%v", status["restrictions"])
	if restrictions != "[betting_restricted withdrawal_restricted]" {
		t.Errorf("unexpected restrictions: %v", restrictions)
	}

	// Blocked account: no further bets, no further logins.
	if resp := post(t, srv, "/bets/place", token, validBet()); resp.StatusCode != http.StatusForbidden {
		t.Errorf("blocked bet: expected 403, got %d", resp.StatusCode)
	}
	loginResp = post(t, srv, "/auth/login", "", map[string]any{
		"username": "mallory", "password": "secret",
	})
	if loginResp.StatusCode != http.StatusForbidden {
		t.Errorf("blocked login: expected 403, got %d", loginResp.StatusCode)
	}
}
