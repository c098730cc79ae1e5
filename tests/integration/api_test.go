package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"filegate/internal/server"
	"filegate/internal/testutil"
)

// testBackend bundles the HTTP test server with the in-memory stores
// behind it, so tests can assert on storage state directly.
type testBackend struct {
	srv   *httptest.Server
	users *testutil.MemUserStore
	files *testutil.MemFileStore
	blobs *testutil.MemBlobStore
}

func setupTestServer(t *testing.T) *testBackend {
	t.Helper()

	users := testutil.NewMemUserStore()
	files := testutil.NewMemFileStore()
	blobs := testutil.NewMemBlobStore()

	s := server.New(server.Config{
		Build: server.BuildInfo{Version: "integration-test"},
		Users: users,
		Files: files,
		Blobs: blobs,
		Tokens: server.TokenConfig{
			Secret: []byte("integration-secret-0123456789abcdef"),
			TTL:    time.Hour,
			Issuer: "filegate",
		},
		MaxUploadBytes: 10 << 20,
	})

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	return &testBackend{srv: ts, users: users, files: files, blobs: blobs}
}

func postJSON(t *testing.T, client *http.Client, url, token string, payload interface{}) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func uploadFile(t *testing.T, client *http.Client, url, token, filename, contentType string, content []byte) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	pw, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := pw.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, url+"/upload", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	return resp
}

// TestAPIWorkflow walks the complete share lifecycle: register, login,
// upload, list, download by code, reject bad codes, enforce ownership
// on delete, and delete.
func TestAPIWorkflow(t *testing.T) {
	backend := setupTestServer(t)
	srv := backend.srv

	client := &http.Client{Timeout: 30 * time.Second}

	const (
		fileName    = "a.txt"
		fileContent = "hello, filegate"
	)

	// Test 1: Liveness
	t.Run("Liveness", func(t *testing.T) {
		resp, err := client.Get(srv.URL + "/live")
		if err != nil {
			t.Fatalf("Liveness check failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected status 200, got %d", resp.StatusCode)
		}
	})

	// Test 2: User registration
	t.Run("User Registration", func(t *testing.T) {
		resp := postJSON(t, client, srv.URL+"/register", "", map[string]string{
			"username": "alice",
			"password": "p@ss1",
		})
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			bodyBytes, _ := io.ReadAll(resp.Body)
			t.Fatalf("Expected status 201, got %d: %s", resp.StatusCode, string(bodyBytes))
		}
	})

	// Test 3: Duplicate registration
	t.Run("Duplicate Registration", func(t *testing.T) {
		resp := postJSON(t, client, srv.URL+"/register", "", map[string]string{
			"username": "alice",
			"password": "another",
		})
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusConflict {
			t.Errorf("Expected status 409, got %d", resp.StatusCode)
		}
	})

	// Test 4: Login
	var token string
	t.Run("Login", func(t *testing.T) {
		resp := postJSON(t, client, srv.URL+"/login", "", map[string]string{
			"username": "alice",
			"password": "p@ss1",
		})
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			bodyBytes, _ := io.ReadAll(resp.Body)
			t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(bodyBytes))
		}

		var result map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			t.Fatalf("Failed to decode login response: %v", err)
		}
		token = result["token"]
		if token == "" {
			t.Fatal("No token received")
		}
	})

	// Test 5: Upload
	var accessCode string
	t.Run("Upload", func(t *testing.T) {
		resp := uploadFile(t, client, srv.URL, token, fileName, "text/plain", []byte(fileContent))
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			bodyBytes, _ := io.ReadAll(resp.Body)
			t.Fatalf("Expected status 201, got %d: %s", resp.StatusCode, string(bodyBytes))
		}

		var result map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			t.Fatalf("Failed to decode upload response: %v", err)
		}
		accessCode = result["code"]
		if len(accessCode) != 6 {
			t.Fatalf("Expected a 6-digit access code, got %q", accessCode)
		}
	})

	// Test 6: List files
	var fileID string
	t.Run("List Files", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/files", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("List request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", resp.StatusCode)
		}

		var files []map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
			t.Fatalf("Failed to decode listing: %v", err)
		}
		if len(files) != 1 {
			t.Fatalf("Expected 1 file, got %d", len(files))
		}

		entry := files[0]
		if entry["filename"] != fileName {
			t.Errorf("Expected filename %q, got %v", fileName, entry["filename"])
		}
		if entry["size_bytes"] != float64(len(fileContent)) {
			t.Errorf("Expected size %d, got %v", len(fileContent), entry["size_bytes"])
		}

		fileID, _ = entry["id"].(string)
		if fileID == "" {
			t.Fatal("Listing entry has no id")
		}
	})

	// Test 7: Download with the right code
	t.Run("Download With Code", func(t *testing.T) {
		resp := postJSON(t, client, srv.URL+"/files/"+fileID+"/download", "", map[string]string{
			"code": accessCode,
		})
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			bodyBytes, _ := io.ReadAll(resp.Body)
			t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(bodyBytes))
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("Failed to read download: %v", err)
		}
		if string(body) != fileContent {
			t.Errorf("Downloaded %q, want %q", body, fileContent)
		}
		if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, fileName) {
			t.Errorf("Content-Disposition %q does not name the file", cd)
		}
	})

	// Test 8: Wrong code and unknown file are the same 403
	t.Run("Download Rejections Are Opaque", func(t *testing.T) {
		wrongCode := "000000"
		if wrongCode == accessCode {
			wrongCode = "000001"
		}

		wrong := postJSON(t, client, srv.URL+"/files/"+fileID+"/download", "", map[string]string{
			"code": wrongCode,
		})
		wrongBody, _ := io.ReadAll(wrong.Body)
		wrong.Body.Close()

		absent := postJSON(t, client, srv.URL+"/files/"+uuid.NewString()+"/download", "", map[string]string{
			"code": accessCode,
		})
		absentBody, _ := io.ReadAll(absent.Body)
		absent.Body.Close()

		if wrong.StatusCode != http.StatusForbidden {
			t.Errorf("Wrong code: expected 403, got %d", wrong.StatusCode)
		}
		if absent.StatusCode != http.StatusForbidden {
			t.Errorf("Unknown file: expected 403, got %d", absent.StatusCode)
		}
		if !bytes.Equal(wrongBody, absentBody) {
			t.Errorf("Rejection bodies differ: %q vs %q", wrongBody, absentBody)
		}
	})

	// Test 9: Another user cannot delete the file
	t.Run("Cross User Delete", func(t *testing.T) {
		resp := postJSON(t, client, srv.URL+"/register", "", map[string]string{
			"username": "bob",
			"password": "hunter2",
		})
		resp.Body.Close()

		resp = postJSON(t, client, srv.URL+"/login", "", map[string]string{
			"username": "bob",
			"password": "hunter2",
		})
		var result map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			t.Fatalf("Failed to decode login response: %v", err)
		}
		resp.Body.Close()
		bobToken := result["token"]

		req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/files/"+fileID, nil)
		req.Header.Set("Authorization", "Bearer "+bobToken)

		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("Delete request failed: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", resp.StatusCode)
		}
		if backend.files.Len() != 1 {
			t.Errorf("File count = %d after foreign delete, want 1", backend.files.Len())
		}
	})

	// Test 10: Owner delete
	t.Run("Owner Delete", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/files/"+fileID, nil)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("Delete request failed: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", resp.StatusCode)
		}
		if backend.files.Len() != 0 {
			t.Errorf("File count = %d after delete, want 0", backend.files.Len())
		}
		if backend.blobs.Len() != 0 {
			t.Errorf("Blob count = %d after delete, want 0", backend.blobs.Len())
		}
	})

	// Test 11: The listing is empty again
	t.Run("Empty Listing", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/files", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("List request failed: %v", err)
		}
		defer resp.Body.Close()

		var files []map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
			t.Fatalf("Failed to decode listing: %v", err)
		}
		if len(files) != 0 {
			t.Errorf("Expected empty listing, got %d entries", len(files))
		}
	})
}

// TestConcurrentRegistration races two signups for one username; the
// store must admit exactly one.
func TestConcurrentRegistration(t *testing.T) {
	backend := setupTestServer(t)
	client := &http.Client{Timeout: 30 * time.Second}

	const attempts = 2
	statuses := make(chan int, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body, _ := json.Marshal(map[string]string{
				"username": "race",
				"password": "p@ss1",
			})
			resp, err := client.Post(backend.srv.URL+"/register", "application/json", bytes.NewReader(body))
			if err != nil {
				statuses <- 0
				return
			}
			resp.Body.Close()
			statuses <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)

	var created, conflicted int
	for status := range statuses {
		switch status {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicted++
		default:
			t.Errorf("Unexpected status %d", status)
		}
	}

	if created != 1 || conflicted != 1 {
		t.Errorf("Expected one 201 and one 409, got %d and %d", created, conflicted)
	}
}

// TestPasswordStoredHashed asserts registration never persists the
// plaintext password.
func TestPasswordStoredHashed(t *testing.T) {
	backend := setupTestServer(t)
	client := &http.Client{Timeout: 30 * time.Second}

	resp := postJSON(t, client, backend.srv.URL+"/register", "", map[string]string{
		"username": "alice",
		"password": "p@ss1",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", resp.StatusCode)
	}

	hash, ok := backend.users.Hash("alice")
	if !ok {
		t.Fatal("No stored hash for alice")
	}
	if string(hash) == "p@ss1" {
		t.Fatal("Password stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte("p@ss1")); err != nil {
		t.Errorf("Stored hash does not verify the password: %v", err)
	}

	// Same password, different user: the salt must make the hashes differ.
	resp = postJSON(t, client, backend.srv.URL+"/register", "", map[string]string{
		"username": "bob",
		"password": "p@ss1",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", resp.StatusCode)
	}
	bobHash, ok := backend.users.Hash("bob")
	if !ok {
		t.Fatal("No stored hash for bob")
	}
	if string(bobHash) == string(hash) {
		t.Error("Two users with the same password share a hash")
	}
}

// TestMetricsAfterTraffic checks the Prometheus endpoint reflects
// handled requests.
func TestMetricsAfterTraffic(t *testing.T) {
	backend := setupTestServer(t)
	client := &http.Client{Timeout: 30 * time.Second}

	resp, err := client.Get(backend.srv.URL + "/live")
	if err != nil {
		t.Fatalf("Liveness failed: %v", err)
	}
	resp.Body.Close()

	resp, err = client.Get(backend.srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("Metrics failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read metrics: %v", err)
	}
	if !bytes.Contains(body, []byte("fg_requests_total")) {
		t.Error("Metrics output missing fg_requests_total")
	}
}
