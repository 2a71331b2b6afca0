package support

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/MeKo-Tech/barscan/internal/server"
	"github.com/cucumber/godog"
)

// startServer runs the API in-process on an httptest server.
func (testCtx *TestContext) startServer(rateLimit server.RateLimitConfig) error {
	testCtx.stopServer()

	pCfg := pipeline.DefaultConfig()
	pCfg.Orientation.SnapDegrees = 2
	srv, err := server.NewServer(server.Config{
		CORSOrigin:     "*",
		MaxUploadMB:    10,
		TimeoutSec:     30,
		PipelineConfig: pCfg,
		OverlayEnabled: true,
		RateLimit:      rateLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	testCtx.HTTPServer = httptest.NewServer(mux)
	testCtx.closers = append(testCtx.closers, srv.Close)
	return nil
}

func (testCtx *TestContext) stopServer() {
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
		testCtx.HTTPServer = nil
	}
	for _, c := range testCtx.closers {
		c()
	}
	testCtx.closers = nil
}

func (testCtx *TestContext) theBarcodeServerIsRunning() error {
	return testCtx.startServer(server.RateLimitConfig{})
}

func (testCtx *TestContext) theBarcodeServerIsRunningWithARateLimit(perMinute int) error {
	return testCtx.startServer(server.RateLimitConfig{Enabled: true, RequestsPerMinute: perMinute})
}

func (testCtx *TestContext) recordResponse(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(body)
	testCtx.LastHTTPHeaders = map[string]string{}
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

func (testCtx *TestContext) iRequest(path string) error {
	if testCtx.HTTPServer == nil {
		return fmt.Errorf("server is not running")
	}
	resp, err := http.Get(testCtx.HTTPServer.URL + path) //nolint:noctx // test request
	if err != nil {
		return err
	}
	return testCtx.recordResponse(resp)
}

// iUpload posts a file as the multipart field the endpoint expects.
func (testCtx *TestContext) iUpload(name, path string) error {
	if testCtx.HTTPServer == nil {
		return fmt.Errorf("server is not running")
	}
	data, err := os.ReadFile(testCtx.path(name))
	if err != nil {
		return err
	}

	field := "image"
	if strings.HasPrefix(path, "/decode/pdf") {
		field = "pdf"
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filepath.Base(name))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	resp, err := http.Post(testCtx.HTTPServer.URL+path, w.FormDataContentType(), &body) //nolint:noctx // test request
	if err != nil {
		return err
	}
	return testCtx.recordResponse(resp)
}

func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("expected status %d, got %d\nBody: %s", code, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain '%s'\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, value string) error {
	if got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]; got != value {
		return fmt.Errorf("header %s is %q, want %q", name, got, value)
	}
	return nil
}

// RegisterServerSteps registers the HTTP API steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the barcode server is running$`, testCtx.theBarcodeServerIsRunning)
	sc.Step(`^the barcode server is running with a rate limit of (\d+) requests? per minute$`,
		testCtx.theBarcodeServerIsRunningWithARateLimit)
	sc.Step(`^I request "([^"]*)"$`, testCtx.iRequest)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, testCtx.iUpload)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
}
