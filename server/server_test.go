package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/macroplay/insights/segment"
)

const tariffCSV = `MSISDN,Fecha_Inicio_PF,Consumo_MB,Tarificacion_PF,OfferId
5215550000001,2024-06-01,8000,150,Plan Max
5215550000002,2024-06-10,1000,50,Plan Amigo
5215550000003,2024-06-20,4000,100,Plan Medio
`

const rechargeCSV = `MSISDN,FECHA_ULT_RECARGA,COMPANY_NAME
5215550000001,2024-06-28,Macropay
5215550000002,2024-05-01,Macropay
`

var testToday = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return testToday }
	}
	return New(cfg)
}

func uploadBody(t *testing.T, tariff, recharge string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fw, err := w.CreateFormFile("tarificacion", "tarificacion.csv")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(tariff))

	fw, err = w.CreateFormFile("recargas", "recargas.csv")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(recharge))

	w.Close()
	return &buf, w.FormDataContentType()
}

func doUpload(t *testing.T, s *Server) {
	t.Helper()
	body, contentType := uploadBody(t, tariffCSV, rechargeCSV)
	req := httptest.NewRequest(http.MethodPost, "/api/datasets", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}
}

func jsonRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, r)
	return rec
}

func TestUploadAndAnalysis(t *testing.T) {
	s := newTestServer(t, Config{})
	doUpload(t, s)

	rec := jsonRequest(s, http.MethodGet, "/api/analysis", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Records  int `json:"records"`
		Analysis struct {
			TotalRecords int `json:"totalRecords"`
			Summary      map[string]struct {
				Total float64 `json:"total"`
			} `json:"summary"`
		} `json:"analysis"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Records != 3 || resp.Analysis.TotalRecords != 3 {
		t.Errorf("records = %d / %d, want 3", resp.Records, resp.Analysis.TotalRecords)
	}
	if got := resp.Analysis.Summary["Consumo MB"].Total; got != 13000 {
		t.Errorf("usage total = %v, want 13000", got)
	}
}

func TestAnalysisWithoutDataset(t *testing.T) {
	s := newTestServer(t, Config{})
	if rec := jsonRequest(s, http.MethodGet, "/api/analysis", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestUploadRejectsMissingFile(t *testing.T) {
	s := newTestServer(t, Config{})

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, _ := w.CreateFormFile("tarificacion", "tarificacion.csv")
	fw.Write([]byte(tariffCSV))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/datasets", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestFilterRecomputesFromOriginalJoin(t *testing.T) {
	s := newTestServer(t, Config{})
	doUpload(t, s)

	rec := jsonRequest(s, http.MethodPost, "/api/analysis/filter",
		`{"start": "2024-06-05", "end": "2024-06-15"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Records int `json:"records"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Records != 1 {
		t.Errorf("filtered records = %d, want 1", resp.Records)
	}

	// A second, wider filter starts over from the full join.
	rec = jsonRequest(s, http.MethodPost, "/api/analysis/filter", `{"start": "", "end": ""}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Records != 3 {
		t.Errorf("unfiltered records = %d, want 3", resp.Records)
	}
}

// Filters rewrite the working set while other handlers read it; both
// sides must observe coherent snapshots. Run under the race detector.
func TestConcurrentFilterAndRead(t *testing.T) {
	s := newTestServer(t, Config{})
	doUpload(t, s)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				rec := jsonRequest(s, http.MethodPost, "/api/analysis/filter",
					`{"start": "2024-06-05", "end": "2024-06-15"}`)
				if rec.Code != http.StatusOK {
					t.Errorf("filter status = %d", rec.Code)
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				rec := jsonRequest(s, http.MethodGet, "/api/analysis", "")
				if rec.Code != http.StatusOK {
					t.Errorf("analysis status = %d", rec.Code)
				}
			}
		}()
	}
	wg.Wait()

	rec := jsonRequest(s, http.MethodGet, "/api/analysis", "")
	var resp struct {
		Records  int `json:"records"`
		Analysis struct {
			TotalRecords int `json:"totalRecords"`
		} `json:"analysis"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Records != resp.Analysis.TotalRecords {
		t.Errorf("records = %d but analysis total = %d, snapshot is torn",
			resp.Records, resp.Analysis.TotalRecords)
	}
}

func TestSegmentationAndExport(t *testing.T) {
	s := newTestServer(t, Config{})
	doUpload(t, s)

	// Export before segmentation has nothing to serve.
	if rec := jsonRequest(s, http.MethodGet, "/api/export.csv", ""); rec.Code != http.StatusNotFound {
		t.Errorf("pre-segmentation export status = %d, want 404", rec.Code)
	}

	rec := jsonRequest(s, http.MethodPost, "/api/segments", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("segmentation status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Source   string            `json:"source"`
		Segments []segment.Segment `json:"segments"`
		Records  int               `json:"records"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Source != "fallback" || resp.Records != 3 {
		t.Errorf("segmentation response = %+v", resp)
	}

	rec = jsonRequest(s, http.MethodGet, "/api/export.csv", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Segmento_IA") || !strings.Contains(body, "5215550000001") {
		t.Errorf("export body missing expected content:\n%s", body)
	}
}

func TestConcurrentSegmentationConflicts(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	gen := segment.TextGeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		close(started)
		<-release
		return `{"segments": [{"name": "Todos", "description": "", "color": "#FFA500"}]}`, nil
	})

	s := newTestServer(t, Config{Generator: gen})
	doUpload(t, s)

	done := make(chan int, 1)
	go func() {
		rec := jsonRequest(s, http.MethodPost, "/api/segments", "")
		done <- rec.Code
	}()

	<-started
	if rec := jsonRequest(s, http.MethodPost, "/api/segments", ""); rec.Code != http.StatusConflict {
		t.Errorf("concurrent run status = %d, want 409", rec.Code)
	}
	close(release)

	select {
	case code := <-done:
		if code != http.StatusOK {
			t.Errorf("first run status = %d", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("first segmentation never finished")
	}
}

func TestInsightsUnconfigured(t *testing.T) {
	s := newTestServer(t, Config{})
	doUpload(t, s)

	if rec := jsonRequest(s, http.MethodPost, "/api/insights", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestCampaignUnconfigured(t *testing.T) {
	s := newTestServer(t, Config{})
	doUpload(t, s)
	if rec := jsonRequest(s, http.MethodPost, "/api/segments", ""); rec.Code != http.StatusOK {
		t.Fatalf("segmentation status = %d", rec.Code)
	}

	rec := jsonRequest(s, http.MethodPost, "/api/notify", `{"segment": "VIP Activos"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestDatasetsListWithoutStore(t *testing.T) {
	s := newTestServer(t, Config{})
	if rec := jsonRequest(s, http.MethodGet, "/api/datasets", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
