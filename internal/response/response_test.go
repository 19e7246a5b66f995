package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestEnvelopeCarriesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware(zerolog.Nop()))
	r.GET("/ok", func(c *gin.Context) { Success(c, http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/bad", func(c *gin.Context) {
		FailWithFields(c, http.StatusBadRequest, ErrValidation, map[string]string{"lang": "invalid"})
	})

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var ok Response
	if err := json.Unmarshal(w.Body.Bytes(), &ok); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ok.Metadata.RequestID != "req-1" || w.Header().Get("X-Request-ID") != "req-1" {
		t.Errorf("request id = %q / %q", ok.Metadata.RequestID, w.Header().Get("X-Request-ID"))
	}
	if ok.Error != nil {
		t.Errorf("unexpected error body %+v", ok.Error)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bad", nil))
	var bad Response
	if err := json.Unmarshal(w.Body.Bytes(), &bad); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.Code != http.StatusBadRequest || bad.Error == nil || bad.Error.Code != ErrValidation {
		t.Fatalf("status %d body %+v", w.Code, bad)
	}
	if bad.Error.Fields["lang"] != "invalid" || bad.Metadata.RequestID == "" {
		t.Errorf("error body = %+v metadata = %+v", bad.Error, bad.Metadata)
	}
}

func TestRequestIDSanitizedAndLogged(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("IST", 5*3600+1800)) }
	t.Cleanup(func() { now = time.Now })

	var buf strings.Builder
	r := gin.New()
	r.Use(RequestIDMiddleware(zerolog.New(&buf)))
	r.GET("/x", func(c *gin.Context) {
		zerolog.Ctx(c.Request.Context()).Info().Msg("inside")
		Success(c, http.StatusOK, nil)
	})

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"clean id kept", "abc-123_x.y", true},
		{"header injection replaced", "bad id\r\nX-Evil: 1", false},
		{"too long replaced", strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			req.Header.Set(HeaderRequestID, tt.header)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			var body Response
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			id := body.Metadata.RequestID
			if (id == tt.header) != tt.keep || id == "" {
				t.Errorf("request id = %q", id)
			}
			if body.Metadata.ServerTime != "2026-03-01T03:30:00Z" {
				t.Errorf("server_time = %q", body.Metadata.ServerTime)
			}
			if !strings.Contains(buf.String(), `"request_id":"`+id+`"`) {
				t.Errorf("log line missing request id: %s", buf.String())
			}
		})
	}
}
