package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrSnakeDoc/studybot/internal/retry"
)

var fastPolicy = retry.Policy{Attempts: 1, Initial: time.Millisecond}

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{
			name: "text",
			body: `{"ParsedResults":[{"ParsedText":" Cell is the unit of life \r\n"}],"IsErroredOnProcessing":false}`,
			want: "Cell is the unit of life",
		},
		{
			name: "nothing found",
			body: `{"ParsedResults":[{"ParsedText":""}],"IsErroredOnProcessing":false}`,
			want: "",
		},
		{
			name:    "processing error",
			body:    `{"IsErroredOnProcessing":true,"ErrorMessage":["Unable to recognize the file type"]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("apikey") != "k" {
					t.Errorf("apikey = %q", r.Header.Get("apikey"))
				}
				if err := r.ParseForm(); err != nil {
					t.Fatal(err)
				}
				img := r.Form.Get("base64Image")
				if !strings.HasPrefix(img, "data:image/png;base64,") {
					t.Errorf("base64Image = %q", img)
				}
				raw, _ := base64.StdEncoding.DecodeString(strings.TrimPrefix(img, "data:image/png;base64,"))
				if string(raw) != "PNGDATA" {
					t.Errorf("image = %q", raw)
				}
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New(srv.Client(), srv.URL, "k", fastPolicy)
			got, err := c.Extract(context.Background(), []byte("PNGDATA"), "image/png")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Extract() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Extract() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractDisabled(t *testing.T) {
	c := New(nil, "http://unused", "", fastPolicy)
	if _, err := c.Extract(context.Background(), []byte("x"), ""); !errors.Is(err, ErrDisabled) {
		t.Errorf("Extract() error = %v, want ErrDisabled", err)
	}
}
