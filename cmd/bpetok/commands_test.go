package main

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/go-bpe/internal/testutil"
)

func TestBenchCmd_JSON(t *testing.T) {
	path := testutil.WriteVocab(t, cliVocab)

	out, err := runCLI(t, "", "bench", "--vocab", path, "--text", "Hello world. How are you?", "--runs", "2", "--format", "json")
	if err != nil {
		t.Fatalf("bench: %v", err)
	}

	var report struct {
		Runs []struct {
			Tokens int `json:"tokens"`
		} `json:"runs"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}

	if len(report.Runs) != 2 || report.Runs[0].Tokens != 9 {
		t.Errorf("report = %+v", report)
	}
}

func TestBenchCmd_Validation(t *testing.T) {
	path := testutil.WriteVocab(t, cliVocab)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing text", []string{"bench", "--vocab", path}, "--text is required"},
		{"zero runs", []string{"bench", "--vocab", path, "--text", "a", "--runs", "0"}, "--runs must be at least 1"},
		{"bad format", []string{"bench", "--vocab", path, "--text", "a", "--format", "xml"}, "--format must be"},
		{"throughput gate", []string{"bench", "--vocab", path, "--text", "a", "--runs", "1", "--min-throughput", "1e18"}, "below minimum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, "", tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestDoctorCmd(t *testing.T) {
	path := testutil.WriteVocab(t, cliVocab)

	out, err := runCLI(t, "", "doctor", "--vocab", path, "--vocab-dir", t.TempDir())
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}

	for _, want := range []string{"vocabulary " + path, "tokenize smoke test: <s> ▁hello ▁world </s>", "doctor checks passed"} {
		if !strings.Contains(out, want) {
			t.Errorf("doctor output missing %q:\n%s", want, out)
		}
	}
}

func TestDoctorCmd_FailsOnMissingVocabulary(t *testing.T) {
	_, err := runCLI(t, "", "doctor", "--vocab", "/nonexistent/vocab.txt")
	if err == nil || !strings.Contains(err.Error(), "doctor checks failed") {
		t.Errorf("err = %v, want doctor checks failed", err)
	}
}

func TestHealthCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	t.Cleanup(srv.Close)

	addr := strings.TrimPrefix(srv.URL, "http://")

	out, err := runCLI(t, "", "health", "--addr", addr)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if out != "ok\n" {
		t.Errorf("output = %q", out)
	}
}

func TestHealthCmd_UsesListenAddrAndFailsWhenDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	if _, err := runCLI(t, "", "health", "--listen-addr", addr); err == nil {
		t.Error("want error probing a closed port")
	}
}
