// Command seed loads sample knowledge documents and FAQs into a running API.
//
//	go run ./cmd/seed data/seed.yaml
//
// API_URL overrides the default http://localhost:8080/api/v1.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wolfman30/support-ai-platform/internal/faqs"
	"github.com/wolfman30/support-ai-platform/internal/knowledge"
	"github.com/wolfman30/support-ai-platform/pkg/logging"
)

// SeedFile is the YAML layout read by the seeder.
type SeedFile struct {
	Documents []knowledge.DocumentRequest `yaml:"documents"`
	FAQs      []seedFAQ                   `yaml:"faqs"`
}

type seedFAQ struct {
	Question string   `yaml:"question"`
	Answer   string   `yaml:"answer"`
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
	Priority int      `yaml:"priority"`
}

func (f seedFAQ) input() faqs.CreateInput {
	return faqs.CreateInput{
		Question: f.Question,
		Answer:   f.Answer,
		Category: faqs.Category(f.Category),
		Keywords: f.Keywords,
		Priority: f.Priority,
	}
}

type seeder struct {
	baseURL string
	client  *http.Client
	logger  *logging.Logger
}

// Result counts what the API accepted.
type Result struct {
	Documents int
	Chunks    int
	FAQs      int
	Failures  int
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: seed <seed-file.yaml>")
		os.Exit(1)
	}
	logger := logging.New(os.Getenv("LOG_LEVEL"))

	seed, err := loadSeedFile(os.Args[1])
	if err != nil {
		logger.Error("failed to load seed file", "error", err)
		os.Exit(1)
	}

	baseURL := strings.TrimRight(os.Getenv("API_URL"), "/")
	if baseURL == "" {
		baseURL = "http://localhost:8080/api/v1"
	}
	s := &seeder{baseURL: baseURL, client: &http.Client{Timeout: 60 * time.Second}, logger: logger}

	res := s.Run(context.Background(), seed)
	logger.Info("seeding complete",
		"documents", res.Documents,
		"chunks", res.Chunks,
		"faqs", res.FAQs,
		"failures", res.Failures,
	)
	if res.Failures > 0 {
		os.Exit(2)
	}
}

func loadSeedFile(path string) (*SeedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var seed SeedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &seed, nil
}

// Run posts every document then every FAQ. A failed item is logged and
// counted; the rest are still sent.
func (s *seeder) Run(ctx context.Context, seed *SeedFile) Result {
	var res Result
	for _, doc := range seed.Documents {
		var out struct {
			ChunksIndexed int `json:"chunks_indexed"`
		}
		if err := s.post(ctx, "/knowledge/documents", doc, &out); err != nil {
			s.logger.Warn("document rejected", "source", doc.Source, "error", err)
			res.Failures++
			continue
		}
		res.Documents++
		res.Chunks += out.ChunksIndexed
	}
	for _, f := range seed.FAQs {
		if err := s.post(ctx, "/faqs", f.input(), nil); err != nil {
			s.logger.Warn("faq rejected", "question", f.Question, "error", err)
			res.Failures++
			continue
		}
		res.FAQs++
	}
	return res
}

func (s *seeder) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
