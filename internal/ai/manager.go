package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type ManagerConfig struct {
	Timeout   time.Duration
	Dimension int
}

// Manager owns the prompts and call budgets of the two external models the
// search path depends on: the query expander and the embedder.
type Manager struct {
	expander IGenerator
	embedder IEmbedder
	cfg      ManagerConfig
}

func NewManager(expander IGenerator, embedder IEmbedder, cfg ManagerConfig) *Manager {
	return &Manager{
		expander: expander,
		embedder: embedder,
		cfg:      cfg,
	}
}

// ExpandQuery asks the generator for up to n rephrasings of query, one per
// line. The original query is not part of the result.
func (m *Manager) ExpandQuery(ctx context.Context, query string, n int) ([]string, error) {
	if m.expander == nil {
		return nil, ErrUnavailable
	}
	if n <= 0 {
		return nil, nil
	}
	prompt := fmt.Sprintf(`Given the research query: "%s"
Generate %d different variations of this query that a researcher might use to search for the same topic.
Focus on academic and technical variations. The variations should be different from the original query.
Avoid using generic words like "research", "study", "explore", "investigate".
Return only the variations, one per line, without any additional text or numbering.`, query, n)
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	resp, err := m.expander.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseVariants(resp, n), nil
}

// EmbedBatch embeds texts in one provider call and checks every vector has
// the configured dimension.
func (m *Manager) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if m.embedder == nil {
		return nil, ErrUnavailable
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	res, err := m.embedder.EmbedBatch(ctx, texts, taskType)
	if err != nil {
		return nil, err
	}
	if len(res) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d texts", len(res), len(texts))
	}
	if m.cfg.Dimension > 0 {
		for i, vec := range res {
			if len(vec) != m.cfg.Dimension {
				return nil, fmt.Errorf("embedding %d has dimension %d, want %d", i, len(vec), m.cfg.Dimension)
			}
		}
	}
	return res, nil
}

func (m *Manager) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	res, err := m.EmbedBatch(ctx, []string{text}, taskType)
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

func (m *Manager) ModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, m.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

func parseVariants(output string, max int) []string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = cleanVariant(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) >= max {
			break
		}
	}
	return out
}

func cleanVariant(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "-*• ")
	// "1." / "2)" numbering
	if i := strings.IndexAny(line, ".)"); i > 0 && i <= 3 && isDigits(line[:i]) {
		line = line[i+1:]
	}
	line = strings.TrimSpace(line)
	line = strings.Trim(line, `"`)
	return strings.TrimSpace(line)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
