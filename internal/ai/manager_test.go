package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type stubGenerator struct {
	out    string
	err    error
	prompt string
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.out, s.err
}

type stubEmbedder struct {
	dim   int
	err   error
	calls int
}

func (s *stubEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	res, err := s.EmbedBatch(ctx, []string{text}, taskType)
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, s.dim)
	}
	return out, nil
}

func (s *stubEmbedder) ModelName() string {
	return "stub-embedding"
}

func TestParseVariants(t *testing.T) {
	tests := []struct {
		name   string
		output string
		max    int
		want   []string
	}{
		{name: "plain lines", output: "a b\nc d\n", max: 9, want: []string{"a b", "c d"}},
		{name: "blank lines dropped", output: "\n\na b\n\n  \nc d", max: 9, want: []string{"a b", "c d"}},
		{name: "numbering and bullets stripped", output: "1. neural fields\n2) implicit surfaces\n- radiance fields\n* \"gaussian splats\"", max: 9,
			want: []string{"neural fields", "implicit surfaces", "radiance fields", "gaussian splats"}},
		{name: "capped", output: "a\nb\nc", max: 2, want: []string{"a", "b"}},
		{name: "duplicates kept", output: "a\na", max: 9, want: []string{"a", "a"}},
		{name: "leading year kept", output: "2025 benchmarks for 3D", max: 9, want: []string{"2025 benchmarks for 3D"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, parseVariants(tt.output, tt.max))
		})
	}
}

func TestManagerExpandQuery(t *testing.T) {
	gen := &stubGenerator{out: "diffusion models\nscore based generative models"}
	m := NewManager(gen, nil, ManagerConfig{Timeout: time.Second})
	variants, err := m.ExpandQuery(context.Background(), "diffusion", 9)
	require.NoError(t, err)
	require.Equal(t, []string{"diffusion models", "score based generative models"}, variants)
	require.Contains(t, gen.prompt, `"diffusion"`)
	require.Contains(t, gen.prompt, "Generate 9 different variations")

	m = NewManager(&stubGenerator{err: errors.New("boom")}, nil, ManagerConfig{})
	_, err = m.ExpandQuery(context.Background(), "diffusion", 9)
	require.Error(t, err)

	m = NewManager(nil, nil, ManagerConfig{})
	_, err = m.ExpandQuery(context.Background(), "diffusion", 9)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestManagerEmbedBatchChecksDimension(t *testing.T) {
	m := NewManager(nil, &stubEmbedder{dim: 768}, ManagerConfig{Dimension: 768})
	res, err := m.EmbedBatch(context.Background(), []string{"a", "b"}, TaskTypeUnspecified)
	require.NoError(t, err)
	require.Len(t, res, 2)

	m = NewManager(nil, &stubEmbedder{dim: 1536}, ManagerConfig{Dimension: 768})
	_, err = m.EmbedBatch(context.Background(), []string{"a"}, TaskTypeUnspecified)
	require.Error(t, err)
}

func TestGroupEmbedderRejectsMixedModels(t *testing.T) {
	p := &fakeProvider{}
	_, err := NewGroupEmbedder([]EmbedderEntry{
		{Name: "a", Embedder: NewEmbedder(p, "text-embedding-004")},
		{Name: "b", Embedder: NewEmbedder(p, "gemini-embedding-001")},
	})
	require.Error(t, err)
}

func TestGroupEmbedderFailsOver(t *testing.T) {
	bad := &fakeProvider{err: errors.New("quota")}
	good := &fakeProvider{dim: 4}
	group, err := NewGroupEmbedder([]EmbedderEntry{
		{Name: "key-1", Embedder: NewEmbedder(bad, "text-embedding-004")},
		{Name: "key-2", Embedder: NewEmbedder(good, "text-embedding-004")},
	})
	require.NoError(t, err)
	require.Equal(t, "text-embedding-004", group.ModelName())
	res, err := group.EmbedBatch(context.Background(), []string{"x", "y"}, TaskTypeUnspecified)
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Equal(t, 1, bad.calls)
	require.Equal(t, 1, good.calls)
}

func TestEmbedderRejectsShortBatch(t *testing.T) {
	e := NewEmbedder(&fakeProvider{dim: 4, short: true}, "m")
	_, err := e.EmbedBatch(context.Background(), []string{"x", "y"}, TaskTypeUnspecified)
	require.Error(t, err)
}

type fakeProvider struct {
	dim   int
	err   error
	short bool
	calls int
}

func (f *fakeProvider) Name() string {
	return "fake"
}

func (f *fakeProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	return "", ErrUnavailable
}

func (f *fakeProvider) Embed(ctx context.Context, model string, texts []string, taskType string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	n := len(texts)
	if f.short {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}

func TestWithRateLimitHonorsContext(t *testing.T) {
	inner := &stubEmbedder{dim: 2}
	e := WithRateLimit(inner, rate.NewLimiter(rate.Every(time.Hour), 1))
	_, err := e.EmbedBatch(context.Background(), []string{"a"}, TaskTypeUnspecified)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = e.EmbedBatch(ctx, []string{"b"}, TaskTypeUnspecified)
	require.Error(t, err)
	require.Equal(t, 1, inner.calls)
}
