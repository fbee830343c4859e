package doctor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/quedo/internal/config"
	"github.com/rbright/quedo/internal/provider"
)

type fakeAdapter struct {
	kind    provider.Kind
	healthy bool
}

func (f *fakeAdapter) Kind() provider.Kind { return f.kind }

func (f *fakeAdapter) Transcribe(context.Context, provider.Request) (provider.Response, error) {
	return provider.Response{}, nil
}

func (f *fakeAdapter) CheckHealth(context.Context, int) bool { return f.healthy }

func TestReportOKAndLines(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	lines := report.Lines()
	require.Contains(t, lines, "[OK] one: good")
	require.Contains(t, lines, "[FAIL] two: bad")
}

func TestCheckConfigValidPassesOnDefaults(t *testing.T) {
	check := checkConfigValid(config.Default())
	require.True(t, check.Pass)
}

func TestCheckConfigValidReportsIssues(t *testing.T) {
	settings := config.Default()
	settings.OutputMode = "bogus"

	check := checkConfigValid(settings)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "outputMode")
}

func TestCheckProviderHealthMissingAdapter(t *testing.T) {
	registry := provider.NewRegistry()
	check := checkProviderHealth(context.Background(), registry, config.ProviderKind(provider.Groq), 5, "provider.primary")
	require.False(t, check.Pass)
}

func TestCheckProviderHealthHealthyAdapter(t *testing.T) {
	registry := provider.NewRegistry(&fakeAdapter{kind: provider.Groq, healthy: true})
	check := checkProviderHealth(context.Background(), registry, config.ProviderKind(provider.Groq), 5, "provider.primary")
	require.True(t, check.Pass)
}

func TestCheckProviderHealthUnhealthyAdapter(t *testing.T) {
	registry := provider.NewRegistry(&fakeAdapter{kind: provider.Groq, healthy: false})
	check := checkProviderHealth(context.Background(), registry, config.ProviderKind(provider.Groq), 5, "provider.primary")
	require.False(t, check.Pass)
}

func TestCheckOutputToolingSkipsWhenOutputNone(t *testing.T) {
	settings := config.Default()
	settings.OutputMode = config.OutputNone
	require.Empty(t, checkOutputTooling(settings))
}

func TestCheckOutputToolingChecksClipboardAndPaste(t *testing.T) {
	settings := config.Default()
	settings.OutputMode = config.OutputClipboardPaste

	checks := checkOutputTooling(settings)
	require.Len(t, checks, 2)
}

func TestCheckBinaryPresenceFound(t *testing.T) {
	check := checkBinaryPresence("shell", "sh")
	require.True(t, check.Pass)
}

func TestCheckBinaryPresenceMissing(t *testing.T) {
	check := checkBinaryPresence("bogus", "definitely-not-a-real-binary")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "binary not found")
}
