package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/rbright/quedo/internal/audio"
	"github.com/rbright/quedo/internal/cli"
	"github.com/rbright/quedo/internal/config"
	"github.com/rbright/quedo/internal/coordinator"
	"github.com/rbright/quedo/internal/diagnostics"
	"github.com/rbright/quedo/internal/doctor"
	"github.com/rbright/quedo/internal/fsm"
	"github.com/rbright/quedo/internal/history"
	"github.com/rbright/quedo/internal/hotkey"
	"github.com/rbright/quedo/internal/ipc"
	"github.com/rbright/quedo/internal/logging"
	"github.com/rbright/quedo/internal/output"
	"github.com/rbright/quedo/internal/pipeline"
	"github.com/rbright/quedo/internal/provider"
	"github.com/rbright/quedo/internal/version"
)

// Process exit codes, fixed across every command.
const (
	exitOK          = 0
	exitUsage       = 64
	exitDataError   = 65
	exitUnavailable = 69
	exitIOError     = 74
)

// Default platform tool invocations for the exec-dispatch collaborators
// that have no dedicated settings field.
var (
	defaultNativeHotkeyListenerArgv = []string{"hyprctl", "hotkeylisten"}
	defaultModifierQueryArgv        = []string{"hyprctl", "hotkeystate"}
	defaultClipboardArgv            = []string{"wl-copy"}
	defaultPasteArgv                = []string{"wtype"}
)

// forwardTimeout bounds one CLI-to-daemon IPC round trip.
const forwardTimeout = 500 * time.Millisecond

// Runner holds process-level dependencies used by command handlers.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Execute is the package entrypoint used by cmd/quedo/main.go.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

// Execute parses CLI arguments, loads config/logging, and dispatches a command.
func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("quedo"))
		return exitUsage
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("quedo"))
		return exitOK
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return exitOK
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return exitIOError
	}
	defer func() { _ = logRuntime.Close() }()
	logger := logRuntime.Logger

	cfgLoaded, err := config.Load(parsed.ConfigPath, "")
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error().Err(err).Msg("load config failed")
		return exitIOError
	}

	logger.Info().
		Str("command", string(parsed.Command)).
		Str("config", cfgLoaded.Path).
		Str("log", logRuntime.Path).
		Msg("command start")

	switch parsed.Command {
	case cli.CommandDoctor:
		return r.commandDoctor(ctx, cfgLoaded.Settings)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStop:
		return r.commandStop(ctx)
	case cli.CommandRestart:
		return r.commandRestart(ctx, cfgLoaded, logger)
	case cli.CommandStart:
		return r.commandStart(ctx, cfgLoaded, logger)
	case cli.CommandLogs:
		return r.commandLogs(logRuntime.Path, parsed.StderrOnly)
	case cli.CommandConfig:
		return r.commandConfig(parsed.Sub, cfgLoaded)
	case cli.CommandHistory:
		return r.commandHistory(ctx, parsed, cfgLoaded)
	case cli.CommandTranscribe:
		return r.commandTranscribeFile(ctx, parsed.Path, cfgLoaded.Settings)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return exitUsage
	}
}

// commandStatus queries a running daemon, if any, and prints its lifecycle
// state. No running daemon is reported as "idle", not an error.
func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return exitOK
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.CommandStatus)
	if !handled {
		fmt.Fprintln(r.Stdout, "idle")
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitUnavailable
	}

	state := resp.State
	if state == "" {
		state = "idle"
	}
	if resp.Message != "" {
		fmt.Fprintf(r.Stdout, "%s (%s)\n", state, resp.Message)
		return exitOK
	}
	fmt.Fprintln(r.Stdout, state)
	return exitOK
}

// commandStop asks a running daemon to shut itself down.
func (r Runner) commandStop(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitUnavailable
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.CommandShutdown)
	if !handled {
		fmt.Fprintln(r.Stderr, "error: quedo is not running")
		return exitUnavailable
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitUnavailable
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return exitOK
}

// commandRestart shuts down any running daemon, waits for its socket to
// clear, then runs the same foreground startup sequence as commandStart.
func (r Runner) commandRestart(ctx context.Context, cfgLoaded config.Loaded, logger zerolog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err == nil {
		if _, handled, _ := tryForward(ctx, socketPath, ipc.CommandShutdown); handled {
			waitForSocketGone(ctx, socketPath)
		}
	}
	return r.commandStart(ctx, cfgLoaded, logger)
}

// waitForSocketGone polls the runtime socket until no owner answers or a
// short deadline elapses, so a restart doesn't race the outgoing daemon's
// own socket teardown.
func waitForSocketGone(ctx context.Context, socketPath string) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		alive, err := ipc.Probe(ctx, socketPath, 150*time.Millisecond)
		if err != nil || !alive {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// commandStart acquires the single-instance runtime socket, wires every
// component, and blocks serving hotkey/IPC events until the process is
// signaled or a `stop`/`restart` request arrives over the socket.
func (r Runner) commandStart(ctx context.Context, cfgLoaded config.Loaded, logger zerolog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitUnavailable
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: quedo is already running")
			return exitUnavailable
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitIOError
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	settings := cfgLoaded.Settings

	secretsPath, err := config.SecretsPath("")
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitIOError
	}
	registry := buildProviderRegistry(settings, config.NewSecretStore(secretsPath))

	historyStore, err := history.Open(historyBasePath(cfgLoaded.Path), func(reason string) {
		logger.Warn().Str("reason", reason).Msg("history store degraded")
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: open history store: %v\n", err)
		return exitIOError
	}
	defer func() { _ = historyStore.Close() }()

	metrics := diagnostics.NewMetrics(prometheus.NewRegistry())
	center := diagnostics.NewCenter(metrics, historyStore)

	engine := audio.NewEngine(os.TempDir())
	if err := engine.PrepareEngine(ctx, settings.AudioInput, settings.AudioFallback); err != nil {
		logger.Warn().Err(err).Msg("audio device preparation failed; capture will fail until resolved")
	}

	chunker := pipeline.NewWAVFrameChunker(os.TempDir())
	transcriber := pipeline.NewPipeline(registry, chunker)

	clipboard := output.NewExecClipboardWriter(defaultClipboardArgv)
	paste := output.NewExecPasteDispatcher(defaultPasteArgv)
	router := output.NewRouter(clipboard, paste)

	machine := fsm.New()
	settingsProvider := &staticSettingsProvider{settings: settings}
	coord := coordinator.New(machine, engine, transcriber, router, historyStore, center, settingsProvider)

	hotkeyLogPath := filepath.Join(filepath.Dir(cfgLoaded.Path), "logs", "hotkeys.log")
	hotkeyLog, err := hotkey.NewFileEventLog(hotkeyLogPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: open hotkey log: %v\n", err)
		return exitIOError
	}
	defer func() { _ = hotkeyLog.Close() }()

	native := hotkey.NewExecNativeBackend(defaultNativeHotkeyListenerArgv)
	monitor := hotkey.NewMonitorBackend(hotkey.NewExecModifierState(defaultModifierQueryArgv))
	hkService := hotkey.NewService(native, monitor, hotkeyLog)

	daemonCtx, daemonCancel := context.WithCancel(ctx)
	defer daemonCancel()

	if err := hkService.SetBindings(settings.Hotkeys, func(action config.ActionID, edge hotkey.Edge) {
		coord.HandleHotkeyAction(daemonCtx, action, edge, settings.Interaction)
	}); err != nil {
		logger.Error().Err(err).Msg("hotkey binding failed; IPC control is still available")
	}
	defer hkService.Deactivate()

	handler := ipc.HandlerFunc(func(handleCtx context.Context, req ipc.Request) ipc.Response {
		switch req.Command {
		case ipc.CommandShutdown:
			defer daemonCancel()
			return ipc.Response{OK: true, Message: "shutting down"}
		case ipc.CommandHistory:
			return historyResponse(handleCtx, historyStore)
		case ipc.CommandLogs:
			return logsResponse(logRuntime.Path)
		case ipc.CommandDoctor:
			report := doctor.Run(handleCtx, settingsProvider.Current(), registry)
			return ipc.Response{OK: report.OK(), Lines: report.Lines()}
		default:
			return coord.Handle(handleCtx, req)
		}
	})

	serverErrCh := make(chan error, 1)
	go func() { serverErrCh <- ipc.Serve(daemonCtx, listener, handler) }()

	logger.Info().Str("socket", socketPath).Msg("quedo started")
	<-daemonCtx.Done()

	hkService.Deactivate()
	if serverErr := <-serverErrCh; serverErr != nil {
		logger.Error().Err(serverErr).Msg("ipc server stopped with error")
	}

	logger.Info().Msg("quedo stopped")
	return exitOK
}

// staticSettingsProvider hands the coordinator a fixed settings snapshot
// resolved once at daemon startup.
type staticSettingsProvider struct {
	settings config.AppSettings
}

func (p *staticSettingsProvider) Current() config.AppSettings { return p.settings }

// historyBasePath derives the history store's directory from the resolved
// settings document path, keeping the two siblings under the same
// application-support root.
func historyBasePath(settingsPath string) string {
	return filepath.Join(filepath.Dir(settingsPath), "history")
}

// buildProviderRegistry constructs adapters for the configured primary and,
// if distinct, fallback provider kinds, loading each adapter's API key from
// secrets.
func buildProviderRegistry(settings config.AppSettings, secrets *config.SecretStore) *provider.Registry {
	var adapters []provider.Adapter
	if a := buildAdapter(settings.Provider.Primary, settings.Provider.PrimaryModel, secrets); a != nil {
		adapters = append(adapters, a)
	}
	if settings.Provider.Fallback != "" && settings.Provider.Fallback != settings.Provider.Primary {
		if a := buildAdapter(settings.Provider.Fallback, settings.Provider.FallbackModel, secrets); a != nil {
			adapters = append(adapters, a)
		}
	}
	return provider.NewRegistry(adapters...)
}

func buildAdapter(kind config.ProviderKind, model string, secrets *config.SecretStore) provider.Adapter {
	switch kind {
	case config.ProviderGroq:
		apiKey, _ := secrets.LoadSecret(config.SecretGroqAPIKey)
		return provider.NewGroqAdapter(apiKey, model)
	case config.ProviderOpenAI:
		apiKey, _ := secrets.LoadSecret(config.SecretOpenAIAPIKey)
		return provider.NewOpenAIAdapter(apiKey, model)
	default:
		return nil
	}
}

func pipelineSettingsFromAppSettings(settings config.AppSettings) pipeline.Settings {
	return pipeline.Settings{
		Primary:         provider.Kind(settings.Provider.Primary),
		Fallback:        provider.Kind(settings.Provider.Fallback),
		TimeoutSeconds:  settings.Provider.TimeoutSeconds,
		PrimaryModel:    settings.Provider.PrimaryModel,
		FallbackModel:   settings.Provider.FallbackModel,
		Language:        settings.Language,
		VocabularyHints: settings.VocabularyHints,
	}
}

// commandDoctor prefers a running daemon's live registry and settings;
// absent one, it builds an ephemeral registry to run the same checks.
func (r Runner) commandDoctor(ctx context.Context, settings config.AppSettings) int {
	if socketPath, err := ipc.RuntimeSocketPath(); err == nil {
		resp, handled, forwardErr := tryForward(ctx, socketPath, ipc.CommandDoctor)
		if handled {
			if forwardErr != nil {
				fmt.Fprintf(r.Stderr, "error: %v\n", forwardErr)
				return exitUnavailable
			}
			for _, line := range resp.Lines {
				fmt.Fprintln(r.Stdout, line)
			}
			if resp.OK {
				return exitOK
			}
			return exitDataError
		}
	}

	secretsPath, err := config.SecretsPath("")
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitIOError
	}
	registry := buildProviderRegistry(settings, config.NewSecretStore(secretsPath))
	report := doctor.Run(ctx, settings, registry)
	for _, line := range report.Lines() {
		fmt.Fprintln(r.Stdout, line)
	}
	if report.OK() {
		return exitOK
	}
	return exitDataError
}

// commandLogs prints recent lines from the rotating log file, optionally
// narrowed to error-level entries.
func (r Runner) commandLogs(logPath string, stderrOnly bool) int {
	lines, err := readLogLines(logPath, 200)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitIOError
	}
	for _, line := range lines {
		if stderrOnly && !strings.Contains(line, `"level":"error"`) {
			continue
		}
		fmt.Fprintln(r.Stdout, line)
	}
	return exitOK
}

func readLogLines(path string, max int) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read log %q: %w", path, err)
	}

	trimmed := strings.TrimRight(string(content), "\n")
	if trimmed == "" {
		return nil, nil
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	return lines, nil
}

func logsResponse(logPath string) ipc.Response {
	lines, err := readLogLines(logPath, 200)
	if err != nil {
		return ipc.Response{OK: false, Error: err.Error()}
	}
	return ipc.Response{OK: true, Lines: lines}
}

func historyResponse(ctx context.Context, store *history.Store) ipc.Response {
	summaries, err := store.ListSessions(ctx, 20)
	if err != nil {
		return ipc.Response{OK: false, Error: err.Error()}
	}
	lines := make([]string, 0, len(summaries))
	for i, summary := range summaries {
		lines = append(lines, formatSessionSummaryLine(i+1, summary))
	}
	return ipc.Response{OK: true, Lines: lines}
}

func formatSessionSummaryLine(index int, s history.Summary) string {
	return fmt.Sprintf("%2d. %s  %-8s  %6dms  %s", index, s.StartedAt.Format(time.RFC3339), s.Provider, s.DurationMS, s.Status)
}

// commandConfig prints or opens the resolved settings document.
func (r Runner) commandConfig(sub string, cfgLoaded config.Loaded) int {
	switch sub {
	case "show":
		encoded, err := yaml.Marshal(cfgLoaded.Settings)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return exitIOError
		}
		fmt.Fprint(r.Stdout, string(encoded))
		return exitOK
	case "edit":
		if !cfgLoaded.Existed {
			if err := config.Save(cfgLoaded.Path, cfgLoaded.Settings); err != nil {
				fmt.Fprintf(r.Stderr, "error: %v\n", err)
				return exitIOError
			}
		}
		editor := strings.TrimSpace(os.Getenv("EDITOR"))
		if editor == "" {
			editor = "vi"
		}
		cmd := exec.Command(editor, cfgLoaded.Path)
		cmd.Stdin = os.Stdin
		cmd.Stdout = r.Stdout
		cmd.Stderr = r.Stderr
		if err := cmd.Run(); err != nil {
			fmt.Fprintf(r.Stderr, "error: launch editor %q: %v\n", editor, err)
			return exitIOError
		}
		return exitOK
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported config subcommand %q\n", sub)
		return exitUsage
	}
}

// commandHistory dispatches the history list/play/transcribe subcommands
// against the history store directly; it does not require a running daemon.
func (r Runner) commandHistory(ctx context.Context, parsed cli.Parsed, cfgLoaded config.Loaded) int {
	store, err := history.Open(historyBasePath(cfgLoaded.Path), nil)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: open history store: %v\n", err)
		return exitIOError
	}
	defer func() { _ = store.Close() }()

	switch parsed.Sub {
	case "list":
		summaries, err := store.ListSessions(ctx, 20)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return exitIOError
		}
		if len(summaries) == 0 {
			fmt.Fprintln(r.Stdout, "no sessions recorded")
			return exitOK
		}
		for i, summary := range summaries {
			fmt.Fprintln(r.Stdout, formatSessionSummaryLine(i+1, summary))
		}
		return exitOK

	case "play":
		sessionID, ok := sessionIDForIndex(ctx, store, parsed.Index)
		if !ok {
			fmt.Fprintf(r.Stderr, "error: no session at index %d\n", parsed.Index)
			return exitDataError
		}
		path, err := store.PrimaryAudioFileURL(ctx, sessionID)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return exitIOError
		}
		if path == nil {
			fmt.Fprintln(r.Stderr, "error: session has no recording")
			return exitDataError
		}
		if err := playAudioFile(ctx, *path); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return exitIOError
		}
		return exitOK

	case "transcribe":
		return r.commandRetranscribeSession(ctx, store, parsed.Index, cfgLoaded.Settings)

	default:
		fmt.Fprintf(r.Stderr, "error: unsupported history subcommand %q\n", parsed.Sub)
		return exitUsage
	}
}

func sessionIDForIndex(ctx context.Context, store *history.Store, index int) (string, bool) {
	if index < 1 {
		return "", false
	}
	summaries, err := store.ListSessions(ctx, index)
	if err != nil || len(summaries) < index {
		return "", false
	}
	return summaries[index-1].SessionID, true
}

func playAudioFile(ctx context.Context, path string) error {
	out, err := exec.CommandContext(ctx, "paplay", path).CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return fmt.Errorf("play %q: %w", path, err)
		}
		return fmt.Errorf("play %q: %w (%s)", path, err, trimmed)
	}
	return nil
}

// commandRetranscribeSession re-runs the pipeline against an existing
// session's stored audio and saves the result as a new session, leaving
// the original session and its recording untouched.
func (r Runner) commandRetranscribeSession(ctx context.Context, store *history.Store, index int, settings config.AppSettings) int {
	sessionID, ok := sessionIDForIndex(ctx, store, index)
	if !ok {
		fmt.Fprintf(r.Stderr, "error: no session at index %d\n", index)
		return exitDataError
	}
	audioPath, err := store.PrimaryAudioFileURL(ctx, sessionID)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitIOError
	}
	if audioPath == nil {
		fmt.Fprintln(r.Stderr, "error: session has no recording to transcribe")
		return exitDataError
	}

	secretsPath, err := config.SecretsPath("")
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitIOError
	}
	registry := buildProviderRegistry(settings, config.NewSecretStore(secretsPath))
	transcriber := pipeline.NewPipeline(registry, pipeline.NewWAVFrameChunker(os.TempDir()))

	result, err := transcriber.Transcribe(ctx, *audioPath, pipelineSettingsFromAppSettings(settings), nil)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitUnavailable
	}

	now := time.Now().UTC()
	record := history.Record{
		SessionID:    uuid.NewString(),
		StartedAt:    now,
		EndedAt:      now,
		Provider:     string(result.ProviderUsed),
		FallbackUsed: result.FallbackUsed,
		Language:     settings.Language,
		OutputMode:   string(settings.OutputMode),
		Status:       "success",
		Transcript:   result.Text,
	}
	if err := store.SaveSession(ctx, record); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitIOError
	}

	fmt.Fprintln(r.Stdout, result.Text)
	return exitOK
}

// commandTranscribeFile runs the pipeline against an arbitrary audio file,
// independent of the coordinator's session lifecycle and the history store.
func (r Runner) commandTranscribeFile(ctx context.Context, path string, settings config.AppSettings) int {
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitIOError
	}

	secretsPath, err := config.SecretsPath("")
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitIOError
	}
	registry := buildProviderRegistry(settings, config.NewSecretStore(secretsPath))
	transcriber := pipeline.NewPipeline(registry, pipeline.NewWAVFrameChunker(os.TempDir()))

	result, err := transcriber.Transcribe(ctx, path, pipelineSettingsFromAppSettings(settings), nil)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitUnavailable
	}

	fmt.Fprintln(r.Stdout, result.Text)
	return exitOK
}

// tryForward attempts to send a command to a running daemon and classifies
// the outcome. handled=false means no daemon answered the socket.
func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, forwardTimeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) || isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}
	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) || strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
