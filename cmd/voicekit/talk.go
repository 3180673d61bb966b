package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/VoiceKit/pkg/config"
	"github.com/AltairaLabs/VoiceKit/runtime/catalog"
	"github.com/AltairaLabs/VoiceKit/runtime/logger"
	"github.com/AltairaLabs/VoiceKit/runtime/prompt"
	"github.com/AltairaLabs/VoiceKit/runtime/session"
	"github.com/AltairaLabs/VoiceKit/runtime/transcript"
)

var talkSettings = newSettings()

var talkCmd = &cobra.Command{
	Use:   "talk",
	Short: "Run one voice session",
	Long: `Run one realtime voice session with the configured endpoint. Finished
turns and the inactivity countdown are printed as they happen; lines typed on
stdin are sent as user messages. Ctrl+C ends the session.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd, talkSettings)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runTalk(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(talkCmd)

	f := talkCmd.Flags()
	f.String(flagName(keyTransport), "", "Transport: webrtc or websocket")
	f.String(flagName(keyModel), "", "Realtime model")
	f.String(flagName(keyVoice), "", "Voice for the WebSocket transport")
	f.String(flagName(keyIssuerURL), "", "Token issuer URL")
	f.String(flagName(keyAvatar), "", "Avatar selector sent to the token issuer")
	f.String(flagName(keyDevice), "", "Audio device: portaudio, tone or silence")
	f.Bool(flagName(keyWatchdog), true, "End idle sessions after a countdown")
	f.String(flagName(keyLevel), "", "Learner level: beginner, intermediate or advanced")
	f.String(flagName(keyTopic), "", "Conversation topic")
	f.String(flagName(keyTopicID), "", "Catalog topic ID to resolve")
	f.String(flagName(keyCustomOption), "", "Custom conversation option")
	f.Bool(flagName(keyHints), true, "Ask the assistant for quick reply hints")
	f.String(flagName(keyCatalogURL), "", "Content catalog URL")
	f.String(flagName(keyRedis), "", "Redis address caching catalog lookups")
	f.String(flagName(keyMetricsAddr), "", "Serve Prometheus metrics on this address")
	f.String(flagName(keyOTLP), "", "OTLP/HTTP trace endpoint")

	if err := bindFlags(talkSettings, f,
		keyTransport, keyModel, keyVoice, keyIssuerURL, keyAvatar, keyDevice, keyWatchdog,
		keyLevel, keyTopic, keyTopicID, keyCustomOption, keyHints, keyCatalogURL, keyRedis,
		keyMetricsAddr, keyOTLP,
	); err != nil {
		panic(err)
	}
}

func runTalk(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	obs, err := startObservability(ctx, cfg.Observability)
	if err != nil {
		return err
	}
	defer obs.Close()

	scenario, err := resolveScenario(ctx, cfg)
	if err != nil {
		return err
	}
	pack, err := prompt.PackFor(cfg.Prompt)
	if err != nil {
		return err
	}

	p := newPresenter(out)
	registry, err := newTools(cfg, p.hints)
	if err != nil {
		return err
	}
	source, err := newSource(cfg.Media)
	if err != nil {
		return err
	}
	sink, err := newSink(cfg.Media)
	if err != nil {
		return err
	}
	defer sink.Close()
	tr, err := newTransport(cfg.Realtime)
	if err != nil {
		return err
	}
	issuer, err := newIssuer(cfg)
	if err != nil {
		return err
	}

	ctrl, err := session.New(session.Config{
		Transport:      tr,
		Source:         source,
		Sink:           sink,
		Issuer:         issuer,
		Selector:       cfg.Issuer.Avatar,
		Tools:          registry,
		Pack:           pack,
		Scenario:       scenario,
		Session:        newSessionConfig(cfg.Realtime),
		Policy:         newPolicy(cfg.Watchdog),
		WatchdogTick:   cfg.Watchdog.StepInterval,
		VolumeInterval: cfg.Media.VolumeInterval,
		Bus:            obs.bus,
		TransportName:  cfg.Realtime.Transport,
	})
	if err != nil {
		return err
	}

	ended := make(chan session.Ended, 1)
	ctrl.OnEnded(func(e session.Ended) { ended <- e })
	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()
	go func() {
		for snap := range updates {
			p.render(snap)
		}
	}()

	if err := ctrl.Start(ctx); err != nil {
		fmt.Fprintln(out, session.TextFailed)
		return err
	}
	defer ctrl.Stop()
	fmt.Fprintln(out, session.TextActive)

	go readInput(ctx, in, ctrl)

	select {
	case <-ctx.Done():
		ctrl.Stop()
		e := <-ended
		fmt.Fprintf(out, "%s (%s)\n", session.TextStopped, e.Reason)
		return nil
	case e := <-ended:
		fmt.Fprintf(out, "%s (%s)\n", session.TextStopped, e.Reason)
		if e.Reason == session.ReasonConnection {
			return e.Err
		}
		return nil
	}
}

// resolveScenario builds the priming scenario, filling the topic from the
// catalog when a topic ID is configured.
func resolveScenario(ctx context.Context, cfg *config.Config) (prompt.Scenario, error) {
	scenario := prompt.ScenarioFromConfig(cfg.Prompt)
	if cfg.Prompt.TopicID == "" {
		return scenario, nil
	}

	cat, closeCat, err := newCatalog(cfg.Catalog)
	if err != nil {
		return scenario, err
	}
	defer func() {
		if err := closeCat(); err != nil {
			logger.Debug("failed to close catalog cache", "error", err)
		}
	}()

	info, err := catalog.ResolveTopic(ctx, cat, cfg.Prompt.TopicID)
	if err != nil {
		return scenario, fmt.Errorf("failed to resolve topic %q: %w", cfg.Prompt.TopicID, err)
	}
	applyTopic(&scenario, info)
	return scenario, nil
}

// applyTopic names the scenario after the catalog topic and fills the
// subtopic description from the catalog when one was not configured.
func applyTopic(s *prompt.Scenario, info catalog.TopicInfo) {
	if s.Topic == "" {
		s.Topic = info.Name
	}
	if s.Subtopic.Name == "" || s.Subtopic.Description != "" {
		return
	}
	for _, sub := range info.Subtopics {
		if strings.EqualFold(sub.Name(), s.Subtopic.Name) {
			s.Subtopic.Description = sub.Description()
			return
		}
	}
}

func readInput(ctx context.Context, in io.Reader, ctrl *session.Controller) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		err := ctrl.SendText(scanner.Text())
		switch {
		case err == nil, errors.Is(err, session.ErrEmptyMessage):
		case errors.Is(err, session.ErrNotActive):
			return
		default:
			logger.Warn("failed to send message", "error", err)
		}
	}
}

// presenter prints finished turns, countdown changes and hints.
type presenter struct {
	mu        sync.Mutex
	out       io.Writer
	printed   map[string]bool
	countdown int
}

func newPresenter(out io.Writer) *presenter {
	return &presenter{out: out, printed: make(map[string]bool)}
}

func (p *presenter) render(snap session.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, turn := range snap.Transcript {
		if !turn.IsFinal || p.printed[turn.ID] {
			continue
		}
		p.printed[turn.ID] = true
		if turn.Text == "" {
			continue
		}
		fmt.Fprintf(p.out, "%s: %s\n", speaker(turn.Role), turn.Text)
	}

	if snap.Countdown != p.countdown {
		p.countdown = snap.Countdown
		if snap.Countdown > 0 {
			fmt.Fprintf(p.out, "Session ends in %ds unless you speak\n", snap.Countdown)
		}
	}
	if snap.SessionID == "" {
		clear(p.printed)
	}
}

func (p *presenter) hints(hints []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "Try: %s\n", strings.Join(hints, " | "))
}

func speaker(r transcript.Role) string {
	if r == transcript.RoleUser {
		return "You"
	}
	return "Assistant"
}
