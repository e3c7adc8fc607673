package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/parley/internal/audio"
	"github.com/soyeahso/parley/internal/config"
	"github.com/soyeahso/parley/internal/media"
	"github.com/soyeahso/parley/internal/realtime"
	"github.com/soyeahso/parley/internal/session"
	"github.com/soyeahso/parley/internal/toolbridge"
)

func newChatCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant from the terminal",
		Long:  "Captures the microphone, streams it to the speech service and plays\nthe spoken replies, printing transcripts as they arrive.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if issues := config.ValidateForSpeech(&cfg); len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("speech is not configured")
			}

			if userID == "" {
				userID = cfg.Server.DefaultUserID
			}
			if userID == "" {
				userID = "anonymous_user"
			}

			registry := toolbridge.NewRegistry()
			toolbridge.RegisterMemoryTools(registry, newMemoryBackend(cfg), log)

			var bopts []toolbridge.Option
			if cfg.Memory.TimeoutSeconds > 0 {
				bopts = append(bopts, toolbridge.WithTimeout(time.Duration(cfg.Memory.TimeoutSeconds)*time.Second))
			}
			bridge := toolbridge.New(registry, userID, log, bopts...)

			var sopts []session.Option
			if cfg.Audio.MaxBufferSeconds > 0 {
				sopts = append(sopts, session.WithPlaybackBudget(
					audio.BytesPerSecond(cfg.Audio.SampleRate)*cfg.Audio.MaxBufferSeconds))
			}

			printer := newChatPrinter()
			sess := session.NewManager(cfg.Speech, realtime.NewDialer(cfg.Speech),
				bridge, registry.Definitions(), printer, log, sopts...)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			speaker, err := media.NewSpeaker(sess.Playback(), cfg.Audio.SampleRate)
			if err != nil {
				return err
			}
			defer speaker.Close()

			mic, err := media.NewMicrophone(cfg.Audio.SampleRate, cfg.Audio.ChunkMS)
			if err != nil {
				return err
			}
			defer mic.Close()

			if err := sess.Connect(ctx); err != nil {
				return err
			}
			defer sess.Disconnect()

			fmt.Printf("Connected as %s. Speak; Ctrl-C to quit.\n", userID)

			// Capture task: cut the mic stream into fixed chunks and feed
			// the session. The speaker drains the playback buffer on its
			// own; these two never touch shared state beyond the session.
			chunkBytes := audio.BytesForMS(cfg.Audio.SampleRate, cfg.Audio.ChunkMS)
			go func() {
				chunk := make([]byte, chunkBytes)
				for {
					if _, err := io.ReadFull(mic, chunk); err != nil {
						return
					}
					if err := sess.SendAudio(chunk); err != nil {
						if errors.Is(err, session.ErrNotConnected) {
							return
						}
						log.Warn().Err(err).Msg("dropping mic chunk")
					}
				}
			}()

			select {
			case <-ctx.Done():
				fmt.Println("\nbye")
				return nil
			case <-printer.failed:
				return fmt.Errorf("speech session ended unexpectedly")
			}
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user identity for memory operations")

	return cmd
}

// chatPrinter renders session events on the terminal. Audio never passes
// through here; the speaker drains the playback buffer directly.
type chatPrinter struct {
	mu       sync.Mutex
	speaking bool
	failOnce sync.Once
	failed   chan struct{}
}

func newChatPrinter() *chatPrinter {
	return &chatPrinter{failed: make(chan struct{})}
}

func (p *chatPrinter) OnStatus(state session.State) {
	if state == session.StateError {
		p.failOnce.Do(func() { close(p.failed) })
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if state == session.StateReady && p.speaking {
		fmt.Println()
		p.speaking = false
	}
}

func (p *chatPrinter) OnAudio([]byte) {}

func (p *chatPrinter) OnTranscript(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.speaking {
		fmt.Print("assistant: ")
		p.speaking = true
	}
	fmt.Print(text)
}

// OnSpeechStarted ends the interrupted transcript line so the next turn
// starts clean.
func (p *chatPrinter) OnSpeechStarted() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.speaking {
		fmt.Println()
		p.speaking = false
	}
}

func (p *chatPrinter) OnError(message string) {
	fmt.Fprintf(os.Stderr, "error: %s\n", message)
}
