package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soyeahso/parley/internal/config"
	"github.com/soyeahso/parley/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show parley status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Parley %s (commit %s)\n\n", version.Version, version.Commit)

			// Show paths
			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Logs:    %s\n", paths.Logs)
			fmt.Println()

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Printf("Config:  error loading: %v\n", err)
				return nil
			}

			auth := "off"
			if cfg.Server.AuthToken != "" {
				auth = "token"
			}
			fmt.Printf("Server:  host=%s port=%d auth=%s metrics=%v\n",
				cfg.Server.Host, cfg.Server.Port, auth, cfg.Server.Metrics)

			endpoint := cfg.Speech.Endpoint
			if endpoint == "" {
				endpoint = "(not configured)"
			}
			fmt.Printf("Speech:  endpoint=%s model=%s voice=%s\n",
				endpoint, cfg.Speech.Model, cfg.Speech.Voice.Name)

			if cfg.MemoryEnabled() {
				fmt.Printf("Memory:  url=%s app=%s timeout=%ds\n",
					cfg.Memory.BaseURL, cfg.Memory.App, cfg.Memory.TimeoutSeconds)
			} else {
				fmt.Println("Memory:  disabled")
			}

			fmt.Printf("Audio:   rate=%dHz chunk=%dms buffer=%ds\n",
				cfg.Audio.SampleRate, cfg.Audio.ChunkMS, cfg.Audio.MaxBufferSeconds)

			issues := config.Validate(&cfg)
			issues = append(issues, config.ValidateForSpeech(&cfg)...)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}
