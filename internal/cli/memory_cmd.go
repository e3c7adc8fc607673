package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/parley/internal/config"
	"github.com/soyeahso/parley/internal/memory"
)

func newMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and manage long-term memories",
	}

	cmd.AddCommand(newMemoryRecentCmd())
	cmd.AddCommand(newMemorySearchCmd())
	cmd.AddCommand(newMemoryAddCmd())
	cmd.AddCommand(newMemoryForgetCmd())
	return cmd
}

// newMemoryBackend builds the configured memory client, or the disabled
// stub when the feature is off.
func newMemoryBackend(cfg config.Config) memory.Bridge {
	if !cfg.MemoryEnabled() || cfg.Memory.BaseURL == "" {
		return memory.Disabled{}
	}
	var opts []memory.ClientOption
	if cfg.Memory.TimeoutSeconds > 0 {
		opts = append(opts, memory.WithTimeout(time.Duration(cfg.Memory.TimeoutSeconds)*time.Second))
	}
	if cfg.Memory.App != "" {
		opts = append(opts, memory.WithApp(cfg.Memory.App))
	}
	if cfg.Memory.AuthToken != "" {
		opts = append(opts, memory.WithAuthToken(cfg.Memory.AuthToken))
	}
	return memory.NewClient(cfg.Memory.BaseURL, opts...)
}

// requireMemoryBackend errors out instead of degrading; the memory
// subcommands exist solely to reach the backend.
func requireMemoryBackend(cfg config.Config) (memory.Bridge, error) {
	b := newMemoryBackend(cfg)
	if _, off := b.(memory.Disabled); off {
		return nil, fmt.Errorf("memory is disabled (set memory.enabled and memory.baseUrl)")
	}
	return b, nil
}

func resolveUser(cfg config.Config, flag string) string {
	if flag != "" {
		return flag
	}
	if cfg.Server.DefaultUserID != "" {
		return cfg.Server.DefaultUserID
	}
	return "anonymous_user"
}

func printRecord(r memory.Record) {
	line := fmt.Sprintf("  %-20s %s", r.ID, r.Content)
	if r.Score > 0 {
		line = fmt.Sprintf("%s  (score %.2f)", line, r.Score)
	}
	fmt.Println(line)
}

func newMemoryRecentCmd() *cobra.Command {
	var (
		user  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently stored memories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			backend, err := requireMemoryBackend(cfg)
			if err != nil {
				return err
			}

			records, err := backend.ListRecent(cmd.Context(), resolveUser(cfg, user), limit)
			if err != nil {
				return fmt.Errorf("listing memories: %w", err)
			}
			if len(records) == 0 {
				fmt.Println("(no memories)")
				return nil
			}
			for _, r := range records {
				printRecord(r)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user whose memories to list")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of memories")
	return cmd
}

func newMemorySearchCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search memories semantically",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			backend, err := requireMemoryBackend(cfg)
			if err != nil {
				return err
			}

			query := strings.Join(args, " ")
			records, err := backend.Search(cmd.Context(), query, resolveUser(cfg, user))
			if err != nil {
				return fmt.Errorf("searching memories: %w", err)
			}
			if len(records) == 0 {
				fmt.Println("(no matches)")
				return nil
			}
			for _, r := range records {
				printRecord(r)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user whose memories to search")
	return cmd
}

func newMemoryAddCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Store a memory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			backend, err := requireMemoryBackend(cfg)
			if err != nil {
				return err
			}

			text := strings.Join(args, " ")
			rec, err := backend.Add(cmd.Context(), text, resolveUser(cfg, user))
			if err != nil {
				return fmt.Errorf("storing memory: %w", err)
			}
			if rec == nil {
				fmt.Println("Already known; nothing stored.")
				return nil
			}
			fmt.Printf("Stored %s\n", rec.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user the memory belongs to")
	return cmd
}

func newMemoryForgetCmd() *cobra.Command {
	var (
		user string
		yes  bool
	)

	cmd := &cobra.Command{
		Use:   "forget",
		Short: "Delete all memories for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			backend, err := requireMemoryBackend(cfg)
			if err != nil {
				return err
			}

			target := resolveUser(cfg, user)
			if !yes {
				return fmt.Errorf("refusing to delete all memories for %q without --yes", target)
			}

			n, err := backend.DeleteAll(cmd.Context(), target)
			if err != nil {
				return fmt.Errorf("deleting memories: %w", err)
			}
			fmt.Printf("Deleted %d memories for %s\n", n, target)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user whose memories to delete")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}
