package client

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	config "github.com/DarkPhilosophy/snapify/internal/config/server"
	"github.com/DarkPhilosophy/snapify/internal/sched"
	"github.com/DarkPhilosophy/snapify/pkg/db/migrations"
	"github.com/DarkPhilosophy/snapify/pkg/db/store"
)

func NewItemsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Manage tracked media items",
		Long:  "Inspect and manage the media items currently tracked in the retention store.",
	}

	cmd.AddCommand(NewItemsListCommand())
	cmd.AddCommand(NewItemsKeepCommand())
	cmd.AddCommand(NewItemsUnkeepCommand())
	cmd.AddCommand(NewItemsRemoveCommand())

	return cmd
}

func NewItemsListCommand() *cobra.Command {
	var humanReadable bool
	var longFormat bool

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List tracked media items",
		Long:  "List all media items currently tracked in the retention store.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			items, err := st.ListItems(ctx)
			if err != nil {
				return fmt.Errorf("failed to list items: %w", err)
			}

			for _, item := range items {
				size := strconv.FormatInt(item.FileSize, 10)
				if humanReadable {
					size = humanize.Bytes(uint64(item.FileSize))
				}

				state := "tracked"
				switch {
				case item.IsKept:
					state = "kept"
				case item.DeletionAt != nil:
					state = fmt.Sprintf("deletes %s", humanize.Time(*item.DeletionAt))
				}

				if longFormat {
					fmt.Printf("%-6d %-10s %-24s %s\n", item.ID, size, state, item.FilePath)
				} else {
					fmt.Printf("%-6d %-24s %s\n", item.ID, state, item.FileName)
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVarP(&humanReadable, "human", "H", false, "Enable human-readable format")
	cmd.Flags().BoolVarP(&longFormat, "long", "l", false, "Display long format")

	return cmd
}

func NewItemsKeepCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keep <id>",
		Short: "Keep a tracked item",
		Long:  "Flags the item as kept and clears any pending deletion deadline.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.KeepItem(ctx, id); err != nil {
				return fmt.Errorf("failed to keep item %d: %w", id, err)
			}

			fmt.Printf("Item %d kept\n", id)
			return nil
		},
	}

	return cmd
}

func NewItemsUnkeepCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unkeep <id>",
		Short: "Clear the kept flag on an item",
		Long:  "Returns a kept item to the unscheduled tracked state.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.UnkeepItem(ctx, id); err != nil {
				return fmt.Errorf("failed to unkeep item %d: %w", id, err)
			}

			fmt.Printf("Item %d unkept\n", id)
			return nil
		},
	}

	return cmd
}

func NewItemsRemoveCommand() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a tracked item immediately",
		Long:  "Removes the file behind the item (best effort) and retires the item from the store.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if !confirm {
				return fmt.Errorf("deletion requires --confirm")
			}

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			item, err := st.GetItem(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to load item %d: %w", id, err)
			}

			deleter := sched.OSDeleter{}
			if err := deleter.Remove(item); err != nil {
				fmt.Printf("Warning: failed to remove file '%s': %v\n", item.FilePath, err)
			}

			if _, err := st.DeleteItem(ctx, id); err != nil {
				return fmt.Errorf("failed to retire item %d: %w", id, err)
			}

			fmt.Printf("Item %d deleted\n", id)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&confirm, "confirm", "c", false, "Confirms the deletion of the item")

	return cmd
}

func openStore(ctx context.Context) (*store.SQLiteStore, error) {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load server configuration: %w", err)
	}

	st, err := store.NewSQLiteStore(store.SQLiteConfig{
		Path: cfg.Metadata.SQLite.Path,
	})
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := st.Connect(connectCtx); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to connect item store: %w", err)
	}

	if err := migrations.NewMigrator(st.DB()).Migrate(connectCtx); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to migrate item store: %w", err)
	}

	return st, nil
}

func parseID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid item id '%s'", arg)
	}
	return uint(id), nil
}
