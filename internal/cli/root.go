package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RootOptions holds global flags shared by all commands.
//
// DB is resolved in PersistentPreRunE with precedence flag > SOIL_DB
// environment variable > soil.yaml config file > ~/.soil/soil.db.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	DB      string // resolved database path
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the soil CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "soil",
		Short: "Soil - append-only fact store",
		Long: `Soil stores immutable facts (Items) and the structural relations
between them. Items are never updated or deleted: corrections append a
successor and supersession pointers keep the history walkable.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			db, err := resolveDBPath(cmd)
			if err != nil {
				return err
			}
			opts.DB = db
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().String("db", "", "database path (default $SOIL_DB or ~/.soil/soil.db)")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewLiveCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewRelationsCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewRebuildCommand(opts))
	cmd.AddCommand(NewTombstoneCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// resolveDBPath determines the database path from flag, environment,
// config file and default, in that order. The config file is an optional
// soil.yaml searched in the current directory, then ~/.soil; a missing
// file is not an error.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	v := viper.New()
	v.SetEnvPrefix("SOIL")
	if err := v.BindEnv("db"); err != nil {
		return "", fmt.Errorf("binding SOIL_DB: %w", err)
	}
	if err := v.BindPFlag("db", cmd.Root().PersistentFlags().Lookup("db")); err != nil {
		return "", fmt.Errorf("binding --db flag: %w", err)
	}

	v.SetConfigName("soil")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".soil"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return "", fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetDefault("db", defaultDBPath())

	path := v.GetString("db")
	if path == "" {
		return "", fmt.Errorf("no database path configured")
	}
	return path, nil
}

// defaultDBPath returns ~/.soil/soil.db, falling back to a relative path
// when the home directory cannot be determined.
func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "soil.db"
	}
	return filepath.Join(home, ".soil", "soil.db")
}
