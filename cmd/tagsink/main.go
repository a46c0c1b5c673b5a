package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tagsink/internal/app"
	"tagsink/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	collectionFlag string
	jsonFlag       bool
)

// newApp reads the config and creates an App. The caller must defer app.Close().
func newApp() (*app.App, *config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, cfg, nil
}

// pickCollection returns the --collection flag, else the collection whose root
// contains the working directory (deepest root wins), else the only collection.
func pickCollection(cfg *config.Config) (string, error) {
	if collectionFlag != "" {
		return collectionFlag, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}

	best, bestLen := "", -1
	for _, col := range cfg.Collections {
		root, err := filepath.Abs(col.Root)
		if err != nil {
			continue
		}
		if cwd == root || strings.HasPrefix(cwd, root+string(filepath.Separator)) {
			if len(root) > bestLen {
				best, bestLen = col.Slug, len(root)
			}
		}
	}
	if best != "" {
		return best, nil
	}
	if len(cfg.Collections) == 1 {
		return cfg.Collections[0].Slug, nil
	}
	return "", fmt.Errorf("cannot tell which collection to use: pass --collection")
}

// dispatch opens the app, fills in the collection and runs req.
func dispatch(req app.Request) (any, error) {
	a, cfg, err := newApp()
	if err != nil {
		return nil, err
	}
	defer a.Close()

	if req.Collection, err = pickCollection(cfg); err != nil {
		return nil, err
	}
	return a.Dispatch(req)
}

// runAndPrint dispatches req and prints the result with show, or as JSON.
func runAndPrint(req app.Request, show func(any)) error {
	res, err := dispatch(req)
	if err != nil {
		return err
	}
	if jsonFlag {
		return printJSON(res)
	}
	show(res)
	return nil
}

func absPaths(args []string) ([]string, error) {
	out := make([]string, len(args))
	for i, arg := range args {
		p, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("resolving path: %w", err)
		}
		out[i] = p
	}
	return out, nil
}

var rootCmd = &cobra.Command{
	Use:          "tagsink",
	Short:        "Tag files and file them into sink folders",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Log Level: %s\n", cfg.LogLevel)
		fmt.Printf("Database:  %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		for _, col := range cfg.Collections {
			fmt.Printf("Collection %s: %s\n", col.Slug, col.Root)
		}
		return nil
	},
}

var configAddCmd = &cobra.Command{
	Use:   "add SLUG ROOT",
	Short: "Add a collection",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		root, err := filepath.Abs(args[1])
		if err != nil {
			return fmt.Errorf("resolving root: %w", err)
		}
		cfg.Collections = append(cfg.Collections, config.CollectionConfig{Slug: args[0], Root: root})
		if err := cfg.Validate(); err != nil {
			return err
		}

		if err := config.WriteToFile(defaults["config_path"], cfg); err != nil {
			return err
		}
		fmt.Printf("Added collection %s at %s\n", args[0], root)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage backup encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the backup key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readNewPassphrase()
		if err != nil {
			return err
		}
		if err := a.SetupKeys(passphrase); err != nil {
			return err
		}
		fmt.Println("Encryption keys created.")
		return nil
	},
}

var keysPasswdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the private key passphrase",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		old, err := readPassphrase("Current passphrase: ")
		if err != nil {
			return err
		}
		next, err := readNewPassphrase()
		if err != nil {
			return err
		}
		if err := a.ChangePassphrase(old, next); err != nil {
			return err
		}
		fmt.Println("Passphrase changed.")
		return nil
	},
}

// collections command
var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List configured collections",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		statuses := a.Collections()
		if jsonFlag {
			return printJSON(statuses)
		}
		printCollections(statuses)
		return nil
	},
}

// tag commands
var tagCmd = &cobra.Command{
	Use:   "tag PATH...",
	Short: "Tag files and folders",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTagging(cmd, args, app.CmdTag)
	},
}

var untagCmd = &cobra.Command{
	Use:   "untag PATH...",
	Short: "Remove tags from files and folders",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTagging(cmd, args, app.CmdUntag)
	},
}

func runTagging(cmd *cobra.Command, args []string, command app.Command) error {
	names, _ := cmd.Flags().GetStringSlice("tag")
	if len(names) == 0 {
		return fmt.Errorf("at least one --tag is required")
	}
	paths, err := absPaths(args)
	if err != nil {
		return err
	}
	return runAndPrint(app.Request{Command: command, Paths: paths, Tags: names}, printTagResult)
}

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAndPrint(app.Request{Command: app.CmdTags}, printTags)
	},
}

var tagsEditCmd = &cobra.Command{
	Use:   "edit TAG_ID",
	Short: "Rename or recolor a tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		color, _ := cmd.Flags().GetString("color")
		req := app.Request{Command: app.CmdEditTag, TagID: args[0], Name: name, Color: color}
		return runAndPrint(req, func(res any) {
			if res.(*app.EditResult).Found {
				fmt.Printf("Updated tag %s\n", args[0])
			} else {
				fmt.Printf("No tag %s\n", args[0])
			}
		})
	},
}

var tagsDeleteCmd = &cobra.Command{
	Use:   "delete TAG_ID...",
	Short: "Delete tags",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAndPrint(app.Request{Command: app.CmdDeleteTags, Tags: args}, printCount("Deleted %d tag(s)\n"))
	},
}

// ls command
var lsCmd = &cobra.Command{
	Use:   "ls [DIR]",
	Short: "List a directory with tags",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			args = []string{"."}
		}
		paths, err := absPaths(args)
		if err != nil {
			return err
		}
		return runAndPrint(app.Request{Command: app.CmdList, Paths: paths}, printList)
	},
}

// mv command
var mvCmd = &cobra.Command{
	Use:   "mv SRC DEST_DIR",
	Short: "Move a file or folder, keeping its tags",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := absPaths(args)
		if err != nil {
			return err
		}
		return runAndPrint(app.Request{Command: app.CmdMove, Paths: paths[:1], Dest: paths[1]}, printMove)
	},
}

var movedCmd = &cobra.Command{
	Use:   "moved OLD NEW",
	Short: "Record a move made outside tagsink",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := absPaths(args)
		if err != nil {
			return err
		}
		return runAndPrint(app.Request{Command: app.CmdRecordRename, Paths: paths}, printRename)
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget PATH...",
	Short: "Drop stored tags of paths and everything below them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := absPaths(args)
		if err != nil {
			return err
		}
		return runAndPrint(app.Request{Command: app.CmdForget, Paths: paths}, printCount("Forgot %d entit(ies)\n"))
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Drop stored entries whose files are gone",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAndPrint(app.Request{Command: app.CmdScan}, printCount("Removed %d missing entit(ies)\n"))
	},
}

// sink commands
var sinkCmd = &cobra.Command{
	Use:   "sink",
	Short: "Query sinks",
}

var sinkBestCmd = &cobra.Command{
	Use:   "best TAG...",
	Short: "Show the sink for a set of tags",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAndPrint(app.Request{Command: app.CmdBestSink, Tags: args}, printSinkMatch)
	},
}

var sinkTreeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Show the sink forest",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAndPrint(app.Request{Command: app.CmdSinks}, printSinkTree)
	},
}

var fileCmd = &cobra.Command{
	Use:   "file PATH",
	Short: "Move a tagged file into its best sink",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := absPaths(args)
		if err != nil {
			return err
		}
		return runAndPrint(app.Request{Command: app.CmdFile, Paths: paths}, printFileResult)
	},
}

// backup commands
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up the collection store to the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cfg, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		slug, err := pickCollection(cfg)
		if err != nil {
			return err
		}
		version, err := a.Backup(slug)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		fmt.Printf("Backed up %s (version %d)\n", slug, version)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Replace the collection store with its latest backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cfg, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		slug, err := pickCollection(cfg)
		if err != nil {
			return err
		}
		passphrase, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		version, err := a.Restore(slug, passphrase)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		fmt.Printf("Restored %s (version %d)\n", slug, version)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&collectionFlag, "collection", "c", "", "Collection slug")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Print results as JSON")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configAddCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)
	keysCmd.AddCommand(keysPasswdCmd)

	// tags subcommands
	tagsCmd.AddCommand(tagsEditCmd)
	tagsEditCmd.Flags().String("name", "", "New name")
	tagsEditCmd.Flags().String("color", "", "New color (#rrggbb)")
	tagsCmd.AddCommand(tagsDeleteCmd)

	// sink subcommands
	sinkCmd.AddCommand(sinkBestCmd)
	sinkCmd.AddCommand(sinkTreeCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(collectionsCmd)
	rootCmd.AddCommand(tagCmd)
	tagCmd.Flags().StringSliceP("tag", "t", nil, "Tag name (repeatable)")
	rootCmd.AddCommand(untagCmd)
	untagCmd.Flags().StringSliceP("tag", "t", nil, "Tag name (repeatable)")
	rootCmd.AddCommand(tagsCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(movedCmd)
	rootCmd.AddCommand(forgetCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(sinkCmd)
	rootCmd.AddCommand(fileCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
}
