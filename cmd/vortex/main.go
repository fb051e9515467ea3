package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"vortex-go/internal/app"
	"vortex-go/internal/config"
	"vortex-go/internal/httpapi"
	"vortex-go/internal/privilege"
	"vortex-go/internal/restore"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const annotationElevate = "elevate"

var (
	verbose    bool
	noElevate  bool
	hold       bool
	errCommand = errors.New("command failed")
)

func main() {
	err := rootCmd.Execute()
	if hold {
		holdWindow(os.Stdin, os.Stderr)
	}
	if err != nil {
		os.Exit(1)
	}
}

// holdWindow keeps the elevated console open until the user presses Enter.
func holdWindow(in io.Reader, out io.Writer) {
	fmt.Fprint(out, "\nPress Enter to close this window.")
	_, _ = bufio.NewReader(in).ReadString('\n')
}

// relaunchArgs are the arguments for the elevated copy of this process. It
// never elevates again and holds its console window open after the command.
func relaunchArgs(args []string) []string {
	return append(append([]string{}, args...), "--no-elevate", "--hold")
}

// loadConfig resolves default paths and reads the config, falling back to
// defaults when no config file exists.
func loadConfig() (*config.Config, map[string]string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.LoadOrDefault(defaults["config_path"], defaults["base_dir"])
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults, nil
}

// newApp reads the config and creates a VortexApp. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "create", "serve").
func newApp(operation string) (*app.VortexApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewVortexApp(cfg, operation, app.Options{Echo: os.Stderr, Verbose: verbose})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// ensureElevated relaunches the process elevated once when a command needs
// administrator rights, waits for it and exits with its exit code.
func ensureElevated(cmd *cobra.Command) error {
	if cmd.Annotations[annotationElevate] == "" || noElevate {
		return nil
	}
	if (privilege.Checker{}).IsElevated() {
		return nil
	}

	fmt.Fprintln(os.Stderr, "Relaunching with administrator privileges; output appears in the elevated window.")
	code, err := privilege.Elevate(relaunchArgs(os.Args[1:]))
	if err != nil {
		return fmt.Errorf("administrator privileges are required (rerun elevated or pass --no-elevate): %w", err)
	}
	os.Exit(code)
	return nil
}

var rootCmd = &cobra.Command{
	Use:          "vortex",
	Short:        "Manage Windows System Restore points and shadow copies",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}
		return ensureElevated(cmd)
	},
}

// list command
var listCmd = &cobra.Command{
	Use:         "list",
	Short:       "List restore points, newest first",
	Annotations: map[string]string{annotationElevate: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		a, err := newApp("list")
		if err != nil {
			return err
		}
		defer a.Close()

		points, err := a.ListRestorePoints(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing restore points: %w", err)
		}
		return printRestorePoints(cmd.OutOrStdout(), points, output)
	},
}

// create command
var createCmd = &cobra.Command{
	Use:         "create [NAME]",
	Short:       "Create a restore point (name is generated when omitted)",
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{annotationElevate: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("create")
		if err != nil {
			return err
		}
		defer a.Close()

		name := ""
		if len(args) > 0 {
			name = args[0]
		}

		res, err := a.CreateRestorePoint(cmd.Context(), name)
		if err != nil {
			return err
		}
		return reportResult(cmd, res)
	},
}

// delete command
var deleteCmd = &cobra.Command{
	Use:         "delete",
	Short:       "Delete a restore point by shadow copy id and/or sequence number",
	Annotations: map[string]string{annotationElevate: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		shadowID, _ := cmd.Flags().GetString("shadow-id")
		yes, _ := cmd.Flags().GetBool("yes")

		var ids restore.Identifiers
		ids.ShadowID = shadowID
		if cmd.Flags().Changed("seq") {
			seq, _ := cmd.Flags().GetInt64("seq")
			ids.SequenceNumber = &seq
		}
		if ids.Empty() {
			return errors.New("pass --shadow-id, --seq or both")
		}

		a, err := newApp("delete")
		if err != nil {
			return err
		}
		defer a.Close()

		label := describeTarget(ids)
		if ids.ShadowID == "" && ids.SequenceNumber != nil {
			// Fill in the shadow copy so the VSS path can free space directly.
			p, found, err := a.FindRestorePoint(cmd.Context(), *ids.SequenceNumber)
			if err != nil {
				return fmt.Errorf("looking up restore point: %w", err)
			}
			if found {
				ids = p.Identifiers()
				label = fmt.Sprintf("#%d %q (%s)", p.SequenceNumber, p.Description, p.DisplayTime())
			}
		}

		ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), stdinIsTerminal(), yes, "Delete restore point "+label+"?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}

		res, err := a.DeleteRestorePoint(cmd.Context(), ids)
		if err != nil {
			return err
		}
		return reportResult(cmd, res)
	},
}

func describeTarget(ids restore.Identifiers) string {
	switch {
	case ids.SequenceNumber != nil && ids.ShadowID != "":
		return fmt.Sprintf("#%d (shadow copy %s)", *ids.SequenceNumber, ids.ShadowID)
	case ids.SequenceNumber != nil:
		return "#" + strconv.FormatInt(*ids.SequenceNumber, 10)
	default:
		return "with shadow copy " + ids.ShadowID
	}
}

// reportResult prints a Result's message and turns failure into a non-zero exit.
func reportResult(cmd *cobra.Command, res restore.Result) error {
	if res.OK {
		fmt.Fprintln(cmd.OutOrStdout(), res.Message)
		return nil
	}
	fmt.Fprintln(cmd.ErrOrStderr(), res.Message)
	cmd.SilenceErrors = true
	return errCommand
}

// storage command
var storageCmd = &cobra.Command{
	Use:         "storage",
	Short:       "Show disk space used by shadow copies",
	Annotations: map[string]string{annotationElevate: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("storage")
		if err != nil {
			return err
		}
		defer a.Close()

		return printStorage(cmd.OutOrStdout(), a.StorageSummary(cmd.Context()))
	},
}

// audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Manage the local audit log",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the audit log, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("audit-list")
		if err != nil {
			return err
		}
		defer a.Close()

		return printAudit(cmd.OutOrStdout(), a.AuditEntries())
	},
}

var auditRecordCmd = &cobra.Command{
	Use:   "record NAME",
	Short: "Add an entry to the audit log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")

		a, err := newApp("audit-record")
		if err != nil {
			return err
		}
		defer a.Close()

		entry, err := a.RecordAudit(cmd.Context(), args[0], description)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded audit entry %d\n", entry.ID)
		return nil
	},
}

var auditRemoveCmd = &cobra.Command{
	Use:   "remove ID",
	Short: "Remove audit entries with the given id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid audit id %q: %w", args[0], err)
		}

		a, err := newApp("audit-remove")
		if err != nil {
			return err
		}
		defer a.Close()

		removed, err := a.RemoveAudit(cmd.Context(), id)
		if err != nil {
			return err
		}
		if removed == 0 {
			return fmt.Errorf("no audit entry with id %d", id)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d audit entr%s\n", removed, plural(removed, "y", "ies"))
		return nil
	},
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
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

		fmt.Fprintf(cmd.OutOrStdout(), "Configuration initialized at %s\n", defaults["config_path"])
		fmt.Fprintf(cmd.OutOrStdout(), "Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, defaults, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration from %s:\n\n", defaults["config_path"])
		fmt.Fprintf(out, "Base Dir:    %s\n", cfg.BaseDir)
		fmt.Fprintf(out, "Log Dir:     %s\n", cfg.LogDir)
		fmt.Fprintf(out, "Log Level:   %s\n", cfg.LogLevel)
		fmt.Fprintf(out, "Shell:       %s (timeout %s)\n", cfg.Gateway.Shell, cfg.Gateway.Timeout())
		fmt.Fprintf(out, "Correlation: %s\n", cfg.Catalog.Tolerance())
		fmt.Fprintf(out, "Audit Store: %s %s%s\n", cfg.Audit.Type, cfg.Audit.Path, cfg.Audit.DataDir)
		fmt.Fprintf(out, "Server:      %s\n", cfg.Server.Addr)
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:         "serve",
	Short:       "Serve the local HTTP API",
	Annotations: map[string]string{annotationElevate: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("serve")
		if err != nil {
			return err
		}
		defer a.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = a.Config().Server.Addr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return httpapi.New(a, a.Logger()).ListenAndServe(ctx, addr)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "vortex %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output")
	rootCmd.PersistentFlags().BoolVar(&noElevate, "no-elevate", false, "Do not relaunch with administrator privileges")
	rootCmd.PersistentFlags().BoolVar(&hold, "hold", false, "Wait for Enter before exiting")
	_ = rootCmd.PersistentFlags().MarkHidden("hold")

	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringP("output", "o", outputTable, "Output format: table or json")

	rootCmd.AddCommand(createCmd)

	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().String("shadow-id", "", "Shadow copy id, e.g. {xxxxxxxx-xxxx-...}")
	deleteCmd.Flags().Int64("seq", 0, "Restore point sequence number")
	deleteCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	rootCmd.AddCommand(storageCmd)

	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditRecordCmd)
	auditRecordCmd.Flags().StringP("description", "d", "", "Entry details (default \"User initiated\")")
	auditCmd.AddCommand(auditRemoveCmd)
	rootCmd.AddCommand(auditCmd)

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default from config)")

	rootCmd.AddCommand(versionCmd)
}

// Compile-time check that the app satisfies the HTTP API backend
var _ httpapi.Backend = (*app.VortexApp)(nil)
