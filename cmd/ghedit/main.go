package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"time"

	"ghedit-go/internal/app"
	"ghedit-go/internal/config"
	"ghedit-go/internal/encryption"
	"ghedit-go/internal/ws"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an EditorApp. The caller must call closeApp.
// operation identifies the CLI command being run (e.g. "Open", "Save").
func newApp(ctx context.Context, operation, parameters string) (*app.EditorApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewEditorApp(ctx, cfg, ws.UUIDGenerator{}, operation, parameters)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// closeApp closes a and folds its error into err, so a refused write of the
// workspace state fails the command.
func closeApp(ctx context.Context, a *app.EditorApp, err *error) {
	if cerr := a.Close(ctx); cerr != nil && *err == nil {
		*err = cerr
	}
}

func parseIndex(s, what string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s index %q", what, s)
	}
	return n, nil
}

var rootCmd = &cobra.Command{
	Use:          "ghedit",
	Short:        "Edit files in GitHub repositories",
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

		instanceID := uuid.New().String()
		cfg := config.NewConfig(instanceID, defaults["base_dir"])
		cfg.GitHub.ClientID, _ = cmd.Flags().GetString("client-id")
		cfg.GitHub.ClientSecret, _ = cmd.Flags().GetString("client-secret")

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Instance ID: %s\n", instanceID)
		fmt.Printf("Base Dir:    %s\n", defaults["base_dir"])
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
		fmt.Printf("Instance ID:       %s\n", cfg.InstanceID)
		fmt.Printf("Base Dir:          %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:           %s\n", cfg.LogDir)
		fmt.Printf("GitHub API:        %s\n", cfg.GitHub.APIURL)
		fmt.Printf("Workspace Storage: %s\n", cfg.WorkspaceStorage.Type)
		fmt.Printf("Session Storage:   %s\n", cfg.SessionStorage.Type)

		if cfg.Encryption.Type == "age" {
			sealer := encryption.NewAgeSealer(cfg.Encryption.IdentityPath)
			if !sealer.IsConfigured() {
				fmt.Printf("Session Key:       not created yet (%s)\n", cfg.Encryption.IdentityPath)
				return nil
			}
			recipient, err := sealer.Recipient()
			if err != nil {
				return fmt.Errorf("reading session key: %w", err)
			}
			fmt.Printf("Session Key:       %s\n", recipient)
		}
		return nil
	},
}

// auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage GitHub login",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Start an OAuth login",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		a, err := newApp(ctx, "Login", "")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a, &err)

		url, err := a.BeginLogin()
		if err != nil {
			return err
		}
		fmt.Printf("Open this URL to authorize ghedit:\n\n  %s\n\n", url)
		fmt.Println("Then run: ghedit auth callback CODE STATE")
		return nil
	},
}

var authCallbackCmd = &cobra.Command{
	Use:   "callback CODE STATE",
	Short: "Complete an OAuth login",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		a, err := newApp(ctx, "CompleteLogin", "")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a, &err)

		user, err := a.CompleteLogin(ctx, args[0], args[1])
		if err != nil {
			var mismatch *ws.AuthMismatchError
			if errors.As(err, &mismatch) {
				return fmt.Errorf("login aborted, run 'ghedit auth login' again: %w", err)
			}
			return fmt.Errorf("login failed: %w", err)
		}
		fmt.Printf("Logged in as %s\n", user.Login)
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored token",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		a, err := newApp(ctx, "Logout", "")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a, &err)

		a.Logout()
		fmt.Println("Logged out.")
		return nil
	},
}

var authWhoAmICmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		a, err := newApp(ctx, "WhoAmI", "")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a, &err)

		user, err := a.WhoAmI(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s", user.Login)
		if user.Name != "" {
			fmt.Printf(" (%s)", user.Name)
		}
		fmt.Println()
		return nil
	},
}

var authRateLimitCmd = &cobra.Command{
	Use:   "ratelimit",
	Short: "Show the API quota",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		a, err := newApp(ctx, "RateLimit", "")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a, &err)

		rl, err := a.RateLimit(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%d/%d remaining, resets %s\n", rl.Remaining, rl.Limit, rl.Reset.Local().Format("2006-01-02 15:04:05"))
		return nil
	},
}

// open command
var openCmd = &cobra.Command{
	Use:   "open URL",
	Short: "Open a repository file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		a, err := newApp(ctx, "Open", args[0])
		if err != nil {
			return err
		}
		defer closeApp(ctx, a, &err)

		res, err := a.Open(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Opened %s at %s\n", res.Ref, res.SHA)
		return nil
	},
}

// ls command
var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List open workspaces and files",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		a, err := newApp(ctx, "List", "")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a, &err)

		workspaces, active := a.Workspaces()
		if len(workspaces) == 0 {
			fmt.Println("No open files.")
			return nil
		}

		for wi, w := range workspaces {
			marker := " "
			if wi == active {
				marker = "*"
			}
			fmt.Printf("%s %d %s\n", marker, wi, w.Key())
			for fi, f := range w.Files {
				fileMarker := " "
				if fi == w.ActiveFile {
					fileMarker = "*"
				}
				fmt.Printf("   %s %d %-8s %s\n", fileMarker, fi, f.State(), f.Path)
			}
		}
		return nil
	},
}

// select command
var selectCmd = &cobra.Command{
	Use:   "select WORKSPACE [FILE]",
	Short: "Make a workspace or file active",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		wi, err := parseIndex(args[0], "workspace")
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, "Select", fmt.Sprint(args))
		if err != nil {
			return err
		}
		defer closeApp(ctx, a, &err)

		if len(args) == 1 {
			return a.SelectWorkspace(ctx, wi)
		}
		fi, err := parseIndex(args[1], "file")
		if err != nil {
			return err
		}
		return a.Select(ctx, wi, fi)
	},
}

// cat command
var catCmd = &cobra.Command{
	Use:   "cat",
	Short: "Print the active buffer",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		a, err := newApp(ctx, "Cat", "")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a, &err)

		f, _, err := a.ActiveFile()
		if err != nil {
			return err
		}
		_, err = io.WriteString(cmd.OutOrStdout(), f.Content)
		return err
	},
}

// edit command
var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Replace the active buffer with stdin or a local file",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		path, _ := cmd.Flags().GetString("file")

		var data []byte
		if path != "" {
			data, err = os.ReadFile(path)
		} else {
			if term.IsTerminal(int(os.Stdin.Fd())) {
				return fmt.Errorf("refusing to read the buffer from a terminal; pipe it in or use --file")
			}
			data, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			return fmt.Errorf("reading new content: %w", err)
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, "Edit", path)
		if err != nil {
			return err
		}
		defer closeApp(ctx, a, &err)

		return a.Edit(ctx, string(data))
	},
}

// save command
var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Commit the active buffer",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		a, err := newApp(ctx, "Save", "")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a, &err)

		res, err := a.Save(ctx)
		if err != nil {
			return err
		}
		if res.Status == ws.SaveConflicted {
			return fmt.Errorf("%s changed on the remote; run 'ghedit reload' to take the remote version", res.Ref)
		}
		fmt.Printf("Saved %s at %s\n", res.Ref, res.SHA)
		return nil
	},
}

// check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether the active file changed on the remote",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		a, err := newApp(ctx, "Check", "")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a, &err)

		res, err := a.Check(ctx)
		if err != nil {
			return err
		}
		switch {
		case res.Status == ws.CheckNotBlob:
			return fmt.Errorf("%s is no longer a file", res.Ref)
		case res.Conflict:
			fmt.Printf("conflict  %s remote at %s\n", res.Ref, res.RemoteSHA)
		default:
			fmt.Printf("ok        %s\n", res.Ref)
		}
		return nil
	},
}

// reload command
var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Refetch the active file, discarding local edits",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		a, err := newApp(ctx, "Reload", "")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a, &err)

		res, err := a.Reload(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Reloaded %s at %s\n", res.Ref, res.SHA)
		return nil
	},
}

// close command
var closeCmd = &cobra.Command{
	Use:   "close WORKSPACE FILE",
	Short: "Close a file, discarding unsaved edits",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		wi, err := parseIndex(args[0], "workspace")
		if err != nil {
			return err
		}
		fi, err := parseIndex(args[1], "file")
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, "CloseFile", fmt.Sprint(args))
		if err != nil {
			return err
		}
		defer closeApp(ctx, a, &err)

		return a.CloseFile(ctx, wi, fi)
	},
}

var closeWorkspaceCmd = &cobra.Command{
	Use:   "close-workspace WORKSPACE",
	Short: "Close a workspace and all its files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		wi, err := parseIndex(args[0], "workspace")
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, "CloseWorkspace", args[0])
		if err != nil {
			return err
		}
		defer closeApp(ctx, a, &err)

		return a.CloseWorkspace(ctx, wi)
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View sync operation history",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		limit, _ := cmd.Flags().GetInt("limit")

		ctx := cmd.Context()
		a, err := newApp(ctx, "History", "")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a, &err)

		ops, err := a.History(ctx, limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No sync operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-15s  %s  %-10s  %-8s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Local().Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
				op.Parameters,
			)
		}
		return nil
	},
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow workspace changes made by other ghedit instances",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		a, err := newApp(ctx, "Watch", "")
		if err != nil {
			return err
		}
		defer closeApp(context.WithoutCancel(ctx), a, &err)

		fmt.Println("Watching for workspace changes, interrupt to stop.")
		err = a.Watch(ctx, func(s *ws.Store) {
			f, ref, ok := s.ActiveFile()
			if !ok {
				fmt.Printf("%s  no active file\n", time.Now().Format("15:04:05"))
				return
			}
			fmt.Printf("%s  %s  %s\n", time.Now().Format("15:04:05"), f.State(), ref)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().String("client-id", "", "OAuth application client ID")
	configInitCmd.Flags().String("client-secret", "", "OAuth application client secret")

	// auth subcommands
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authCallbackCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authWhoAmICmd)
	authCmd.AddCommand(authRateLimitCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(selectCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(editCmd)
	editCmd.Flags().StringP("file", "f", "", "Read the new content from a local file")
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(closeWorkspaceCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(watchCmd)
}
