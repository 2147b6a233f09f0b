package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/guiyumin/vfeed/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage vfeed configuration",
	Long:  "View and modify vfeed settings, including the X/Twitter account and credentials",
}

// vfeed config show - show current config
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadOrDefault(osFs, cmd.ErrOrStderr())
		w := cmd.OutOrStdout()

		every := "(disabled)"
		if cfg.RefreshInterval > 0 {
			every = cfg.RefreshEvery().String()
		}

		fmt.Fprintln(w, "Current configuration:")
		fmt.Fprintf(w, "  Port:            %d\n", cfg.Port)
		fmt.Fprintf(w, "  Snapshot file:   %s\n", cfg.Cache.File)
		fmt.Fprintf(w, "  Cache expire:    %s\n", cfg.TTL())
		fmt.Fprintf(w, "  Keep on empty:   %t\n", !cfg.Cache.OverwriteOnEmpty)
		fmt.Fprintf(w, "  Refresh every:   %s\n", every)
		fmt.Fprintf(w, "  Fetch timeout:   %s\n", cfg.FetchTimeoutDuration())
		fmt.Fprintf(w, "  Proxy:           %s\n", orDefault(cfg.Proxy, "(none)"))
		fmt.Fprintf(w, "  Static dir:      %s\n", orDefault(cfg.StaticDir, "(none)"))
		fmt.Fprintf(w, "  Log:             %s (json=%t)\n", cfg.Log.Level, cfg.Log.JSON)
		fmt.Fprintf(w, "  Config:          %s\n", config.SavePath())

		fmt.Fprintln(w, "\nTwitter:")
		fmt.Fprintf(w, "  user_id:      %s\n", orDefault(cfg.Twitter.UserID, "(not set)"))
		fmt.Fprintf(w, "  cookie:       %s\n", mask(cfg.Twitter.Cookie))
		fmt.Fprintf(w, "  bearer_token: %s\n", mask(cfg.Twitter.BearerToken))
		fmt.Fprintf(w, "  endpoint:     %s\n", cfg.Twitter.Endpoint)
		fmt.Fprintf(w, "  user_agent:   %s\n", orDefault(cfg.Twitter.UserAgent, "(rotating)"))
		return nil
	},
}

// vfeed config path - show config file path
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), config.SavePath())
	},
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// mask shows the first and last four characters of a secret
func mask(s string) string {
	switch {
	case s == "":
		return "(not set)"
	case len(s) <= 8:
		return strings.Repeat("*", len(s))
	default:
		return s[:4] + "..." + s[len(s)-4:]
	}
}

// --- Twitter auth management ---

var configTwitterCmd = &cobra.Command{
	Use:   "twitter",
	Short: "Manage the X/Twitter account and credentials",
}

var configTwitterSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set the user id and credentials used to fetch the media timeline",
	Long: `Set the X/Twitter user whose media timeline is cached, and the credentials
sent with each request. Either a cookie or a bearer token is required.

To get your cookie:
  1. Open x.com in your browser and log in
  2. Open DevTools (F12) → Network, reload, and pick any request to x.com
  3. Copy the value of the Cookie request header

Values not given as flags are prompted for. Secrets are read without echo.

Example:
  vfeed config twitter set
  vfeed config twitter set --user-id 12345 --cookie 'auth_token=...; ct0=...'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.ReadFile(osFs, config.SavePath())
		if err != nil {
			return err
		}

		userID, _ := cmd.Flags().GetString("user-id")
		cookie, _ := cmd.Flags().GetString("cookie")
		token, _ := cmd.Flags().GetString("token")

		if userID == "" && cookie == "" && token == "" {
			in := bufio.NewReader(cmd.InOrStdin())
			w := cmd.OutOrStdout()
			if userID, err = prompt(in, w, fmt.Sprintf("User id [%s]: ", cfg.Twitter.UserID)); err != nil {
				return err
			}
			if cookie, err = promptSecret(in, w, "Cookie (enter to skip): "); err != nil {
				return err
			}
			if cookie == "" {
				if token, err = promptSecret(in, w, "Bearer token (enter to skip): "); err != nil {
					return err
				}
			}
		}

		if userID != "" {
			cfg.Twitter.UserID = userID
		}
		if cookie != "" {
			cfg.Twitter.Cookie = cookie
		}
		if token != "" {
			cfg.Twitter.BearerToken = token
		}

		if cfg.Twitter.UserID == "" {
			return fmt.Errorf("a user id is required")
		}
		if cfg.Query().Credentials.Empty() {
			return fmt.Errorf("a cookie or bearer token is required")
		}

		if err := config.Save(osFs, cfg); err != nil {
			return fmt.Errorf("failed to save: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Twitter settings saved to %s\n", config.SavePath())
		return nil
	},
}

var configTwitterClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored X/Twitter credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.ReadFile(osFs, config.SavePath())
		if err != nil {
			return err
		}
		cfg.Twitter.Cookie = ""
		cfg.Twitter.BearerToken = ""

		if err := config.Save(osFs, cfg); err != nil {
			return fmt.Errorf("failed to save: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Twitter credentials cleared.")
		return nil
	},
}

func prompt(in *bufio.Reader, w io.Writer, label string) (string, error) {
	fmt.Fprint(w, label)
	line, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads without echo when stdin is a terminal
func promptSecret(in *bufio.Reader, w io.Writer, label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(in, w, label)
	}
	fmt.Fprint(w, label)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)

	configTwitterSetCmd.Flags().String("user-id", "", "numeric user id whose media timeline is fetched")
	configTwitterSetCmd.Flags().String("cookie", "", "Cookie header value")
	configTwitterSetCmd.Flags().String("token", "", "bearer token")
	configTwitterCmd.AddCommand(configTwitterSetCmd)
	configTwitterCmd.AddCommand(configTwitterClearCmd)
	configCmd.AddCommand(configTwitterCmd)

	rootCmd.AddCommand(configCmd)
}
