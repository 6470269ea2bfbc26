package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessro/tunes/internal/backend/auth"
	tuneserrors "github.com/tessro/tunes/internal/errors"
)

var (
	loginEmail         string
	loginPasswordStdin bool
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage your account session",
	Long:  `Commands for signing in to the payment backend.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in",
	Long: `Sign in with your email and password. The session is stored locally
and refreshed automatically.

Examples:
  tunes auth login
  echo "$PASSWORD" | tunes auth login --email me@example.com --password-stdin`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored session",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

func init() {
	authLoginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "account email")
	authLoginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "read the password from stdin")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	client, err := newBackend()
	if err != nil {
		return err
	}

	email := strings.TrimSpace(loginEmail)
	var password string
	if loginPasswordStdin {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	if email == "" || password == "" {
		creds, ok, err := newInteractive().PromptLogin(email)
		if err != nil {
			return err
		}
		if !ok {
			return tuneserrors.WithSuggestion(
				fmt.Errorf("%w: email and password are required", tuneserrors.ErrValidation),
				"Pass --email and --password-stdin when not running in a terminal")
		}
		email, password = creds.Email, creds.Password
	}

	session, err := client.SignIn(cmd.Context(), email, password)
	if err != nil {
		return fmt.Errorf("sign in failed: %w", err)
	}

	if JSONOutput() {
		return printJSON(map[string]any{
			"status":     "authenticated",
			"user_id":    session.User.ID,
			"email":      session.User.Email,
			"expires_at": session.ExpiresAt,
		})
	}
	fmt.Printf("%s Signed in as %s\n", okColor.Sprint("✓"), session.User.Email)
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	storage, err := auth.NewSessionStorage("")
	if err != nil {
		return fmt.Errorf("failed to initialize session storage: %w", err)
	}

	if !storage.Exists() {
		if JSONOutput() {
			return printJSON(map[string]string{"status": "not_authenticated"})
		}
		fmt.Println("Not signed in.")
		return nil
	}

	if err := storage.Delete(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if JSONOutput() {
		return printJSON(map[string]string{"status": "logged_out"})
	}
	fmt.Println("Signed out.")
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	storage, err := auth.NewSessionStorage("")
	if err != nil {
		return fmt.Errorf("failed to initialize session storage: %w", err)
	}

	session, err := storage.Load()
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	if session == nil {
		if JSONOutput() {
			return printJSON(map[string]any{"authenticated": false})
		}
		fmt.Println("Not signed in.")
		fmt.Println("Run 'tunes auth login' to sign in.")
		return nil
	}

	// An expired access token is fine while the refresh token works.
	expired := session.IsExpired()
	refreshable := session.RefreshToken != ""

	if JSONOutput() {
		return printJSON(map[string]any{
			"authenticated": !expired || refreshable,
			"expired":       expired,
			"user_id":       session.User.ID,
			"email":         session.User.Email,
			"expires_at":    session.ExpiresAt,
		})
	}

	fmt.Printf("Signed in as: %s\n", session.User.Email)
	switch {
	case !expired:
		fmt.Printf("Token expires: %s (%s)\n", session.ExpiresAt.Format(time.RFC3339), FormatAgo(session.ExpiresAt))
	case refreshable:
		fmt.Println(dimColor.Sprint("Access token expired; it will be refreshed on the next request."))
	default:
		fmt.Println(warnColor.Sprint("Session expired."))
		fmt.Println("Run 'tunes auth login' to sign in again.")
	}
	return nil
}
