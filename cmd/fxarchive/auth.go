package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"fxarchive/pkg/auth"
	"fxarchive/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored ImageFX sessions",
	Long: `Manage stored labs.google sessions.

Sessions are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (FXARCHIVE_COOKIE, read only)

Never share your cookie or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store a session cookie securely",
	Long: `Store the cookie of a signed-in labs.google browser session.

You will be prompted for:
  - A name for the session (if not provided)
  - The Cookie request header (hidden while typing)
  - User Agent (optional, press Enter for default)`,
	Example: `  # Interactive login
  fxarchive auth login

  # Name the session up front
  fxarchive auth login personal`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [name]",
	Short: "Remove stored sessions",
	Long: `Remove a stored session.

If no name is provided, you will be shown a list of stored sessions
to choose from. You can also remove all sessions at once.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored sessions",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

// switchCmd represents the auth switch command
var switchCmd = &cobra.Command{
	Use:   "switch [name]",
	Short: "Choose the session used by default",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSwitch,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd, logoutCmd, listCmd, switchCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)
	out := ui.Out

	auth.ShowCookieExtractionGuide(out)

	var name string
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}
	if name == "" {
		fmt.Fprint(out, "Session name [default]: ")
		input, _ := reader.ReadString('\n')
		name = strings.TrimSpace(input)
		if name == "" {
			name = "default"
		}
	}

	if existing, _ := manager.Retrieve(name); existing != nil && existing.Name != auth.EnvSessionName {
		if !ui.Confirm(reader, out, fmt.Sprintf("Session '%s' already exists. Replace it?", name)) {
			return nil
		}
	}

	var cookie string
	for {
		fmt.Fprint(out, "Cookie header (hidden): ")
		cookie, err = readSecret(reader)
		if err != nil {
			return fmt.Errorf("failed to read cookie: %w", err)
		}
		cookie = strings.TrimPrefix(strings.TrimSpace(cookie), "Cookie:")
		cookie = strings.TrimSpace(cookie)

		if strings.Contains(cookie, "=") {
			break
		}
		ui.PrintWarning("That does not look like a cookie header, expected name=value pairs")
		if !ui.Confirm(reader, out, "Try again?") {
			return errSilent
		}
	}

	fmt.Fprint(out, "User Agent (press Enter to use default): ")
	userAgent, _ := reader.ReadString('\n')

	session := &auth.Session{
		Name:      name,
		Cookie:    cookie,
		UserAgent: strings.TrimSpace(userAgent),
	}
	if err := manager.Store(session); err != nil {
		return err
	}

	if sessions, _ := manager.List(); len(sessions) == 1 || manager.Default() == "" {
		if err := manager.SetDefault(name); err == nil {
			ui.PrintInfo("Default session", name)
		}
	}

	ui.PrintSuccess("Session saved: " + name)
	if auth.IsKeyringAvailable() {
		fmt.Fprintln(out, "Stored in the system keychain.")
	} else {
		fmt.Fprintln(out, "Stored in the encrypted credentials file.")
	}
	fmt.Fprintln(out, "\nStart downloading with:\n  fxarchive run")
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if len(args) == 1 {
		if err := manager.Delete(args[0]); err != nil {
			return err
		}
		ui.PrintSuccess("Session removed: " + args[0])
		return nil
	}

	sessions, err := manager.List()
	if err != nil || len(sessions) == 0 {
		ui.PrintWarning("No stored sessions found")
		return nil
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Fprintln(ui.Out, "Select session to remove:")
	for i, s := range sessions {
		fmt.Fprintf(ui.Out, "  %d. %s\n", i+1, s.Name)
	}
	fmt.Fprintf(ui.Out, "  %d. Remove all sessions\n", len(sessions)+1)
	fmt.Fprintf(ui.Out, "  0. Cancel\n\n")

	choice := readChoice(reader, ui.Out)
	switch {
	case choice == 0:
		return nil
	case choice == len(sessions)+1:
		if !ui.Confirm(reader, ui.Out, "Remove ALL sessions? This cannot be undone!") {
			return nil
		}
		if err := manager.DeleteAll(); err != nil {
			return err
		}
		ui.PrintSuccess("All sessions removed")
	case choice > 0 && choice <= len(sessions):
		name := sessions[choice-1].Name
		if err := manager.Delete(name); err != nil {
			return err
		}
		ui.PrintSuccess("Session removed: " + name)
	default:
		ui.PrintError("Invalid choice")
		return errSilent
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	sessions, err := manager.List()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		ui.PrintInfo("No stored sessions", "use 'fxarchive auth login' to add one")
		return nil
	}

	def := manager.Default()
	ui.PrintHighlight("Stored Sessions")
	for i, s := range sessions {
		sanitized := auth.Sanitize(s)
		marker := ""
		if s.Name == def {
			marker = " (default)"
		}
		fmt.Fprintf(ui.Out, "%d. %s%s\n", i+1, sanitized.Name, marker)
		fmt.Fprintf(ui.Out, "   Cookie: %s\n", sanitized.Cookie)
		if sanitized.UserAgent != "" {
			fmt.Fprintf(ui.Out, "   User Agent: %s\n", sanitized.UserAgent)
		}
		if !sanitized.LastModified.IsZero() {
			fmt.Fprintf(ui.Out, "   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}

func runSwitch(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var name string
	if len(args) == 1 {
		name = args[0]
	} else {
		sessions, err := manager.List()
		if err != nil || len(sessions) == 0 {
			ui.PrintWarning("No stored sessions found")
			return nil
		}
		fmt.Fprintln(ui.Out, "Select session:")
		for i, s := range sessions {
			fmt.Fprintf(ui.Out, "  %d. %s\n", i+1, s.Name)
		}
		choice := readChoice(bufio.NewReader(os.Stdin), ui.Out)
		if choice < 1 || choice > len(sessions) {
			ui.PrintError("Invalid choice")
			return errSilent
		}
		name = sessions[choice-1].Name
	}

	if err := manager.SetDefault(name); err != nil {
		return err
	}
	ui.PrintSuccess("Default session: " + name)
	return nil
}

func readChoice(r *bufio.Reader, w io.Writer) int {
	fmt.Fprint(w, "Choice: ")
	input, _ := r.ReadString('\n')
	var choice int
	if _, err := fmt.Sscanf(strings.TrimSpace(input), "%d", &choice); err != nil {
		return -1
	}
	return choice
}

// readSecret reads a line without echo when stdin is a terminal.
func readSecret(r *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(ui.Out)
		if err == nil {
			return string(secret), nil
		}
	}

	input, err := r.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
