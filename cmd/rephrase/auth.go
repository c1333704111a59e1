package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"rephrase/pkg/auth"
	"rephrase/pkg/ui"
)

var loginBackend string

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage transform backend API keys",
	Long: `Manage API keys for hosted transform backends.

Keys are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (REPHRASE_API_KEY, ANTHROPIC_API_KEY; read only)

Local backends such as Ollama need no key.`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store an API key securely",
	Long: `Store an API key in the system keychain or the encrypted credentials file.

The key is read without echo. Store several keys under different names and
pick one with --account on process and run.`,
	Example: `  # Store the default key
  rephrase auth login

  # Store a second key
  rephrase auth login work`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [name]",
	Short: "Remove a stored API key",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

// authStatusCmd represents the auth status command
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List stored API keys",
	Long:  `List stored API keys with their values masked.`,
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(authStatusCmd)

	loginCmd.Flags().StringVar(&loginBackend, "backend", "anthropic", "backend the key belongs to")
}

func credentialName(args []string) string {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0])
	}
	return auth.DefaultAccount
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := credentialName(args)
	reader := bufio.NewReader(os.Stdin)

	auth.ShowAPIKeyGuide()
	fmt.Println()

	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Printf("A key named '%s' already exists. Replace it? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Printf("API key for %s (hidden): ", loginBackend)
	key, err := readPassword(reader)
	if err != nil {
		return fmt.Errorf("failed to read API key: %w", err)
	}
	if key == "" {
		return fmt.Errorf("no API key entered")
	}

	cred := &auth.Credential{
		Name:    name,
		Backend: loginBackend,
		APIKey:  key,
	}
	if err := manager.Store(cred); err != nil {
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Key stored: %s (%s)", name, auth.MaskString(key)))
	if name != auth.DefaultAccount {
		fmt.Printf("\nUse it with:\n  rephrase process --backend %s --account %s\n", loginBackend, name)
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := credentialName(args)
	if err := manager.Delete(name); err != nil {
		return err
	}
	ui.PrintSuccess("Key removed: " + name)
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	creds, err := manager.List()
	if err != nil {
		return err
	}
	if len(creds) == 0 {
		ui.PrintInfo("No stored keys", "Use 'rephrase auth login' to add one")
		return nil
	}

	ui.PrintHighlight("Stored keys")
	fmt.Println()
	for i, cred := range creds {
		sanitized := auth.SanitizeCredential(cred)
		fmt.Printf("%d. %s\n", i+1, sanitized.Name)
		fmt.Printf("   Backend: %s\n", sanitized.Backend)
		fmt.Printf("   Key: %s\n", sanitized.APIKey)
		if !sanitized.LastModified.IsZero() {
			fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}
	return nil
}

// readPassword reads a secret from stdin without echoing when possible.
func readPassword(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
