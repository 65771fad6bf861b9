package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/otherjamesbrown/ottermatch/config"
	"github.com/otherjamesbrown/ottermatch/credentials"
	pferrors "github.com/otherjamesbrown/ottermatch/pkg/errors"
	"github.com/otherjamesbrown/ottermatch/pkg/fathom"
	"github.com/otherjamesbrown/ottermatch/pkg/logging"
)

// MeetingLister lists recorder meetings.
type MeetingLister interface {
	ListMeetings(ctx context.Context, opts fathom.ListOptions) ([]fathom.Meeting, error)
}

// AuthCommandDeps holds the dependencies for the auth commands.
type AuthCommandDeps struct {
	LoadConfig ConfigLoader
	NewLogger  func(*config.CLIConfig) logging.Logger
	NewStore   func() (*credentials.Store, error)
	NewClient  func(cfg *config.CLIConfig, apiKey string, logger logging.Logger) (MeetingLister, error)
	ReadSecret func(prompt string) (string, error)
	Stdout     io.Writer
}

// DefaultAuthDeps returns the default dependencies for production use.
func DefaultAuthDeps(load ConfigLoader) *AuthCommandDeps {
	return &AuthCommandDeps{
		LoadConfig: load,
		NewLogger:  NewLogger,
		NewStore:   credentials.NewStore,
		NewClient:  newFathomClient,
		ReadSecret: promptSecret,
		Stdout:     os.Stdout,
	}
}

func newFathomClient(cfg *config.CLIConfig, apiKey string, logger logging.Logger) (MeetingLister, error) {
	client, err := fathom.New(fathom.Config{
		APIKey:   apiKey,
		BaseURL:  cfg.Fathom.APIBase,
		PageSize: cfg.Fathom.PageSize,
	}, logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// promptSecret reads a line without echo, falling back to plain input when
// stdin is not a terminal.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if term.IsTerminal(int(syscall.Stdin)) {
		b, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// NewAuthCommand creates the auth command group.
func NewAuthCommand(deps *AuthCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage recorder API credentials",
		Long: `Manage the Fathom API key used by the fathom commands.

The key is stored encrypted in ~/.ottermatch/credentials.yaml. The
encryption key comes from OTTERMATCH_ENCRYPTION_KEY, a passphrase in
OTTERMATCH_PASSPHRASE, or the system keyring, in that order.

FATHOM_API_KEY takes precedence over the stored key.`,
	}

	cmd.AddCommand(newAuthLoginCommand(deps))
	cmd.AddCommand(newAuthLogoutCommand(deps))
	cmd.AddCommand(newAuthStatusCommand(deps))
	return cmd
}

type loginFlags struct {
	apiKey         string
	nonInteractive bool
	verify         bool
}

func newAuthLoginCommand(deps *AuthCommandDeps) *cobra.Command {
	var flags loginFlags

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a Fathom API key",
		Long: `Store a Fathom API key for the fathom commands.

Examples:
  # Prompt for the key
  ottermatch auth login

  # Pass the key directly and check it against the API
  ottermatch auth login --api-key fk_... --verify

  # Store the key from the environment
  FATHOM_API_KEY=fk_... ottermatch auth login --non-interactive`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), deps, flags)
		},
	}

	cmd.Flags().StringVar(&flags.apiKey, "api-key", "", "Fathom API key")
	cmd.Flags().BoolVar(&flags.nonInteractive, "non-interactive", false, "Fail instead of prompting for input")
	cmd.Flags().BoolVar(&flags.verify, "verify", false, "List one meeting to check the key before storing it")
	return cmd
}

func runLogin(ctx context.Context, deps *AuthCommandDeps, flags loginFlags) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return err
	}
	store, err := deps.NewStore()
	if err != nil {
		return fmt.Errorf("initializing credential store: %w", err)
	}

	apiKey := strings.TrimSpace(flags.apiKey)
	if apiKey == "" {
		if env := strings.TrimSpace(os.Getenv(credentials.EnvAPIKey)); env != "" {
			apiKey = env
			fmt.Fprintf(deps.Stdout, "Using API key from %s environment variable\n", credentials.EnvAPIKey)
		}
	}
	if apiKey == "" {
		if flags.nonInteractive {
			return fmt.Errorf("no API key provided and --non-interactive flag set: %w", pferrors.ErrUnauthorized)
		}
		apiKey, err = deps.ReadSecret("Fathom API key: ")
		if err != nil {
			return fmt.Errorf("reading API key: %w", err)
		}
	}
	if err := validateAPIKey(apiKey); err != nil {
		return fmt.Errorf("invalid credentials: %w", err)
	}

	if flags.verify {
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()

		client, err := deps.NewClient(cfg, apiKey, deps.NewLogger(cfg))
		if err != nil {
			return err
		}
		if _, err := client.ListMeetings(ctx, fathom.ListOptions{Limit: 1}); err != nil {
			return fmt.Errorf("verifying API key: %w", err)
		}
		fmt.Fprintln(deps.Stdout, "API key verified.")
	}

	creds := &credentials.Credentials{
		Provider: credentials.ProviderFathom,
		APIKey:   apiKey,
		APIBase:  cfg.Fathom.APIBase,
	}
	if err := store.Save(creds); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}

	fmt.Fprintln(deps.Stdout, "Login successful!")
	fmt.Fprintf(deps.Stdout, "  API Key: %s\n", credentials.MaskAPIKey(apiKey))
	fmt.Fprintf(deps.Stdout, "  Key ID: %s\n", credentials.GenerateAPIKeyID(apiKey))
	fmt.Fprintf(deps.Stdout, "  Key storage: %s\n", store.KeyStorage())
	if path, err := credentials.CredentialsPath(); err == nil {
		fmt.Fprintf(deps.Stdout, "\nCredentials stored in: %s\n", path)
	}
	return nil
}

func validateAPIKey(apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("API key is empty")
	}
	if len(apiKey) < 8 {
		return fmt.Errorf("API key is too short")
	}
	if strings.ContainsAny(apiKey, " \t\r\n") {
		return fmt.Errorf("API key contains whitespace")
	}
	return nil
}

func newAuthLogoutCommand(deps *AuthCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(deps)
		},
	}
}

func runLogout(deps *AuthCommandDeps) error {
	store, err := deps.NewStore()
	if err != nil {
		return fmt.Errorf("initializing credential store: %w", err)
	}

	if !store.Exists() {
		fmt.Fprintln(deps.Stdout, "No stored credentials found.")
	} else {
		if err := store.Delete(); err != nil {
			return fmt.Errorf("removing credentials: %w", err)
		}
		fmt.Fprintln(deps.Stdout, "Logged out successfully.")
	}

	if os.Getenv(credentials.EnvAPIKey) != "" {
		fmt.Fprintf(deps.Stdout, "\nNote: %s environment variable is still set.\n", credentials.EnvAPIKey)
	}
	return nil
}

// authStatus is the structured form of auth status.
type authStatus struct {
	Authenticated bool      `json:"authenticated" yaml:"authenticated"`
	Source        string    `json:"source,omitempty" yaml:"source,omitempty"`
	APIKey        string    `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	KeyID         string    `json:"key_id,omitempty" yaml:"key_id,omitempty"`
	APIBase       string    `json:"api_base,omitempty" yaml:"api_base,omitempty"`
	KeyStorage    string    `json:"key_storage" yaml:"key_storage"`
	LastUpdated   time.Time `json:"last_updated,omitempty" yaml:"last_updated,omitempty"`
}

func newAuthStatusCommand(deps *AuthCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which API key is active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthStatus(deps)
		},
	}
}

func runAuthStatus(deps *AuthCommandDeps) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return err
	}
	store, err := deps.NewStore()
	if err != nil {
		return fmt.Errorf("initializing credential store: %w", err)
	}

	status := authStatus{KeyStorage: store.KeyStorage()}
	creds, err := store.GetActiveCredential()
	switch {
	case errors.Is(err, credentials.ErrNoCredentials):
	case err != nil:
		return fmt.Errorf("loading credentials: %w", err)
	default:
		status.Authenticated = true
		status.Source = valueOrDefault(creds.Source, "stored")
		status.APIKey = credentials.MaskAPIKey(creds.APIKey)
		status.KeyID = credentials.GenerateAPIKeyID(creds.APIKey)
		status.APIBase = creds.APIBase
		status.LastUpdated = creds.LastUpdated
	}

	return WriteFormatted(deps.Stdout, cfg.OutputFormat, status, func(w io.Writer) error {
		fmt.Fprintln(w, "Authentication Status")
		fmt.Fprintln(w, "=====================")
		fmt.Fprintln(w)
		if !status.Authenticated {
			fmt.Fprintln(w, "Not authenticated. Run 'ottermatch auth login' to store an API key.")
			return nil
		}
		fmt.Fprintf(w, "  Source: %s\n", status.Source)
		fmt.Fprintf(w, "  API Key: %s\n", status.APIKey)
		fmt.Fprintf(w, "  Key ID: %s\n", status.KeyID)
		if status.APIBase != "" {
			fmt.Fprintf(w, "  API Base: %s\n", status.APIBase)
		}
		fmt.Fprintf(w, "  Key Storage: %s\n", status.KeyStorage)
		if !status.LastUpdated.IsZero() {
			fmt.Fprintf(w, "  Last Updated: %s\n", status.LastUpdated.Format(time.RFC3339))
		}
		return nil
	})
}
