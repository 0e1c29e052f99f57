// ABOUTME: "snapboard setup": records an image model API key in .env and prints a quickstart.
// ABOUTME: Existing .env entries are kept; only the provider's key and the auth token are written.
package main

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/2389-research/snapboard/retouch"
)

type setupOptions struct {
	provider  string
	apiKey    string
	envFile   string
	withToken bool
}

func newSetupCmd(_ *app) *cobra.Command {
	var opts setupOptions
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Configure the image model key and get started",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSetup(cmd.InOrStdin(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.provider, "provider", retouch.ProviderGemini, "Image model provider: gemini or openai")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "API key (prompted when omitted)")
	cmd.Flags().StringVar(&opts.envFile, "file", ".env", "Path of the .env file to write")
	cmd.Flags().BoolVar(&opts.withToken, "auth-token", false, "Also generate SNAPBOARD_AUTH_TOKEN for remote access")
	return cmd
}

func runSetup(in io.Reader, out io.Writer, opts setupOptions) error {
	provider := strings.ToLower(strings.TrimSpace(opts.provider))
	if provider != retouch.ProviderGemini && provider != retouch.ProviderOpenAI {
		return fmt.Errorf("unknown provider %q (want gemini or openai)", opts.provider)
	}
	keyVar := strings.ToUpper(provider) + "_API_KEY"

	key := strings.TrimSpace(opts.apiKey)
	if key == "" {
		fmt.Fprintf(out, "%s: ", keyVar)
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read key: %w", err)
		}
		key = strings.TrimSpace(line)
	}
	if key == "" {
		return errors.New("no API key given")
	}

	env, err := godotenv.Read(opts.envFile)
	if errors.Is(err, fs.ErrNotExist) {
		env = map[string]string{}
	} else if err != nil {
		return fmt.Errorf("read %s: %w", opts.envFile, err)
	}
	env[keyVar] = key
	env["SNAPBOARD_EDIT_PROVIDER"] = provider
	if opts.withToken && env["SNAPBOARD_AUTH_TOKEN"] == "" {
		token, err := randomToken()
		if err != nil {
			return err
		}
		env["SNAPBOARD_AUTH_TOKEN"] = token
	}
	if err := godotenv.Write(env, opts.envFile); err != nil {
		return fmt.Errorf("write %s: %w", opts.envFile, err)
	}
	if err := os.Chmod(opts.envFile, 0o600); err != nil {
		return err
	}

	ok := color.New(color.FgGreen, color.Bold)
	fmt.Fprintf(out, "%s wrote %s\n\n", ok.Sprint("✓"), opts.envFile)
	fmt.Fprintln(out, "Next:")
	fmt.Fprintln(out, "  snapboard serve        open http://127.0.0.1:7780")
	fmt.Fprintln(out, "  snapboard tui          drive the board from this terminal")
	fmt.Fprintln(out, "  snapboard mcp          hand the board to an agent over stdio")
	return nil
}

func randomToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
