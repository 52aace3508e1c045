// Command didstore is a developer utility for inspecting access layer
// state: stable database identities, keyring derivation, and locally cached
// sessions. It is a diagnostics tool, not the library API.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"didstore/internal/access"
	"didstore/internal/cache"
	"didstore/internal/config"
	"didstore/internal/keyring"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "didstore",
	Short: "Inspect identity-owned datastore state",
}

var (
	identityDID   string
	identityApp   string
	identityDB    string
	identityRead  string
	identityWrite string
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Compute the stable physical name of a database",
	RunE: func(cmd *cobra.Command, args []string) error {
		perms := access.PermissionDescriptor{
			Read:  access.AccessLevel(identityRead),
			Write: access.AccessLevel(identityWrite),
		}
		if _, err := access.SelectBackend(perms); err != nil {
			return fmt.Errorf("invalid permissions read=%s write=%s: %w", identityRead, identityWrite, err)
		}
		fmt.Println(access.DatabaseIdentity(identityDID, identityApp, identityDB, perms))
		return nil
	},
}

var keyringCmd = &cobra.Command{
	Use:   "keyring",
	Short: "Derive the symmetric key and signing key from an auth signature",
	Long: "Prompts for an authentication signature and prints the derived\n" +
		"symmetric key and ed25519 verification key. The signature is read\n" +
		"without echo and never written anywhere.",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprint(os.Stderr, "Auth signature: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("reading signature: %w", err)
		}

		kr, err := keyring.New(strings.TrimSpace(string(raw)))
		if err != nil {
			return err
		}
		fmt.Printf("symmetric key: %s\n", hex.EncodeToString(kr.SymmetricKey()))
		fmt.Printf("verify key:    %s\n", hex.EncodeToString(kr.PublicKey()))
		return nil
	},
}

var (
	sessionConfigPath string
	sessionDID        string
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect locally cached sessions",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the cached session entry for a DID",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.ReadFromFile(sessionConfigPath)
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
		if cfg.Cache.Type != "filesystem" {
			return fmt.Errorf("session show requires a filesystem cache, config has %q", cfg.Cache.Type)
		}
		localCache, err := cache.NewFilesystem(cfg.Cache.Dir)
		if err != nil {
			return err
		}

		key := access.SessionCachePrefix + cfg.AppName + strings.ToLower(sessionDID)
		entry, err := localCache.Get(key)
		if err != nil {
			return fmt.Errorf("reading cached session: %w", err)
		}
		if entry == nil {
			return fmt.Errorf("no cached session for %s", sessionDID)
		}
		fmt.Println(string(entry))
		return nil
	},
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "didstore.toml"
	}
	return filepath.Join(home, ".config", "didstore", "config.toml")
}

func init() {
	identityCmd.Flags().StringVar(&identityDID, "did", "", "owner DID")
	identityCmd.Flags().StringVar(&identityApp, "app", "", "application name")
	identityCmd.Flags().StringVar(&identityDB, "db", "", "database name")
	identityCmd.Flags().StringVar(&identityRead, "read", string(access.AccessOwner), "read permission (owner|public|users)")
	identityCmd.Flags().StringVar(&identityWrite, "write", string(access.AccessOwner), "write permission (owner|public|users)")
	identityCmd.MarkFlagRequired("did")
	identityCmd.MarkFlagRequired("app")
	identityCmd.MarkFlagRequired("db")

	sessionShowCmd.Flags().StringVar(&sessionConfigPath, "config", defaultConfigPath(), "config file path")
	sessionShowCmd.Flags().StringVar(&sessionDID, "did", "", "user DID")
	sessionShowCmd.MarkFlagRequired("did")

	sessionCmd.AddCommand(sessionShowCmd)
	rootCmd.AddCommand(identityCmd, keyringCmd, sessionCmd)
}
