// Command loxodo is a command-line client for Password Safe V3 vaults.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"hermannm.dev/devlog"

	"github.com/shamilbi/loxodo"
)

var (
	vaultPath string
	debug     bool
	logLevel  slog.LevelVar
)

var rootCmd = &cobra.Command{
	Use:   "loxodo",
	Short: "Manage Password Safe V3 vaults",
	Long: `loxodo reads and writes password vaults in the Password Safe V3
format. All commands operate on the vault given with --vault and prompt
for the passphrase on the terminal.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			logLevel.Set(slog.LevelDebug)
		}
	},
	SilenceUsage: true,
}

func init() {
	slog.SetDefault(slog.New(devlog.NewHandler(os.Stderr, &devlog.Options{
		Level: &logLevel,
	})))

	rootCmd.PersistentFlags().StringVarP(&vaultPath, "vault", "v", "", "path to the vault file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "print debug output")
	rootCmd.MarkPersistentFlagRequired("vault")

	rootCmd.AddCommand(initCmd, lsCmd, showCmd, addCmd, passwdCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// readPassphrase prompts on the terminal without echo, falling back to a
// plain line read when stdin is not a terminal.
func readPassphrase(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		return term.ReadPassword(fd)
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return nil, err
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

func openVault() (*loxodo.Vault, []byte, error) {
	passphrase, err := readPassphrase("Vault password: ")
	if err != nil {
		return nil, nil, err
	}
	vault, err := loxodo.Open(vaultPath, passphrase)
	switch {
	case loxodo.IsBadPassword(err):
		return nil, nil, errors.New("bad password")
	case loxodo.IsVaultVersion(err):
		return nil, nil, errors.New("this is not a PasswordSafe V3 vault")
	case loxodo.IsVaultFormat(err):
		return nil, nil, fmt.Errorf("vault integrity check failed: %w", err)
	case err != nil:
		return nil, nil, err
	}
	slog.Debug("vault opened", "path", vaultPath, "records", len(vault.Records))
	return vault, passphrase, nil
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new empty vault",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(vaultPath); err == nil {
			return fmt.Errorf("%s already exists", vaultPath)
		}
		passphrase, err := readPassphrase("New vault password: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm password: ")
		if err != nil {
			return err
		}
		if string(passphrase) != string(confirm) {
			return errors.New("passwords do not match")
		}
		vault, err := loxodo.Create(passphrase)
		if err != nil {
			return err
		}
		defer vault.Close()
		if err := vault.Save(vaultPath, passphrase); err != nil {
			return err
		}
		slog.Info("vault created", "path", vaultPath)
		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls [filter]",
	Short: "List records, optionally filtered by a substring of group or title",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vault, _, err := openVault()
		if err != nil {
			return err
		}
		defer vault.Close()

		var filter string
		if len(args) == 1 {
			filter = strings.ToLower(args[0])
		}
		for _, record := range vault.Records {
			if filter != "" &&
				!strings.Contains(strings.ToLower(record.Group()), filter) &&
				!strings.Contains(strings.ToLower(record.Title()), filter) {
				continue
			}
			fmt.Printf("[%s.%s] [%s]\n", record.Group(), record.Title(), record.User())
		}
		return nil
	},
}

var showPassword bool

var showCmd = &cobra.Command{
	Use:   "show <title>",
	Short: "Show the record with the given title",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vault, _, err := openVault()
		if err != nil {
			return err
		}
		defer vault.Close()

		for _, record := range vault.Records {
			if record.Title() != args[0] {
				continue
			}
			fmt.Printf("Group:    %s\n", record.Group())
			fmt.Printf("Title:    %s\n", record.Title())
			fmt.Printf("User:     %s\n", record.User())
			if showPassword {
				fmt.Printf("Password: %s\n", record.Password())
			}
			if record.URL() != "" {
				fmt.Printf("URL:      %s\n", record.URL())
			}
			if record.Notes() != "" {
				fmt.Printf("Notes:    %s\n", record.Notes())
			}
			if !record.LastMod().IsZero() {
				fmt.Printf("Modified: %s\n", record.LastMod().Format("2006-01-02 15:04:05"))
			}
			return nil
		}
		return fmt.Errorf("no record titled %q", args[0])
	},
}

var addGroup, addTitle, addUser, addURL string

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a record to the vault",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		vault, passphrase, err := openVault()
		if err != nil {
			return err
		}
		defer vault.Close()

		record := loxodo.NewRecord()
		if err := record.SetGroup(addGroup); err != nil {
			return err
		}
		if err := record.SetTitle(addTitle); err != nil {
			return err
		}
		if err := record.SetUser(addUser); err != nil {
			return err
		}
		if err := record.SetURL(addURL); err != nil {
			return err
		}
		entryPassword, err := readPassphrase("Entry password: ")
		if err != nil {
			return err
		}
		if err := record.SetPassword(string(entryPassword)); err != nil {
			return err
		}
		vault.Records = append(vault.Records, record)

		if err := vault.Save(vaultPath, passphrase); err != nil {
			return err
		}
		slog.Info("record added", "title", addTitle)
		return nil
	},
}

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the vault passphrase",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		vault, _, err := openVault()
		if err != nil {
			return err
		}
		defer vault.Close()

		next, err := readPassphrase("New vault password: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm password: ")
		if err != nil {
			return err
		}
		if string(next) != string(confirm) {
			return errors.New("passwords do not match")
		}
		if err := vault.Save(vaultPath, next); err != nil {
			return err
		}
		slog.Info("vault passphrase changed", "path", vaultPath)
		return nil
	},
}

func init() {
	showCmd.Flags().BoolVarP(&showPassword, "password", "p", false, "print the password")

	addCmd.Flags().StringVar(&addGroup, "group", "", "record group")
	addCmd.Flags().StringVar(&addTitle, "title", "", "record title")
	addCmd.Flags().StringVar(&addUser, "user", "", "record user name")
	addCmd.Flags().StringVar(&addURL, "url", "", "record URL")
	addCmd.MarkFlagRequired("title")
}
