package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codelap/internal/types"
)

var (
	authUsername      string
	authPassword      string
	authPasswordStdin bool
	authEmail         string
	authFullName      string
)

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Log in to the learning backend",
	Long: `Exchanges username and password for a bearer token and stores it in
the workspace. The password is read from --password, from stdin with
--password-stdin, or prompted for.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var registerCmd = &cobra.Command{
	Use:   "register [username]",
	Short: "Create an account (does not log in)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRegister,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored token",
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	RunE:  runWhoami,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the backend is reachable",
	RunE:  runHealth,
}

func initAuthCommands() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVarP(&authUsername, "username", "u", "", "Username")
		c.Flags().StringVarP(&authPassword, "password", "p", "", "Password")
		c.Flags().BoolVar(&authPasswordStdin, "password-stdin", false, "Read the password from stdin")
	}
	registerCmd.Flags().StringVar(&authEmail, "email", "", "Email address")
	registerCmd.Flags().StringVar(&authFullName, "full-name", "", "Full name")
}

// credentials resolves username and password from args, flags and stdin.
func credentials(args []string, in io.Reader) (string, string, error) {
	username := authUsername
	if len(args) > 0 {
		username = args[0]
	}
	reader := bufio.NewReader(in)
	if username == "" {
		fmt.Print("Username: ")
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", "", err
		}
		username = strings.TrimSpace(line)
	}

	password := authPassword
	if password == "" {
		if !authPasswordStdin {
			fmt.Print("Password: ")
		}
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", "", err
		}
		password = strings.TrimRight(line, "\r\n")
	}

	if username == "" || password == "" {
		return "", "", errors.New("username and password are required")
	}
	return username, password, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	username, password, err := credentials(args, os.Stdin)
	if err != nil {
		return err
	}

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.Session.Login(ctx, types.UserLogin{Username: username, Password: password})
	if err != nil {
		var authErr *types.AuthenticationError
		if errors.As(err, &authErr) {
			return fmt.Errorf("login failed: %s", authErr.Message)
		}
		return err
	}
	logger.Info("Logged in", zap.String("user", user.Username))
	fmt.Printf("Logged in as %s\n", user.DisplayName())
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	username, password, err := credentials(args, os.Stdin)
	if err != nil {
		return err
	}

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.Session.Register(ctx, types.UserCreate{
		Username: username,
		Password: password,
		Email:    authEmail,
		FullName: authFullName,
	})
	if err != nil {
		var ve *types.ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("registration rejected: %s", ve.Message)
		}
		return err
	}
	fmt.Printf("Account %s created. Run 'codelap login %s' to start.\n", user.Username, user.Username)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Logout(); err != nil {
		return err
	}
	fmt.Println("Logged out")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	user := a.Session.User()
	if user == nil {
		fmt.Println("Not logged in")
		return nil
	}
	fmt.Printf("%s (id %d)\n", user.DisplayName(), user.ID)
	if user.Email != "" {
		fmt.Printf("Email: %s\n", user.Email)
	}
	if claims, err := a.Session.Claims(); err == nil && !claims.ExpiresAt.IsZero() {
		fmt.Printf("Token expires: %s\n", claims.ExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	status, err := a.API.Health(ctx)
	if err != nil {
		return fmt.Errorf("backend %s unreachable: %w", a.API.BaseURL(), err)
	}
	fmt.Printf("%s: %s (%v)\n", a.API.BaseURL(), status.Status, time.Since(start).Round(time.Millisecond))
	return nil
}
