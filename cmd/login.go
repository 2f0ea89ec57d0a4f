package cmd

import (
	"context"
	"fmt"

	"github.com/Jackstonebreaker/mangapark-image-fix/internal/config"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

func init() {
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the catalog for the follow command",
		RunE:  runLogin,
	}

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Drop the stored catalog session",
		RunE:  runLogout,
	}

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cfg, logSvc, err := mergedConfig(config.Options{})
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	catalog, err := catalogClient(cfg, st, logSvc)
	if err != nil {
		return err
	}

	userPrompt := promptui.Prompt{Label: "Username"}
	username, err := userPrompt.Run()
	if err != nil {
		return fmt.Errorf("login cancelled")
	}

	passPrompt := promptui.Prompt{Label: "Password", Mask: '*'}
	password, err := passPrompt.Run()
	if err != nil {
		return fmt.Errorf("login cancelled")
	}

	if err := catalog.Login(context.Background(), username, password); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Println("Logged in. The session token is stored locally and expires on its own.")
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cfg, logSvc, err := mergedConfig(config.Options{})
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	catalog, err := catalogClient(cfg, st, logSvc)
	if err != nil {
		return err
	}

	if err := catalog.Logout(context.Background()); err != nil {
		return err
	}

	fmt.Println("Logged out.")
	return nil
}
