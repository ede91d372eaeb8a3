package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lifeos-tools/attache/calendar/caldav"
	"github.com/lifeos-tools/attache/calendar/google"
	"github.com/lifeos-tools/attache/internal"
)

var (
	caldavServer   string
	caldavUsername string
	caldavPassword string
	caldavName     string
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Store calendar account credentials in the local database",
	Long: `Connects an account and stores its credential locally, then lists the
calendars the account exposes so you can copy their ids into the config
file. Credentials never leave the local database.`,
}

var configureGoogleCmd = &cobra.Command{
	Use:   "google",
	Short: "Authorize a Google account via browser OAuth",
	RunE:  runConfigureGoogle,
}

var configureCaldavCmd = &cobra.Command{
	Use:   "caldav",
	Short: "Store CalDAV server credentials",
	RunE:  runConfigureCaldav,
}

func init() {
	configureCaldavCmd.Flags().StringVar(&caldavServer, "server", "", "CalDAV server URL (required)")
	configureCaldavCmd.Flags().StringVar(&caldavUsername, "username", "", "CalDAV username (required)")
	configureCaldavCmd.Flags().StringVar(&caldavPassword, "password", "", "CalDAV password or app token (required)")
	configureCaldavCmd.Flags().StringVar(&caldavName, "name", "", "Account name, defaults to the username")
	_ = configureCaldavCmd.MarkFlagRequired("server")
	_ = configureCaldavCmd.MarkFlagRequired("username")
	_ = configureCaldavCmd.MarkFlagRequired("password")

	configureCmd.AddCommand(configureGoogleCmd)
	configureCmd.AddCommand(configureCaldavCmd)
}

func runConfigureGoogle(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	storage, closeDB, err := openStorage()
	if err != nil {
		return err
	}
	defer closeDB()

	credJSON, err := os.ReadFile(googleCred)
	if err != nil {
		return fmt.Errorf("reading google credentials: %w", err)
	}
	cli, err := google.NewClient(credJSON, nil, logger)
	if err != nil {
		return err
	}

	tokenJSON, err := cli.Login(ctx)
	if err != nil {
		return fmt.Errorf("google: logging in: %w", err)
	}
	email, err := cli.Email(ctx, tokenJSON)
	if err != nil {
		return fmt.Errorf("google: getting email: %w", err)
	}

	acc := internal.Account{
		Platform: internal.PlatformGoogle,
		Name:     email,
		Auth:     string(tokenJSON),
	}
	fmt.Printf("Saving account %q...\n", acc.ID())
	if err := storage.AddAccount(ctx, &acc); err != nil {
		return fmt.Errorf("saving account: %w", err)
	}

	cals, err := cli.Calendars(ctx, tokenJSON)
	if err != nil {
		return err
	}
	fmt.Println("\nCalendars on this account (use the id as provider_id):")
	for _, cal := range cals {
		marker := " "
		if cal.Primary {
			marker = "*"
		}
		fmt.Printf("  %s %-40s %s\n", marker, cal.ID, cal.Name)
	}
	fmt.Printf("\nReference this account in %s as account: %q\n", configPath, acc.ID())
	return nil
}

func runConfigureCaldav(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	storage, closeDB, err := openStorage()
	if err != nil {
		return err
	}
	defer closeDB()

	authJSON, err := caldav.AuthJSON(caldavServer, caldavUsername, caldavPassword)
	if err != nil {
		return err
	}

	// Probe the server before saving anything.
	cli := caldav.NewClient(nil, logger)
	cals, err := cli.Calendars(ctx, authJSON)
	if err != nil {
		return fmt.Errorf("caldav: connecting to %s: %w", caldavServer, err)
	}

	name := caldavName
	if name == "" {
		name = caldavUsername
	}
	acc := internal.Account{
		Platform: internal.PlatformCalDAV,
		Name:     name,
		Auth:     string(authJSON),
	}
	fmt.Printf("Saving account %q...\n", acc.ID())
	if err := storage.AddAccount(ctx, &acc); err != nil {
		return fmt.Errorf("saving account: %w", err)
	}

	fmt.Println("\nCalendars on this server (use the path as provider_id):")
	for _, cal := range cals {
		fmt.Printf("  %-40s %s\n", cal.Path, cal.Name)
	}
	fmt.Printf("\nReference this account in %s as account: %q\n", configPath, acc.ID())
	return nil
}
