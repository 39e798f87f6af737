package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tyemirov/taxpilot/internal/taxapi"
)

func newSignupCommand() *cobra.Command {
	var email, password, name string
	command := &cobra.Command{
		Use:   "signup",
		Short: "Create an email account and sign in",
		RunE: runWithApp(func(command *cobra.Command, arguments []string, app *application) error {
			if err := requireFlag("email", email); err != nil {
				return err
			}
			if password == "" {
				prompted, err := readSecret(app.streams.in, app.streams.errOut, "Password: ")
				if err != nil {
					return err
				}
				password = prompted
			}
			if err := app.session.Signup(command.Context(), email, password, name); err != nil {
				return sessionError(app, err)
			}
			return printSignedIn(app)
		}),
	}
	command.Flags().StringVar(&email, "email", "", "Account email")
	command.Flags().StringVar(&password, "password", "", "Account password (prompted when omitted)")
	command.Flags().StringVar(&name, "name", "", "Display name")
	return command
}

func newLoginCommand() *cobra.Command {
	var email, password, kakaoToken string
	command := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password or a Kakao access token",
		RunE: runWithApp(func(command *cobra.Command, arguments []string, app *application) error {
			ctx := command.Context()
			if kakaoToken != "" {
				if err := app.session.KakaoLogin(ctx, kakaoToken); err != nil {
					return sessionError(app, err)
				}
				return printSignedIn(app)
			}
			if email == "" {
				_, _ = fmt.Fprint(app.streams.errOut, "Email: ")
				prompted, err := readLine(app.streams.in)
				if err != nil {
					return err
				}
				email = strings.TrimSpace(prompted)
			}
			if err := requireFlag("email", email); err != nil {
				return err
			}
			if password == "" {
				prompted, err := readSecret(app.streams.in, app.streams.errOut, "Password: ")
				if err != nil {
					return err
				}
				password = prompted
			}
			if err := app.session.Login(ctx, email, password); err != nil {
				return sessionError(app, err)
			}
			return printSignedIn(app)
		}),
	}
	command.Flags().StringVar(&email, "email", "", "Account email (prompted when omitted)")
	command.Flags().StringVar(&password, "password", "", "Account password (prompted when omitted)")
	command.Flags().StringVar(&kakaoToken, "kakao-token", "", "Kakao OAuth access token")
	return command
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credentials",
		RunE: runWithApp(func(command *cobra.Command, arguments []string, app *application) error {
			if err := app.session.Logout(command.Context()); err != nil {
				return err
			}
			writeLine(app.streams.out, "Signed out.")
			return nil
		}),
	}
}

func newWhoAmICommand() *cobra.Command {
	var dashboard bool
	command := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: runWithApp(func(command *cobra.Command, arguments []string, app *application) error {
			if dashboard {
				summary, err := app.services.Users.Dashboard(command.Context())
				if err != nil {
					return err
				}
				return printJSON(app.streams.out, summary)
			}
			me, err := app.services.Users.Me(command.Context())
			if err != nil {
				return err
			}
			return printJSON(app.streams.out, me)
		}),
	}
	command.Flags().BoolVar(&dashboard, "dashboard", false, "Include plan and usage")
	return command
}

func newUsageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show this month's metered usage",
		RunE: runWithApp(func(command *cobra.Command, arguments []string, app *application) error {
			usage, err := app.services.Users.Usage(command.Context())
			if err != nil {
				return err
			}
			writeLine(app.streams.out, "chat:     %s", usageLine(usage.ChatUsed, usage.ChatLimit))
			writeLine(app.streams.out, "expenses: %s", usageLine(usage.ExpenseUsed, usage.ExpenseLimit))
			writeLine(app.streams.out, "exports:  %s", usageLine(usage.ExportUsed, usage.ExportLimit))
			return nil
		}),
	}
}

func usageLine(used int, limit int) string {
	if limit == taxapi.UnlimitedUsage {
		return fmt.Sprintf("%d (unlimited)", used)
	}
	return fmt.Sprintf("%d / %d", used, limit)
}

func newProfileCommand() *cobra.Command {
	profileCmd := &cobra.Command{Use: "profile", Short: "Manage the account profile"}
	var name, image string
	var marketingAgree bool
	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Change profile fields",
		RunE: runWithApp(func(command *cobra.Command, arguments []string, app *application) error {
			var update taxapi.ProfileUpdate
			flags := command.Flags()
			if flags.Changed("name") {
				update.Name = &name
			}
			if flags.Changed("image") {
				update.ProfileImage = &image
			}
			if flags.Changed("marketing-agree") {
				update.MarketingAgree = &marketingAgree
			}
			updated, err := app.services.Users.UpdateProfile(command.Context(), update)
			if err != nil {
				return err
			}
			return printJSON(app.streams.out, updated)
		}),
	}
	updateCmd.Flags().StringVar(&name, "name", "", "Display name")
	updateCmd.Flags().StringVar(&image, "image", "", "Profile image URL")
	updateCmd.Flags().BoolVar(&marketingAgree, "marketing-agree", false, "Marketing consent")
	profileCmd.AddCommand(updateCmd)
	return profileCmd
}

func newBusinessCommand() *cobra.Command {
	businessCmd := &cobra.Command{Use: "business", Short: "Manage business registration details"}
	var businessType, businessName, businessNumber, taxType string
	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Change business registration fields",
		RunE: runWithApp(func(command *cobra.Command, arguments []string, app *application) error {
			var update taxapi.BusinessUpdate
			flags := command.Flags()
			if flags.Changed("type") {
				update.BusinessType = &businessType
			}
			if flags.Changed("name") {
				update.BusinessName = &businessName
			}
			if flags.Changed("number") {
				update.BusinessNumber = &businessNumber
			}
			if flags.Changed("tax-type") {
				update.TaxType = &taxType
			}
			updated, err := app.services.Users.UpdateBusiness(command.Context(), update)
			if err != nil {
				return err
			}
			return printJSON(app.streams.out, updated)
		}),
	}
	updateCmd.Flags().StringVar(&businessType, "type", "", "Business type")
	updateCmd.Flags().StringVar(&businessName, "name", "", "Business name")
	updateCmd.Flags().StringVar(&businessNumber, "number", "", "Business registration number")
	updateCmd.Flags().StringVar(&taxType, "tax-type", "", "Tax type: general or simplified")
	businessCmd.AddCommand(updateCmd)
	return businessCmd
}

func printSignedIn(app *application) error {
	state := app.session.Snapshot()
	if state.User == nil {
		writeLine(app.streams.out, "Signed in.")
		return nil
	}
	identity := fmt.Sprintf("user %d", state.User.ID)
	if state.User.Email != nil {
		identity = *state.User.Email
	}
	writeLine(app.streams.out, "Signed in as %s.", identity)
	return nil
}

// sessionError prefers the message the session recorded for display.
func sessionError(app *application, err error) error {
	if message := app.session.Snapshot().Error; message != "" {
		return fmt.Errorf("%s: %w", message, err)
	}
	return err
}
