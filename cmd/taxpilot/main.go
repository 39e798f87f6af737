package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := execute(context.Background(), os.Args[1:], streams{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}); err != nil {
		os.Exit(1)
	}
}

// execute runs the CLI and releases the application afterwards, including when a command fails.
func execute(ctx context.Context, arguments []string, ioStreams streams) error {
	var app *application
	rootCmd := newRootCommand(ioStreams, func(prepared *application) { app = prepared })
	rootCmd.SetArgs(arguments)
	runErr := rootCmd.ExecuteContext(ctx)
	if app != nil {
		if closeErr := app.close(); closeErr != nil {
			_, _ = fmt.Fprintln(ioStreams.errOut, "warning:", closeErr)
		}
	}
	return runErr
}

func newRootCommand(ioStreams streams, onPrepared func(*application)) *cobra.Command {
	settings := viper.New()

	rootCmd := &cobra.Command{
		Use:           "taxpilot",
		Short:         "Command-line client for the tax bookkeeping assistant",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			configuration, err := LoadCLIConfig(settings)
			if err != nil {
				return err
			}
			app, err := newApplication(command.Context(), configuration, ioStreams)
			if err != nil {
				return err
			}
			onPrepared(app)
			command.SetContext(context.WithValue(command.Context(), applicationContextKey, app))
			return nil
		},
	}
	rootCmd.SetIn(ioStreams.in)
	rootCmd.SetOut(ioStreams.out)
	rootCmd.SetErr(ioStreams.errOut)

	flags := rootCmd.PersistentFlags()
	flags.String("api_base_url", defaultAPIBaseURL, "Backend origin")
	flags.String("api_prefix", "", "API version prefix (default /api/v1)")
	flags.String("credential_store", "", "Credential store URL (file://, sqlite://, postgres://, pgx://, redis://, memory://); default is a file in the user config dir")
	flags.String("log_level", "warn", "Console log level")
	flags.String("log_file", "", "Optional rotating JSON log file")
	flags.Bool("no_color", false, "Print chat answers as plain Markdown")

	for _, key := range []string{"api_base_url", "api_prefix", "credential_store", "log_level", "log_file", "no_color"} {
		_ = settings.BindPFlag(key, flags.Lookup(key))
	}
	settings.SetEnvPrefix("TAXPILOT")
	settings.AutomaticEnv()

	rootCmd.AddCommand(
		newSignupCommand(),
		newLoginCommand(),
		newLogoutCommand(),
		newWhoAmICommand(),
		newUsageCommand(),
		newProfileCommand(),
		newBusinessCommand(),
		newChatCommand(),
		newExpensesCommand(),
		newLedgerCommand(),
		newRequestCommand(),
	)
	return rootCmd
}

// runWithApp adapts a command body that needs the prepared application.
func runWithApp(body func(command *cobra.Command, arguments []string, app *application) error) func(*cobra.Command, []string) error {
	return func(command *cobra.Command, arguments []string) error {
		app, err := applicationFrom(command)
		if err != nil {
			return err
		}
		return body(command, arguments, app)
	}
}

func writeLine(writer io.Writer, format string, arguments ...any) {
	_, _ = fmt.Fprintf(writer, format+"\n", arguments...)
}

var errMissingFlag = errors.New("cli.missing_flag")

func requireFlag(name string, value string) error {
	if value == "" {
		return fmt.Errorf("%w: --%s is required", errMissingFlag, name)
	}
	return nil
}
