package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/taxpilot/internal/credstore"
	"github.com/tyemirov/taxpilot/internal/logging"
	"github.com/tyemirov/taxpilot/internal/notify"
	"github.com/tyemirov/taxpilot/internal/taxapi"
	"github.com/tyemirov/taxpilot/pkg/apiclient"
)

type streams struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

// application holds everything a command needs once configuration has been loaded.
type application struct {
	configuration CLIConfig
	streams       streams
	logger        *zap.Logger
	credentials   *credstore.Handle
	client        *apiclient.Client
	events        *notify.Bus[apiclient.Event]
	services      *taxapi.Services
	session       *taxapi.Session
	closers       []func() error
}

type contextKey string

const applicationContextKey contextKey = "application"

func newApplication(ctx context.Context, configuration CLIConfig, ioStreams streams) (*application, error) {
	logger, closeLogger, err := logging.New(logging.Options{
		Level:    configuration.LogLevel,
		FilePath: configuration.LogFile,
		Console:  ioStreams.errOut,
	})
	if err != nil {
		return nil, err
	}
	app := &application{configuration: configuration, streams: ioStreams, logger: logger}
	app.closers = append(app.closers, closeLogger)

	credentials, err := credstore.Open(ctx, configuration.CredentialStore, logger)
	if err != nil {
		_ = app.close()
		return nil, err
	}
	app.credentials = credentials
	app.closers = append(app.closers, credentials.Close)

	app.events = notify.NewBus[apiclient.Event]()
	app.closers = append(app.closers, closeFunc(app.events.Subscribe(app.announce)))

	client, err := apiclient.New(apiclient.Config{
		BaseURL:   configuration.APIBaseURL,
		APIPrefix: configuration.APIPrefix,
		Store:     credentials,
		Logger:    logger,
		Events:    app.events,
	})
	if err != nil {
		_ = app.close()
		return nil, err
	}
	app.client = client
	app.services = taxapi.NewServices(client)
	app.session = taxapi.NewSession(app.services, app.events, logger)
	app.closers = append(app.closers, closeFunc(app.session.Close))
	return app, nil
}

func (app *application) announce(event apiclient.Event) {
	if event.Kind == apiclient.EventReauthenticationRequired {
		_, _ = fmt.Fprintln(app.streams.errOut, "Your session has expired. Run `taxpilot login` to sign in again.")
	}
}

// close runs the registered closers in reverse order.
func (app *application) close() error {
	var closeErr error
	for index := len(app.closers) - 1; index >= 0; index-- {
		closeErr = errors.Join(closeErr, app.closers[index]())
	}
	app.closers = nil
	return closeErr
}

func closeFunc(release func()) func() error {
	return func() error {
		release()
		return nil
	}
}

func applicationFrom(command *cobra.Command) (*application, error) {
	ctx := command.Context()
	if ctx == nil {
		return nil, configError(configCodeUninitializedApp, "application not prepared; PersistentPreRunE must execute before RunE")
	}
	app, ok := ctx.Value(applicationContextKey).(*application)
	if !ok || app == nil {
		return nil, configError(configCodeUninitializedApp, "application not prepared; PersistentPreRunE must execute before RunE")
	}
	return app, nil
}
