package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tyemirov/taxpilot/pkg/apiclient"
)

func newRequestCommand() *cobra.Command {
	var data string
	var anonymous bool
	command := &cobra.Command{
		Use:   "request METHOD PATH",
		Short: "Send an arbitrary authenticated request, e.g. request GET /users/me/usage",
		Args:  cobra.ExactArgs(2),
		RunE: runWithApp(func(command *cobra.Command, arguments []string, app *application) error {
			method := strings.ToUpper(arguments[0])
			path, rawQuery, _ := strings.Cut(arguments[1], "?")
			query, err := url.ParseQuery(rawQuery)
			if err != nil {
				return fmt.Errorf("cli.request.query: %w", err)
			}
			request := apiclient.NewRequest(method, path, query)
			request.Anonymous = anonymous
			if data != "" {
				if !json.Valid([]byte(data)) {
					return fmt.Errorf("cli.request.data: --data is not valid JSON")
				}
				request.Body = []byte(data)
				request.Header.Set("Content-Type", "application/json")
			}
			response, err := app.client.Send(command.Context(), request)
			if err != nil {
				return err
			}
			var indented bytes.Buffer
			if json.Indent(&indented, response.Body, "", "  ") == nil {
				writeLine(app.streams.out, "%s", indented.String())
				return nil
			}
			_, err = app.streams.out.Write(response.Body)
			return err
		}),
	}
	command.Flags().StringVar(&data, "data", "", "JSON request body")
	command.Flags().BoolVar(&anonymous, "anonymous", false, "Send without a bearer token")
	return command
}
