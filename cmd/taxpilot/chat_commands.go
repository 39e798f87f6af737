package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tyemirov/taxpilot/internal/taxapi"
)

func newChatCommand() *cobra.Command {
	chatCmd := &cobra.Command{Use: "chat", Short: "Ask the tax assistant"}
	chatCmd.AddCommand(newChatAskCommand(), newChatHistoryCommand(), newChatFeedbackCommand())
	return chatCmd
}

func newChatAskCommand() *cobra.Command {
	var sessionID string
	var asJSON bool
	command := &cobra.Command{
		Use:   "ask QUESTION...",
		Short: "Ask a question; answers are Markdown",
		Args:  cobra.MinimumNArgs(1),
		RunE: runWithApp(func(command *cobra.Command, arguments []string, app *application) error {
			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			response, err := app.services.Chat.Ask(command.Context(), strings.Join(arguments, " "), sessionID)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(app.streams.out, response)
			}
			_, _ = fmt.Fprint(app.streams.out, renderMarkdown(app.streams.out, response.Answer, app.configuration.NoColor))
			if !strings.HasSuffix(response.Answer, "\n") {
				writeLine(app.streams.out, "")
			}
			if response.CategoryName != nil {
				deductible := "unknown"
				if response.IsDeductible != nil {
					deductible = strconv.FormatBool(*response.IsDeductible)
				}
				writeLine(app.streams.errOut, "category: %s (deductible: %s)", *response.CategoryName, deductible)
			}
			continuation := sessionID
			if response.SessionID != nil && *response.SessionID != "" {
				continuation = *response.SessionID
			}
			writeLine(app.streams.errOut, "session: %s", continuation)
			return nil
		}),
	}
	command.Flags().StringVar(&sessionID, "session", "", "Continue an earlier conversation (a new session id is generated when omitted)")
	command.Flags().BoolVar(&asJSON, "json", false, "Print the full response as JSON")
	return command
}

func newChatHistoryCommand() *cobra.Command {
	var query taxapi.HistoryQuery
	command := &cobra.Command{
		Use:   "history",
		Short: "List past questions and answers",
		RunE: runWithApp(func(command *cobra.Command, arguments []string, app *application) error {
			history, err := app.services.Chat.History(command.Context(), query)
			if err != nil {
				return err
			}
			return printJSON(app.streams.out, history)
		}),
	}
	command.Flags().IntVar(&query.Page, "page", 0, "Page number")
	command.Flags().IntVar(&query.Size, "size", 0, "Page size (at most 100)")
	command.Flags().StringVar(&query.SessionID, "session", "", "Only this conversation")
	return command
}

func newChatFeedbackCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "feedback CHAT_ID good|bad",
		Short: "Rate an answer",
		Args:  cobra.ExactArgs(2),
		RunE: runWithApp(func(command *cobra.Command, arguments []string, app *application) error {
			chatID, err := strconv.ParseInt(arguments[0], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: chat id %q", taxapi.ErrInvalidArgument, arguments[0])
			}
			if err := app.services.Chat.SendFeedback(command.Context(), chatID, taxapi.Feedback(strings.ToLower(arguments[1]))); err != nil {
				return err
			}
			writeLine(app.streams.out, "Thanks for the feedback.")
			return nil
		}),
	}
}
