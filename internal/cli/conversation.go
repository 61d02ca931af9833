package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kbukum/agentplatform/conversation"
)

func (a *App) newConversationCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversation",
		Aliases: []string{"conv"},
		Short:   "Manage conversations",
	}

	var inputs map[string]string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			conv, err := a.client.Conversations().Create(cmd.Context(), conversation.CreateRequest{
				UserID: a.cfg.UserID,
				Inputs: toInputs(inputs),
			})
			if err != nil {
				return apiFailure(err)
			}
			return a.printConversation(cmd, conv)
		},
	}
	create.Flags().StringToStringVar(&inputs, "input", nil, "app input as key=value (repeatable)")

	var updInputs map[string]string
	update := &cobra.Command{
		Use:   "update <conversation-id>",
		Short: "Replace the inputs of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			conv, err := a.client.Conversations().Update(cmd.Context(), conversation.UpdateRequest{
				ConversationID: args[0],
				UserID:         a.cfg.UserID,
				Inputs:         toInputs(updInputs),
			})
			if err != nil {
				return apiFailure(err)
			}
			return a.printConversation(cmd, conv)
		},
	}
	update.Flags().StringToStringVar(&updInputs, "input", nil, "app input as key=value (repeatable)")

	cmd.AddCommand(create, update)
	return cmd
}

func (a *App) printConversation(cmd *cobra.Command, conv *conversation.Conversation) error {
	return render(cmd.OutOrStdout(), a.output, conv, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, conv.AppConversationID)
		return err
	})
}

func toInputs(m map[string]string) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
