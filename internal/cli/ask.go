package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kbukum/agentplatform/chat"
)

type askFlags struct {
	conversation string
	stream       bool
	images       []string
	files        []string
}

// askResult is the structured output of ask.
type askResult struct {
	ConversationID string `json:"conversation_id,omitempty" yaml:"conversation_id,omitempty"`
	ChatID         string `json:"chat_id,omitempty" yaml:"chat_id,omitempty"`
	Query          string `json:"query" yaml:"query"`
	Answer         string `json:"answer" yaml:"answer"`
}

func (a *App) newAskCommand() *cobra.Command {
	var f askFlags
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Ask a single question",
		Long: `Ask sends one query and prints the answer.

Examples:
  agentchat ask "What can you do?"
  agentchat ask --stream --conversation conv-1 "And then?"
  agentchat ask --image https://example.com/cat.png "What is in this picture?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			return a.runAsk(cmd, strings.Join(args, " "), f)
		},
	}
	cmd.Flags().StringVarP(&f.conversation, "conversation", "c", "", "conversation id to continue")
	cmd.Flags().BoolVarP(&f.stream, "stream", "s", false, "print the answer as it streams")
	cmd.Flags().StringSliceVar(&f.images, "image", nil, "image url to attach (repeatable)")
	cmd.Flags().StringSliceVar(&f.files, "file", nil, "file url to attach (repeatable)")
	return cmd
}

func (a *App) runAsk(cmd *cobra.Command, query string, f askFlags) error {
	extends, err := attachments(query, f.images, f.files)
	if err != nil {
		return exitWithCode(ExitUsage, err)
	}
	req := chat.CreateRequest{
		UserID:         a.cfg.UserID,
		ConversationID: f.conversation,
		Query:          query,
		QueryExtends:   extends,
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if !f.stream {
		msg, err := a.client.Chat().Create(ctx, req)
		if err != nil {
			return apiFailure(err)
		}
		res := askResult{ConversationID: msg.ConversationID, ChatID: msg.ChatID, Query: query, Answer: msg.Answer}
		return render(out, a.output, res, func(w io.Writer) error {
			_, err := fmt.Fprintln(w, res.Answer)
			return err
		})
	}

	s, err := a.client.Chat().Stream(ctx, req)
	if err != nil {
		return apiFailure(err)
	}
	live := a.output == formatText
	res := askResult{Query: query}
	var answer strings.Builder
	for ev, err := range s.All() {
		if err != nil {
			if live {
				fmt.Fprintln(out)
			}
			return apiFailure(err)
		}
		switch {
		case ev.Kind == chat.EventChatStart && ev.Chat != nil:
			res.ConversationID, res.ChatID = ev.Chat.ConversationID, ev.Chat.ID
		case ev.Kind == chat.EventMessage && ev.Message != nil:
			answer.WriteString(ev.Message.Answer)
			if live {
				fmt.Fprint(out, ev.Message.Answer)
			}
		}
	}
	if live {
		_, err := fmt.Fprintln(out)
		return err
	}
	res.Answer = answer.String()
	return render(out, a.output, res, nil)
}

// attachments turns media urls into a multimodal context message.
func attachments(query string, images, files []string) ([]chat.Message, error) {
	if len(images) == 0 && len(files) == 0 {
		return nil, nil
	}
	objs := []chat.Object{chat.TextObject(query)}
	for _, u := range images {
		o, err := chat.ImageObject("", u)
		if err != nil {
			return nil, err
		}
		objs = append(objs, o)
	}
	for _, u := range files {
		o, err := chat.FileObject("", u)
		if err != nil {
			return nil, err
		}
		objs = append(objs, o)
	}
	m, err := chat.UserObjects(objs, nil)
	if err != nil {
		return nil, err
	}
	return []chat.Message{m}, nil
}
