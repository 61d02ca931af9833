package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/agentplatform/chat"
	"github.com/kbukum/agentplatform/conversation"
	"github.com/kbukum/agentplatform/httpclient"
	"github.com/kbukum/agentplatform/logger"
)

// Round is one question and answer of an interactive session.
type Round struct {
	Query  string    `json:"query" yaml:"query"`
	Answer string    `json:"answer" yaml:"answer"`
	Error  string    `json:"error,omitempty" yaml:"error,omitempty"`
	At     time.Time `json:"at" yaml:"at"`
}

// session is the structured output of chat.
type session struct {
	ConversationID string  `json:"conversation_id" yaml:"conversation_id"`
	UserID         string  `json:"user_id" yaml:"user_id"`
	Rounds         []Round `json:"rounds" yaml:"rounds"`
}

func (a *App) newChatCommand() *cobra.Command {
	var (
		stateFile string
		fresh     bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive multi-round chat",
		Long: `Chat reads questions from standard input and streams each answer.

The conversation id is saved to a state file and reused by later sessions
unless --new is given. Type "exit" or "quit" to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			return a.runChat(cmd, stateFile, fresh)
		},
	}
	cmd.Flags().StringVar(&stateFile, "state", DefaultStateFile, "file holding the saved conversation id")
	cmd.Flags().BoolVar(&fresh, "new", false, "start a new conversation instead of the saved one")
	return cmd
}

func (a *App) runChat(cmd *cobra.Command, stateFile string, fresh bool) error {
	if a.cfg.UserID == "" {
		return exitWithCode(ExitUsage, errors.New("a user id is required: set user_id or pass --user"))
	}
	convID, err := a.openConversation(cmd, stateFile, fresh)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	live := a.output == formatText
	sess := session{ConversationID: convID, UserID: a.cfg.UserID}
	if live {
		fmt.Fprintf(out, "conversation %s (type exit to quit)\n", convID)
	}

	in := bufio.NewScanner(cmd.InOrStdin())
	for {
		if live {
			fmt.Fprint(out, "> ")
		}
		if !in.Scan() {
			break
		}
		q := strings.TrimSpace(in.Text())
		if q == "" {
			continue
		}
		if q == "exit" || q == "quit" {
			break
		}

		round := a.chatRound(cmd, convID, q, live)
		sess.Rounds = append(sess.Rounds, round)
		if round.Error != "" && live {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", round.Error)
		}
	}
	if err := in.Err(); err != nil {
		return exitWithCode(ExitUsage, err)
	}

	return render(out, a.output, sess, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "\n%d rounds in conversation %s\n", len(sess.Rounds), convID)
		return err
	})
}

// openConversation reuses the saved conversation or creates and saves a new
// one.
func (a *App) openConversation(cmd *cobra.Command, stateFile string, fresh bool) (string, error) {
	log := logger.WithComponent("cli")
	if !fresh {
		st, err := loadState(stateFile)
		if err != nil {
			return "", exitWithCode(ExitUsage, err)
		}
		if st != nil && st.UserID == a.cfg.UserID {
			log.Debug("resuming conversation", logger.Fields(logger.FieldConvID, st.ConversationID))
			return st.ConversationID, nil
		}
	}

	conv, err := a.client.Conversations().Create(cmd.Context(), conversation.CreateRequest{UserID: a.cfg.UserID})
	if err != nil {
		return "", apiFailure(err)
	}
	st := State{ConversationID: conv.AppConversationID, UserID: a.cfg.UserID, Timestamp: time.Now().Format(stateDateLayout)}
	if err := saveState(stateFile, st); err != nil {
		log.Warn("conversation id not saved", logger.Fields(logger.FieldError, err, "file", stateFile))
	}
	return conv.AppConversationID, nil
}

func (a *App) chatRound(cmd *cobra.Command, convID, query string, live bool) Round {
	round := Round{Query: query, At: time.Now().UTC()}
	s, err := a.client.Chat().Stream(cmd.Context(), chat.CreateRequest{
		UserID:         a.cfg.UserID,
		ConversationID: convID,
		Query:          query,
	})
	if err != nil {
		round.Error = describe(err)
		return round
	}

	out := cmd.OutOrStdout()
	var answer strings.Builder
	for ev, err := range s.All() {
		if err != nil {
			round.Error = describe(err)
			break
		}
		if ev.Kind == chat.EventMessage && ev.Message != nil {
			answer.WriteString(ev.Message.Answer)
			if live {
				fmt.Fprint(out, ev.Message.Answer)
			}
		}
	}
	if live {
		fmt.Fprintln(out)
	}
	round.Answer = answer.String()
	return round
}

// describe adds the trace id so failures can be looked up server-side.
func describe(err error) string {
	if id := httpclient.TraceIDOf(err); id != "" && !strings.Contains(err.Error(), id) {
		return fmt.Sprintf("%v (logid %s)", err, id)
	}
	return err.Error()
}
