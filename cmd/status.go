package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/studyctl/internal/localstate"
	"github.com/abhisek/studyctl/internal/study"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the participant's study progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		statePath, err := resolveStatePath()
		if err != nil {
			return err
		}
		offline, _ := cmd.Flags().GetBool("offline")

		st, err := localstate.Load(statePath)
		if err != nil {
			return err
		}
		c := newClient(st.ParticipantID)
		prof := localstate.NewProfile(statePath, *st, c, nil)

		p := prof.Participant()
		source := "cached"
		if !offline {
			if fresh, err := prof.Refresh(ctx); err != nil {
				fmt.Printf("Server unreachable, showing cached progress: %v\n\n", err)
			} else {
				p = fresh
				source = "server"
			}
		}

		fmt.Printf("Participant: %s\n", p.ID)
		fmt.Printf("Modality:    %s\n", p.Modality)
		fmt.Printf("Phase:       %s\n", study.InitialPhase(p.Flags).DisplayName())
		fmt.Printf("Progress:    %d%% (%s)\n", p.CompletionPercentage(), source)
		fmt.Println(strings.Repeat("─", 40))
		for _, step := range []struct {
			name string
			done bool
		}{
			{"Consent", p.Flags.Consent},
			{"Pre-assessment", p.Flags.PreAssessment},
			{"Learning session", p.Flags.Interaction},
			{"Post-assessment", p.Flags.PostAssessment},
		} {
			mark := " "
			if step.done {
				mark = "✓"
			}
			fmt.Printf("  [%s] %s\n", mark, step.name)
		}

		if id := prof.SessionID(); id != "" && !offline {
			sess, err := c.GetSession(ctx, id)
			if err != nil {
				fmt.Printf("\nSession %s: %v\n", id, err)
				return nil
			}
			fmt.Println()
			fmt.Printf("Session:     %s\n", sess.ID)
			fmt.Printf("  Phase:     %s\n", sess.CurrentPhase.DisplayName())
			fmt.Printf("  Active:    %s\n", formatSeconds(sess.InteractionDurationSeconds))
			fmt.Printf("  Completed: %v\n", sess.IsCompleted)
		}
		return nil
	},
}

func formatSeconds(s int) string {
	return fmt.Sprintf("%dm %02ds", s/60, s%60)
}

func init() {
	statusCmd.Flags().Bool("offline", false, "Show cached progress without contacting the server")
}
