package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/studyctl/internal/client"
	"github.com/abhisek/studyctl/internal/localstate"
	"github.com/abhisek/studyctl/internal/study"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register this machine as a study participant",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		statePath, err := resolveStatePath()
		if err != nil {
			return err
		}

		force, _ := cmd.Flags().GetBool("force")
		if existing, err := localstate.Load(statePath); err == nil && !force {
			return fmt.Errorf("already registered as participant %s (use --force to replace)", existing.ParticipantID)
		} else if err != nil && !errors.Is(err, localstate.ErrNoState) {
			return err
		}

		var modality *study.Modality
		if m, _ := cmd.Flags().GetString("modality"); m != "" {
			parsed, err := study.ParseModality(strings.ToUpper(m))
			if err != nil {
				return err
			}
			modality = &parsed
		}

		c := newClient("")
		if _, err := c.CheckVersion(ctx); err != nil {
			return err
		}
		p, err := c.Register(ctx, modality)
		if err != nil {
			return fmt.Errorf("register: %w", err)
		}

		now := time.Now().UTC()
		st := &localstate.State{
			ServerURL:     cfg.Client.ServerURL,
			ParticipantID: p.ID,
			Modality:      p.Modality,
			Flags:         p.Flags,
			RegisteredAt:  p.CreatedAt,
			UpdatedAt:     now,
		}
		if err := localstate.Save(statePath, st); err != nil {
			return fmt.Errorf("save state: %w", err)
		}

		fmt.Printf("Registered participant %s (%s)\n", p.ID, p.Modality)
		fmt.Println("Run `studyctl run` to start.")
		return nil
	},
}

// resolveStatePath returns the state file from the config, or the default.
func resolveStatePath() (string, error) {
	if cfg.Client.StatePath != "" {
		return cfg.Client.StatePath, nil
	}
	return localstate.DefaultPath()
}

// newClient builds an API client bound to participantID.
func newClient(participantID string) *client.Client {
	return client.New(cfg.Client.ServerURL,
		client.WithTimeout(cfg.Client.Timeout),
		client.WithParticipant(participantID),
	)
}

func init() {
	registerCmd.Flags().String("modality", "", "Assign a modality (READING or CONVERSATIONAL) instead of a random one")
	registerCmd.Flags().Bool("force", false, "Replace an existing registration")
}
