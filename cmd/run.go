package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abhisek/studyctl/internal/content"
	"github.com/abhisek/studyctl/internal/lifecycle"
	"github.com/abhisek/studyctl/internal/localstate"
	"github.com/abhisek/studyctl/internal/study"
	"github.com/abhisek/studyctl/internal/tui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start or resume the study session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd)
	},
}

// runApp loads the participant, builds the lifecycle controller and
// launches the TUI.
func runApp(cmd *cobra.Command) error {
	ctx := cmd.Context()
	statePath, err := resolveStatePath()
	if err != nil {
		return err
	}
	st, err := localstate.Load(statePath)
	if err != nil {
		return err
	}
	if st.ServerURL != "" && cfg.Client.ServerURL != st.ServerURL {
		// Keep talking to the server the participant registered with.
		cfg.Client.ServerURL = st.ServerURL
	}

	// The TUI owns the terminal, so logs go to a file next to the state.
	logFile, err := os.OpenFile(filepath.Join(filepath.Dir(statePath), "studyctl.log"),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	logger := newLogger(logFile, cmd)
	slog.SetDefault(logger)

	c := newClient(st.ParticipantID)
	if _, err := c.CheckVersion(ctx); err != nil {
		return err
	}

	var doc *content.Document
	if st.Modality == study.ModalityReading {
		if doc, err = content.Load(cfg.Study.ContentPath); err != nil {
			return err
		}
	}

	profile := localstate.NewProfile(statePath, *st, c, logger)
	changes := tui.NewChanges()
	totalUnits := 0
	if doc != nil {
		totalUnits = doc.Len()
	}
	ctrl := lifecycle.New(lifecycle.Deps{
		Profile:       profile,
		Profiles:      c,
		Sessions:      c,
		Conversations: c,
		Logger:        logger,
	}, lifecycle.Options{
		Duration:     cfg.InteractionDuration(),
		SyncInterval: cfg.SyncInterval(),
		TotalUnits:   totalUnits,
		OnChange:     changes.Notify,
	})

	runErr := tui.Run(ctrl, doc, changes)

	if id := ctrl.Snapshot().SessionID; id != "" {
		if err := profile.SetSessionID(id); err != nil {
			logger.Warn("session id not persisted", "error", err)
		}
	}
	return runErr
}
