package store

import (
	"context"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table definitions, declared the way ent's generated migrate package
// declares them.

var (
	participantsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true},
		{Name: "modality", Type: field.TypeEnum, Enums: []string{"READING", "CONVERSATIONAL"}},
		{Name: "consent", Type: field.TypeBool, Default: false},
		{Name: "pre_assessment", Type: field.TypeBool, Default: false},
		{Name: "interaction", Type: field.TypeBool, Default: false},
		{Name: "post_assessment", Type: field.TypeBool, Default: false},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	participantsTable = &schema.Table{
		Name:       "participants",
		Columns:    participantsColumns,
		PrimaryKey: []*schema.Column{participantsColumns[0]},
	}

	studySessionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true},
		{Name: "participant_id", Type: field.TypeString, Unique: true},
		{Name: "current_phase", Type: field.TypeString},
		{Name: "is_completed", Type: field.TypeBool, Default: false},
		{Name: "is_paused", Type: field.TypeBool, Default: false},
		{Name: "interaction_duration_seconds", Type: field.TypeInt, Default: 0},
		{Name: "started_at", Type: field.TypeTime},
		{Name: "completed_at", Type: field.TypeTime, Nullable: true},
		{Name: "updated_at", Type: field.TypeTime},
	}
	studySessionsTable = &schema.Table{
		Name:       "study_sessions",
		Columns:    studySessionsColumns,
		PrimaryKey: []*schema.Column{studySessionsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "study_sessions_participants_session",
				Columns:    []*schema.Column{studySessionsColumns[1]},
				RefColumns: []*schema.Column{participantsColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
	}

	conversationsColumns = []*schema.Column{
		{Name: "session_id", Type: field.TypeString, Unique: true},
		{Name: "participant_id", Type: field.TypeString},
		{Name: "started_at", Type: field.TypeTime},
		{Name: "ended_at", Type: field.TypeTime, Nullable: true},
	}
	conversationsTable = &schema.Table{
		Name:       "conversations",
		Columns:    conversationsColumns,
		PrimaryKey: []*schema.Column{conversationsColumns[0]},
	}

	sessionLogsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "session_id", Type: field.TypeString},
		{Name: "participant_id", Type: field.TypeString},
		{Name: "log_type", Type: field.TypeString},
		{Name: "event_data", Type: field.TypeJSON},
	}
	sessionLogsTable = &schema.Table{
		Name:       "session_logs",
		Columns:    sessionLogsColumns,
		PrimaryKey: []*schema.Column{sessionLogsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "sessionlog_session_id", Columns: []*schema.Column{sessionLogsColumns[3]}},
			{Name: "sessionlog_log_type", Columns: []*schema.Column{sessionLogsColumns[5]}},
		},
	}

	exchangesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "session_id", Type: field.TypeString},
		{Name: "participant_id", Type: field.TypeString},
		{Name: "turn", Type: field.TypeInt},
		{Name: "message", Type: field.TypeString, Size: 2147483647},
		{Name: "reply", Type: field.TypeString, Size: 2147483647},
		{Name: "model", Type: field.TypeString},
		{Name: "input_tokens", Type: field.TypeInt, Default: 0},
		{Name: "output_tokens", Type: field.TypeInt, Default: 0},
		{Name: "cost", Type: field.TypeFloat64, Default: 0},
		{Name: "latency_ms", Type: field.TypeInt64, Default: 0},
	}
	exchangesTable = &schema.Table{
		Name:       "exchanges",
		Columns:    exchangesColumns,
		PrimaryKey: []*schema.Column{exchangesColumns[0]},
		Indexes: []*schema.Index{
			{Name: "exchange_session_id", Columns: []*schema.Column{exchangesColumns[3]}},
			{Name: "exchange_participant_id_timestamp", Columns: []*schema.Column{exchangesColumns[4], exchangesColumns[2]}},
		},
	}

	llmRequestEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "input_tokens", Type: field.TypeInt, Default: 0},
		{Name: "output_tokens", Type: field.TypeInt, Default: 0},
		{Name: "latency_ms", Type: field.TypeInt64, Default: 0},
		{Name: "success", Type: field.TypeBool},
		{Name: "error_message", Type: field.TypeString, Default: ""},
		{Name: "request_body", Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: "response_body", Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: "session_id", Type: field.TypeString, Default: ""},
	}
	llmRequestEventsTable = &schema.Table{
		Name:       "llm_request_events",
		Columns:    llmRequestEventsColumns,
		PrimaryKey: []*schema.Column{llmRequestEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "llmrequestevent_provider", Columns: []*schema.Column{llmRequestEventsColumns[3]}},
			{Name: "llmrequestevent_purpose", Columns: []*schema.Column{llmRequestEventsColumns[5]}},
			{Name: "llmrequestevent_success", Columns: []*schema.Column{llmRequestEventsColumns[9]}},
			{Name: "llmrequestevent_session_id", Columns: []*schema.Column{llmRequestEventsColumns[13]}},
		},
	}

	tables = []*schema.Table{
		participantsTable,
		studySessionsTable,
		conversationsTable,
		sessionLogsTable,
		exchangesTable,
		llmRequestEventsTable,
	}
)

func init() {
	studySessionsTable.ForeignKeys[0].RefTable = participantsTable
}

// migrate creates or updates every table.
func migrate(ctx context.Context, drv dialect.Driver) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return err
	}
	return m.Create(ctx, tables...)
}
