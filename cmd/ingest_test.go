package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hmoscout/ingest-cli/internal/model"
)

func TestFormatRun(t *testing.T) {
	t.Parallel()

	run := &model.IngestionRun{
		ID:     "0c9e7a4b-1234-5678-9abc-def012345678",
		Status: model.RunStatusComplete,
		Sources: []model.SourceResult{
			{Source: "council_register", Status: model.SourceStatusComplete, Created: 3, Updated: 1, Duration: 1500 * time.Millisecond},
			{Source: "register_xlsx", Status: model.SourceStatusFailed, Errors: []string{"fetch: boom"}, TruncatedErrors: 2},
		},
	}

	var sb strings.Builder
	formatRun(&sb, run)
	out := sb.String()

	assert.Contains(t, out, "council_register")
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "Run 0c9e7a4b: complete (3 created, 1 updated)")
	assert.Contains(t, out, "[register_xlsx] fetch: boom")
	assert.Contains(t, out, "and 2 more errors")
}

func TestTruncateID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0c9e7a4b", truncateID("0c9e7a4b-1234-5678-9abc-def012345678"))
	assert.Equal(t, "short", truncateID("short"))
}
