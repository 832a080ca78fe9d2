package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	settings := &Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = "companyfix.db"
	settings.Migration.PageSize = 500
	settings.Migration.Throttle = 100 * time.Millisecond
	settings.Migration.MinOwnerIDLength = 3
	settings.Migration.AuditLogSize = 1000
	settings.Migration.Cache.Capacity = 10000
	settings.Migration.Cache.TTL = 5 * time.Minute
	settings.Progress.SampleLimit = 1000
	settings.Progress.PollInterval = 30 * time.Second
	settings.Jobs = map[string]JobSettings{
		"conversations": {
			Collection:          "conversations",
			ReferenceCollection: "users",
			OwnerField:          "companyId",
			CandidatesField:     "participantIds",
			ReferenceOwnerField: "companyId",
			OrderBy:             "createdAt desc",
		},
	}
	return settings
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateSettings(validSettings()))

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{
			"nil settings handled separately", nil, "settings is nil",
		},
		{
			"no backend enabled",
			func(s *Settings) { s.Output.SQLite.Enabled = false },
			"no document store backend",
		},
		{
			"both backends enabled",
			func(s *Settings) {
				s.Output.MySQL.Enabled = true
				s.Output.MySQL.Host = "localhost"
				s.Output.MySQL.Database = "companyfix"
			},
			"only one document store backend",
		},
		{
			"sqlite without path",
			func(s *Settings) { s.Output.SQLite.Path = "" },
			"output.sqlite.path",
		},
		{
			"mysql without host",
			func(s *Settings) {
				s.Output.SQLite.Enabled = false
				s.Output.MySQL.Enabled = true
				s.Output.MySQL.Database = "companyfix"
			},
			"output.mysql.host",
		},
		{
			"zero page size",
			func(s *Settings) { s.Migration.PageSize = 0 },
			"migration.pagesize",
		},
		{
			"zero min owner id length",
			func(s *Settings) { s.Migration.MinOwnerIDLength = 0 },
			"migration.minowneridlength",
		},
		{
			"zero cache capacity",
			func(s *Settings) { s.Migration.Cache.Capacity = 0 },
			"migration.cache.capacity",
		},
		{
			"zero cache ttl",
			func(s *Settings) { s.Migration.Cache.TTL = 0 },
			"migration.cache.ttl",
		},
		{
			"negative throttle",
			func(s *Settings) { s.Migration.Throttle = -time.Second },
			"migration.throttle",
		},
		{
			"zero sample limit",
			func(s *Settings) { s.Progress.SampleLimit = 0 },
			"progress.samplelimit",
		},
		{
			"job missing collection",
			func(s *Settings) {
				job := s.Jobs["conversations"]
				job.Collection = ""
				s.Jobs["conversations"] = job
			},
			"collection must be set",
		},
		{
			"job missing candidates field",
			func(s *Settings) {
				job := s.Jobs["conversations"]
				job.CandidatesField = ""
				s.Jobs["conversations"] = job
			},
			"candidatesfield must be set",
		},
		{
			"dependency on unknown job",
			func(s *Settings) {
				job := s.Jobs["conversations"]
				job.DependsOn = []string{"ghost"}
				s.Jobs["conversations"] = job
			},
			`depends on unknown job "ghost"`,
		},
		{
			"sentry enabled without dsn",
			func(s *Settings) { s.Sentry.Enabled = true },
			"sentry.enabled requires sentry.dsn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if tt.mutate == nil {
				err := ValidateSettings(nil)
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			settings := validSettings()
			tt.mutate(settings)
			err := ValidateSettings(settings)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	// The shipped defaults must pass their own validation.
	settings, err := Load()
	require.NoError(t, err)
	require.NotNil(t, settings)

	assert.True(t, settings.Output.SQLite.Enabled)
	assert.NotEmpty(t, settings.Jobs)
	for id, job := range settings.Jobs {
		assert.NotEmpty(t, job.Collection, "job %s", id)
		assert.NotEmpty(t, job.CandidatesField, "job %s", id)
	}
}
