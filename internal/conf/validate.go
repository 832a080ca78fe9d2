package conf

import (
	"errors"
	"fmt"
)

// ValidateSettings checks the loaded settings for values the engine cannot
// run with. It returns the first problem found.
func ValidateSettings(settings *Settings) error {
	if settings == nil {
		return errors.New("settings is nil")
	}

	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return errors.New("no document store backend enabled, enable output.sqlite or output.mysql")
	}
	if settings.Output.SQLite.Enabled && settings.Output.MySQL.Enabled {
		return errors.New("only one document store backend may be enabled")
	}
	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		return errors.New("output.sqlite.path must be set")
	}
	if settings.Output.MySQL.Enabled {
		if settings.Output.MySQL.Host == "" || settings.Output.MySQL.Database == "" {
			return errors.New("output.mysql.host and output.mysql.database must be set")
		}
	}

	if settings.Migration.PageSize <= 0 {
		return fmt.Errorf("migration.pagesize must be positive, got %d", settings.Migration.PageSize)
	}
	if settings.Migration.MinOwnerIDLength <= 0 {
		return fmt.Errorf("migration.minowneridlength must be positive, got %d", settings.Migration.MinOwnerIDLength)
	}
	if settings.Migration.AuditLogSize <= 0 {
		return fmt.Errorf("migration.auditlogsize must be positive, got %d", settings.Migration.AuditLogSize)
	}
	if settings.Migration.Cache.Capacity <= 0 {
		return fmt.Errorf("migration.cache.capacity must be positive, got %d", settings.Migration.Cache.Capacity)
	}
	if settings.Migration.Cache.TTL <= 0 {
		return errors.New("migration.cache.ttl must be positive")
	}
	if settings.Migration.Throttle < 0 {
		return errors.New("migration.throttle must not be negative")
	}

	if settings.Progress.SampleLimit <= 0 {
		return fmt.Errorf("progress.samplelimit must be positive, got %d", settings.Progress.SampleLimit)
	}
	if settings.Progress.PollInterval <= 0 {
		return errors.New("progress.pollinterval must be positive")
	}

	for id, job := range settings.Jobs {
		if err := validateJob(id, &job); err != nil {
			return err
		}
	}
	// Dependency hints must point at configured jobs.
	for id, job := range settings.Jobs {
		for _, dep := range job.DependsOn {
			if _, ok := settings.Jobs[dep]; !ok {
				return fmt.Errorf("job %q depends on unknown job %q", id, dep)
			}
		}
	}

	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		return errors.New("sentry.enabled requires sentry.dsn")
	}

	return nil
}

func validateJob(id string, job *JobSettings) error {
	if job.Collection == "" {
		return fmt.Errorf("job %q: collection must be set", id)
	}
	if job.ReferenceCollection == "" {
		return fmt.Errorf("job %q: referencecollection must be set", id)
	}
	if job.OwnerField == "" {
		return fmt.Errorf("job %q: ownerfield must be set", id)
	}
	if job.CandidatesField == "" {
		return fmt.Errorf("job %q: candidatesfield must be set", id)
	}
	if job.ReferenceOwnerField == "" {
		return fmt.Errorf("job %q: referenceownerfield must be set", id)
	}
	if job.OrderBy == "" {
		return fmt.Errorf("job %q: orderby must be set", id)
	}
	return nil
}
