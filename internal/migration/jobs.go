package migration

import (
	"sort"

	"github.com/fieldrow/companyfix/internal/conf"
	"github.com/fieldrow/companyfix/internal/docstore"
)

// JobConfig describes one repair job. Collection and field names come from
// configuration; the engine itself is job-agnostic.
type JobConfig struct {
	ID                  string         `json:"id"`
	Title               string         `json:"title"`
	Collection          string         `json:"collection"`
	ReferenceCollection string         `json:"referenceCollection"`
	OwnerField          string         `json:"ownerField"`
	CandidatesField     string         `json:"candidatesField"`
	ReferenceOwnerField string         `json:"referenceOwnerField"`
	OrderBy             docstore.Order `json:"orderBy"`
	// DependsOn is a display-ordering hint only. The engine never gates a
	// dependent job on its dependencies having run.
	DependsOn []string `json:"dependsOn"`
}

// JobsFromSettings builds the job registry from configuration.
func JobsFromSettings(settings *conf.Settings) map[string]JobConfig {
	jobs := make(map[string]JobConfig, len(settings.Jobs))
	for id, js := range settings.Jobs {
		jobs[id] = JobConfig{
			ID:                  id,
			Title:               js.Title,
			Collection:          js.Collection,
			ReferenceCollection: js.ReferenceCollection,
			OwnerField:          js.OwnerField,
			CandidatesField:     js.CandidatesField,
			ReferenceOwnerField: js.ReferenceOwnerField,
			OrderBy:             docstore.Order(js.OrderBy),
			DependsOn:           js.DependsOn,
		}
	}
	return jobs
}

// OrderedJobs returns jobs sorted so that dependencies come before their
// dependents, with alphabetical order as the tiebreak. Used for display only.
func OrderedJobs(jobs map[string]JobConfig) []JobConfig {
	ids := make([]string, 0, len(jobs))
	for id := range jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	visited := make(map[string]bool, len(jobs))
	ordered := make([]JobConfig, 0, len(jobs))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		job, ok := jobs[id]
		if !ok {
			return
		}
		deps := append([]string(nil), job.DependsOn...)
		sort.Strings(deps)
		for _, dep := range deps {
			visit(dep)
		}
		ordered = append(ordered, job)
	}
	for _, id := range ids {
		visit(id)
	}
	return ordered
}
