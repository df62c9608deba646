package fontclass

// NeedsClassification reports whether rec lacks any of the requested scores.
// A missing record always needs classification.
func NeedsClassification(rec Record, ok bool, attrs Attributes) bool {
	if !ok {
		return true
	}
	if attrs == 0 {
		attrs = AttrWeight | AttrWidth
	}
	return (attrs&AttrWeight != 0 && !rec.Weight.IsSet()) ||
		(attrs&AttrWidth != 0 && !rec.Width.IsSet()) ||
		(attrs&AttrAngle != 0 && !rec.Angle.IsSet())
}

// PendingJobs keeps the jobs whose existing catalog record is missing or
// incomplete for attrs, so a run can fill gaps without re-scoring everything.
// Unresolved fonts are always kept. Jobs without declared subsets inherit
// the subsets of their record.
//
// Note that scores are batch-relative: a partial run normalizes only the
// pending fonts against each other.
func (cfg *Config) PendingJobs(jobs []FontJob, existing map[string]Record, attrs Attributes) []FontJob {
	cfg.defaults()

	var out []FontJob
	for _, job := range jobs {
		gfn := cfg.Resolver.Resolve(job.Path).GFN()
		if gfn == Unknown {
			out = append(out, job)
			continue
		}
		rec, ok := existing[gfn]
		if ok && len(job.Subsets) == 0 {
			job.Subsets = rec.Subsets
		}
		if NeedsClassification(rec, ok, attrs) {
			out = append(out, job)
		}
	}
	return out
}
