package schedule

import "github.com/resonai/ybt-sub000/src/core"

// Result summarizes one Scheduler.Run invocation (§4.11 "failed and
// skipped as separate sets").
type Result struct {
	Succeeded []core.QualifiedName
	CacheHits []core.QualifiedName
	PreBuilt  []core.QualifiedName
	Failed    []core.QualifiedName
	Skipped   []core.QualifiedName
}

func (r *Result) recordSucceeded(name core.QualifiedName) { r.Succeeded = append(r.Succeeded, name) }
func (r *Result) recordCacheHit(name core.QualifiedName)  { r.CacheHits = append(r.CacheHits, name) }
func (r *Result) recordPreBuilt(name core.QualifiedName)  { r.PreBuilt = append(r.PreBuilt, name) }
func (r *Result) recordFailed(name core.QualifiedName)    { r.Failed = append(r.Failed, name) }
func (r *Result) recordSkipped(name core.QualifiedName)   { r.Skipped = append(r.Skipped, name) }
