package orchestrator

import "nostrdvm.backend/internal/domain/entities"

// priceJob computes amount = fix_cost + per_unit_cost * duration (spec.md
// §4.6 step 4). Duration is the input media length for media tasks, else
// zero; workers that don't implement DurationEstimator are billed flat.
func priceJob(worker entities.Worker, req entities.JobRequest) int64 {
	var duration int64
	if estimator, ok := worker.(entities.DurationEstimator); ok {
		if d, ok := estimator.EstimateDuration(req); ok {
			duration = d
		}
	}
	return worker.FixCost() + worker.PerUnitCost()*duration
}
