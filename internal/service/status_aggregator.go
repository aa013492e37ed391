package service

import "backend/internal/model"

// ComputeApplicationStatus derives an application's status from its full
// discrepancy set. Evaluated in priority order, first match wins:
//
//  1. any discrepancy resolved as defect        → defect
//  2. any discrepancy in kr_pending             → kr_pending
//  3. all discrepancies closed                  → accepted
//  4. any discrepancy in an active state        → in_resolution
//  5. otherwise                                 → current (no change)
//
// With an empty set the plain inspection lifecycle governs and current is
// returned unchanged. A defect resolution dominates everything else: one
// scrapped unit means the application can never be accepted.
func ComputeApplicationStatus(current model.ApplicationStatus, discrepancies []model.Discrepancy) model.ApplicationStatus {
	if len(discrepancies) == 0 {
		return current
	}

	anyKRPending := false
	anyActive := false
	allClosed := true

	for i := range discrepancies {
		d := &discrepancies[i]
		if d.ResolutionType != nil && *d.ResolutionType == model.ResolutionTypeDefect {
			return model.ApplicationStatusDefect
		}
		if d.Status == model.DiscrepancyStatusKRPending {
			anyKRPending = true
		}
		if d.Status != model.DiscrepancyStatusClosed {
			allClosed = false
		}
		if d.Status.Active() {
			anyActive = true
		}
	}

	switch {
	case anyKRPending:
		return model.ApplicationStatusKRPending
	case allClosed:
		return model.ApplicationStatusAccepted
	case anyActive:
		return model.ApplicationStatusInResolution
	}
	return current
}

// SummarizeResolutions tallies resolution_type occurrences across the
// discrepancy set. Both KR outcomes land in the KRPending bucket: the tally
// tracks which resolution path was taken, not its verdict.
func SummarizeResolutions(discrepancies []model.Discrepancy) model.ResolutionSummary {
	var s model.ResolutionSummary
	for i := range discrepancies {
		if discrepancies[i].ResolutionType == nil {
			continue
		}
		switch *discrepancies[i].ResolutionType {
		case model.ResolutionTypeFixed:
			s.Fixed++
		case model.ResolutionTypeKRApproved, model.ResolutionTypeKRRejected:
			s.KRPending++
		case model.ResolutionTypeDefect:
			s.Defect++
		case model.ResolutionTypePoliticalClose:
			s.Political++
		}
	}
	return s
}
