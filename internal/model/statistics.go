package model

// ApplicationStats aggregates applications over a reporting period.
type ApplicationStats struct {
	Total                int      `json:"total"`
	Accepted             int      `json:"accepted"`
	Rejected             int      `json:"rejected"`
	InProgress           int      `json:"in_progress"`
	AvgResponseMinutes   *float64 `json:"avg_response_minutes"`
	AvgInspectionMinutes *float64 `json:"avg_inspection_minutes"`
}

// DiscrepancyStats aggregates discrepancies over a reporting period,
// optionally scoped to one responsible master.
type DiscrepancyStats struct {
	Total                int      `json:"total"`
	New                  int      `json:"new"`
	InResolution         int      `json:"in_resolution"`
	Closed               int      `json:"closed"`
	Fixed                int      `json:"fixed"`
	Defect               int      `json:"defect"`
	AvgResolutionMinutes *float64 `json:"avg_resolution_minutes"`
}

// DefectCodeStat is one row of the "top defect codes" report.
type DefectCodeStat struct {
	Code                 string   `json:"code"`
	Category             string   `json:"category"`
	Severity             int      `json:"severity"`
	Count                int      `json:"count"`
	AvgResolutionMinutes *float64 `json:"avg_resolution_minutes"`
}
