package model

// Plan is a subscription tier.
type Plan string

const (
	PlanFree        Plan = "free"
	PlanMinimum     Plan = "minimum"
	PlanBusinessman Plan = "businessman"
	PlanPro         Plan = "pro"
	PlanEnterprise  Plan = "enterprise"
)

// PlanLimits caps resource usage for a tier. A limit of -1 means
// unlimited. StorageLimit is in bytes.
type PlanLimits struct {
	APICallsPerDay   int
	APICallsPerMonth int
	GroupsLimit      int
	WarikanLimit     int
	ScheduleLimit    int
	StorageLimit     int64
}

var planLimits = map[Plan]PlanLimits{
	PlanFree: {
		APICallsPerDay:   50,
		APICallsPerMonth: 1000,
		GroupsLimit:      3,
		WarikanLimit:     10,
		ScheduleLimit:    20,
		StorageLimit:     100 << 20,
	},
	PlanMinimum: {
		APICallsPerDay:   200,
		APICallsPerMonth: 5000,
		GroupsLimit:      10,
		WarikanLimit:     50,
		ScheduleLimit:    100,
		StorageLimit:     500 << 20,
	},
	PlanBusinessman: {
		APICallsPerDay:   500,
		APICallsPerMonth: 15000,
		GroupsLimit:      30,
		WarikanLimit:     200,
		ScheduleLimit:    500,
		StorageLimit:     2 << 30,
	},
	PlanPro: {
		APICallsPerDay:   1000,
		APICallsPerMonth: 30000,
		GroupsLimit:      100,
		WarikanLimit:     1000,
		ScheduleLimit:    2000,
		StorageLimit:     10 << 30,
	},
	PlanEnterprise: {
		APICallsPerDay:   10000,
		APICallsPerMonth: 300000,
		GroupsLimit:      -1,
		WarikanLimit:     -1,
		ScheduleLimit:    -1,
		StorageLimit:     -1,
	},
}

// LimitsFor returns the usage limits for a plan. Unknown plans fall
// back to the free tier.
func LimitsFor(p Plan) PlanLimits {
	if l, ok := planLimits[p]; ok {
		return l
	}
	return planLimits[PlanFree]
}

// AllowsAPICall reports whether the counters are still under the
// plan's daily and monthly ceilings.
func (l PlanLimits) AllowsAPICall(u UsageCounters) bool {
	if l.APICallsPerDay >= 0 && u.APICalls >= l.APICallsPerDay {
		return false
	}
	if l.APICallsPerMonth >= 0 && u.MonthlyAPICalls >= l.APICallsPerMonth {
		return false
	}
	return true
}
