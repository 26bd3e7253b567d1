package session

// Stage is the current step of an in-progress multi-step flow.
// Transitions are owned by the flow machine; every (stage, event) pair not
// covered by its transition table re-prompts without advancing.
type Stage int

const (
	StageNone Stage = iota

	// Airtime flow
	StageAirtimeNetwork
	StageAirtimePhone
	StageAirtimeAmount
	StageAirtimeConfirm

	// Data flow
	StageDataNetwork
	StageDataPhone
	StageDataPlan
	StageDataConfirm

	// Electricity flow
	StageElectricityProvider
	StageElectricityMeter
	StageElectricityAmount
	StageElectricityConfirm

	// TV flow
	StageTVProvider
	StageTVCard
	StageTVPlan
	StageTVConfirm

	// Wallet funding
	StageFundAmount
)

var stageNames = map[Stage]string{
	StageNone:                "none",
	StageAirtimeNetwork:      "airtime_network",
	StageAirtimePhone:        "airtime_phone",
	StageAirtimeAmount:       "airtime_amount",
	StageAirtimeConfirm:      "airtime_confirm",
	StageDataNetwork:         "data_network",
	StageDataPhone:           "data_phone",
	StageDataPlan:            "data_plan",
	StageDataConfirm:         "data_confirm",
	StageElectricityProvider: "electricity_provider",
	StageElectricityMeter:    "electricity_meter",
	StageElectricityAmount:   "electricity_amount",
	StageElectricityConfirm:  "electricity_confirm",
	StageTVProvider:          "tv_provider",
	StageTVCard:              "tv_card",
	StageTVPlan:              "tv_plan",
	StageTVConfirm:           "tv_confirm",
	StageFundAmount:          "fund_amount",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}
