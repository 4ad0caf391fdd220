package provision

// StageID identifies a stage in the plan.
type StageID string

const (
	StageWriteLocalSettings StageID = "write-local-settings"
	StageProvisionOrJoin    StageID = "provision-or-join"
	StageWriteKerberos      StageID = "write-kerberos"
	StageWriteDNS           StageID = "write-dns"
	StageUpdateNetwork      StageID = "update-network"
)

// Caption is shown above the stage list while a run is in progress.
const Caption = "Provisioning Samba Active Directory Domain controller..."

// Stage is one entry of the plan. Label is shown in the stage list, Step
// while the stage is running.
type Stage struct {
	ID    StageID
	Label string
	Step  string
}

var (
	stageWriteLocalSettings = Stage{ID: StageWriteLocalSettings, Label: "Write the settings", Step: "Writing the settings..."}
	stageProvisionOrJoin    = Stage{ID: StageProvisionOrJoin, Label: "Provision", Step: "Provisioning..."}
	stageWriteKerberos      = Stage{ID: StageWriteKerberos, Label: "Write kerberos settings", Step: "Writing kerberos settings..."}
	stageWriteDNS           = Stage{ID: StageWriteDNS, Label: "Write DNS settings", Step: "Writing DNS settings..."}
	stageUpdateNetwork      = Stage{ID: StageUpdateNetwork, Label: "Update network configuration", Step: "Updating network configuration..."}
)

// BuildPlan returns the ordered stages of a run. The DNS stages are appended
// only when the resolver configuration is managed.
func BuildPlan(dnsManaged bool) []Stage {
	plan := []Stage{
		stageWriteLocalSettings,
		stageProvisionOrJoin,
		stageWriteKerberos,
	}
	if dnsManaged {
		plan = append(plan, stageWriteDNS, stageUpdateNetwork)
	}
	return plan
}

// StageIDs returns the IDs of stages in order.
func StageIDs(stages []Stage) []StageID {
	ids := make([]StageID, len(stages))
	for i, s := range stages {
		ids[i] = s.ID
	}
	return ids
}
