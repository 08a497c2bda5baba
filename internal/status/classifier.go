package status

import "fmt"

const (
	dirtyMessageTemplateConstant           = "repo %s has DIRTY work directory"
	fastForwardMessageTemplateConstant     = "repo %s You can FAST FORWARD MERGE (%s)"
	pushMessageTemplateConstant            = "repo %s You can just PUSH (%s)"
	divergedMessageTemplateConstant        = "repo %s DIVERGED (%s)"
	snapshotFailureMessageTemplateConstant = "repo %s could not be inspected: %v"
)

// branchActionRank orders branch-level actions when several primary branches are present.
var branchActionRank = map[Action]int{
	ActionNone:            0,
	ActionPush:            1,
	ActionFastForwardPull: 2,
	ActionDiverged:        3,
}

// Classify derives the recommended action for a snapshot.
//
// A dirty working tree dominates every branch comparison. Otherwise each primary
// branch present in the tracking map is classified on its own and the most severe
// result wins; ties keep the branch listed first in the policy.
func Classify(snapshot Snapshot, policy Policy) Decision {
	if !snapshot.Clean {
		return Decision{Action: ActionDirty}
	}

	decision := Decision{Action: ActionNone}
	found := false
	for _, branchName := range policy.Sanitize().PrimaryBranches {
		comparison, tracked := snapshot.Tracking[branchName]
		if !tracked {
			continue
		}
		candidate := Decision{Action: ClassifyComparison(comparison), Branch: branchName, Comparison: comparison}
		if !found || branchActionRank[candidate.Action] > branchActionRank[decision.Action] {
			decision = candidate
			found = true
		}
	}

	return decision
}

// ClassifyComparison maps a single branch comparison onto an action.
func ClassifyComparison(comparison BranchComparison) Action {
	switch {
	case comparison.Ahead == 0 && comparison.Behind != 0:
		return ActionFastForwardPull
	case comparison.Ahead != 0 && comparison.Behind == 0:
		return ActionPush
	case comparison.Synced():
		return ActionNone
	default:
		return ActionDiverged
	}
}

// Message renders the fixed recommendation text for a decision; ActionNone renders empty.
func Message(decision Decision, repositoryPath string) string {
	switch decision.Action {
	case ActionDirty:
		return fmt.Sprintf(dirtyMessageTemplateConstant, repositoryPath)
	case ActionFastForwardPull:
		return fmt.Sprintf(fastForwardMessageTemplateConstant, repositoryPath, decision.Branch)
	case ActionPush:
		return fmt.Sprintf(pushMessageTemplateConstant, repositoryPath, decision.Branch)
	case ActionDiverged:
		return fmt.Sprintf(divergedMessageTemplateConstant, repositoryPath, decision.Branch)
	default:
		return ""
	}
}

// FailureMessage renders the text shown when a repository could not be snapshotted.
func FailureMessage(repositoryPath string, failure error) string {
	return fmt.Sprintf(snapshotFailureMessageTemplateConstant, repositoryPath, failure)
}
