package terminal

// State is a step in one read-modify-write cycle on the settings file.
//
//	Idle -> BackupTaken -> Validated -> Mutated -> WrittenBack -> Idle
//	any failure -> Failed -> RestoredFromBackup -> Idle
//
// An intent that changes nothing goes Mutated -> Idle without a write.
type State int

const (
	StateIdle State = iota
	StateBackupTaken
	StateValidated
	StateMutated
	StateWrittenBack
	StateFailed
	StateRestoredFromBackup
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBackupTaken:
		return "backup-taken"
	case StateValidated:
		return "validated"
	case StateMutated:
		return "mutated"
	case StateWrittenBack:
		return "written-back"
	case StateFailed:
		return "failed"
	case StateRestoredFromBackup:
		return "restored-from-backup"
	default:
		return "unknown"
	}
}

// Failure reasons recorded on Result.Reason.
const (
	ReasonBackupFailed  = "backup-failed"
	ReasonCorruptSource = "corrupt-source"
	ReasonMutateFailed  = "mutate-failed"
	ReasonWriteFailed   = "write-failed"
)
