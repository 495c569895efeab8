package ports

// RepairJob asks for FriendID to be (re-)added to ProfileID's friends set.
// The underlying add-to-set write is idempotent, so a job may be executed
// more than once without harm.
type RepairJob struct {
	ProfileID string
	FriendID  string
}

// RepairQueue accepts friend-edge repair jobs for asynchronous execution.
type RepairQueue interface {
	Enqueue(job RepairJob)
}
