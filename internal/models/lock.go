package models

// Mutation actions checked by the lock guard
const (
	ActionCreate = "create"
	ActionWrite  = "write"
	ActionDelete = "delete"
)

// Field names that may change on a locked record
const (
	FieldLocked    = "locked"
	FieldWriteDate = "write_date"
)

// Lockable is implemented by every record whose mutations are gated by a
// flight's lock.
type Lockable interface {
	IsLocked() bool
}

// SelfLock is the lock state of a record that carries its own flag.
type SelfLock struct {
	Locked bool
}

// IsLocked implements Lockable
func (l SelfLock) IsLocked() bool {
	return l.Locked
}

// ParentLock delegates the lock state to the owning flight.
type ParentLock struct {
	Flight *Flight
}

// IsLocked implements Lockable
func (l ParentLock) IsLocked() bool {
	return l.Flight.IsLocked()
}

// CheckLock returns a LockError when target is locked.
//
// changed lists the fields a write touches. A write whose fields are all in
// {locked, write_date} and that touches locked is always let through, or a
// locked flight could never be unlocked.
func CheckLock(target Lockable, action, kind string, id int64, changed ...string) error {
	if target == nil || !target.IsLocked() {
		return nil
	}
	if action == ActionWrite && OnlyLockChange(changed) {
		return nil
	}
	return &LockError{Action: action, Kind: kind, ID: id}
}

// OnlyLockChange reports whether changed is exactly {locked} or {locked, write_date}.
func OnlyLockChange(changed []string) bool {
	sawLocked := false
	for _, f := range changed {
		switch f {
		case FieldLocked:
			sawLocked = true
		case FieldWriteDate:
		default:
			return false
		}
	}
	return sawLocked
}
