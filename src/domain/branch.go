package domain

// Branch is one thread of correspondence with one obligee within an
// inforequest. AdvancedByID is both the parent pointer and the advancement
// action: nil iff this is the inforequest's main branch, otherwise it names
// the ADVANCEMENT action on the parent branch that spawned this one. A branch
// is immutable after creation except for its action list.
type Branch struct {
	ID                int64  `db:"id"`
	InforequestID     int64  `db:"inforequest_id"`
	ObligeeID         int64  `db:"obligee_id"`
	ObligeeSnapshotID int64  `db:"obligee_snapshot_id"`
	AdvancedByID      *int64 `db:"advanced_by_id"`
}

func (self *Branch) IsMain() bool {
	return self.AdvancedByID == nil
}

// OpeningType is the only action type that may legally open this branch.
func (self *Branch) OpeningType() ActionType {
	if self.IsMain() {
		return ActionRequest
	}
	return ActionAdvancedRequest
}
