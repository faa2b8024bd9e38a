package domain

import (
	"fmt"
	"strings"
	"time"
)

type ObligeeStatus int16

const (
	ObligeeActive    ObligeeStatus = 1
	ObligeeDissolved ObligeeStatus = 2
)

func (self ObligeeStatus) String() string {
	switch self {
	case ObligeeActive:
		return "active"
	case ObligeeDissolved:
		return "dissolved"
	default:
		return fmt.Sprintf("ObligeeStatus(%d)", int16(self))
	}
}

// Obligee is a public authority obliged to respond to inforequests. The
// record is mutable; every write appends an ObligeeSnapshot preserving the
// pre-write contact fields.
type Obligee struct {
	ID     int64         `db:"id" json:"id"`
	Name   string        `db:"name" json:"name"`
	Street string        `db:"street" json:"street"`
	City   string        `db:"city" json:"city"`
	Zip    string        `db:"zip" json:"zip"`
	Emails string        `db:"emails" json:"emails"` // comma-separated
	Status ObligeeStatus `db:"status" json:"status"`
	Slug   string        `db:"slug" json:"slug"`
}

// EmailList splits the comma-separated address list.
func (self *Obligee) EmailList() []string {
	return splitEmails(self.Emails)
}

// ObligeeSnapshot is an immutable historical copy of an obligee's contact
// fields. Every branch pins one so later obligee edits never rewrite the
// addresses an inforequest was actually sent to.
type ObligeeSnapshot struct {
	ID           int64         `db:"id" json:"id"`
	ObligeeID    int64         `db:"obligee_id" json:"obligee_id"`
	Name         string        `db:"name" json:"name"`
	Street       string        `db:"street" json:"street"`
	City         string        `db:"city" json:"city"`
	Zip          string        `db:"zip" json:"zip"`
	Emails       string        `db:"emails" json:"emails"`
	Status       ObligeeStatus `db:"status" json:"status"`
	SnapshotTime time.Time     `db:"snapshot_time" json:"snapshot_time"`
}

func (self *ObligeeSnapshot) EmailList() []string {
	return splitEmails(self.Emails)
}

func splitEmails(joined string) []string {
	var res []string
	for _, part := range strings.Split(joined, ",") {
		if part = strings.TrimSpace(part); part != "" {
			res = append(res, part)
		}
	}
	return res
}
