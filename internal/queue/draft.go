package queue

import (
	"strings"

	"consult-queue-backend/internal/lunar"
	"consult-queue-backend/internal/model"
)

const (
	maxAddresses  = 3
	maxDependents = 5
)

// Draft is a validated registration payload. The API layer binds the wire
// request and hands the engine a Draft; nothing is persisted until it
// passes validation here.
type Draft struct {
	Name       string
	Phone      string
	Email      string
	Gender     string
	Birth      model.BirthDate
	Addresses  []model.Address
	Dependents []model.Dependent
	Topics     []string
	Remarks    string
}

func (d *Draft) validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return validationf("name is required")
	}
	if strings.TrimSpace(d.Phone) == "" {
		return validationf("phone is required")
	}
	if !d.Birth.HasSolar() && !d.Birth.HasLunar() {
		return validationf("a solar or lunar birth date is required")
	}
	if len(d.Addresses) < 1 || len(d.Addresses) > maxAddresses {
		return validationf("between 1 and %d addresses are required", maxAddresses)
	}
	for i := range d.Addresses {
		a := &d.Addresses[i]
		if strings.TrimSpace(a.Category) == "" || strings.TrimSpace(a.Line) == "" {
			return validationf("address %d needs a category and a line", i+1)
		}
	}
	if len(d.Dependents) > maxDependents {
		return validationf("at most %d dependents are allowed", maxDependents)
	}
	for i := range d.Dependents {
		dep := &d.Dependents[i]
		if strings.TrimSpace(dep.Name) == "" {
			return validationf("dependent %d needs a name", i+1)
		}
		if !dep.Birth.HasSolar() && !dep.Birth.HasLunar() {
			return validationf("dependent %d needs a solar or lunar birth date", i+1)
		}
		if len(dep.Addresses) > maxAddresses {
			return validationf("dependent %d has more than %d addresses", i+1, maxAddresses)
		}
	}
	return nil
}

// completeCalendars fills in the missing calendar representation for the
// registrant and every dependent.
func (d *Draft) completeCalendars() error {
	if err := lunar.Complete(&d.Birth); err != nil {
		return validationf("birth date: %v", err)
	}
	for i := range d.Dependents {
		if err := lunar.Complete(&d.Dependents[i].Birth); err != nil {
			return validationf("dependent %d birth date: %v", i+1, err)
		}
	}
	return nil
}

func (d *Draft) apply(entry *model.QueueEntry) {
	entry.Name = d.Name
	entry.Phone = d.Phone
	entry.Email = d.Email
	entry.Gender = d.Gender
	entry.Birth = d.Birth
	entry.Addresses = d.Addresses
	entry.Dependents = d.Dependents
	entry.Topics = model.TopicList(d.Topics)
	entry.Remarks = d.Remarks
}
