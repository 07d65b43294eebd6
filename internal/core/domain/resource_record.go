package domain

import (
	"encoding/json"
	"time"
)

// ResourceRecord is the flat form of a Resource used on the wire, in SQL
// rows and in seed files. Optional fields are nil when they do not apply to
// the category.
type ResourceRecord struct {
	ID          int64      `json:"id" yaml:"id,omitempty"`
	Name        string     `json:"name" yaml:"name"`
	Type        string     `json:"type" yaml:"type"`
	Category    Category   `json:"category" yaml:"category"`
	Wing        *string    `json:"wing" yaml:"wing,omitempty"`
	Floor       *int       `json:"floor" yaml:"floor,omitempty"`
	Room        *string    `json:"room" yaml:"room,omitempty"`
	Status      Status     `json:"status" yaml:"status"`
	LastUpdated time.Time  `json:"lastUpdated" yaml:"-"`
	UpdatedBy   *string    `json:"updatedBy" yaml:"updatedBy,omitempty"`
	VerifiedBy  *string    `json:"verifiedBy" yaml:"-"`
	VerifiedAt  *time.Time `json:"verifiedAt" yaml:"-"`
	OwnedBy     *string    `json:"ownedBy" yaml:"ownedBy,omitempty"`
	StallNumber *int       `json:"stallNumber" yaml:"stallNumber,omitempty"`
}

// Record flattens r.
func (r Resource) Record() ResourceRecord {
	rec := ResourceRecord{
		ID:          r.ID,
		Name:        r.Name,
		Type:        r.Type,
		Category:    r.Category(),
		Status:      r.Status(),
		LastUpdated: r.LastUpdated,
	}
	if r.UpdatedBy != nil {
		rec.UpdatedBy = strPtr(*r.UpdatedBy)
	}
	if r.Verification != nil {
		rec.VerifiedBy = strPtr(r.Verification.By)
		at := r.Verification.At
		rec.VerifiedAt = &at
	}
	switch d := r.Details.(type) {
	case RoomDetails:
		rec.Wing = strPtr(d.Wing)
		rec.Floor = intPtr(d.Floor)
		rec.Room = strPtr(d.Room)
	case StallDetails:
		rec.OwnedBy = strPtr(d.OwnedBy)
		if d.StallNumber != 0 {
			rec.StallNumber = intPtr(d.StallNumber)
		}
	case ServiceDetails:
		rec.OwnedBy = strPtr(d.OwnedBy)
	}
	return rec
}

// Resource rebuilds the category variant from the flat record and checks
// the resource invariants.
func (rec ResourceRecord) Resource() (Resource, error) {
	details, err := rec.details()
	if err != nil {
		return Resource{}, err
	}
	if (rec.VerifiedBy == nil) != (rec.VerifiedAt == nil) {
		return Resource{}, &ValidationError{FieldErrors: map[string]string{
			"verifiedAt": "verifiedBy and verifiedAt must be set together",
		}}
	}
	r := Resource{
		ID:          rec.ID,
		Name:        rec.Name,
		Type:        rec.Type,
		Details:     details,
		LastUpdated: rec.LastUpdated,
	}
	if rec.UpdatedBy != nil {
		r.UpdatedBy = strPtr(*rec.UpdatedBy)
	}
	if rec.VerifiedBy != nil {
		r.Verification = &Verification{By: *rec.VerifiedBy, At: *rec.VerifiedAt}
	}
	if err := r.Validate(); err != nil {
		return Resource{}, err
	}
	return r, nil
}

// Input converts a provisioning record into a ResourceInput.
func (rec ResourceRecord) Input() (ResourceInput, error) {
	details, err := rec.details()
	if err != nil {
		return ResourceInput{}, err
	}
	in := ResourceInput{Name: rec.Name, Type: rec.Type, Details: details}
	candidate := Resource{Name: in.Name, Type: in.Type, Details: in.Details}
	if err := candidate.Validate(); err != nil {
		return ResourceInput{}, err
	}
	return in, nil
}

func (rec ResourceRecord) details() (Details, error) {
	switch rec.Category {
	case CategoryRoom:
		st, err := ParseRoomStatus(rec.Status)
		if err != nil {
			return nil, err
		}
		return RoomDetails{Wing: deref(rec.Wing), Floor: derefInt(rec.Floor), Room: deref(rec.Room), Status: st}, nil
	case CategoryHall:
		st, err := ParseRoomStatus(rec.Status)
		if err != nil {
			return nil, err
		}
		return HallDetails{Status: st}, nil
	case CategoryLagoonStall:
		st, err := ParseStallStatus(rec.Status)
		if err != nil {
			return nil, err
		}
		return StallDetails{OwnedBy: deref(rec.OwnedBy), StallNumber: derefInt(rec.StallNumber), Status: st}, nil
	case CategoryService:
		st, err := ParseStallStatus(rec.Status)
		if err != nil {
			return nil, err
		}
		return ServiceDetails{OwnedBy: deref(rec.OwnedBy), Status: st}, nil
	}
	return nil, &ValidationError{FieldErrors: map[string]string{
		"category": "category must be one of room, hall, lagoon_stall, service",
	}}
}

func (r Resource) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Record())
}

func (r *Resource) UnmarshalJSON(data []byte) error {
	var rec ResourceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	res, err := rec.Resource()
	if err != nil {
		return err
	}
	*r = res
	return nil
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
