package domain

import (
	"fmt"
	"time"
)

type Category string

const (
	CategoryRoom        Category = "room"
	CategoryHall        Category = "hall"
	CategoryLagoonStall Category = "lagoon_stall"
	CategoryService     Category = "service"
)

// AllCategories lists every category in display order.
var AllCategories = []Category{CategoryRoom, CategoryHall, CategoryLagoonStall, CategoryService}

func (c Category) Valid() bool {
	switch c {
	case CategoryRoom, CategoryHall, CategoryLagoonStall, CategoryService:
		return true
	}
	return false
}

// Owned reports whether resources of this category carry an owner
// identity entitled to update them.
func (c Category) Owned() bool {
	return c == CategoryLagoonStall || c == CategoryService
}

// Status is the flat wire representation of a resource status. Inside the
// domain it is always carried by the category-specific RoomStatus or
// StallStatus held in Details.
type Status string

const (
	StatusAvailable Status = "available"
	StatusOccupied  Status = "occupied"
	StatusOpen      Status = "open"
	StatusClosed    Status = "closed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusOccupied, StatusOpen, StatusClosed:
		return true
	}
	return false
}

// RoomStatus applies to rooms and halls.
type RoomStatus string

const (
	RoomAvailable RoomStatus = RoomStatus(StatusAvailable)
	RoomOccupied  RoomStatus = RoomStatus(StatusOccupied)
)

// ParseRoomStatus accepts only available/occupied.
func ParseRoomStatus(s Status) (RoomStatus, error) {
	switch s {
	case StatusAvailable, StatusOccupied:
		return RoomStatus(s), nil
	}
	return "", &ValidationError{FieldErrors: map[string]string{
		"status": fmt.Sprintf("%q is not a room status (expected available or occupied)", s),
	}}
}

// StallStatus applies to lagoon stalls and services.
type StallStatus string

const (
	StallOpen   StallStatus = StallStatus(StatusOpen)
	StallClosed StallStatus = StallStatus(StatusClosed)
)

// ParseStallStatus accepts only open/closed.
func ParseStallStatus(s Status) (StallStatus, error) {
	switch s {
	case StatusOpen, StatusClosed:
		return StallStatus(s), nil
	}
	return "", &ValidationError{FieldErrors: map[string]string{
		"status": fmt.Sprintf("%q is not a stall status (expected open or closed)", s),
	}}
}

// Details is the category-specific part of a Resource. The concrete type
// determines the category, so fields that only make sense for one category
// cannot appear on another.
type Details interface {
	Category() Category
	FlatStatus() Status
	// withStatus returns a copy carrying the new status, or a validation
	// error when the status does not belong to the category.
	withStatus(Status) (Details, error)
}

type RoomDetails struct {
	Wing   string
	Floor  int
	Room   string
	Status RoomStatus
}

func (RoomDetails) Category() Category { return CategoryRoom }
func (d RoomDetails) FlatStatus() Status { return Status(d.Status) }
func (d RoomDetails) withStatus(s Status) (Details, error) {
	rs, err := ParseRoomStatus(s)
	if err != nil {
		return nil, err
	}
	d.Status = rs
	return d, nil
}

type HallDetails struct {
	Status RoomStatus
}

func (HallDetails) Category() Category { return CategoryHall }
func (d HallDetails) FlatStatus() Status { return Status(d.Status) }
func (d HallDetails) withStatus(s Status) (Details, error) {
	rs, err := ParseRoomStatus(s)
	if err != nil {
		return nil, err
	}
	d.Status = rs
	return d, nil
}

type StallDetails struct {
	OwnedBy     string
	StallNumber int
	Status      StallStatus
}

func (StallDetails) Category() Category { return CategoryLagoonStall }
func (d StallDetails) FlatStatus() Status { return Status(d.Status) }
func (d StallDetails) withStatus(s Status) (Details, error) {
	ss, err := ParseStallStatus(s)
	if err != nil {
		return nil, err
	}
	d.Status = ss
	return d, nil
}

type ServiceDetails struct {
	OwnedBy string
	Status  StallStatus
}

func (ServiceDetails) Category() Category { return CategoryService }
func (d ServiceDetails) FlatStatus() Status { return Status(d.Status) }
func (d ServiceDetails) withStatus(s Status) (Details, error) {
	ss, err := ParseStallStatus(s)
	if err != nil {
		return nil, err
	}
	d.Status = ss
	return d, nil
}

// Verification records who confirmed a resource's status and when. A
// resource is either unverified (nil) or carries both fields.
type Verification struct {
	By string
	At time.Time
}

type Resource struct {
	ID           int64
	Name         string
	Type         string
	Details      Details
	LastUpdated  time.Time
	UpdatedBy    *string
	Verification *Verification
}

func (r Resource) Category() Category {
	if r.Details == nil {
		return ""
	}
	return r.Details.Category()
}

func (r Resource) Status() Status {
	if r.Details == nil {
		return ""
	}
	return r.Details.FlatStatus()
}

// OwnedBy returns the owner identity code of a stall or service, or "".
func (r Resource) OwnedBy() string {
	switch d := r.Details.(type) {
	case StallDetails:
		return d.OwnedBy
	case ServiceDetails:
		return d.OwnedBy
	}
	return ""
}

// Wing returns the wing of a room, or "".
func (r Resource) Wing() string {
	if d, ok := r.Details.(RoomDetails); ok {
		return d.Wing
	}
	return ""
}

// Floor returns the floor of a room, or 0.
func (r Resource) Floor() int {
	if d, ok := r.Details.(RoomDetails); ok {
		return d.Floor
	}
	return 0
}

// WithStatus returns a copy of r with the status replaced. The status must
// belong to r's category.
func (r Resource) WithStatus(s Status) (Resource, error) {
	if r.Details == nil {
		return r, &ValidationError{FieldErrors: map[string]string{"category": "resource has no category details"}}
	}
	d, err := r.Details.withStatus(s)
	if err != nil {
		return r, err
	}
	r.Details = d
	return r, nil
}

// Clone returns a deep copy so callers can hand resources out of a store
// without sharing pointer fields.
func (r Resource) Clone() Resource {
	if r.UpdatedBy != nil {
		v := *r.UpdatedBy
		r.UpdatedBy = &v
	}
	if r.Verification != nil {
		v := *r.Verification
		r.Verification = &v
	}
	return r
}

// Validate checks the invariants every stored resource must satisfy.
func (r Resource) Validate() error {
	verr := &ValidationError{}
	if r.Name == "" {
		verr.Add("name", "name is required")
	}
	if r.Type == "" {
		verr.Add("type", "type is required")
	}
	switch d := r.Details.(type) {
	case nil:
		verr.Add("category", "category is required")
	case RoomDetails:
		if d.Wing == "" {
			verr.Add("wing", "wing is required for rooms")
		}
		if d.Floor <= 0 {
			verr.Add("floor", "floor must be positive for rooms")
		}
		if d.Room == "" {
			verr.Add("room", "room is required for rooms")
		}
		if _, err := ParseRoomStatus(Status(d.Status)); err != nil {
			verr.Add("status", "room status must be available or occupied")
		}
	case HallDetails:
		if _, err := ParseRoomStatus(Status(d.Status)); err != nil {
			verr.Add("status", "hall status must be available or occupied")
		}
	case StallDetails:
		if d.OwnedBy == "" {
			verr.Add("ownedBy", "ownedBy is required for lagoon stalls")
		}
		if _, err := ParseStallStatus(Status(d.Status)); err != nil {
			verr.Add("status", "stall status must be open or closed")
		}
	case ServiceDetails:
		if d.OwnedBy == "" {
			verr.Add("ownedBy", "ownedBy is required for services")
		}
		if _, err := ParseStallStatus(Status(d.Status)); err != nil {
			verr.Add("status", "service status must be open or closed")
		}
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// ResourceInput carries the fields needed to provision a resource.
type ResourceInput struct {
	Name    string
	Type    string
	Details Details
}

// ResourcePatch lists the fields an update may change. Nil fields are left
// untouched; LastUpdated is always refreshed by the store.
type ResourcePatch struct {
	Name         *string
	Type         *string
	Status       *Status
	UpdatedBy    *string
	Verification *Verification
}

// Apply merges the patch into r.
func (p ResourcePatch) Apply(r Resource) (Resource, error) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Type != nil {
		r.Type = *p.Type
	}
	if p.Status != nil {
		next, err := r.WithStatus(*p.Status)
		if err != nil {
			return r, err
		}
		r = next
	}
	if p.UpdatedBy != nil {
		v := *p.UpdatedBy
		r.UpdatedBy = &v
	}
	if p.Verification != nil {
		v := *p.Verification
		r.Verification = &v
	}
	return r, nil
}

// ResourceFilter narrows List queries. Zero values match everything.
type ResourceFilter struct {
	Category Category
	Wing     string
	Floor    int
	Status   Status
}

func (f ResourceFilter) Matches(r Resource) bool {
	if f.Category != "" && r.Category() != f.Category {
		return false
	}
	if f.Wing != "" && r.Wing() != f.Wing {
		return false
	}
	if f.Floor != 0 && r.Floor() != f.Floor {
		return false
	}
	if f.Status != "" && r.Status() != f.Status {
		return false
	}
	return true
}

// ResourceRef identifies a resource either by id or by name.
type ResourceRef struct {
	ID   int64
	Name string
}

func ByID(id int64) ResourceRef      { return ResourceRef{ID: id} }
func ByName(name string) ResourceRef { return ResourceRef{Name: name} }

func (r ResourceRef) String() string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("#%d", r.ID)
}
