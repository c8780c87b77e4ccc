package contacts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"voice-routing/pkg/logger"
)

// Contact is the CRM record for a caller. Routing only ever reads or creates it.
type Contact struct {
	ID         string `json:"id"`
	Phone      string `json:"phone"`
	LocationID string `json:"locationId"`
}

var (
	ErrInvalidArgument = errors.New("contacts: invalid argument")
	ErrResolveFailed   = errors.New("contacts: resolve failed")
)

// Directory is the CRM's contact API.
//
// SearchByPhone matches contacts whose phone field contains phone as a substring.
// Short numbers can over-match; that is accepted and callers take the first result.
type Directory interface {
	SearchByPhone(ctx context.Context, phone, locationID string) ([]Contact, error)
	Create(ctx context.Context, phone, locationID string) (Contact, error)
}

// Observer receives the outcome of every upstream call. It may be nil.
type Observer interface {
	ObserveUpstream(service, operation string, err error, elapsed time.Duration)
}

// Resolver maps a phone number to a contact id, creating the contact when the
// search finds nothing.
//
// Find-or-create is not atomic. Two concurrent calls for the same number can both
// miss the search and both create a contact. Sequential calls reuse the first one.
type Resolver struct {
	Directory Directory
	// Timeout applies to each CRM call separately.
	Timeout time.Duration

	Observer Observer
}

func NewResolver(dir Directory, timeout time.Duration) *Resolver {
	return &Resolver{Directory: dir, Timeout: timeout}
}

// Resolve returns the contact id and whether it was created by this call.
func (r *Resolver) Resolve(ctx context.Context, phone, locationID string) (id string, created bool, err error) {
	phone = strings.TrimSpace(phone)
	if phone == "" || locationID == "" {
		return "", false, ErrInvalidArgument
	}
	if r == nil || r.Directory == nil {
		return "", false, fmt.Errorf("%w: directory not configured", ErrResolveFailed)
	}

	found, err := r.search(ctx, phone, locationID)
	if err != nil {
		return "", false, fmt.Errorf("%w: search: %v", ErrResolveFailed, err)
	}
	for _, c := range found {
		if c.ID != "" {
			return c.ID, false, nil
		}
	}

	c, err := r.create(ctx, phone, locationID)
	if err != nil {
		return "", false, fmt.Errorf("%w: create: %v", ErrResolveFailed, err)
	}
	if c.ID == "" {
		return "", false, fmt.Errorf("%w: create returned no id", ErrResolveFailed)
	}
	logger.From(ctx).Info("contacts: created contact", "contact_id", c.ID, "location_id", locationID)
	return c.ID, true, nil
}

func (r *Resolver) search(ctx context.Context, phone, locationID string) ([]Contact, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	began := time.Now()
	out, err := r.Directory.SearchByPhone(ctx, phone, locationID)
	r.observe("search", err, began)
	return out, err
}

func (r *Resolver) create(ctx context.Context, phone, locationID string) (Contact, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	began := time.Now()
	c, err := r.Directory.Create(ctx, phone, locationID)
	r.observe("create", err, began)
	return c, err
}

func (r *Resolver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.Timeout)
}

func (r *Resolver) observe(op string, err error, began time.Time) {
	if r.Observer != nil {
		r.Observer.ObserveUpstream("crm", op, err, time.Since(began))
	}
}

// MemoryDirectory is an in-memory Directory for tests and local development.
// It keeps the CRM's substring phone matching.
type MemoryDirectory struct {
	mu       sync.Mutex
	contacts []Contact

	searches int
	creates  int
}

func NewMemoryDirectory(seed ...Contact) *MemoryDirectory {
	return &MemoryDirectory{contacts: append([]Contact(nil), seed...)}
}

func (d *MemoryDirectory) SearchByPhone(ctx context.Context, phone, locationID string) ([]Contact, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.searches++
	var out []Contact
	for _, c := range d.contacts {
		if c.LocationID == locationID && strings.Contains(c.Phone, phone) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (d *MemoryDirectory) Create(ctx context.Context, phone, locationID string) (Contact, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.creates++
	c := Contact{ID: uuid.NewString(), Phone: phone, LocationID: locationID}
	d.contacts = append(d.contacts, c)
	return c, nil
}

func (d *MemoryDirectory) Contacts() []Contact {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Contact(nil), d.contacts...)
}

// Calls returns how many searches and creates were served.
func (d *MemoryDirectory) Calls() (searches, creates int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.searches, d.creates
}
