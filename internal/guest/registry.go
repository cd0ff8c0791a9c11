package guest

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry holds loaded guests by name.
type Registry struct {
	sync.RWMutex
	guests map[string]*Guest
	logger *zap.Logger
}

// NewRegistry creates a new guest registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		guests: make(map[string]*Guest),
		logger: logger.With(zap.String("component", "guest-registry")),
	}
}

// Register adds a guest to the registry.
func (r *Registry) Register(guest *Guest) error {
	r.Lock()
	defer r.Unlock()

	name := guest.Manifest.Name
	if _, exists := r.guests[name]; exists {
		return &GuestAlreadyRegisteredError{GuestName: name}
	}

	r.guests[name] = guest

	r.logger.Info("Guest registered",
		zap.String("name", name),
		zap.Strings("capabilities", guest.Manifest.Capabilities),
	)

	return nil
}

// Get retrieves a guest by name.
func (r *Registry) Get(name string) (*Guest, bool) {
	r.RLock()
	defer r.RUnlock()

	guest, ok := r.guests[name]
	return guest, ok
}

// WithCapability returns the guests granted capability, sorted by name.
func (r *Registry) WithCapability(capability string) []*Guest {
	r.RLock()
	defer r.RUnlock()

	result := []*Guest{}
	for _, guest := range r.guests {
		if guest.HasCapability(capability) {
			result = append(result, guest)
		}
	}
	sortGuests(result)
	return result
}

// List returns all registered guests sorted by name.
func (r *Registry) List() []*Guest {
	r.RLock()
	defer r.RUnlock()

	result := make([]*Guest, 0, len(r.guests))
	for _, guest := range r.guests {
		result = append(result, guest)
	}
	sortGuests(result)
	return result
}

// Count returns the number of registered guests.
func (r *Registry) Count() int {
	r.RLock()
	defer r.RUnlock()

	return len(r.guests)
}

func sortGuests(guests []*Guest) {
	sort.Slice(guests, func(i, j int) bool {
		return guests[i].Manifest.Name < guests[j].Manifest.Name
	})
}
