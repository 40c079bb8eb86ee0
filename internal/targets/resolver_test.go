package targets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sprintboard/internal/domain"
)

type fakeSource struct {
	customers  map[string]float64
	iterations map[int64]domain.IterationTarget
}

func (f fakeSource) CustomerTarget(c string) (float64, bool) {
	v, ok := f.customers[c]
	return v, ok
}

func (f fakeSource) IterationTarget(id int64) (domain.IterationTarget, bool) {
	v, ok := f.iterations[id]
	return v, ok
}

func TestResolve_CustomerFilterUsesCustomerTarget(t *testing.T) {
	r := NewResolver(fakeSource{customers: map[string]float64{"acme": 30}})
	assert.Equal(t, 30.0, r.Resolve(7, "acme", nil, 12))
}

func TestResolve_CustomerFilterFallsBackToFilteredTotal(t *testing.T) {
	r := NewResolver(fakeSource{})
	assert.Equal(t, 12.0, r.Resolve(7, "unknown", nil, 12))
}

func TestResolve_IterationTargetWinsOverCustomerSum(t *testing.T) {
	// historical iterations keep their recorded target even after
	// customer targets change
	r := NewResolver(fakeSource{
		customers: map[string]float64{"acme": 30, "globex": 20},
		iterations: map[int64]domain.IterationTarget{
			7: {IterationID: 7, Points: 80, Customers: []string{"acme", "globex"}, SavedAt: time.Now()},
		},
	})
	assert.Equal(t, 80.0, r.Resolve(7, "", []string{"acme", "globex"}, 44))
}

func TestResolve_SumsObservedCustomerTargets(t *testing.T) {
	r := NewResolver(fakeSource{customers: map[string]float64{"acme": 30, "globex": 20}})
	// "initech" has no configured target and contributes 0
	assert.Equal(t, 50.0, r.Resolve(9, "", []string{"acme", "globex", "initech"}, 44))
}

func TestResolve_NoConfigurationYieldsZero(t *testing.T) {
	r := NewResolver(fakeSource{})
	assert.Equal(t, 0.0, r.Resolve(9, "", []string{"acme"}, 44))
}
