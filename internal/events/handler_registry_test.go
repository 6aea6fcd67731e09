package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry_DispatchByKey(t *testing.T) {
	registry := NewHandlerRegistry[string, int]()

	var heartRates, strokes []int
	offHR := registry.Register("heartRate", func(v int) { heartRates = append(heartRates, v) })
	registry.Register("strokeCount", func(v int) { strokes = append(strokes, v) })

	assert.Equal(t, 1, registry.Dispatch("heartRate", 140))
	assert.Equal(t, 1, registry.Dispatch("strokeCount", 3))
	assert.Equal(t, 0, registry.Dispatch("command", 0))

	assert.Equal(t, []int{140}, heartRates)
	assert.Equal(t, []int{3}, strokes)

	offHR()
	assert.Equal(t, 0, registry.Count("heartRate"))
	assert.Equal(t, 0, registry.Dispatch("heartRate", 150))
	assert.Equal(t, []int{140}, heartRates)
}

func TestHandlerRegistry_MultipleHandlersSameKey(t *testing.T) {
	registry := NewHandlerRegistry[string, string]()

	calls := 0
	registry.Register("workoutsData", func(string) { calls++ })
	registry.Register("workoutsData", func(string) { calls++ })

	assert.Equal(t, 2, registry.Count("workoutsData"))
	assert.Equal(t, 2, registry.Dispatch("workoutsData", "snapshot"))
	assert.Equal(t, 2, calls)
}

func TestHandlerRegistry_HandlerMayUnregisterItself(t *testing.T) {
	registry := NewHandlerRegistry[int, int]()

	calls := 0
	var off func()
	off = registry.Register(1, func(int) {
		calls++
		off()
	})

	registry.Dispatch(1, 0)
	registry.Dispatch(1, 0)
	assert.Equal(t, 1, calls)
}

func TestHandlerRegistry_NilHandlerPanics(t *testing.T) {
	registry := NewHandlerRegistry[int, int]()
	assert.Panics(t, func() { registry.Register(1, nil) })
}
