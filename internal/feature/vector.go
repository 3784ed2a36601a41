package feature

import (
	"fmt"
	"strings"
)

// Size is the number of slots in every Vector.
const Size = 30

// Names lists the slot names in the order the classifier was fitted with.
// Any model artifact must declare exactly this order.
var Names = func() [Size]string {
	var n [Size]string
	n[0] = "Time"
	for i := 1; i <= 28; i++ {
		n[i] = fmt.Sprintf("V%d", i)
	}
	n[Size-1] = "Amount"
	return n
}()

// slotByKey maps an upper-cased input key to its slot index.
var slotByKey = func() map[string]int {
	m := make(map[string]int, Size)
	for i, name := range Names {
		m[strings.ToUpper(name)] = i
	}
	return m
}()

// Vector is the fixed-order numeric input handed to the classifier.
type Vector [Size]float64

// Slot returns the slot index for a key, matched case-insensitively.
func Slot(key string) (int, bool) {
	i, ok := slotByKey[strings.ToUpper(key)]
	return i, ok
}

// Get returns the value for a slot name (case-insensitive).
func (v Vector) Get(name string) (float64, bool) {
	i, ok := Slot(name)
	if !ok {
		return 0, false
	}
	return v[i], true
}

// Time is the seconds-elapsed slot.
func (v Vector) Time() float64 { return v[0] }

// Amount is the transaction amount slot.
func (v Vector) Amount() float64 { return v[Size-1] }

// Slice returns a copy of the vector as a slice.
func (v Vector) Slice() []float64 {
	out := make([]float64, Size)
	copy(out, v[:])
	return out
}

// Map returns the vector keyed by canonical slot name.
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, Size)
	for i, name := range Names {
		m[name] = v[i]
	}
	return m
}
