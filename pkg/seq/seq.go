package seq

import (
	"golang.org/x/exp/constraints"
)

func Clamp[T constraints.Ordered](value, floor, ceiling T) T {
	if value < floor {
		return floor
	}
	if value > ceiling {
		return ceiling
	}
	return value
}

func SMap[O, I any](in []I, f func(I, int) O) []O {
	out := make([]O, len(in))
	for i, v := range in {
		out[i] = f(v, i)
	}
	return out
}
