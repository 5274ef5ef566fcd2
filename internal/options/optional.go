package options

// Optional holds a value that is either explicitly set or absent.
type Optional[T any] struct {
	value T
	set   bool
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// Set stores v.
func (o *Optional[T]) Set(v T) {
	o.value, o.set = v, true
}

// Get returns the value and whether it was set.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet reports whether a value was stored.
func (o Optional[T]) IsSet() bool {
	return o.set
}

// Or returns the value if set, def otherwise.
func (o Optional[T]) Or(def T) T {
	if o.set {
		return o.value
	}

	return def
}

// ApplyTo overwrites *dst when a value was set.
func (o Optional[T]) ApplyTo(dst *T) {
	if o.set {
		*dst = o.value
	}
}
