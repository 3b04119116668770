package sim

// Sink terminates products of its declared type. Products are transported
// into the sink's input store and destroyed on arrival.
type Sink struct {
	ID          string
	Location    [2]float64
	ProductType string
	Input       *Store
}

// NewSink builds a sink over its input store.
func NewSink(id string, location [2]float64, productType string, input *Store) *Sink {
	return &Sink{ID: id, Location: location, ProductType: productType, Input: input}
}
