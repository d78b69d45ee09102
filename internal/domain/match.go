package domain

// VectorMatch is a single nearest-neighbour hit. Score is a similarity in [0,1].
type VectorMatch struct {
	ID       string
	Score    float64
	Metadata Metadata
}

// Name returns the display name from metadata, falling back to the ID.
func (m VectorMatch) Name() string {
	if s, ok := m.Metadata.String(MetaName); ok {
		return s
	}
	return m.ID
}

// Type returns the entity type tag from metadata.
func (m VectorMatch) Type() string {
	return m.Metadata.Get(MetaType)
}

// Location returns the place name recorded in metadata, if any.
func (m VectorMatch) Location() (string, bool) {
	return m.Metadata.Location()
}

// ClampScore forces a similarity into [0,1].
func ClampScore(s float64) float64 {
	switch {
	case s != s: // NaN
		return 0
	case s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}
