package manager

import "positionRegistry/internal/model"

// Describe renders the position's metadata descriptor, a pure function of
// the persisted position data.
func (m *Manager) Describe(tokenID uint64) (model.Descriptor, error) {
	pos, err := m.store.Get(tokenID)
	if err != nil {
		return model.Descriptor{}, err
	}
	return model.Describe(pos.Snapshot(""), "", ""), nil
}
