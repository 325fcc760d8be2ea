package components

import (
	"syncwire/server/internal/replicate"
	"syncwire/server/internal/wire"
)

// changed-bits flags for the status delta header.
const (
	statusChangedName = 1 << iota
	statusChangedHealth
	statusChangedEnergy
	statusChangedLevel
)

// Status is a server-authoritative block of common gameplay fields.
// Each setter dirties only its own field; deltas carry a changed-bits
// header followed by the fields that moved.
type Status struct {
	replicate.Base

	name   string
	health uint16
	energy uint16
	level  uint8

	changed uint8
}

// NewStatus builds a status component replicated to mode.
func NewStatus(mode replicate.SyncMode) *Status {
	return &Status{
		Base: replicate.Base{
			Direction: replicate.ServerToClient,
			Mode:      mode,
		},
	}
}

func (s *Status) Name() string   { return s.name }
func (s *Status) Health() uint16 { return s.health }
func (s *Status) Energy() uint16 { return s.energy }
func (s *Status) Level() uint8   { return s.level }

// SetName renames the entity.
func (s *Status) SetName(name string) {
	if s.name == name {
		return
	}
	s.name = name
	s.changed |= statusChangedName
	s.SetDirty()
}

// SetHealth updates current health.
func (s *Status) SetHealth(health uint16) {
	if s.health == health {
		return
	}
	s.health = health
	s.changed |= statusChangedHealth
	s.SetDirty()
}

// SetEnergy updates current energy.
func (s *Status) SetEnergy(energy uint16) {
	if s.energy == energy {
		return
	}
	s.energy = energy
	s.changed |= statusChangedEnergy
	s.SetDirty()
}

// SetLevel updates the level.
func (s *Status) SetLevel(level uint8) {
	if s.level == level {
		return
	}
	s.level = level
	s.changed |= statusChangedLevel
	s.SetDirty()
}

func (s *Status) OnSerialize(w *wire.Writer, initial bool) {
	if initial {
		w.WriteString(s.name)
		w.WriteUint16(s.health)
		w.WriteUint16(s.energy)
		w.WriteUint8(s.level)
		return
	}
	w.WriteUint8(s.changed)
	if s.changed&statusChangedName != 0 {
		w.WriteString(s.name)
	}
	if s.changed&statusChangedHealth != 0 {
		w.WriteUint16(s.health)
	}
	if s.changed&statusChangedEnergy != 0 {
		w.WriteUint16(s.energy)
	}
	if s.changed&statusChangedLevel != 0 {
		w.WriteUint8(s.level)
	}
	s.changed = 0
}

func (s *Status) OnDeserialize(r *wire.Reader, initial bool) error {
	var err error
	if initial {
		if s.name, err = r.ReadString(); err != nil {
			return err
		}
		if s.health, err = r.ReadUint16(); err != nil {
			return err
		}
		if s.energy, err = r.ReadUint16(); err != nil {
			return err
		}
		if s.level, err = r.ReadUint8(); err != nil {
			return err
		}
		return nil
	}

	changed, err := r.ReadUint8()
	if err != nil {
		return err
	}
	if changed&statusChangedName != 0 {
		if s.name, err = r.ReadString(); err != nil {
			return err
		}
	}
	if changed&statusChangedHealth != 0 {
		if s.health, err = r.ReadUint16(); err != nil {
			return err
		}
	}
	if changed&statusChangedEnergy != 0 {
		if s.energy, err = r.ReadUint16(); err != nil {
			return err
		}
	}
	if changed&statusChangedLevel != 0 {
		if s.level, err = r.ReadUint8(); err != nil {
			return err
		}
	}
	return nil
}
