package metrics

import "time"

// ShipmentRecorder counts envelope deliveries.
type ShipmentRecorder interface {
	RecordShipment(ok bool)
}

// NoopRecorder discards every count.
type NoopRecorder struct{}

func (NoopRecorder) RecordTarget(checked bool)          {}
func (NoopRecorder) RecordMatch(matched bool)           {}
func (NoopRecorder) RecordShipment(ok bool)             {}
func (NoopRecorder) RecordTick(ts time.Time, err error) {}

func (s *Store) RecordTarget(checked bool) {
	if checked {
		s.targetsChecked.Add(1)
		return
	}
	s.targetsSkipped.Add(1)
}

func (s *Store) RecordMatch(matched bool) {
	if matched {
		s.matchesPassed.Add(1)
		return
	}
	s.matchesFailed.Add(1)
}

func (s *Store) RecordShipment(ok bool) {
	if ok {
		s.shipmentsOK.Add(1)
		return
	}
	s.shipmentsFailed.Add(1)
}

// RecordTick counts one scheduled collection and remembers when it finished.
func (s *Store) RecordTick(ts time.Time, err error) {
	s.ticks.Add(1)
	if err != nil {
		s.tickErrors.Add(1)
	}
	s.lastTickUnix.Store(ts.Unix())
}
