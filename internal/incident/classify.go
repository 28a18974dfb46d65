package incident

import (
	"github.com/crashla/incident.report/internal/sgo"
)

// SpeedBin buckets the subject vehicle's pre-crash speed.
type SpeedBin string

const (
	SpeedUnknown    SpeedBin = "unknown"
	SpeedStationary SpeedBin = "stationary"
	SpeedLow        SpeedBin = "low"    // (0,10] mph
	SpeedMedium     SpeedBin = "medium" // (10,30] mph
	SpeedHigh       SpeedBin = "high"   // >30 mph
)

// roadParkingLot is the SGO road-type label excluded from the
// roadway-nonstationary predicate.
const roadParkingLot = "Parking Lot"

// Facts are the named predicates derived from one incident. Metric
// definitions combine these declaratively; the classifier itself carries
// no metric knowledge.
type Facts struct {
	SpeedBin SpeedBin

	// Nonstationary is true unless the vehicle was known to be stopped; a
	// missing speed counts as nonstationary.
	Nonstationary bool

	// RoadwayNonstationary additionally excludes parking-lot incidents.
	RoadwayNonstationary bool

	Injury        bool // any injury alleged
	Hospitalized  bool // hospitalisation or worse
	SeriousInjury bool // KABCO A+K: serious injury or fatality
	Fatal         bool

	AirbagDeployed bool

	// FatalityWeight is 1/vehiclesInvolved for fatal crashes so one
	// multi-vehicle crash is not double-counted across tallies, 0
	// otherwise.
	FatalityWeight float64
}

// Classify derives the metric predicates for one record. Pure and
// deterministic.
func Classify(r Record) Facts {
	f := Facts{
		SpeedBin:       binSpeed(r.Speed),
		AirbagDeployed: r.AirbagDeployed,
	}
	f.Nonstationary = f.SpeedBin != SpeedStationary
	f.RoadwayNonstationary = f.Nonstationary && r.Road != roadParkingLot

	f.Injury = r.Severity >= sgo.SeverityMinor
	f.Hospitalized = r.Severity == sgo.SeverityMinorHospitalized ||
		r.Severity == sgo.SeverityModerateHospitalized ||
		r.Severity == sgo.SeverityFatal
	f.SeriousInjury = r.Severity >= sgo.SeverityModerateHospitalized
	f.Fatal = r.Severity == sgo.SeverityFatal
	if f.Fatal {
		f.FatalityWeight = 1 / float64(r.VehiclesInvolved)
	}
	return f
}

func binSpeed(speed *float64) SpeedBin {
	switch {
	case speed == nil:
		return SpeedUnknown
	case *speed == 0:
		return SpeedStationary
	case *speed <= 10:
		return SpeedLow
	case *speed <= 30:
		return SpeedMedium
	default:
		return SpeedHigh
	}
}
