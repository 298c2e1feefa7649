package service

import (
	"errors"
	"fmt"
	"math"
	"time"
	_ "time/tzdata"

	"glucotrack/internal/codec"
	"glucotrack/internal/domain"
	"glucotrack/internal/registry"
)

const (
	// DataKey is the session key of a user's measurements
	DataKey = "user_data"
	// DataFile is the measurements file inside the user namespace
	DataFile = "data.csv"

	ColumnTime   = "datum_zeit"
	ColumnValue  = "blutzuckerwert"
	ColumnMoment = "zeitpunkt"

	// DefaultZone is the zone readings are stamped in
	DefaultZone = "Europe/Zurich"
)

// Moment is when a reading was taken relative to a meal
type Moment string

const (
	MomentFasting   Moment = "Nüchtern"
	MomentAfterMeal Moment = "Nach dem Essen"
)

// Moments lists the accepted measurement moments
func Moments() []Moment {
	return []Moment{MomentFasting, MomentAfterMeal}
}

// Valid reports whether m is a known moment
func (m Moment) Valid() bool {
	return m == MomentFasting || m == MomentAfterMeal
}

// ErrInvalidMeasurement is returned for readings that fail validation
var ErrInvalidMeasurement = errors.New("invalid measurement")

// Measurement is one glucose reading
type Measurement struct {
	Index  int       `json:"index"`
	Time   time.Time `json:"time"`
	Value  float64   `json:"value"`
	Moment Moment    `json:"moment"`
}

// Summary aggregates a user's readings
type Summary struct {
	Count int          `json:"count"`
	Mean  *float64     `json:"mean,omitempty"`
	Last  *Measurement `json:"last,omitempty"`
}

// MeasurementService records and reads glucose measurements of the session
// identity
type MeasurementService struct {
	loc *time.Location
	now func() time.Time
}

// NewMeasurementService creates a service stamping readings in loc. A nil
// loc falls back to DefaultZone.
func NewMeasurementService(loc *time.Location) (*MeasurementService, error) {
	if loc == nil {
		var err error
		loc, err = time.LoadLocation(DefaultZone)
		if err != nil {
			return nil, fmt.Errorf("load zone %s: %w", DefaultZone, err)
		}
	}
	return &MeasurementService{loc: loc, now: time.Now}, nil
}

// Load makes the user's measurements resident and returns them. A missing
// file yields an empty dataset with the measurement columns.
func (s *MeasurementService) Load(sess *registry.Session) (*domain.Dataset, error) {
	v, err := sess.LoadUserData(DataKey, DataFile,
		domain.NewDataset(ColumnTime, ColumnValue, ColumnMoment),
		codec.WithTimeColumns(domain.TimeLayout, ColumnTime))
	if err != nil {
		return nil, err
	}
	ds, ok := v.(*domain.Dataset)
	if !ok {
		return nil, fmt.Errorf("%s is %T: %w", DataKey, v, domain.ErrShapeMismatch)
	}
	return ds, nil
}

// Record appends a reading stamped with the current time and writes it
// through to the user's file
func (s *MeasurementService) Record(sess *registry.Session, value float64, moment Moment) (Measurement, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return Measurement{}, fmt.Errorf("%w: value must be a non-negative number", ErrInvalidMeasurement)
	}
	if !moment.Valid() {
		return Measurement{}, fmt.Errorf("%w: unknown moment %q", ErrInvalidMeasurement, moment)
	}

	ds, err := s.Load(sess)
	if err != nil {
		return Measurement{}, err
	}

	at := s.now().In(s.loc).Truncate(time.Second)
	rec := domain.Record{
		ColumnTime:   at,
		ColumnValue:  value,
		ColumnMoment: string(moment),
	}
	if err := sess.AppendRecord(DataKey, rec); err != nil {
		return Measurement{}, err
	}

	return Measurement{Index: ds.Len(), Time: at, Value: value, Moment: moment}, nil
}

// List returns the user's readings in file order
func (s *MeasurementService) List(sess *registry.Session) ([]Measurement, error) {
	ds, err := s.Load(sess)
	if err != nil {
		return nil, err
	}
	out := make([]Measurement, 0, ds.Len())
	for i, row := range ds.Rows {
		out = append(out, s.fromRow(i, row))
	}
	return out, nil
}

// Delete removes the reading at index and saves the file. The session value
// is restored when the save fails.
func (s *MeasurementService) Delete(sess *registry.Session, index int) error {
	ds, err := s.Load(sess)
	if err != nil {
		return err
	}
	if index < 0 || index >= ds.Len() {
		return fmt.Errorf("%w: index %d out of range", ErrInvalidMeasurement, index)
	}

	next := ds.Clone()
	next.Rows = append(next.Rows[:index], next.Rows[index+1:]...)
	if err := sess.Put(DataKey, next); err != nil {
		return err
	}
	if err := sess.Save(DataKey); err != nil {
		_ = sess.Put(DataKey, ds)
		return err
	}
	return nil
}

// Summarize counts the readings and averages their values
func (s *MeasurementService) Summarize(sess *registry.Session) (Summary, error) {
	ds, err := s.Load(sess)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Count: ds.Len()}
	if mean, ok := ds.Mean(ColumnValue); ok {
		sum.Mean = &mean
	}
	if n := ds.Len(); n > 0 {
		last := s.fromRow(n-1, ds.Rows[n-1])
		sum.Last = &last
	}
	return sum, nil
}

func (s *MeasurementService) fromRow(i int, row domain.Record) Measurement {
	m := Measurement{Index: i}
	switch t := row[ColumnTime].(type) {
	case time.Time:
		// Cells carry wall clock time without a zone.
		if t.Location() == time.UTC {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, s.loc)
		}
		m.Time = t.In(s.loc)
	}
	switch v := row[ColumnValue].(type) {
	case int64:
		m.Value = float64(v)
	case float64:
		m.Value = v
	}
	if moment, ok := row[ColumnMoment].(string); ok {
		m.Moment = Moment(moment)
	}
	return m
}
