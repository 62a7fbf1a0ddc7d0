// Package mohu drives the cascading address form of the MOHU Budapest waste
// calendar. A [Driver] walks district → street → house number → results in
// one cookie-scoped session and returns the collection dates for an address.
//
// Each step produces a typed value that the next step consumes, so a later
// step cannot run without the selections of the earlier ones. Any failure
// aborts the cascade; a [model.FetchResult] is only produced once every step
// has succeeded.
package mohu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/njoerd114/mohucal/internal/fragment"
	"github.com/njoerd114/mohucal/internal/model"
)

// Site handler and partial names.
const (
	districtSelector = `select[name="district"] option`

	handlerDistrict = "onSelectDistricts"
	partialStreets  = "ajax/publicPlaces"

	handlerStreet = "onSavePublicPlace"
	partialHouses = "ajax/houseNumbers"

	handlerSearch = "onSearch"
	partialResult = "ajax/calSearchResults"

	fieldDistrict = "district"
	fieldStreet   = "publicPlace"
	fieldHouse    = "houseNumber"
)

// Driver resolves addresses into collection dates. It holds no per-address
// state and is safe for concurrent use; every Fetch opens its own session.
type Driver struct {
	transport Transport
	log       *slog.Logger
}

// NewDriver creates a Driver that talks to the site through transport.
func NewDriver(transport Transport, logger *slog.Logger) *Driver {
	return &Driver{transport: transport, log: logger}
}

// sessionOpened is the Init state: a live session and its landing page.
type sessionOpened struct {
	sess Session
}

// districtChosen follows DistrictSelect.
type districtChosen struct {
	sessionOpened
	district model.OptionRecord
}

// streetChosen follows StreetSelect.
type streetChosen struct {
	districtChosen
	street model.OptionRecord
}

// houseChosen follows HouseSelect.
type houseChosen struct {
	streetChosen
	house model.OptionRecord
}

// Fetch resolves addr and returns its dates for category. The returned error
// is one of [*AddressResolutionError], [*TransportError] or
// [*fragment.MalformedFragmentError] (possibly wrapped); no result is
// returned alongside an error.
func (d *Driver) Fetch(ctx context.Context, addr model.AddressConstraint, category model.Category) (*model.FetchResult, error) {
	d.log.Info("query started", "address", addr.String(), "category", category)

	sess, err := d.transport.Open(ctx)
	if err != nil {
		return nil, stepError(StepInit, err)
	}
	defer sess.Close()

	s0 := sessionOpened{sess: sess}

	s1, err := d.selectDistrict(s0, addr.DistrictQuery)
	if err != nil {
		return nil, err
	}
	s2, err := d.selectStreet(ctx, s1, addr.StreetQuery)
	if err != nil {
		return nil, err
	}
	s3, err := d.selectHouse(ctx, s2, addr.HouseNumber)
	if err != nil {
		return nil, err
	}
	dates, err := d.fetchResults(ctx, s3, category)
	if err != nil {
		return nil, err
	}

	d.log.Info("query finished", "address", addr.String(), "category", category, "dates", len(dates))
	return &model.FetchResult{Address: addr, Category: category, Dates: dates}, nil
}

// Districts opens a session and lists the district options. Used by the
// interactive setup.
func (d *Driver) Districts(ctx context.Context) ([]model.OptionRecord, error) {
	sess, err := d.transport.Open(ctx)
	if err != nil {
		return nil, stepError(StepInit, err)
	}
	defer sess.Close()
	return districtOptions(sess)
}

// Streets lists the street options of the district matching districtQuery.
func (d *Driver) Streets(ctx context.Context, districtQuery string) ([]model.OptionRecord, error) {
	sess, err := d.transport.Open(ctx)
	if err != nil {
		return nil, stepError(StepInit, err)
	}
	defer sess.Close()

	s1, err := d.selectDistrict(sessionOpened{sess: sess}, districtQuery)
	if err != nil {
		return nil, err
	}
	return streetOptions(ctx, s1)
}

// HouseNumbers lists the house numbers of the street matching streetQuery in
// the district matching districtQuery.
func (d *Driver) HouseNumbers(ctx context.Context, districtQuery, streetQuery string) ([]model.OptionRecord, error) {
	sess, err := d.transport.Open(ctx)
	if err != nil {
		return nil, stepError(StepInit, err)
	}
	defer sess.Close()

	s1, err := d.selectDistrict(sessionOpened{sess: sess}, districtQuery)
	if err != nil {
		return nil, err
	}
	s2, err := d.selectStreet(ctx, s1, streetQuery)
	if err != nil {
		return nil, err
	}
	return houseOptions(ctx, s2)
}

func (d *Driver) selectDistrict(s sessionOpened, query string) (districtChosen, error) {
	opts, err := districtOptions(s.sess)
	if err != nil {
		return districtChosen{}, err
	}
	opt, err := fragment.ResolveCode(opts, query)
	if err != nil {
		return districtChosen{}, stepError(StepDistrict, err)
	}
	d.log.Debug("district selected", "label", opt.Label, "value", opt.Value)
	return districtChosen{sessionOpened: s, district: opt}, nil
}

func (d *Driver) selectStreet(ctx context.Context, s districtChosen, query string) (streetChosen, error) {
	opts, err := streetOptions(ctx, s)
	if err != nil {
		return streetChosen{}, err
	}
	opt, err := fragment.Resolve(opts, query)
	if err != nil {
		return streetChosen{}, stepError(StepStreet, err)
	}
	d.log.Debug("street selected", "label", opt.Label, "value", opt.Value)
	return streetChosen{districtChosen: s, street: opt}, nil
}

func (d *Driver) selectHouse(ctx context.Context, s streetChosen, query string) (houseChosen, error) {
	opts, err := houseOptions(ctx, s)
	if err != nil {
		return houseChosen{}, err
	}
	opt, err := fragment.Resolve(opts, query)
	if err != nil {
		return houseChosen{}, stepError(StepHouse, err)
	}
	d.log.Debug("house number selected", "label", opt.Label, "value", opt.Value)
	return houseChosen{streetChosen: s, house: opt}, nil
}

func (d *Driver) fetchResults(ctx context.Context, s houseChosen, category model.Category) ([]model.CollectionDate, error) {
	html, err := s.sess.Partial(ctx, PartialRequest{
		Handler: handlerSearch,
		Partial: partialResult,
		Form: url.Values{
			fieldDistrict: {s.district.Value},
			fieldStreet:   {s.street.Value},
			fieldHouse:    {s.house.Value},
		},
	})
	if err != nil {
		return nil, stepError(StepResult, err)
	}
	dates, err := fragment.Extract(html, category)
	if err != nil {
		return nil, stepError(StepResult, err)
	}
	return dates, nil
}

func districtOptions(sess Session) ([]model.OptionRecord, error) {
	opts, err := fragment.ParseOptions(sess.Page(), districtSelector)
	if err != nil {
		return nil, stepError(StepDistrict, err)
	}
	return opts, nil
}

func streetOptions(ctx context.Context, s districtChosen) ([]model.OptionRecord, error) {
	html, err := s.sess.Partial(ctx, PartialRequest{
		Handler: handlerDistrict,
		Partial: partialStreets,
		Form:    url.Values{fieldDistrict: {s.district.Value}},
	})
	if err != nil {
		return nil, stepError(StepStreet, err)
	}
	opts, err := fragment.ParseOptions(html, "")
	if err != nil {
		return nil, stepError(StepStreet, err)
	}
	return opts, nil
}

func houseOptions(ctx context.Context, s streetChosen) ([]model.OptionRecord, error) {
	html, err := s.sess.Partial(ctx, PartialRequest{
		Handler: handlerStreet,
		Partial: partialHouses,
		Form: url.Values{
			fieldDistrict: {s.district.Value},
			fieldStreet:   {s.street.Value},
		},
	})
	if err != nil {
		return nil, stepError(StepHouse, err)
	}
	opts, err := fragment.ParseOptions(html, "")
	if err != nil {
		return nil, stepError(StepHouse, err)
	}
	return opts, nil
}

// stepError classifies err for step. Resolver misses become
// [*AddressResolutionError]; transport and structural errors keep their type
// and gain the step as context. Anything else is treated as a transport
// failure.
func stepError(step Step, err error) error {
	var nm *fragment.NoMatchError
	if errors.As(err, &nm) {
		return &AddressResolutionError{Step: step, Err: err}
	}
	var te *TransportError
	var mf *fragment.MalformedFragmentError
	if errors.As(err, &te) || errors.As(err, &mf) {
		return fmt.Errorf("%s step: %w", step, err)
	}
	return fmt.Errorf("%s step: %w", step, &TransportError{Op: string(step), Err: err})
}
