// Package pipeline turns a batch of raw listing rows into partitioned,
// geocoded and genre-coded records.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goto-eat-map/csv2geojson/internal/address"
	"github.com/goto-eat-map/csv2geojson/internal/genre"
	"github.com/goto-eat-map/csv2geojson/internal/metrics"
	"github.com/goto-eat-map/csv2geojson/internal/model"
	"github.com/goto-eat-map/csv2geojson/internal/validate"
	"github.com/goto-eat-map/csv2geojson/pkg/geocode"
)

// ProvidedSource is the geocode source recorded for rows that carried their
// own coordinates.
const ProvidedSource = "provided"

// Defaults for Options.
const (
	DefaultConcurrency    = 8
	DefaultGeocodeTimeout = 30 * time.Second
)

// Options tunes an Orchestrator.
type Options struct {
	// Concurrency bounds the records processed in parallel.
	Concurrency int
	// GeocodeTimeout bounds each geocoder call. Expiry is a geocode error.
	GeocodeTimeout time.Duration
	// Metrics is optional.
	Metrics *metrics.Registry
}

// Orchestrator runs the per-record steps and partitions the results.
// It holds no per-batch state and may run several batches concurrently.
type Orchestrator struct {
	classifier *genre.Classifier
	regions    *address.Regions
	segmenter  *address.Segmenter
	geocoder   geocode.Client
	validator  *validate.Validator
	opts       Options
}

// New creates an Orchestrator.
func New(
	classifier *genre.Classifier,
	regions *address.Regions,
	geocoder geocode.Client,
	validator *validate.Validator,
	opts Options,
) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.GeocodeTimeout <= 0 {
		opts.GeocodeTimeout = DefaultGeocodeTimeout
	}
	return &Orchestrator{
		classifier: classifier,
		regions:    regions,
		segmenter:  address.NewSegmenter(regions),
		geocoder:   geocoder,
		validator:  validator,
		opts:       opts,
	}
}

// Batch is one source's rows.
type Batch struct {
	// RunID is generated when empty.
	RunID string
	// Source labels logs and metrics; defaults to Region.
	Source  string
	Region  string
	Records []model.RawRecord
}

// Run processes records for region. See RunBatch.
func (o *Orchestrator) Run(ctx context.Context, region string, records []model.RawRecord) (*Result, error) {
	return o.RunBatch(ctx, Batch{Region: region, Records: records})
}

// RunBatch deduplicates the batch, normalizes every surviving record and
// partitions them. Record-level failures land in Result.Errors; an unknown
// region, a broken lookup or a cancelled context abort the whole batch.
func (o *Orchestrator) RunBatch(ctx context.Context, b Batch) (*Result, error) {
	if b.RunID == "" {
		b.RunID = uuid.NewString()
	}
	if b.Source == "" {
		b.Source = b.Region
	}
	log := zap.L().With(zap.String("source", b.Source), zap.String("run_id", b.RunID))

	if _, err := o.regions.Prefecture(b.Region); err != nil {
		return nil, eris.Wrapf(err, "pipeline: region %q", b.Region)
	}

	result := &Result{
		RunID:         b.RunID,
		Source:        b.Source,
		Region:        b.Region,
		Input:         len(b.Records),
		StartedAt:     time.Now(),
		UnknownGenres: make(map[string]int),
	}

	survivors, duplicated := dedup(b.Records)
	result.Duplicated = duplicated
	if len(duplicated) > 0 {
		log.Info("pipeline: duplicate rows dropped",
			zap.Int("duplicated", len(duplicated)),
			zap.Int("survivors", len(survivors)),
		)
	}

	outcomes := make([]outcome, len(survivors))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Concurrency)
	for i, sr := range survivors {
		g.Go(func() error {
			out, err := o.process(gCtx, b.Region, sr)
			if err != nil {
				return eris.Wrapf(err, "pipeline: record %d", sr.seq)
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, out := range outcomes {
		rec := out.record
		switch {
		case rec.HasError():
			log.Warn("pipeline: record error",
				zap.Int("seq", rec.Seq),
				zap.String("shop_name", rec.ShopName),
				zap.String("address", rec.Address),
				zap.String("error", rec.ErrorTag),
				zap.String("detail", rec.ErrorDetail),
			)
			result.Errors = append(result.Errors, rec)
		case rec.HasWarning():
			for _, w := range out.warnings {
				o.opts.Metrics.ObserveWarning(b.Source, string(w.Kind))
			}
			result.Warnings = append(result.Warnings, rec)
		default:
			result.Clean = append(result.Clean, rec)
		}
		if out.unknownGenre != "" {
			result.UnknownGenres[out.unknownGenre]++
		}
	}
	result.FinishedAt = time.Now()

	m := o.opts.Metrics
	m.ObserveRecords(b.Source, metrics.PartitionClean, len(result.Clean))
	m.ObserveRecords(b.Source, metrics.PartitionWarning, len(result.Warnings))
	m.ObserveRecords(b.Source, metrics.PartitionError, len(result.Errors))
	m.ObserveRecords(b.Source, metrics.PartitionDuplicated, len(result.Duplicated))
	m.ObserveUnknownGenres(b.Source, len(result.UnknownGenres))

	log.Info("pipeline: batch complete",
		zap.Int("input", result.Input),
		zap.Int("clean", len(result.Clean)),
		zap.Int("warnings", len(result.Warnings)),
		zap.Int("errors", len(result.Errors)),
		zap.Int("duplicated", len(result.Duplicated)),
		zap.Int("unknown_genres", len(result.UnknownGenres)),
		zap.Duration("duration", result.Duration()),
	)
	return result, nil
}

// outcome is the tagged result of one record before partitioning.
type outcome struct {
	record       model.NormalizedRecord
	warnings     []validate.Warning
	unknownGenre string
}

// process runs classify, locate and validate for one record. Record-level
// failures are folded into the record's error tag; the returned error is
// fatal for the batch.
func (o *Orchestrator) process(ctx context.Context, region string, sr seqRecord) (outcome, error) {
	rec := model.NormalizedRecord{RawRecord: sr.raw, Seq: sr.seq}
	var out outcome

	rec.GenreCode = o.classifier.Classify(rec.GenreName)
	if label := strings.TrimSpace(rec.GenreName); label != "" && !o.classifier.Known(label) {
		out.unknownGenre = label
	}
	rec.TelE164 = TelE164(rec.Tel)

	if err := o.locate(ctx, region, &rec); err != nil {
		re, ok := AsRecordError(err)
		if !ok {
			return outcome{}, err
		}
		rec.ErrorTag = string(re.Kind)
		rec.ErrorDetail = re.Err.Error()
		out.record = rec
		return out, nil
	}

	warnings, err := o.validator.Validate(ctx, rec)
	if err != nil {
		return outcome{}, eris.Wrap(err, "validate")
	}
	if len(warnings) > 0 {
		rec.WarningTag = string(warnings[0].Kind)
		rec.WarningDetails = make([]string, len(warnings))
		for i, w := range warnings {
			rec.WarningDetails[i] = w.String()
		}
	}
	out.record = rec
	out.warnings = warnings
	return out, nil
}

// locate fills coordinates, the normalized address and map links.
func (o *Orchestrator) locate(ctx context.Context, region string, rec *model.NormalizedRecord) error {
	if rec.HasProvidedCoordinates() {
		lat, lng, err := rec.ProvidedCoordinates()
		if err != nil {
			return recordError(ErrorInvalidCoordinates, err)
		}
		lat, lng = RoundCoordinate(lat), RoundCoordinate(lng)
		if isNullIsland(lat, lng) {
			return recordError(ErrorInvalidCoordinates, errors.New("provided coordinates are (0, 0)"))
		}
		normalized, err := o.segmenter.Qualify(rec.Address, region)
		if err != nil {
			return err
		}
		rec.NormalizedAddress = normalized
		rec.GeocodeSource = ProvidedSource
		setPosition(rec, lat, lng)
		return nil
	}

	normalized, err := o.segmenter.Segment(rec.Address, region)
	if err != nil {
		if address.IsNormalizeError(err) {
			return recordError(ErrorNormalize, err)
		}
		return err
	}
	if normalized == "" {
		return recordError(ErrorNormalize, errors.New("empty address"))
	}
	rec.NormalizedAddress = normalized

	res, err := o.geocode(ctx, normalized)
	if err != nil {
		return err
	}
	lat, lng := RoundCoordinate(res.Latitude), RoundCoordinate(res.Longitude)
	if isNullIsland(lat, lng) {
		return recordError(ErrorGeocode, errors.New("geocoder returned (0, 0)"))
	}

	rec.GeocodeScore = res.Score
	rec.GeocodeName = res.Matched
	rec.GeocodeTail = res.Tail
	rec.GeocodeSource = res.Source
	setPosition(rec, lat, lng)
	return nil
}

// geocode calls the geocoder under the per-call timeout. Any failure other
// than the batch context ending is a record-level geocode error.
func (o *Orchestrator) geocode(ctx context.Context, addr string) (*geocode.Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.opts.GeocodeTimeout)
	defer cancel()

	start := time.Now()
	res, err := o.geocoder.Geocode(callCtx, addr)
	took := time.Since(start)

	switch {
	case err == nil && res != nil:
		o.opts.Metrics.ObserveGeocode(metrics.GeocodeOK, took)
		return res, nil
	case ctx.Err() != nil:
		return nil, eris.Wrap(ctx.Err(), "geocode")
	case err == nil:
		err = geocode.ErrNoMatch
	}

	if errors.Is(err, geocode.ErrNoMatch) {
		o.opts.Metrics.ObserveGeocode(metrics.GeocodeNoMatch, took)
	} else {
		o.opts.Metrics.ObserveGeocode(metrics.GeocodeFailed, took)
	}
	return nil, recordError(ErrorGeocode, err)
}

func setPosition(rec *model.NormalizedRecord, lat, lng float64) {
	rec.Lat = lat
	rec.Lng = lng
	rec.GoogleMapURL = GoogleMapURL(rec.NormalizedAddress, rec.ShopName)
	rec.GSIMapURL = GSIMapURL(lat, lng)
}
